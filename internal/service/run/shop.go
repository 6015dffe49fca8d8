package run

import (
	"encoding/json"
	"fmt"

	"frenzy-service/internal/service/engine"
	appErr "frenzy-service/pkg/errors"
)

type jokerBody struct {
	JokerID string `json:"jokerId"`
}

// enterShopLocked rolls the shop offers: distinct catalog jokers the
// player does not already own.
func (rt *Runtime) enterShopLocked() {
	owned := make(map[string]bool, len(rt.jokers))
	for _, j := range rt.jokers {
		owned[j.ID] = true
	}

	pool := make([]string, 0)
	for _, id := range engine.CatalogIDs() {
		if !owned[id] {
			pool = append(pool, id)
		}
	}
	rt.rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	n := rt.cfg.ShopSlots
	if n > len(pool) {
		n = len(pool)
	}
	rt.shopOffers = pool[:n]
	rt.phase = PhaseShop
	rt.appendLogLocked("shop opened")
}

func (rt *Runtime) handleBuyJokerLocked(data json.RawMessage) error {
	if rt.phase != PhaseShop {
		return appErr.ErrInvalidPhase
	}
	var body jokerBody
	if len(data) > 0 {
		if err := json.Unmarshal(data, &body); err != nil {
			return fmt.Errorf("invalid payload")
		}
	}

	offerIdx := -1
	for i, id := range rt.shopOffers {
		if id == body.JokerID {
			offerIdx = i
			break
		}
	}
	if offerIdx < 0 {
		return appErr.ErrJokerNotOffered
	}
	for _, j := range rt.jokers {
		if j.ID == body.JokerID {
			return appErr.ErrJokerAlreadyOwned
		}
	}
	if len(rt.jokers) >= rt.cfg.MaxJokers {
		return appErr.ErrJokerSlotsFull
	}

	joker, ok := engine.NewJoker(body.JokerID)
	if !ok {
		return appErr.ErrJokerNotFound
	}
	if rt.coins < joker.Cost {
		return appErr.ErrInsufficientCoins
	}

	rt.coins -= joker.Cost
	rt.jokers = append(rt.jokers, joker)
	rt.shopOffers = append(rt.shopOffers[:offerIdx], rt.shopOffers[offerIdx+1:]...)
	rt.appendLogLocked(fmt.Sprintf("bought %s for %d coins", joker.Name, joker.Cost))

	rt.broadcastStateLocked()
	rt.saveLocked()
	return nil
}

// Selling refunds half the catalog cost, rounded down. Allowed both in
// the shop and mid-round.
func (rt *Runtime) handleSellJokerLocked(data json.RawMessage) error {
	if rt.phase != PhaseShop && rt.phase != PhasePlaying {
		return appErr.ErrInvalidPhase
	}
	var body jokerBody
	if len(data) > 0 {
		if err := json.Unmarshal(data, &body); err != nil {
			return fmt.Errorf("invalid payload")
		}
	}

	idx := -1
	for i, j := range rt.jokers {
		if j.ID == body.JokerID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return appErr.ErrJokerNotFound
	}

	sold := rt.jokers[idx]
	refund := sold.Cost / 2
	rt.coins += refund
	rt.jokers = append(rt.jokers[:idx], rt.jokers[idx+1:]...)
	rt.appendLogLocked(fmt.Sprintf("sold %s for %d coins", sold.Name, refund))

	rt.broadcastStateLocked()
	rt.saveLocked()
	return nil
}

func (rt *Runtime) handleSkipShopLocked() error {
	if rt.phase != PhaseShop {
		return appErr.ErrInvalidPhase
	}
	rt.appendLogLocked("shop skipped")
	rt.startNextRoundLocked()
	return nil
}

func (rt *Runtime) shopOffersViewLocked() []ShopOffer {
	if len(rt.shopOffers) == 0 {
		return nil
	}
	offers := make([]ShopOffer, 0, len(rt.shopOffers))
	for _, id := range rt.shopOffers {
		j, ok := engine.NewJoker(id)
		if !ok {
			continue
		}
		offers = append(offers, ShopOffer{
			ID:          j.ID,
			Name:        j.Name,
			Description: j.Description,
			Cost:        j.Cost,
		})
	}
	return offers
}
