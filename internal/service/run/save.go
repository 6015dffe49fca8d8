package run

import (
	"encoding/json"
	mrand "math/rand"
	"time"

	"frenzy-service/internal/model"
	"frenzy-service/internal/service/engine"
	appErr "frenzy-service/pkg/errors"
)

type savedJoker struct {
	ID          string  `json:"id"`
	Accumulated float64 `json:"accumulatedValue"`
}

// savedState is the full serialized form of a resumable run.
type savedState struct {
	RunID      int64             `json:"runId"`
	Code       string            `json:"code"`
	Difficulty engine.Difficulty `json:"difficulty"`
	DeckChoice string            `json:"deckChoice"`
	Infinite   bool              `json:"infinite,omitempty"`

	Phase         Phase `json:"phase"`
	Round         int   `json:"round"`
	RoundsCleared int   `json:"roundsCleared"`

	RoundScore float64 `json:"roundScore"`
	TotalScore float64 `json:"totalScore"`
	Coins      int     `json:"coins"`

	PlaysRemaining    int  `json:"playsRemaining"`
	DiscardsRemaining int  `json:"discardsRemaining"`
	PlaysUsed         int  `json:"playsUsed"`
	CoinsGenerated    int  `json:"coinsGeneratedThisRound"`
	LastWasDiscard    bool `json:"lastWasDiscard"`

	DeckCards      []engine.Card `json:"deckCards"`
	DiscardPile    []engine.Card `json:"discardPile"`
	Hand           []engine.Card `json:"hand"`
	EquippedJokers []savedJoker  `json:"equippedJokers"`
	ShopOffers     []string      `json:"shopOffers,omitempty"`

	HandsPlayed map[string]int `json:"handsPlayed,omitempty"`
	PlaySeconds int64          `json:"playSeconds"`
}

func (rt *Runtime) snapshotLocked() savedState {
	deck := rt.deck.Snapshot()

	jokers := make([]savedJoker, 0, len(rt.jokers))
	for _, j := range rt.jokers {
		jokers = append(jokers, savedJoker{ID: j.ID, Accumulated: j.Accumulated})
	}

	hands := make(map[string]int, len(rt.handsPlayed))
	for k, v := range rt.handsPlayed {
		hands[k] = v
	}

	return savedState{
		RunID:             rt.runID,
		Code:              rt.code,
		Difficulty:        rt.difficulty,
		DeckChoice:        rt.deckChoice,
		Infinite:          rt.infinite,
		Phase:             rt.phase,
		Round:             rt.round,
		RoundsCleared:     rt.roundsCleared,
		RoundScore:        rt.roundScore,
		TotalScore:        rt.totalScore,
		Coins:             rt.coins,
		PlaysRemaining:    rt.playsRemaining,
		DiscardsRemaining: rt.discardsRemaining,
		PlaysUsed:         rt.playsUsed,
		CoinsGenerated:    rt.coinsGenerated,
		LastWasDiscard:    rt.lastWasDiscard,
		DeckCards:         deck.DrawPile,
		DiscardPile:       deck.DiscardPile,
		Hand:              append([]engine.Card(nil), rt.hand...),
		EquippedJokers:    jokers,
		ShopOffers:        append([]string(nil), rt.shopOffers...),
		HandsPlayed:       hands,
		PlaySeconds:       rt.playTimeLocked(),
	}
}

// verifyCardIntegrity checks that the three piles together hold exactly
// the 52 distinct cards of a standard deck.
func verifyCardIntegrity(piles ...[]engine.Card) bool {
	seen := make(map[engine.Card]bool, 52)
	total := 0
	for _, pile := range piles {
		for _, c := range pile {
			if _, err := engine.NewCard(c.Rank, c.Suit); err != nil {
				return false
			}
			if seen[c] {
				return false
			}
			seen[c] = true
			total++
		}
	}
	return total == 52
}

// restoreRuntime rebuilds a runtime from a persisted snapshot. Any
// inconsistency in the payload surfaces as ErrCorruptSavedRun.
func restoreRuntime(rec model.RunRecord, data []byte, cfg Config, onFinish func(*Runtime), onSave func(*Runtime, []byte)) (*Runtime, error) {
	var state savedState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, appErr.ErrCorruptSavedRun
	}
	if !verifyCardIntegrity(state.DeckCards, state.DiscardPile, state.Hand) {
		return nil, appErr.ErrCorruptSavedRun
	}
	if state.Round < 1 || state.PlaysRemaining < 0 || state.DiscardsRemaining < 0 {
		return nil, appErr.ErrCorruptSavedRun
	}
	switch state.Phase {
	case PhasePlaying, PhaseRoundComplete, PhaseShop:
	default:
		return nil, appErr.ErrCorruptSavedRun
	}

	jokers := make([]*engine.Joker, 0, len(state.EquippedJokers))
	for _, saved := range state.EquippedJokers {
		j, ok := engine.RestoreJoker(saved.ID, saved.Accumulated)
		if !ok {
			return nil, appErr.ErrCorruptSavedRun
		}
		jokers = append(jokers, j)
	}

	hands := state.HandsPlayed
	if hands == nil {
		hands = make(map[string]int)
	}

	rng := mrand.New(mrand.NewSource(time.Now().UnixNano()))
	rt := &Runtime{
		runID:             rec.ID,
		userID:            rec.UserID,
		code:              rec.Code,
		difficulty:        state.Difficulty,
		deckChoice:        state.DeckChoice,
		infinite:          state.Infinite,
		phase:             state.Phase,
		round:             state.Round,
		rng:               rng,
		deck:              engine.RestoreDeck(rng, engine.DeckState{DrawPile: state.DeckCards, DiscardPile: state.DiscardPile}),
		eval:              engine.NewEvaluator(rng),
		hand:              append([]engine.Card(nil), state.Hand...),
		jokers:            jokers,
		shopOffers:        append([]string(nil), state.ShopOffers...),
		roundScore:        state.RoundScore,
		totalScore:        state.TotalScore,
		coins:             state.Coins,
		playsRemaining:    state.PlaysRemaining,
		discardsRemaining: state.DiscardsRemaining,
		playsUsed:         state.PlaysUsed,
		coinsGenerated:    state.CoinsGenerated,
		lastWasDiscard:    state.LastWasDiscard,
		handsPlayed:       hands,
		roundsCleared:     state.RoundsCleared,
		startedAt:         time.Now(),
		playSeconds:       state.PlaySeconds,
		logs:              []LogItem{},
		subscribers:       make(map[string]chan OutgoingMessage),
		cfg:               cfg,
		onFinish:          onFinish,
		onSave:            onSave,
	}
	rt.startSaver()
	rt.appendLogLocked("run resumed")
	return rt, nil
}
