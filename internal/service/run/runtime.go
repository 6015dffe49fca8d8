package run

import (
	"encoding/json"
	"fmt"
	mrand "math/rand"
	"sort"
	"sync"
	"time"

	"frenzy-service/internal/model"
	"frenzy-service/internal/service/engine"
	appErr "frenzy-service/pkg/errors"
	"frenzy-service/pkg/logger"

	"go.uber.org/zap"
)

type Phase string

const (
	PhasePlaying       Phase = "playing"
	PhaseRoundComplete Phase = "round_complete"
	PhaseShop          Phase = "shop"
	PhaseWon           Phase = "won"
	PhaseLost          Phase = "lost"
)

const (
	DeckStandard = "standard"
	DeckRed      = "red"
	DeckBlue     = "blue"
)

const maxLogItems = 50

type LogItem struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
	Content   string `json:"content"`
}

type ShopOffer struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Cost        int    `json:"cost"`
}

type RoundReward struct {
	Base       int `json:"base"`
	PlaysBonus int `json:"playsBonus"`
	Interest   int `json:"interest"`
	Total      int `json:"total"`
}

type RunView struct {
	RunID             int64              `json:"runId,string"`
	Code              string             `json:"code"`
	Difficulty        engine.Difficulty  `json:"difficulty"`
	DeckChoice        string             `json:"deckChoice"`
	Phase             Phase              `json:"phase"`
	Round             int                `json:"round"`
	Objective         int                `json:"objective"`
	RoundScore        float64            `json:"roundScore"`
	TotalScore        float64            `json:"totalScore"`
	Coins             int                `json:"coins"`
	PlaysRemaining    int                `json:"playsRemaining"`
	DiscardsRemaining int                `json:"discardsRemaining"`
	Hand              []engine.Card      `json:"hand"`
	Selected          []int              `json:"selected"`
	Preview           *engine.Evaluation `json:"preview,omitempty"`
	LastResult        *engine.Evaluation `json:"lastResult,omitempty"`
	Jokers            []engine.Joker     `json:"jokers"`
	ShopOffers        []ShopOffer        `json:"shopOffers,omitempty"`
	DeckRemaining     int                `json:"deckRemaining"`
	DiscardPileSize   int                `json:"discardPileSize"`
	Reward            *RoundReward       `json:"reward,omitempty"`
	AllowedActions    []string           `json:"allowedActions"`
	Logs              []LogItem          `json:"logs"`
}

type OutgoingMessage struct {
	Type string      `json:"type"`
	Seq  int64       `json:"seq"`
	Data interface{} `json:"data"`
}

// Runtime is the in-memory driver of one active run. All state mutation
// goes through HandleAction under the mutex; persistence and final
// settlement happen through the onSave/onFinish callbacks.
type Runtime struct {
	runID      int64
	userID     int64
	code       string
	difficulty engine.Difficulty
	deckChoice string
	infinite   bool

	phase Phase
	round int

	rng  *mrand.Rand
	deck *engine.Deck
	eval *engine.Evaluator

	hand       []engine.Card
	selected   []int
	jokers     []*engine.Joker
	shopOffers []string

	roundScore float64
	totalScore float64
	coins      int

	playsRemaining    int
	discardsRemaining int
	playsUsed         int
	coinsGenerated    int
	lastWasDiscard    bool

	lastResult    *engine.Evaluation
	lastReward    *RoundReward
	handsPlayed   map[string]int
	roundsCleared int

	startedAt   time.Time
	playSeconds int64

	logs []LogItem
	seq  int64

	subscribers map[string]chan OutgoingMessage

	mu sync.Mutex

	// Saves flow through a single worker per runtime so snapshots land
	// in action order. The channel holds at most the latest snapshot.
	saveCh      chan []byte
	saveDone    chan struct{}
	saveStopped chan struct{}

	cfg      Config
	onFinish func(*Runtime)
	onSave   func(*Runtime, []byte)
}

func newRuntime(rec model.RunRecord, cfg Config, onFinish func(*Runtime), onSave func(*Runtime, []byte)) *Runtime {
	rng := mrand.New(mrand.NewSource(time.Now().UnixNano()))
	rt := &Runtime{
		runID:       rec.ID,
		userID:      rec.UserID,
		code:        rec.Code,
		difficulty:  engine.Difficulty(rec.Difficulty),
		deckChoice:  rec.DeckChoice,
		phase:       PhasePlaying,
		round:       1,
		rng:         rng,
		deck:        engine.NewDeck(rng),
		eval:        engine.NewEvaluator(rng),
		coins:       cfg.StartingCoins,
		handsPlayed: make(map[string]int),
		startedAt:   time.Now(),
		logs:        []LogItem{},
		subscribers: make(map[string]chan OutgoingMessage),
		cfg:         cfg,
		onFinish:    onFinish,
		onSave:      onSave,
	}
	rt.playsRemaining = rt.playsPerRoundLocked()
	rt.discardsRemaining = rt.discardsPerRoundLocked()
	rt.hand = rt.deck.Draw(cfg.MaxHandSize)
	rt.startSaver()
	rt.appendLogLocked("run started")
	return rt
}

func (rt *Runtime) startSaver() {
	if rt.onSave == nil {
		return
	}
	rt.saveCh = make(chan []byte, 1)
	rt.saveDone = make(chan struct{})
	rt.saveStopped = make(chan struct{})
	go rt.saveWorker()
}

func (rt *Runtime) saveWorker() {
	defer close(rt.saveStopped)
	for {
		select {
		case data := <-rt.saveCh:
			rt.onSave(rt, data)
		case <-rt.saveDone:
			return
		}
	}
}

func (rt *Runtime) RunID() int64  { return rt.runID }
func (rt *Runtime) UserID() int64 { return rt.userID }

func (rt *Runtime) Subscribe(connID string) chan OutgoingMessage {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	ch := make(chan OutgoingMessage, 8)
	rt.subscribers[connID] = ch
	rt.pushStateLocked(connID)
	return ch
}

func (rt *Runtime) Unsubscribe(connID string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if ch, ok := rt.subscribers[connID]; ok {
		delete(rt.subscribers, connID)
		close(ch)
	}
}

func (rt *Runtime) HandleAction(action string, data json.RawMessage) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	switch action {
	case "select":
		return rt.handleSelectLocked(data)
	case "play":
		return rt.handlePlayLocked()
	case "discard":
		return rt.handleDiscardLocked()
	case "continue":
		return rt.handleContinueLocked()
	case "endless":
		return rt.handleEndlessLocked()
	case "buy_joker":
		return rt.handleBuyJokerLocked(data)
	case "sell_joker":
		return rt.handleSellJokerLocked(data)
	case "skip_shop":
		return rt.handleSkipShopLocked()
	case "rejoin":
		rt.broadcastStateLocked()
		return nil
	default:
		return fmt.Errorf("unsupported action")
	}
}

// State exports a snapshot for the REST surface.
func (rt *Runtime) State() RunView {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.exportStateLocked()
}

type selectBody struct {
	Indices []int `json:"indices"`
}

func (rt *Runtime) handleSelectLocked(data json.RawMessage) error {
	if rt.phase != PhasePlaying {
		return appErr.ErrInvalidPhase
	}
	var body selectBody
	if len(data) > 0 {
		if err := json.Unmarshal(data, &body); err != nil {
			return fmt.Errorf("invalid selection payload")
		}
	}
	if len(body.Indices) > rt.cfg.MaxSelection {
		return appErr.ErrSelectionTooLarge
	}
	seen := make(map[int]bool, len(body.Indices))
	for _, idx := range body.Indices {
		if idx < 0 || idx >= len(rt.hand) || seen[idx] {
			return appErr.ErrInvalidCardIndex
		}
		seen[idx] = true
	}
	rt.selected = append([]int(nil), body.Indices...)
	sort.Ints(rt.selected)
	rt.broadcastStateLocked()
	return nil
}

func (rt *Runtime) handlePlayLocked() error {
	if rt.phase != PhasePlaying {
		return appErr.ErrInvalidPhase
	}
	if len(rt.selected) == 0 {
		return appErr.ErrNoSelection
	}
	if rt.playsRemaining <= 0 {
		return appErr.ErrNoPlaysRemaining
	}

	cards := rt.selectedCardsLocked()
	ev := rt.eval.Evaluate(cards, rt.jokers, rt.engineStateLocked())

	rt.roundScore += ev.Score
	rt.totalScore += ev.Score
	rt.coins += ev.CoinsGenerated
	rt.coinsGenerated += ev.CoinsGenerated
	rt.handsPlayed[string(ev.Hand)]++
	rt.playsUsed++
	rt.playsRemaining--
	wasDiscard := rt.lastWasDiscard
	rt.lastWasDiscard = false
	rt.lastResult = &ev

	// The streak only grows when the preceding action was also a play.
	if !wasDiscard {
		for _, j := range rt.jokers {
			if j.Kind == engine.EffectAccumulativeStreak {
				j.IncrementAccumulation(j.Value)
			}
		}
	}

	rt.deck.Discard(cards...)
	rt.removeSelectedLocked()
	rt.appendLogLocked(fmt.Sprintf("played %s for %.0f", ev.Hand, ev.Score))

	if rt.roundScore >= float64(rt.objectiveLocked()) {
		rt.completeRoundLocked()
		return nil
	}
	if rt.playsRemaining == 0 {
		rt.appendLogLocked("out of plays")
		rt.finishLocked(PhaseLost)
		return nil
	}
	if !rt.refillHandLocked() {
		rt.appendLogLocked("deck exhausted")
		rt.finishLocked(PhaseLost)
		return nil
	}

	rt.broadcastStateLocked()
	rt.saveLocked()
	return nil
}

func (rt *Runtime) handleDiscardLocked() error {
	if rt.phase != PhasePlaying {
		return appErr.ErrInvalidPhase
	}
	if len(rt.selected) == 0 {
		return appErr.ErrNoSelection
	}
	if rt.discardsRemaining <= 0 {
		return appErr.ErrNoDiscardsRemaining
	}

	cards := rt.selectedCardsLocked()
	rt.deck.Discard(cards...)
	rt.removeSelectedLocked()
	rt.discardsRemaining--
	rt.lastWasDiscard = true

	for _, j := range rt.jokers {
		switch j.Kind {
		case engine.EffectAccumulativeDiscard:
			j.IncrementAccumulation(j.Value)
		case engine.EffectAccumulativeStreak:
			j.ResetAccumulation()
		}
	}

	rt.appendLogLocked(fmt.Sprintf("discarded %d cards", len(cards)))

	if !rt.refillHandLocked() {
		rt.appendLogLocked("deck exhausted")
		rt.finishLocked(PhaseLost)
		return nil
	}

	rt.broadcastStateLocked()
	rt.saveLocked()
	return nil
}

func (rt *Runtime) completeRoundLocked() {
	rt.roundsCleared = rt.round

	interest := rt.coins / rt.cfg.InterestPer
	if interest > rt.cfg.InterestCap {
		interest = rt.cfg.InterestCap
	}
	reward := RoundReward{
		Base:       rt.cfg.RoundReward,
		PlaysBonus: rt.playsRemaining,
		Interest:   interest,
	}
	reward.Total = reward.Base + reward.PlaysBonus + reward.Interest
	rt.coins += reward.Total
	rt.lastReward = &reward

	rt.phase = PhaseRoundComplete
	rt.appendLogLocked(fmt.Sprintf("round %d cleared, +%d coins", rt.round, reward.Total))

	rt.broadcastStateLocked()
	rt.saveLocked()
}

func (rt *Runtime) handleContinueLocked() error {
	if rt.phase != PhaseRoundComplete {
		return appErr.ErrInvalidPhase
	}
	if rt.round >= rt.cfg.FinalRound && !rt.infinite {
		rt.appendLogLocked("victory")
		rt.finishLocked(PhaseWon)
		return nil
	}
	if rt.isShopRoundLocked() {
		rt.enterShopLocked()
		rt.broadcastStateLocked()
		rt.saveLocked()
		return nil
	}
	rt.startNextRoundLocked()
	return nil
}

// endless refuses the victory at the final round and keeps the run
// going with exponentially scaling objectives.
func (rt *Runtime) handleEndlessLocked() error {
	if rt.phase != PhaseRoundComplete || rt.round < rt.cfg.FinalRound {
		return appErr.ErrInvalidPhase
	}
	rt.infinite = true
	rt.appendLogLocked("endless mode")
	rt.startNextRoundLocked()
	return nil
}

func (rt *Runtime) startNextRoundLocked() {
	rt.round++
	rt.roundScore = 0
	rt.playsUsed = 0
	rt.coinsGenerated = 0
	rt.lastWasDiscard = false
	rt.lastResult = nil
	rt.lastReward = nil
	rt.playsRemaining = rt.playsPerRoundLocked()
	rt.discardsRemaining = rt.discardsPerRoundLocked()

	for _, j := range rt.jokers {
		if j.Kind == engine.EffectAccumulativeDiscard || j.Kind == engine.EffectAccumulativeStreak {
			j.ResetAccumulation()
		}
	}

	rt.selected = nil
	rt.hand = nil
	rt.shopOffers = nil
	rt.deck.Reset()
	rt.hand = rt.deck.Draw(rt.cfg.MaxHandSize)
	rt.phase = PhasePlaying
	rt.appendLogLocked(fmt.Sprintf("round %d started", rt.round))

	rt.broadcastStateLocked()
	rt.saveLocked()
}

// finishLocked ends the run. The save worker is stopped first so no
// snapshot can land after settlement deletes the saved state.
func (rt *Runtime) finishLocked(phase Phase) {
	rt.phase = phase
	rt.selected = nil
	rt.broadcastStateLocked()
	rt.stopSaverLocked()
	if rt.onFinish != nil {
		go rt.onFinish(rt)
	}
}

func (rt *Runtime) playsPerRoundLocked() int {
	n := rt.cfg.BasePlays
	if rt.deckChoice == DeckBlue {
		n++
	}
	return n
}

func (rt *Runtime) discardsPerRoundLocked() int {
	n := rt.cfg.BaseDiscards
	if rt.deckChoice == DeckRed {
		n++
	}
	for _, j := range rt.jokers {
		if j.Kind == engine.EffectResourceBoost && j.Config.ResourceType == "discards" {
			n += int(j.Value)
		}
	}
	return n
}

func (rt *Runtime) objectiveLocked() int {
	return engine.RoundObjective(rt.round, rt.difficulty)
}

func (rt *Runtime) isShopRoundLocked() bool {
	for _, r := range rt.cfg.ShopRounds {
		if r == rt.round {
			return true
		}
	}
	return false
}

func (rt *Runtime) engineStateLocked() engine.RunState {
	return engine.RunState{
		Coins:                   rt.coins,
		PlaysRemaining:          rt.playsRemaining,
		DiscardsRemaining:       rt.discardsRemaining,
		PlaysUsed:               rt.playsUsed,
		CoinsGeneratedThisRound: rt.coinsGenerated,
	}
}

func (rt *Runtime) selectedCardsLocked() []engine.Card {
	cards := make([]engine.Card, 0, len(rt.selected))
	for _, idx := range rt.selected {
		cards = append(cards, rt.hand[idx])
	}
	return cards
}

// removeSelectedLocked drops the selected indices from the hand.
// Selection is kept sorted; removal runs highest index first.
func (rt *Runtime) removeSelectedLocked() {
	for i := len(rt.selected) - 1; i >= 0; i-- {
		idx := rt.selected[i]
		rt.hand = append(rt.hand[:idx], rt.hand[idx+1:]...)
	}
	rt.selected = nil
}

// refillHandLocked draws back up to the hand size. A short draw means
// the deck ran dry, which ends the run.
func (rt *Runtime) refillHandLocked() bool {
	need := rt.cfg.MaxHandSize - len(rt.hand)
	if need <= 0 {
		return true
	}
	drawn := rt.deck.Draw(need)
	rt.hand = append(rt.hand, drawn...)
	return len(drawn) == need
}

func (rt *Runtime) pushStateLocked(connID string) {
	msg := OutgoingMessage{
		Type: "state",
		Seq:  rt.nextSeqLocked(),
		Data: rt.exportStateLocked(),
	}
	if ch, ok := rt.subscribers[connID]; ok {
		select {
		case ch <- msg:
		default:
			logger.Log.Warn("ws subscriber channel full", zap.String("connID", connID), zap.Int64("runID", rt.runID))
		}
	}
}

func (rt *Runtime) broadcastStateLocked() {
	msg := OutgoingMessage{
		Type: "state",
		Seq:  rt.nextSeqLocked(),
		Data: rt.exportStateLocked(),
	}
	for connID, ch := range rt.subscribers {
		select {
		case ch <- msg:
		default:
			logger.Log.Warn("ws subscriber channel full", zap.String("connID", connID), zap.Int64("runID", rt.runID))
		}
	}
}

func (rt *Runtime) nextSeqLocked() int64 {
	rt.seq++
	return rt.seq
}

func (rt *Runtime) exportStateLocked() RunView {
	jokers := make([]engine.Joker, len(rt.jokers))
	for i, j := range rt.jokers {
		jokers[i] = *j
	}

	view := RunView{
		RunID:             rt.runID,
		Code:              rt.code,
		Difficulty:        rt.difficulty,
		DeckChoice:        rt.deckChoice,
		Phase:             rt.phase,
		Round:             rt.round,
		Objective:         rt.objectiveLocked(),
		RoundScore:        rt.roundScore,
		TotalScore:        rt.totalScore,
		Coins:             rt.coins,
		PlaysRemaining:    rt.playsRemaining,
		DiscardsRemaining: rt.discardsRemaining,
		Hand:              append([]engine.Card(nil), rt.hand...),
		Selected:          append([]int(nil), rt.selected...),
		LastResult:        rt.lastResult,
		Jokers:            jokers,
		ShopOffers:        rt.shopOffersViewLocked(),
		DeckRemaining:     rt.deck.Remaining(),
		DiscardPileSize:   rt.deck.Discarded(),
		Reward:            rt.lastReward,
		AllowedActions:    rt.allowedActionsLocked(),
		Logs:              append([]LogItem(nil), rt.logs...),
	}

	if rt.phase == PhasePlaying && len(rt.selected) > 0 {
		preview := rt.eval.Evaluate(rt.selectedCardsLocked(), rt.jokers, rt.engineStateLocked())
		view.Preview = &preview
	}
	return view
}

func (rt *Runtime) allowedActionsLocked() []string {
	switch rt.phase {
	case PhasePlaying:
		actions := []string{"select"}
		if len(rt.selected) > 0 {
			actions = append(actions, "play")
			if rt.discardsRemaining > 0 {
				actions = append(actions, "discard")
			}
		}
		if len(rt.jokers) > 0 {
			actions = append(actions, "sell_joker")
		}
		return actions
	case PhaseRoundComplete:
		actions := []string{"continue"}
		if rt.round >= rt.cfg.FinalRound && !rt.infinite {
			actions = append(actions, "endless")
		}
		return actions
	case PhaseShop:
		actions := []string{"skip_shop"}
		if len(rt.shopOffers) > 0 {
			actions = append(actions, "buy_joker")
		}
		if len(rt.jokers) > 0 {
			actions = append(actions, "sell_joker")
		}
		return actions
	default:
		return nil
	}
}

func (rt *Runtime) appendLogLocked(content string) {
	rt.logs = append(rt.logs, LogItem{
		ID:        fmt.Sprintf("%d-%d", time.Now().UnixNano(), len(rt.logs)+1),
		Timestamp: time.Now().UnixMilli(),
		Content:   content,
	})
	if len(rt.logs) > maxLogItems {
		rt.logs = rt.logs[len(rt.logs)-maxLogItems:]
	}
}

func (rt *Runtime) saveLocked() {
	if rt.saveCh == nil {
		return
	}
	data, err := json.Marshal(rt.snapshotLocked())
	if err != nil {
		logger.Log.Error("failed to serialize run state", zap.Int64("runID", rt.runID), zap.Error(err))
		return
	}
	// Only this runtime enqueues, always under the mutex, so dropping
	// a pending older snapshot before sending cannot race.
	select {
	case rt.saveCh <- data:
	default:
		select {
		case <-rt.saveCh:
		default:
		}
		rt.saveCh <- data
	}
}

// stopSaverLocked shuts the save worker down and waits for any write in
// flight. The worker never takes the runtime mutex, so waiting here is
// safe.
func (rt *Runtime) stopSaverLocked() {
	if rt.saveCh == nil {
		return
	}
	close(rt.saveDone)
	<-rt.saveStopped
	rt.saveCh = nil
}

// snapshot serializes the current state synchronously, for callers
// that need the save to land before returning.
func (rt *Runtime) snapshot() []byte {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	data, err := json.Marshal(rt.snapshotLocked())
	if err != nil {
		logger.Log.Error("failed to serialize run state", zap.Int64("runID", rt.runID), zap.Error(err))
		return nil
	}
	return data
}

func (rt *Runtime) playTimeLocked() int64 {
	return rt.playSeconds + int64(time.Since(rt.startedAt).Seconds())
}

// Outcome is the settlement snapshot consumed after a run finishes.
type Outcome struct {
	RunID         int64
	UserID        int64
	Phase         Phase
	Difficulty    engine.Difficulty
	FinalScore    float64
	RoundsCleared int
	PlayTime      int64
	HandsPlayed   map[string]int
}

func (rt *Runtime) Result() Outcome {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	hands := make(map[string]int, len(rt.handsPlayed))
	for k, v := range rt.handsPlayed {
		hands[k] = v
	}
	return Outcome{
		RunID:         rt.runID,
		UserID:        rt.userID,
		Phase:         rt.phase,
		Difficulty:    rt.difficulty,
		FinalScore:    rt.totalScore,
		RoundsCleared: rt.roundsCleared,
		PlayTime:      rt.playTimeLocked(),
		HandsPlayed:   hands,
	}
}
