package run

import (
	"context"
	"errors"
	"strings"
	"sync"

	"frenzy-service/internal/config"
	"frenzy-service/internal/model"
	"frenzy-service/internal/service/engine"
	"frenzy-service/internal/service/leaderboard"
	appErr "frenzy-service/pkg/errors"
	"frenzy-service/pkg/logger"
	"frenzy-service/pkg/utils/random"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Config struct {
	BasePlays     int
	BaseDiscards  int
	StartingCoins int
	MaxHandSize   int
	MaxSelection  int
	MaxJokers     int
	ShopSlots     int

	FinalRound int
	ShopRounds []int

	RoundReward int
	InterestPer int
	InterestCap int

	CodeLength int
}

func defaultConfig() Config {
	return Config{
		BasePlays:     4,
		BaseDiscards:  3,
		StartingCoins: 4,
		MaxHandSize:   8,
		MaxSelection:  5,
		MaxJokers:     5,
		ShopSlots:     2,
		FinalRound:    10,
		ShopRounds:    []int{2, 4},
		RoundReward:   3,
		InterestPer:   5,
		InterestCap:   5,
		CodeLength:    6,
	}
}

func (c Config) withOverrides(g config.GameConfig) Config {
	if g.BasePlays > 0 {
		c.BasePlays = g.BasePlays
	}
	if g.BaseDiscards > 0 {
		c.BaseDiscards = g.BaseDiscards
	}
	if g.StartingCoins > 0 {
		c.StartingCoins = g.StartingCoins
	}
	if g.MaxHandSize > 0 {
		c.MaxHandSize = g.MaxHandSize
	}
	if g.MaxSelection > 0 {
		c.MaxSelection = g.MaxSelection
	}
	if g.MaxJokers > 0 {
		c.MaxJokers = g.MaxJokers
	}
	if g.ShopSlots > 0 {
		c.ShopSlots = g.ShopSlots
	}
	return c
}

// Service manages run lifecycles: creation, per-run runtimes, the
// autosave path and final settlement.
type Service struct {
	db    *gorm.DB
	stats *leaderboard.Service
	cfg   Config

	runtimes sync.Map // runID -> *Runtime
}

func NewService(db *gorm.DB, stats *leaderboard.Service) *Service {
	cfg := defaultConfig()
	if config.GlobalConfig != nil {
		cfg = cfg.withOverrides(config.GlobalConfig.Game)
	}
	return &Service{
		db:    db,
		stats: stats,
		cfg:   cfg,
	}
}

// StartRun creates a fresh run. Any still-active run of the player is
// abandoned first; a player holds at most one resumable run.
func (s *Service) StartRun(ctx context.Context, userID int64, difficulty, deckChoice string) (*Runtime, error) {
	difficulty = strings.ToLower(strings.TrimSpace(difficulty))
	if !engine.ValidDifficulty(engine.Difficulty(difficulty)) {
		return nil, appErr.ErrInvalidDifficulty
	}

	deckChoice = strings.ToLower(strings.TrimSpace(deckChoice))
	switch deckChoice {
	case "":
		deckChoice = DeckStandard
	case DeckStandard, DeckRed, DeckBlue:
	default:
		return nil, appErr.ErrInvalidDeckChoice
	}

	if err := s.Abandon(ctx, userID); err != nil {
		return nil, err
	}

	code, err := s.generateCode(ctx)
	if err != nil {
		return nil, err
	}

	rec := model.RunRecord{
		UserID:     userID,
		Code:       code,
		Difficulty: difficulty,
		DeckChoice: deckChoice,
		Status:     "active",
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, err
	}

	rt := newRuntime(rec, s.cfg, s.handleRuntimeFinish, s.handleRuntimeSave)
	s.runtimes.Store(rec.ID, rt)

	s.handleRuntimeSave(rt, rt.snapshot())

	logger.Log.Info("run started",
		zap.Int64("userID", userID),
		zap.Int64("runID", rec.ID),
		zap.String("code", code),
		zap.String("difficulty", difficulty),
		zap.String("deckChoice", deckChoice),
	)
	return rt, nil
}

// GetRuntime returns the live runtime for a run, restoring it from the
// saved state when the run is active but not in memory.
func (s *Service) GetRuntime(ctx context.Context, runID int64) (*Runtime, error) {
	if v, ok := s.runtimes.Load(runID); ok {
		return v.(*Runtime), nil
	}

	var rec model.RunRecord
	if err := s.db.WithContext(ctx).First(&rec, runID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.ErrRunNotFound
		}
		return nil, err
	}
	if rec.Status != "active" {
		return nil, appErr.ErrRunFinished
	}

	var saved model.SavedRun
	if err := s.db.WithContext(ctx).Where("user_id = ?", rec.UserID).First(&saved).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.ErrNoSavedRun
		}
		return nil, err
	}

	rt, err := restoreRuntime(rec, saved.StateJSON, s.cfg, s.handleRuntimeFinish, s.handleRuntimeSave)
	if err != nil {
		return nil, err
	}

	actual, loaded := s.runtimes.LoadOrStore(runID, rt)
	if loaded {
		return actual.(*Runtime), nil
	}
	logger.Log.Info("run restored", zap.Int64("runID", runID), zap.Int64("userID", rec.UserID))
	return rt, nil
}

// ValidateRunAccess checks that the run exists and belongs to the user.
func (s *Service) ValidateRunAccess(ctx context.Context, userID, runID int64) error {
	if userID == 0 {
		return appErr.ErrUnauthorized
	}
	var rec model.RunRecord
	if err := s.db.WithContext(ctx).First(&rec, runID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return appErr.ErrRunNotFound
		}
		return err
	}
	if rec.UserID != userID {
		return appErr.ErrRunAccessDenied
	}
	return nil
}

// CurrentRun returns the player's active run record, if any.
func (s *Service) CurrentRun(ctx context.Context, userID int64) (*model.RunRecord, error) {
	var rec model.RunRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, "active").
		Order("id DESC").
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.ErrNoSavedRun
		}
		return nil, err
	}
	return &rec, nil
}

// Resume brings the player's active run back into memory.
func (s *Service) Resume(ctx context.Context, userID int64) (*Runtime, error) {
	rec, err := s.CurrentRun(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.GetRuntime(ctx, rec.ID)
}

// Abandon forfeits the player's active run, if any.
func (s *Service) Abandon(ctx context.Context, userID int64) error {
	var rec model.RunRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, "active").
		Order("id DESC").
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	s.runtimes.Delete(rec.ID)
	if err := s.db.WithContext(ctx).Model(&rec).Update("status", "abandoned").Error; err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.SavedRun{}).Error; err != nil {
		return err
	}

	logger.Log.Info("run abandoned", zap.Int64("userID", userID), zap.Int64("runID", rec.ID))
	return nil
}

type AdminListRunsFilter struct {
	Page       int
	Size       int
	Status     string
	Difficulty string
	UserID     *int64
}

type AdminListRunsResult struct {
	Items []model.RunRecord
	Total int64
}

const (
	defaultAdminRunPageSize = 20
	maxAdminRunPageSize     = 100
)

func (f *AdminListRunsFilter) sanitize() {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Size <= 0 {
		f.Size = defaultAdminRunPageSize
	}
	if f.Size > maxAdminRunPageSize {
		f.Size = maxAdminRunPageSize
	}
	f.Status = strings.ToLower(strings.TrimSpace(f.Status))
	f.Difficulty = strings.ToLower(strings.TrimSpace(f.Difficulty))
}

func applyAdminRunFilters(db *gorm.DB, filter AdminListRunsFilter) *gorm.DB {
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.Difficulty != "" {
		db = db.Where("difficulty = ?", filter.Difficulty)
	}
	if filter.UserID != nil {
		db = db.Where("user_id = ?", *filter.UserID)
	}
	return db
}

func (s *Service) AdminListRuns(ctx context.Context, filter AdminListRunsFilter) (*AdminListRunsResult, error) {
	filter.sanitize()

	countQuery := applyAdminRunFilters(s.db.WithContext(ctx).Model(&model.RunRecord{}), filter)
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, err
	}

	result := &AdminListRunsResult{
		Items: make([]model.RunRecord, 0),
		Total: total,
	}
	if total == 0 {
		return result, nil
	}

	dataQuery := applyAdminRunFilters(s.db.WithContext(ctx).Model(&model.RunRecord{}), filter)
	if err := dataQuery.
		Order("id DESC").
		Limit(filter.Size).
		Offset((filter.Page - 1) * filter.Size).
		Find(&result.Items).Error; err != nil {
		return nil, err
	}

	return result, nil
}

func (s *Service) generateCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		code := random.Code(s.cfg.CodeLength)
		var count int64
		if err := s.db.WithContext(ctx).
			Model(&model.RunRecord{}).
			Where("code = ?", code).
			Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", errors.New("failed to allocate run code")
}

func (s *Service) handleRuntimeSave(rt *Runtime, data []byte) {
	if len(data) == 0 {
		return
	}
	saved := model.SavedRun{
		UserID:    rt.UserID(),
		StateJSON: data,
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"state_json", "updated_at"}),
	}).Create(&saved).Error
	if err != nil {
		logger.Log.Error("failed to persist run state",
			zap.Int64("runID", rt.RunID()),
			zap.Int64("userID", rt.UserID()),
			zap.Error(err),
		)
	}
}

func (s *Service) handleRuntimeFinish(rt *Runtime) {
	ctx := context.Background()
	outcome := rt.Result()

	status := "lost"
	if outcome.Phase == PhaseWon {
		status = "won"
	}

	err := s.db.WithContext(ctx).
		Model(&model.RunRecord{}).
		Where("id = ?", outcome.RunID).
		Updates(map[string]interface{}{
			"status":         status,
			"final_score":    int64(outcome.FinalScore),
			"rounds_cleared": outcome.RoundsCleared,
			"play_time":      outcome.PlayTime,
		}).Error
	if err != nil {
		logger.Log.Error("failed to settle run record", zap.Int64("runID", outcome.RunID), zap.Error(err))
	}

	if err := s.stats.RecordResult(ctx, leaderboard.RunResult{
		UserID:        outcome.UserID,
		Difficulty:    outcome.Difficulty,
		Won:           outcome.Phase == PhaseWon,
		Score:         int64(outcome.FinalScore),
		RoundsCleared: outcome.RoundsCleared,
		PlayTime:      outcome.PlayTime,
		HandsPlayed:   outcome.HandsPlayed,
	}); err != nil {
		logger.Log.Error("failed to record run result", zap.Int64("userID", outcome.UserID), zap.Error(err))
	}

	if err := s.db.WithContext(ctx).Where("user_id = ?", outcome.UserID).Delete(&model.SavedRun{}).Error; err != nil {
		logger.Log.Error("failed to clear saved run", zap.Int64("userID", outcome.UserID), zap.Error(err))
	}

	s.runtimes.Delete(outcome.RunID)

	logger.Log.Info("run finished",
		zap.Int64("runID", outcome.RunID),
		zap.Int64("userID", outcome.UserID),
		zap.String("status", status),
		zap.Float64("finalScore", outcome.FinalScore),
		zap.Int("roundsCleared", outcome.RoundsCleared),
	)
}
