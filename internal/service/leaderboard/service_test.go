package leaderboard

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"frenzy-service/internal/model"
	"frenzy-service/internal/service/engine"
	"frenzy-service/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	os.Exit(m.Run())
}

func newTestService(t *testing.T) (*gorm.DB, *Service) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&model.User{}, &model.RunRecord{}, &model.PlayerStats{}); err != nil {
		t.Fatalf("failed to migrate models: %v", err)
	}
	return db, NewService(db, nil)
}

func TestRecordResultCreatesStats(t *testing.T) {
	db, svc := newTestService(t)
	ctx := context.Background()

	err := svc.RecordResult(ctx, RunResult{
		UserID:        1,
		Difficulty:    engine.DifficultyNormal,
		Won:           true,
		Score:         4200,
		RoundsCleared: 10,
		PlayTime:      600,
		HandsPlayed:   map[string]int{"pair": 3, "flush": 1},
	})
	if err != nil {
		t.Fatalf("RecordResult failed: %v", err)
	}

	var stats model.PlayerStats
	if err := db.Where("user_id = ?", int64(1)).First(&stats).Error; err != nil {
		t.Fatalf("stats row missing: %v", err)
	}
	if stats.GamesPlayed != 1 || stats.TotalScore != 4200 || stats.HighScore != 4200 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.VictoriesNormal != 1 || stats.VictoriesEasy != 0 || stats.VictoriesHard != 0 {
		t.Fatalf("unexpected victory counters: %+v", stats)
	}
	if stats.TotalPlayTime != 600 {
		t.Fatalf("unexpected play time: %d", stats.TotalPlayTime)
	}
}

func TestRecordResultAccumulates(t *testing.T) {
	_, svc := newTestService(t)
	ctx := context.Background()

	results := []RunResult{
		{UserID: 1, Difficulty: engine.DifficultyNormal, Won: true, Score: 3000, PlayTime: 300,
			HandsPlayed: map[string]int{"pair": 2}},
		{UserID: 1, Difficulty: engine.DifficultyHard, Won: false, Score: 900, PlayTime: 120,
			HandsPlayed: map[string]int{"pair": 1, "straight": 1}},
		{UserID: 1, Difficulty: engine.DifficultyHard, Won: true, Score: 8000, PlayTime: 700,
			HandsPlayed: map[string]int{"flush": 2}},
	}
	for _, res := range results {
		if err := svc.RecordResult(ctx, res); err != nil {
			t.Fatalf("RecordResult failed: %v", err)
		}
	}

	view, err := svc.Stats(ctx, 1)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if view.GamesPlayed != 3 {
		t.Fatalf("expected 3 games, got %d", view.GamesPlayed)
	}
	if view.TotalScore != 11900 {
		t.Fatalf("expected total 11900, got %d", view.TotalScore)
	}
	if view.HighScore != 8000 {
		t.Fatalf("expected high score 8000, got %d", view.HighScore)
	}
	if view.TotalPlayTime != 1120 {
		t.Fatalf("expected play time 1120, got %d", view.TotalPlayTime)
	}
	if view.VictoriesNormal != 1 || view.VictoriesHard != 1 || view.VictoriesEasy != 0 {
		t.Fatalf("unexpected victories: %+v", view)
	}
	if view.HandsPlayed["pair"] != 3 || view.HandsPlayed["straight"] != 1 || view.HandsPlayed["flush"] != 2 {
		t.Fatalf("unexpected hand counters: %v", view.HandsPlayed)
	}
}

func TestRecordResultKeepsHighScore(t *testing.T) {
	_, svc := newTestService(t)
	ctx := context.Background()

	if err := svc.RecordResult(ctx, RunResult{UserID: 1, Difficulty: engine.DifficultyNormal, Score: 5000}); err != nil {
		t.Fatalf("RecordResult failed: %v", err)
	}
	if err := svc.RecordResult(ctx, RunResult{UserID: 1, Difficulty: engine.DifficultyNormal, Score: 1200}); err != nil {
		t.Fatalf("RecordResult failed: %v", err)
	}

	view, err := svc.Stats(ctx, 1)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if view.HighScore != 5000 {
		t.Fatalf("expected high score 5000, got %d", view.HighScore)
	}
}

func TestRecordResultIgnoresAnonymous(t *testing.T) {
	db, svc := newTestService(t)

	if err := svc.RecordResult(context.Background(), RunResult{UserID: 0, Score: 100}); err != nil {
		t.Fatalf("RecordResult failed: %v", err)
	}
	var count int64
	if err := db.Model(&model.PlayerStats{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no stats rows, got %d", count)
	}
}

func TestStatsUnknownUser(t *testing.T) {
	_, svc := newTestService(t)

	view, err := svc.Stats(context.Background(), 42)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if view.GamesPlayed != 0 || view.HighScore != 0 {
		t.Fatalf("expected zero view, got %+v", view)
	}
	if view.HandsPlayed == nil {
		t.Fatalf("expected empty map, got nil")
	}
}

func TestMergeHandsPlayed(t *testing.T) {
	merged, err := mergeHandsPlayed(nil, map[string]int{"pair": 2})
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	merged, err = mergeHandsPlayed(merged, map[string]int{"pair": 1, "flush": 4})
	if err != nil {
		t.Fatalf("second merge failed: %v", err)
	}

	counts := map[string]int{}
	if err := json.Unmarshal(merged, &counts); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if counts["pair"] != 3 || counts["flush"] != 4 {
		t.Fatalf("unexpected merge result: %v", counts)
	}
}
