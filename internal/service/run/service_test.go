package run

import (
	"context"
	"errors"
	"testing"

	"frenzy-service/internal/model"
	"frenzy-service/internal/service/leaderboard"
	appErr "frenzy-service/pkg/errors"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*gorm.DB, *Service) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&model.User{}, &model.RunRecord{}, &model.SavedRun{}, &model.PlayerStats{}); err != nil {
		t.Fatalf("failed to migrate models: %v", err)
	}

	svc := &Service{
		db:    db,
		stats: leaderboard.NewService(db, nil),
		cfg:   defaultConfig(),
	}
	return db, svc
}

func TestStartRunCreatesRecordAndSave(t *testing.T) {
	db, svc := newTestService(t)
	ctx := context.Background()

	rt, err := svc.StartRun(ctx, 1, "normal", "")
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	if rt.UserID() != 1 {
		t.Fatalf("unexpected user id %d", rt.UserID())
	}

	var rec model.RunRecord
	if err := db.First(&rec, rt.RunID()).Error; err != nil {
		t.Fatalf("run record missing: %v", err)
	}
	if rec.Status != "active" {
		t.Fatalf("expected active record, got %s", rec.Status)
	}
	if len(rec.Code) != 6 {
		t.Fatalf("expected 6-char code, got %q", rec.Code)
	}
	if rec.DeckChoice != DeckStandard {
		t.Fatalf("expected standard deck default, got %q", rec.DeckChoice)
	}

	var saved model.SavedRun
	if err := db.Where("user_id = ?", int64(1)).First(&saved).Error; err != nil {
		t.Fatalf("saved run missing: %v", err)
	}
	if len(saved.StateJSON) == 0 {
		t.Fatalf("expected serialized state")
	}
}

func TestStartRunValidation(t *testing.T) {
	_, svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.StartRun(ctx, 1, "brutal", ""); !errors.Is(err, appErr.ErrInvalidDifficulty) {
		t.Fatalf("expected ErrInvalidDifficulty, got %v", err)
	}
	if _, err := svc.StartRun(ctx, 1, "normal", "golden"); !errors.Is(err, appErr.ErrInvalidDeckChoice) {
		t.Fatalf("expected ErrInvalidDeckChoice, got %v", err)
	}
}

func TestStartRunAbandonsPrevious(t *testing.T) {
	db, svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.StartRun(ctx, 1, "normal", "")
	if err != nil {
		t.Fatalf("first StartRun failed: %v", err)
	}
	second, err := svc.StartRun(ctx, 1, "hard", "red")
	if err != nil {
		t.Fatalf("second StartRun failed: %v", err)
	}

	var rec model.RunRecord
	if err := db.First(&rec, first.RunID()).Error; err != nil {
		t.Fatalf("first record missing: %v", err)
	}
	if rec.Status != "abandoned" {
		t.Fatalf("expected first run abandoned, got %s", rec.Status)
	}
	if _, ok := svc.runtimes.Load(first.RunID()); ok {
		t.Fatalf("expected first runtime evicted")
	}
	if _, ok := svc.runtimes.Load(second.RunID()); !ok {
		t.Fatalf("expected second runtime live")
	}
}

func TestValidateRunAccess(t *testing.T) {
	_, svc := newTestService(t)
	ctx := context.Background()

	rt, err := svc.StartRun(ctx, 1, "normal", "")
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	if err := svc.ValidateRunAccess(ctx, 1, rt.RunID()); err != nil {
		t.Fatalf("expected owner access, got %v", err)
	}
	if err := svc.ValidateRunAccess(ctx, 2, rt.RunID()); !errors.Is(err, appErr.ErrRunAccessDenied) {
		t.Fatalf("expected ErrRunAccessDenied, got %v", err)
	}
	if err := svc.ValidateRunAccess(ctx, 1, 99999); !errors.Is(err, appErr.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
	if err := svc.ValidateRunAccess(ctx, 0, rt.RunID()); !errors.Is(err, appErr.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestCurrentRunWithoutActiveRun(t *testing.T) {
	_, svc := newTestService(t)

	if _, err := svc.CurrentRun(context.Background(), 1); !errors.Is(err, appErr.ErrNoSavedRun) {
		t.Fatalf("expected ErrNoSavedRun, got %v", err)
	}
}

func TestResumeRestoresFromSavedState(t *testing.T) {
	_, svc := newTestService(t)
	ctx := context.Background()

	rt, err := svc.StartRun(ctx, 1, "normal", "")
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	runID := rt.RunID()

	// Simulate a process restart by dropping the in-memory runtime.
	svc.runtimes.Delete(runID)

	restored, err := svc.Resume(ctx, 1)
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if restored.RunID() != runID {
		t.Fatalf("expected run %d, got %d", runID, restored.RunID())
	}
	if restored == rt {
		t.Fatalf("expected a rebuilt runtime instance")
	}

	view := restored.State()
	if view.Phase != PhasePlaying || view.Round != 1 {
		t.Fatalf("unexpected restored state: phase=%s round=%d", view.Phase, view.Round)
	}
	if len(view.Hand) != 8 {
		t.Fatalf("expected restored hand of 8, got %d", len(view.Hand))
	}
}

func TestGetRuntimeFinishedRun(t *testing.T) {
	db, svc := newTestService(t)
	ctx := context.Background()

	rec := model.RunRecord{UserID: 1, Code: "DEAD01", Difficulty: "normal", Status: "won"}
	if err := db.Create(&rec).Error; err != nil {
		t.Fatalf("failed to seed record: %v", err)
	}

	if _, err := svc.GetRuntime(ctx, rec.ID); !errors.Is(err, appErr.ErrRunFinished) {
		t.Fatalf("expected ErrRunFinished, got %v", err)
	}
	if _, err := svc.GetRuntime(ctx, 99999); !errors.Is(err, appErr.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestGetRuntimeCorruptSave(t *testing.T) {
	db, svc := newTestService(t)
	ctx := context.Background()

	rt, err := svc.StartRun(ctx, 1, "normal", "")
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	svc.runtimes.Delete(rt.RunID())

	if err := db.Model(&model.SavedRun{}).
		Where("user_id = ?", int64(1)).
		Update("state_json", []byte(`{"round":0}`)).Error; err != nil {
		t.Fatalf("failed to corrupt save: %v", err)
	}

	if _, err := svc.GetRuntime(ctx, rt.RunID()); !errors.Is(err, appErr.ErrCorruptSavedRun) {
		t.Fatalf("expected ErrCorruptSavedRun, got %v", err)
	}
}

func TestAbandonClearsState(t *testing.T) {
	db, svc := newTestService(t)
	ctx := context.Background()

	rt, err := svc.StartRun(ctx, 1, "normal", "")
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	if err := svc.Abandon(ctx, 1); err != nil {
		t.Fatalf("Abandon failed: %v", err)
	}

	var rec model.RunRecord
	if err := db.First(&rec, rt.RunID()).Error; err != nil {
		t.Fatalf("record missing: %v", err)
	}
	if rec.Status != "abandoned" {
		t.Fatalf("expected abandoned, got %s", rec.Status)
	}

	var count int64
	if err := db.Model(&model.SavedRun{}).Where("user_id = ?", int64(1)).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected saved run deleted, found %d", count)
	}

	// Abandoning with nothing active is a no-op.
	if err := svc.Abandon(ctx, 1); err != nil {
		t.Fatalf("second Abandon failed: %v", err)
	}
}

func TestAdminListRuns(t *testing.T) {
	db, svc := newTestService(t)
	ctx := context.Background()

	seed := []model.RunRecord{
		{UserID: 1, Code: "AAAA01", Difficulty: "normal", Status: "won", FinalScore: 5000},
		{UserID: 1, Code: "AAAA02", Difficulty: "hard", Status: "lost", FinalScore: 900},
		{UserID: 2, Code: "AAAA03", Difficulty: "normal", Status: "active"},
	}
	for i := range seed {
		if err := db.Create(&seed[i]).Error; err != nil {
			t.Fatalf("failed to seed record: %v", err)
		}
	}

	all, err := svc.AdminListRuns(ctx, AdminListRunsFilter{})
	if err != nil {
		t.Fatalf("unfiltered list failed: %v", err)
	}
	if all.Total != 3 {
		t.Fatalf("expected 3 runs, got %d", all.Total)
	}

	won, err := svc.AdminListRuns(ctx, AdminListRunsFilter{Status: "WON"})
	if err != nil {
		t.Fatalf("status filter failed: %v", err)
	}
	if won.Total != 1 || won.Items[0].Code != "AAAA01" {
		t.Fatalf("unexpected status filter result: %+v", won)
	}

	uid := int64(2)
	mine, err := svc.AdminListRuns(ctx, AdminListRunsFilter{UserID: &uid})
	if err != nil {
		t.Fatalf("user filter failed: %v", err)
	}
	if mine.Total != 1 || mine.Items[0].Code != "AAAA03" {
		t.Fatalf("unexpected user filter result: %+v", mine)
	}

	paged, err := svc.AdminListRuns(ctx, AdminListRunsFilter{Page: 1, Size: 2})
	if err != nil {
		t.Fatalf("paged list failed: %v", err)
	}
	if len(paged.Items) != 2 || paged.Total != 3 {
		t.Fatalf("unexpected page: items=%d total=%d", len(paged.Items), paged.Total)
	}
}
