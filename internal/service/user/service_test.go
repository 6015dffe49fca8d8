package user_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"frenzy-service/internal/model"
	usersvc "frenzy-service/internal/service/user"
	appErr "frenzy-service/pkg/errors"
	"frenzy-service/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	os.Exit(m.Run())
}

func newTestService(t *testing.T) (*gorm.DB, *usersvc.Service) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&model.User{}); err != nil {
		t.Fatalf("failed to migrate user model: %v", err)
	}
	return db, usersvc.NewService(db)
}

func createUser(t *testing.T, db *gorm.DB, email, username string) *model.User {
	t.Helper()

	user := &model.User{
		Email:        email,
		Username:     username,
		PasswordHash: "irrelevant",
		Status:       "normal",
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to insert user: %v", err)
	}
	return user
}

func TestGetProfile(t *testing.T) {
	db, svc := newTestService(t)
	user := createUser(t, db, "a@b.com", "player")

	profile, err := svc.GetProfile(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if profile.Email != "a@b.com" || profile.Username != "player" {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	if _, err := svc.GetProfile(context.Background(), 99999); !errors.Is(err, appErr.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	db, svc := newTestService(t)
	user := createUser(t, db, "a@b.com", "player")

	nickname := "  Ace  "
	profile, err := svc.UpdateProfile(context.Background(), user.ID, usersvc.UpdateProfileRequest{Nickname: &nickname})
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if profile.Nickname != "Ace" {
		t.Fatalf("expected trimmed nickname, got %q", profile.Nickname)
	}

	// A request with no fields leaves the row untouched.
	profile, err = svc.UpdateProfile(context.Background(), user.ID, usersvc.UpdateProfileRequest{})
	if err != nil {
		t.Fatalf("empty update failed: %v", err)
	}
	if profile.Nickname != "Ace" {
		t.Fatalf("expected nickname preserved, got %q", profile.Nickname)
	}
}

func TestSettingsMerge(t *testing.T) {
	db, svc := newTestService(t)
	user := createUser(t, db, "a@b.com", "player")
	ctx := context.Background()

	settings, err := svc.GetSettings(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetSettings failed: %v", err)
	}
	if len(settings) != 0 {
		t.Fatalf("expected empty settings, got %v", settings)
	}

	settings, err = svc.UpdateSettings(ctx, user.ID, usersvc.Settings{
		"sound":    true,
		"language": "en",
	})
	if err != nil {
		t.Fatalf("UpdateSettings failed: %v", err)
	}
	if settings["sound"] != true || settings["language"] != "en" {
		t.Fatalf("unexpected settings: %v", settings)
	}

	// Merging keeps untouched keys; null deletes.
	settings, err = svc.UpdateSettings(ctx, user.ID, usersvc.Settings{
		"language": nil,
		"theme":    "dark",
	})
	if err != nil {
		t.Fatalf("second UpdateSettings failed: %v", err)
	}
	if _, ok := settings["language"]; ok {
		t.Fatalf("expected language deleted, got %v", settings)
	}
	if settings["sound"] != true || settings["theme"] != "dark" {
		t.Fatalf("unexpected merged settings: %v", settings)
	}

	reloaded, err := svc.GetSettings(ctx, user.ID)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded["theme"] != "dark" {
		t.Fatalf("expected persisted settings, got %v", reloaded)
	}
}

func TestAdminUpdateUserStatus(t *testing.T) {
	db, svc := newTestService(t)
	user := createUser(t, db, "a@b.com", "player")
	ctx := context.Background()

	if _, err := svc.AdminUpdateUserStatus(ctx, user.ID, "frozen", ""); !errors.Is(err, appErr.ErrInvalidUserStatus) {
		t.Fatalf("expected ErrInvalidUserStatus, got %v", err)
	}
	if _, err := svc.AdminUpdateUserStatus(ctx, 99999, "banned", "cheating"); !errors.Is(err, appErr.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	profile, err := svc.AdminUpdateUserStatus(ctx, user.ID, "BANNED", "cheating")
	if err != nil {
		t.Fatalf("ban failed: %v", err)
	}
	if profile.Status != "banned" {
		t.Fatalf("expected banned status, got %q", profile.Status)
	}

	profile, err = svc.AdminUpdateUserStatus(ctx, user.ID, "normal", "appeal accepted")
	if err != nil {
		t.Fatalf("unban failed: %v", err)
	}
	if profile.Status != "normal" {
		t.Fatalf("expected normal status, got %q", profile.Status)
	}
}

func TestAdminListUsers(t *testing.T) {
	db, svc := newTestService(t)
	createUser(t, db, "alice@example.com", "alice")
	createUser(t, db, "bob@example.com", "bob")
	banned := createUser(t, db, "mallory@evil.com", "mallory")
	ctx := context.Background()

	if _, err := svc.AdminUpdateUserStatus(ctx, banned.ID, "banned", ""); err != nil {
		t.Fatalf("failed to ban seed user: %v", err)
	}

	all, err := svc.AdminListUsers(ctx, usersvc.AdminListUsersFilter{})
	if err != nil {
		t.Fatalf("unfiltered list failed: %v", err)
	}
	if all.Total != 3 {
		t.Fatalf("expected 3 users, got %d", all.Total)
	}

	bannedOnly, err := svc.AdminListUsers(ctx, usersvc.AdminListUsersFilter{Status: "banned"})
	if err != nil {
		t.Fatalf("status filter failed: %v", err)
	}
	if bannedOnly.Total != 1 || bannedOnly.Items[0].Username != "mallory" {
		t.Fatalf("unexpected status filter result: %+v", bannedOnly)
	}

	byEmail, err := svc.AdminListUsers(ctx, usersvc.AdminListUsersFilter{EmailKeyword: "example.com"})
	if err != nil {
		t.Fatalf("email filter failed: %v", err)
	}
	if byEmail.Total != 2 {
		t.Fatalf("expected 2 matches, got %d", byEmail.Total)
	}

	byName, err := svc.AdminListUsers(ctx, usersvc.AdminListUsersFilter{Username: "ali"})
	if err != nil {
		t.Fatalf("username filter failed: %v", err)
	}
	if byName.Total != 1 || byName.Items[0].Username != "alice" {
		t.Fatalf("unexpected username filter result: %+v", byName)
	}
}
