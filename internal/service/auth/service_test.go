package auth_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"frenzy-service/internal/config"
	"frenzy-service/internal/model"
	authsvc "frenzy-service/internal/service/auth"
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

func newTestService(t *testing.T) (*gorm.DB, *authsvc.Service) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&model.User{}); err != nil {
		t.Fatalf("failed to migrate user model: %v", err)
	}

	config.GlobalConfig = &config.Config{
		JWT: config.JWTConfig{
			Secret: "test-secret",
			Expire: 1,
		},
	}

	return db, authsvc.NewService(db, nil)
}

func TestRegisterSuccess(t *testing.T) {
	db, svc := newTestService(t)

	res, err := svc.Register(context.Background(), "Player@Example.com", "player_one", "longenough")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if res.Token == "" {
		t.Fatalf("expected a token")
	}
	if res.User.Email != "player@example.com" {
		t.Fatalf("expected lowercased email, got %q", res.User.Email)
	}
	if res.User.Username != "player_one" {
		t.Fatalf("unexpected username %q", res.User.Username)
	}

	var user model.User
	if err := db.Where("email = ?", "player@example.com").First(&user).Error; err != nil {
		t.Fatalf("user row missing: %v", err)
	}
	if user.PasswordHash == "longenough" {
		t.Fatalf("password stored in plain text")
	}
	if user.Status != "normal" {
		t.Fatalf("expected normal status, got %q", user.Status)
	}
}

func TestRegisterValidation(t *testing.T) {
	_, svc := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name     string
		email    string
		username string
		password string
		wantErr  error
	}{
		{"bad email", "not-an-email", "player", "longenough", appErr.ErrInvalidEmail},
		{"short username", "a@b.com", "ab", "longenough", appErr.ErrInvalidUsername},
		{"bad username chars", "a@b.com", "has spaces", "longenough", appErr.ErrInvalidUsername},
		{"weak password", "a@b.com", "player", "short", appErr.ErrWeakPassword},
	}
	for _, tc := range cases {
		if _, err := svc.Register(ctx, tc.email, tc.username, tc.password); !errors.Is(err, tc.wantErr) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.wantErr, err)
		}
	}
}

func TestRegisterDuplicates(t *testing.T) {
	_, svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "a@b.com", "player", "longenough"); err != nil {
		t.Fatalf("seed register failed: %v", err)
	}

	if _, err := svc.Register(ctx, "a@b.com", "other", "longenough"); !errors.Is(err, appErr.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if _, err := svc.Register(ctx, "c@d.com", "player", "longenough"); !errors.Is(err, appErr.ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestLoginSuccess(t *testing.T) {
	db, svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "a@b.com", "player", "longenough"); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	res, err := svc.Login(ctx, "A@B.com", "longenough")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if res.Token == "" {
		t.Fatalf("expected a token")
	}

	var user model.User
	if err := db.Where("email = ?", "a@b.com").First(&user).Error; err != nil {
		t.Fatalf("user row missing: %v", err)
	}
	if user.LastLoginAt == nil {
		t.Fatalf("expected last_login_at to be set")
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	_, svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "a@b.com", "player", "longenough"); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if _, err := svc.Login(ctx, "a@b.com", "wrong-password"); !errors.Is(err, appErr.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, err := svc.Login(ctx, "ghost@b.com", "longenough"); !errors.Is(err, appErr.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
	if _, err := svc.Login(ctx, "", ""); !errors.Is(err, appErr.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for empty input, got %v", err)
	}
}

func TestLoginBannedUser(t *testing.T) {
	db, svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "a@b.com", "player", "longenough"); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := db.Model(&model.User{}).Where("email = ?", "a@b.com").Update("status", "banned").Error; err != nil {
		t.Fatalf("failed to ban user: %v", err)
	}

	if _, err := svc.Login(ctx, "a@b.com", "longenough"); !errors.Is(err, appErr.ErrUserBanned) {
		t.Fatalf("expected ErrUserBanned, got %v", err)
	}
}
