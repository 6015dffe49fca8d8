package auth

import (
	"context"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"frenzy-service/internal/config"
	"frenzy-service/internal/model"
	pkgAuth "frenzy-service/pkg/auth"
	appErr "frenzy-service/pkg/errors"
	"frenzy-service/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Config struct {
	MaxLoginAttempts int
	AttemptWindow    time.Duration
	MinPasswordLen   int
}

func defaultConfig() Config {
	return Config{
		MaxLoginAttempts: 5,
		AttemptWindow:    15 * time.Minute,
		MinPasswordLen:   8,
	}
}

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)

// Service handles player registration and credential login. Failed
// login counting lives in redis so it survives restarts and is shared
// across instances.
type Service struct {
	db  *gorm.DB
	rdb *redis.Client
	cfg Config
}

type UserInfo struct {
	ID          int64      `json:"id,string"`
	Email       string     `json:"email"`
	Username    string     `json:"username"`
	Nickname    string     `json:"nickname,omitempty"`
	Status      string     `json:"status"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type LoginResult struct {
	Token    string    `json:"token"`
	ExpireAt time.Time `json:"expireAt"`
	User     UserInfo  `json:"user"`
}

func NewService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		db:  db,
		rdb: rdb,
		cfg: defaultConfig(),
	}
}

func (s *Service) Register(ctx context.Context, email, username, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)

	if _, err := mail.ParseAddress(email); err != nil {
		return nil, appErr.ErrInvalidEmail
	}
	if !usernamePattern.MatchString(username) {
		return nil, appErr.ErrInvalidUsername
	}
	if len(password) < s.cfg.MinPasswordLen {
		return nil, appErr.ErrWeakPassword
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&model.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, appErr.ErrEmailTaken
	}
	if err := s.db.WithContext(ctx).Model(&model.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, appErr.ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := model.User{
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
		Status:       "normal",
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}

	logger.Log.Info("user registered",
		zap.Int64("userID", user.ID),
		zap.String("username", username),
	)
	return s.issueToken(ctx, user)
}

func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, appErr.ErrInvalidCredentials
	}

	attemptKey := buildAttemptKey(email)
	if s.rdb != nil {
		attempts, err := s.rdb.Get(ctx, attemptKey).Int()
		if err != nil && err != redis.Nil {
			return nil, err
		}
		if attempts >= s.cfg.MaxLoginAttempts {
			return nil, appErr.ErrTooManyAttempts
		}
	}

	var user model.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			s.recordFailedAttempt(ctx, attemptKey)
			return nil, appErr.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.recordFailedAttempt(ctx, attemptKey)
		return nil, appErr.ErrInvalidCredentials
	}
	if strings.EqualFold(user.Status, "banned") {
		return nil, appErr.ErrUserBanned
	}

	if s.rdb != nil {
		s.rdb.Del(ctx, attemptKey)
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).
		Model(&user).
		Updates(map[string]interface{}{
			"last_login_at": now,
			"updated_at":    now,
		}).Error; err != nil {
		return nil, err
	}
	user.LastLoginAt = &now

	return s.issueToken(ctx, user)
}

func (s *Service) issueToken(_ context.Context, user model.User) (*LoginResult, error) {
	token, err := pkgAuth.GenerateToken(user.ID)
	if err != nil {
		return nil, err
	}
	expireAt := time.Now().Add(time.Duration(config.GlobalConfig.JWT.Expire) * time.Hour)
	return &LoginResult{
		Token:    token,
		ExpireAt: expireAt,
		User:     sanitizeUser(user),
	}, nil
}

func (s *Service) recordFailedAttempt(ctx context.Context, key string) {
	if s.rdb == nil {
		return
	}
	pipe := s.rdb.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.cfg.AttemptWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Log.Warn("failed to record login attempt", zap.Error(err))
	}
}

func sanitizeUser(user model.User) UserInfo {
	return UserInfo{
		ID:          user.ID,
		Email:       user.Email,
		Username:    user.Username,
		Nickname:    user.Nickname,
		Status:      user.Status,
		LastLoginAt: user.LastLoginAt,
		CreatedAt:   user.CreatedAt,
	}
}

func buildAttemptKey(email string) string {
	return fmt.Sprintf("auth:attempts:%s", email)
}
