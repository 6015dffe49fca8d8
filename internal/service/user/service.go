package user

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"frenzy-service/internal/model"
	appErr "frenzy-service/pkg/errors"
	"frenzy-service/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultAdminUserPageSize = 20
	maxAdminUserPageSize     = 100
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

type Profile struct {
	ID          int64      `json:"id,string"`
	Email       string     `json:"email"`
	Username    string     `json:"username"`
	Nickname    string     `json:"nickname,omitempty"`
	Status      string     `json:"status"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type UpdateProfileRequest struct {
	Nickname *string
}

// Settings holds the client preferences stored as a JSON column.
// Unknown keys round-trip untouched so older servers do not drop
// settings written by newer clients.
type Settings map[string]interface{}

type AdminListUsersFilter struct {
	Page         int
	Size         int
	Status       string
	EmailKeyword string
	Username     string
}

type AdminListUsersResult struct {
	Items []Profile
	Total int64
}

func (f *AdminListUsersFilter) sanitize() {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Size <= 0 {
		f.Size = defaultAdminUserPageSize
	}
	if f.Size > maxAdminUserPageSize {
		f.Size = maxAdminUserPageSize
	}
	f.Status = strings.ToLower(strings.TrimSpace(f.Status))
	f.EmailKeyword = strings.TrimSpace(f.EmailKeyword)
	f.Username = strings.TrimSpace(f.Username)
}

func applyAdminUserFilters(db *gorm.DB, filter AdminListUsersFilter) *gorm.DB {
	if filter.Status != "" {
		db = db.Where("LOWER(status) = ?", filter.Status)
	}
	if filter.EmailKeyword != "" {
		like := "%" + filter.EmailKeyword + "%"
		db = db.Where("email LIKE ?", like)
	}
	if filter.Username != "" {
		like := "%" + filter.Username + "%"
		db = db.Where("username LIKE ?", like)
	}
	return db
}

func (s *Service) GetProfile(ctx context.Context, userID int64) (*Profile, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, appErr.ErrUserNotFound
		}
		return nil, err
	}
	profile := toProfile(user)
	return &profile, nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID int64, req UpdateProfileRequest) (*Profile, error) {
	updates := map[string]interface{}{}
	if req.Nickname != nil {
		updates["nickname"] = strings.TrimSpace(*req.Nickname)
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	return s.GetProfile(ctx, userID)
}

func (s *Service) GetSettings(ctx context.Context, userID int64) (Settings, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, appErr.ErrUserNotFound
		}
		return nil, err
	}

	settings := Settings{}
	if len(user.SettingsJSON) > 0 {
		if err := json.Unmarshal(user.SettingsJSON, &settings); err != nil {
			return nil, err
		}
	}
	return settings, nil
}

// UpdateSettings merges the incoming keys into the stored settings.
// A key set to null deletes it.
func (s *Service) UpdateSettings(ctx context.Context, userID int64, incoming Settings) (Settings, error) {
	current, err := s.GetSettings(ctx, userID)
	if err != nil {
		return nil, err
	}

	for key, value := range incoming {
		if value == nil {
			delete(current, key)
			continue
		}
		current[key] = value
	}

	data, err := json.Marshal(current)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		Update("settings_json", datatypes.JSON(data)).Error; err != nil {
		return nil, err
	}
	return current, nil
}

func (s *Service) AdminListUsers(ctx context.Context, filter AdminListUsersFilter) (*AdminListUsersResult, error) {
	filter.sanitize()

	countQuery := applyAdminUserFilters(s.db.WithContext(ctx).Model(&model.User{}), filter)
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, err
	}

	result := &AdminListUsersResult{
		Items: make([]Profile, 0),
		Total: total,
	}
	if total == 0 {
		return result, nil
	}

	var users []model.User
	dataQuery := applyAdminUserFilters(s.db.WithContext(ctx).Model(&model.User{}), filter)
	if err := dataQuery.
		Order("id DESC").
		Limit(filter.Size).
		Offset((filter.Page - 1) * filter.Size).
		Find(&users).Error; err != nil {
		return nil, err
	}

	for _, user := range users {
		result.Items = append(result.Items, toProfile(user))
	}
	return result, nil
}

func (s *Service) AdminGetUser(ctx context.Context, userID int64) (*Profile, error) {
	return s.GetProfile(ctx, userID)
}

func (s *Service) AdminUpdateUserStatus(ctx context.Context, userID int64, status, reason string) (*Profile, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if status != "normal" && status != "banned" {
		return nil, appErr.ErrInvalidUserStatus
	}
	reason = strings.TrimSpace(reason)

	now := time.Now()
	res := s.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, appErr.ErrUserNotFound
	}

	logger.Log.Info("admin updated user status",
		zap.Int64("userID", userID),
		zap.String("status", status),
		zap.String("reason", reason))

	return s.GetProfile(ctx, userID)
}

func toProfile(user model.User) Profile {
	return Profile{
		ID:          user.ID,
		Email:       user.Email,
		Username:    user.Username,
		Nickname:    user.Nickname,
		Status:      user.Status,
		LastLoginAt: user.LastLoginAt,
		CreatedAt:   user.CreatedAt,
	}
}
