package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"frenzy-service/internal/model"
	"frenzy-service/internal/service/engine"
	"frenzy-service/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Config struct {
	KeyPrefix    string
	DefaultLimit int
	MaxLimit     int
}

func defaultConfig() Config {
	return Config{
		KeyPrefix:    "leaderboard:highscore",
		DefaultLimit: 10,
		MaxLimit:     100,
	}
}

// Service maintains the redis high-score rankings and the per-player
// lifetime stats. Redis is the query path; the database is the source
// of truth and is replayed into redis on startup.
type Service struct {
	db  *gorm.DB
	rdb *redis.Client
	cfg Config

	startOnce sync.Once
	startErr  error
}

type RunResult struct {
	UserID        int64
	Difficulty    engine.Difficulty
	Won           bool
	Score         int64
	RoundsCleared int
	PlayTime      int64
	HandsPlayed   map[string]int
}

type Entry struct {
	Rank     int64  `json:"rank"`
	UserID   int64  `json:"userId,string"`
	Username string `json:"username"`
	Nickname string `json:"nickname,omitempty"`
	Score    int64  `json:"score"`
}

type StatsView struct {
	GamesPlayed     int            `json:"gamesPlayed"`
	TotalScore      int64          `json:"totalScore"`
	HighScore       int64          `json:"highScore"`
	TotalPlayTime   int64          `json:"totalPlayTime"`
	VictoriesEasy   int            `json:"victoriesEasy"`
	VictoriesNormal int            `json:"victoriesNormal"`
	VictoriesHard   int            `json:"victoriesHard"`
	HandsPlayed     map[string]int `json:"handsPlayed"`
}

func NewService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		db:  db,
		rdb: rdb,
		cfg: defaultConfig(),
	}
}

// Start warms the redis rankings from the database once.
func (s *Service) Start(ctx context.Context) error {
	s.startOnce.Do(func() {
		s.startErr = s.warm(ctx)
	})
	return s.startErr
}

func (s *Service) warm(ctx context.Context) error {
	if s.rdb == nil {
		return nil
	}
	var stats []model.PlayerStats
	if err := s.db.WithContext(ctx).Find(&stats).Error; err != nil {
		return err
	}
	for _, st := range stats {
		if st.HighScore <= 0 {
			continue
		}
		if err := s.rdb.ZAddGT(ctx, s.buildKey(""), redis.Z{
			Score:  float64(st.HighScore),
			Member: strconv.FormatInt(st.UserID, 10),
		}).Err(); err != nil {
			return err
		}
	}

	type bestRow struct {
		UserID     int64
		Difficulty string
		Best       int64
	}
	var rows []bestRow
	if err := s.db.WithContext(ctx).
		Model(&model.RunRecord{}).
		Select("user_id, difficulty, MAX(final_score) AS best").
		Where("status IN ?", []string{"won", "lost"}).
		Group("user_id, difficulty").
		Scan(&rows).Error; err != nil {
		return err
	}
	for _, row := range rows {
		if row.Best <= 0 {
			continue
		}
		if err := s.rdb.ZAddGT(ctx, s.buildKey(row.Difficulty), redis.Z{
			Score:  float64(row.Best),
			Member: strconv.FormatInt(row.UserID, 10),
		}).Err(); err != nil {
			return err
		}
	}

	logger.Log.Info("leaderboard warmed", zap.Int("players", len(stats)))
	return nil
}

// RecordResult folds a finished run into the player's lifetime stats
// and bumps the redis rankings.
func (s *Service) RecordResult(ctx context.Context, res RunResult) error {
	if res.UserID == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stats model.PlayerStats
		if err := tx.Where("user_id = ?", res.UserID).First(&stats).Error; err != nil {
			if err != gorm.ErrRecordNotFound {
				return err
			}
			stats = model.PlayerStats{UserID: res.UserID}
		}

		stats.GamesPlayed++
		stats.TotalScore += res.Score
		if res.Score > stats.HighScore {
			stats.HighScore = res.Score
		}
		stats.TotalPlayTime += res.PlayTime
		if res.Won {
			switch res.Difficulty {
			case engine.DifficultyEasy:
				stats.VictoriesEasy++
			case engine.DifficultyHard:
				stats.VictoriesHard++
			default:
				stats.VictoriesNormal++
			}
		}

		merged, err := mergeHandsPlayed(stats.HandsPlayedJSON, res.HandsPlayed)
		if err != nil {
			return err
		}
		stats.HandsPlayedJSON = merged

		return tx.Save(&stats).Error
	})
	if err != nil {
		return err
	}

	if s.rdb == nil {
		return nil
	}
	member := strconv.FormatInt(res.UserID, 10)
	score := float64(res.Score)
	if err := s.rdb.ZAddGT(ctx, s.buildKey(""), redis.Z{Score: score, Member: member}).Err(); err != nil {
		logger.Log.Warn("leaderboard update failed", zap.Int64("userID", res.UserID), zap.Error(err))
	}
	if err := s.rdb.ZAddGT(ctx, s.buildKey(string(res.Difficulty)), redis.Z{Score: score, Member: member}).Err(); err != nil {
		logger.Log.Warn("leaderboard update failed", zap.Int64("userID", res.UserID), zap.Error(err))
	}
	return nil
}

func mergeHandsPlayed(raw datatypes.JSON, delta map[string]int) (datatypes.JSON, error) {
	counts := make(map[string]int)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &counts); err != nil {
			return nil, err
		}
	}
	for hand, n := range delta {
		counts[hand] += n
	}
	data, err := json.Marshal(counts)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

// Top returns the highest scores for a difficulty, or the global board
// when difficulty is empty.
func (s *Service) Top(ctx context.Context, difficulty string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	if limit > s.cfg.MaxLimit {
		limit = s.cfg.MaxLimit
	}

	members, err := s.rdb.ZRevRangeWithScores(ctx, s.buildKey(difficulty), 0, int64(limit-1)).Result()
	if err != nil {
		if err == redis.Nil {
			return []Entry{}, nil
		}
		return nil, err
	}

	entries := make([]Entry, 0, len(members))
	ids := make([]int64, 0, len(members))
	for i, z := range members {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}
		userID, parseErr := strconv.ParseInt(member, 10, 64)
		if parseErr != nil {
			continue
		}
		ids = append(ids, userID)
		entries = append(entries, Entry{
			Rank:   int64(i + 1),
			UserID: userID,
			Score:  int64(z.Score),
		})
	}

	if len(ids) > 0 {
		var users []model.User
		if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
			return nil, err
		}
		byID := make(map[int64]model.User, len(users))
		for _, u := range users {
			byID[u.ID] = u
		}
		for i := range entries {
			if u, ok := byID[entries[i].UserID]; ok {
				entries[i].Username = u.Username
				entries[i].Nickname = u.Nickname
			}
		}
	}

	return entries, nil
}

// Rank returns the player's own position, or nil when unranked.
func (s *Service) Rank(ctx context.Context, userID int64, difficulty string) (*Entry, error) {
	key := s.buildKey(difficulty)
	member := strconv.FormatInt(userID, 10)

	rank, err := s.rdb.ZRevRank(ctx, key, member).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	score, err := s.rdb.ZScore(ctx, key, member).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}

	return &Entry{
		Rank:   rank + 1,
		UserID: userID,
		Score:  int64(score),
	}, nil
}

// Stats returns the lifetime stats view; zero values for a player with
// no recorded runs.
func (s *Service) Stats(ctx context.Context, userID int64) (*StatsView, error) {
	var stats model.PlayerStats
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&stats).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			return nil, err
		}
		return &StatsView{HandsPlayed: map[string]int{}}, nil
	}

	hands := make(map[string]int)
	if len(stats.HandsPlayedJSON) > 0 {
		if err := json.Unmarshal(stats.HandsPlayedJSON, &hands); err != nil {
			return nil, err
		}
	}

	return &StatsView{
		GamesPlayed:     stats.GamesPlayed,
		TotalScore:      stats.TotalScore,
		HighScore:       stats.HighScore,
		TotalPlayTime:   stats.TotalPlayTime,
		VictoriesEasy:   stats.VictoriesEasy,
		VictoriesNormal: stats.VictoriesNormal,
		VictoriesHard:   stats.VictoriesHard,
		HandsPlayed:     hands,
	}, nil
}

func (s *Service) buildKey(difficulty string) string {
	difficulty = strings.ToLower(strings.TrimSpace(difficulty))
	if difficulty == "" {
		return s.cfg.KeyPrefix
	}
	return fmt.Sprintf("%s:%s", s.cfg.KeyPrefix, difficulty)
}
