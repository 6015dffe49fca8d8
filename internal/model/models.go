package model

import (
	"time"

	"gorm.io/datatypes"
)

// 2.1 Players & Admins

type User struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Email        string `gorm:"unique;not null"`
	Username     string `gorm:"unique;not null"`
	PasswordHash string `gorm:"not null"`
	Nickname     string
	Status       string `gorm:"default:normal;not null"` // normal/banned
	SettingsJSON datatypes.JSON
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Admin struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Username     string `gorm:"unique;not null"`
	PasswordHash string `gorm:"not null"`
	DisplayName  string
	Status       string `gorm:"default:active;not null"` // active/disabled
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// 2.2 Runs & Persistence

// SavedRun is the single resumable run per player. StateJSON holds the
// full serialized run state (piles, hand, jokers, counters).
type SavedRun struct {
	UserID    int64          `gorm:"primaryKey"`
	StateJSON datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RunRecord is one finished or in-progress run, identified by a short
// shareable code.
type RunRecord struct {
	ID            int64  `gorm:"primaryKey;autoIncrement"`
	UserID        int64  `gorm:"index"`
	Code          string `gorm:"unique;not null"`
	Difficulty    string `gorm:"not null"`
	DeckChoice    string
	Status        string `gorm:"default:active;not null"` // active/won/lost/abandoned
	FinalScore    int64
	RoundsCleared int
	PlayTime      int64 // seconds
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// 2.3 Stats & Leaderboard

type PlayerStats struct {
	UserID          int64 `gorm:"primaryKey"`
	GamesPlayed     int
	TotalScore      int64
	HighScore       int64
	TotalPlayTime   int64 // seconds
	VictoriesEasy   int
	VictoriesNormal int
	VictoriesHard   int
	HandsPlayedJSON datatypes.JSON // category name -> times played
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
