package service

import (
	"context"

	"frenzy-service/internal/service/admin"
	"frenzy-service/internal/service/auth"
	"frenzy-service/internal/service/leaderboard"
	"frenzy-service/internal/service/run"
	"frenzy-service/internal/service/user"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	Auth        *auth.Service
	User        *user.Service
	Run         *run.Service
	Leaderboard *leaderboard.Service
	Admin       *admin.Service
}

func NewContainer(db *gorm.DB, rdb *redis.Client) *Container {
	lb := leaderboard.NewService(db, rdb)
	return &Container{
		Auth:        auth.NewService(db, rdb),
		User:        user.NewService(db),
		Run:         run.NewService(db, lb),
		Leaderboard: lb,
		Admin:       admin.NewService(db),
	}
}

func (c *Container) Start(ctx context.Context) error {
	if err := c.Admin.EnsureDefaultAdmin(ctx); err != nil {
		return err
	}
	return c.Leaderboard.Start(ctx)
}
