package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"go-social-feed/internal/config"
	"go-social-feed/internal/database"
	"go-social-feed/internal/handler"
	"go-social-feed/internal/repository"
	"go-social-feed/internal/repository/memory"
	"go-social-feed/internal/service"
)

type stores struct {
	users    service.UserStore
	tokens   service.RefreshLedger
	posts    service.PostStore
	likes    service.LikeStore
	comments service.CommentStore
	health   handler.HealthChecker
	metrics  []prometheus.Collector
	close    func()
}

func openStores(ctx context.Context, cfg *config.Config) (stores, error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		slog.Warn("using in-memory storage, data is lost on restart")
		m := memory.New()
		return stores{
			users:    m.Users(),
			tokens:   m.Tokens(),
			posts:    m.Posts(),
			likes:    m.Likes(),
			comments: m.Comments(),
			health:   m,
			close:    func() {},
		}, nil
	}

	if cfg.AutoMigrate {
		slog.Info("applying database migrations")
		if err := database.Migrate(cfg.DatabaseURL, database.DirectionUp); err != nil {
			return stores{}, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return stores{}, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database ready")

	pool := db.Pool
	return stores{
		users:    repository.NewUserRepository(pool),
		tokens:   repository.NewTokenRepository(pool),
		posts:    repository.NewPostRepository(pool),
		likes:    repository.NewLikeRepository(pool),
		comments: repository.NewCommentRepository(pool),
		health:   db,
		metrics:  db.Collectors(),
		close:    db.Close,
	}, nil
}
