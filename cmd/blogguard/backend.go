package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/synergy-framework/blogguard"
	"github.com/synergy-framework/blogguard/admin"
	"github.com/synergy-framework/blogguard/analytics"
	"github.com/synergy-framework/blogguard/comment"
	"github.com/synergy-framework/blogguard/config"
	bghttp "github.com/synergy-framework/blogguard/http"
	"github.com/synergy-framework/blogguard/jwt"
	"github.com/synergy-framework/blogguard/memory"
	"github.com/synergy-framework/blogguard/metrics"
	"github.com/synergy-framework/blogguard/post"
	"github.com/synergy-framework/blogguard/postgres"
	"github.com/synergy-framework/blogguard/rbac"
	"github.com/synergy-framework/blogguard/taxonomy"
)

const roleCacheTTL = 5 * time.Second

// accounts is what both persistence backends provide for users and tokens.
type accounts interface {
	bghttp.Accounts
	admin.Users
	blogguard.TokenValidator
}

// backend is the selected persistence collaborator.
type backend struct {
	posts     post.Store
	comments  comment.Store
	terms     taxonomy.Store
	inventory analytics.InventorySource
	accounts  accounts
	roles     blogguard.RoleLookup
	close     func()
}

func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	if cfg.PGDSN == "" {
		roles := rbac.NewCached(rbac.NewMemoryStore(), roleCacheTTL)
		svc, err := memory.NewService(cfg.Memory(), memory.WithRoleStore(roles))
		if err != nil {
			return nil, err
		}
		logger.Info("using in-memory stores")
		return &backend{
			posts:     svc.Posts(),
			comments:  svc.Comments(),
			terms:     svc.Terms(),
			inventory: svc,
			accounts:  svc,
			roles:     roles,
			close:     func() {},
		}, nil
	}

	pool, err := postgres.Open(ctx, cfg.PGDSN)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	tokens, err := jwt.NewManager(cfg.JWT())
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("jwt: %w", err)
	}

	store := postgres.New(pool)
	roles := rbac.NewCached(store.Roles(), roleCacheTTL)
	acct := postgres.NewAccounts(pool, tokens, cfg.BCryptCost)
	acct.UseRoles(roles)

	logger.Info("using postgres stores")
	return &backend{
		posts:     store.Posts(),
		comments:  store.Comments(),
		terms:     store.Terms(),
		inventory: store,
		accounts:  acct,
		roles:     roles,
		close:     pool.Close,
	}, nil
}

// counters is the selected analytics collaborator.
type counters struct {
	store    analytics.Store
	recorder blogguard.ViewRecorder
	worker   *analytics.Worker
	close    func()
}

func openCounters(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (*counters, error) {
	if cfg.RedisAddr == "" {
		if cfg.AnalyticsAsync {
			return nil, errors.New("ANALYTICS_ASYNC requires REDIS_ADDR")
		}
		store := analytics.NewMemoryStore()
		return &counters{store: store, recorder: m.ViewRecorder(store), close: func() {}}, nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	store := analytics.NewRedisStore(rdb)
	c := &counters{store: store, recorder: m.ViewRecorder(store), close: func() { _ = rdb.Close() }}

	if cfg.AnalyticsAsync {
		opt := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
		client := asynq.NewClient(opt)
		c.recorder = m.ViewRecorder(analytics.NewQueueRecorder(client, 3))
		c.worker = analytics.NewWorker(opt, store, logger)
		c.worker.Use(m.TaskMiddleware)
		c.close = func() {
			_ = client.Close()
			_ = rdb.Close()
		}
		logger.Info("view events go through the task queue")
	}
	return c, nil
}
