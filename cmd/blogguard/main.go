// Command blogguard serves the blog API over HTTP and gRPC.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/synergy-framework/blogguard/admin"
	"github.com/synergy-framework/blogguard/analytics"
	"github.com/synergy-framework/blogguard/comment"
	"github.com/synergy-framework/blogguard/config"
	bggrpc "github.com/synergy-framework/blogguard/grpc"
	bghttp "github.com/synergy-framework/blogguard/http"
	"github.com/synergy-framework/blogguard/metrics"
	"github.com/synergy-framework/blogguard/policy"
	"github.com/synergy-framework/blogguard/post"
	"github.com/synergy-framework/blogguard/principal"
	"github.com/synergy-framework/blogguard/taxonomy"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := config.NewLogger(cfg)
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	m := metrics.NewMetrics(nil)
	pol := m.Policy(policy.New())

	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}
	defer be.close()

	ctr, err := openCounters(ctx, cfg, m, logger)
	if err != nil {
		return fmt.Errorf("open analytics: %w", err)
	}
	defer ctr.close()

	posts := post.NewService(be.posts, pol,
		post.WithViewRecorder(ctr.recorder),
		post.WithEngagement(ctr.store),
		post.WithViewTimeout(cfg.ViewRecordTimeout),
		post.WithCategories(taxonomy.Categories{Store: be.terms}),
		post.WithLogger(logger))
	comments := comment.NewService(be.comments, be.posts, pol, comment.WithLogger(logger))
	terms := taxonomy.NewService(be.terms, posts, pol, taxonomy.WithLogger(logger))
	gate := admin.New(admin.Deps{
		Policy:   pol,
		Stats:    analytics.NewStats(ctr.store, be.inventory),
		Counters: ctr.store,
		Users:    be.accounts,
		Posts:    be.posts,
		Comments: be.comments,
		Logger:   logger,
	})
	resolver := principal.NewResolver(be.accounts,
		principal.WithRoleLookup(be.roles),
		principal.WithLogger(logger))

	httpCfg := bghttp.DefaultConfig()
	httpCfg.RateLimit = cfg.RateLimitPerMinute
	httpCfg.Production = cfg.IsProduction()
	httpCfg.RequestTimeout = cfg.RequestTimeout
	api, err := bghttp.NewServer(bghttp.Deps{
		Resolver: resolver,
		Accounts: be.accounts,
		Posts:    posts,
		Comments: comments,
		Taxonomy: terms,
		Admin:    gate,
		Metrics:  metrics.Handler(),
		Logger:   logger,
		Config:   httpCfg,
	})
	if err != nil {
		return fmt.Errorf("http: %w", err)
	}

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      api.Routes(),
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	var (
		rpc *grpc.Server
		lis net.Listener
	)
	if cfg.GRPCAddr != "" {
		lis, err = net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("grpc: listen: %w", err)
		}
		gcfg := bggrpc.DefaultConfig()
		gcfg.Logger = logger
		rpc = grpc.NewServer(bggrpc.New(resolver, gcfg).ServerOptions()...)
		healthpb.RegisterHealthServer(rpc, health.NewServer())
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server starting", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})

	if rpc != nil {
		g.Go(func() error {
			logger.Info("grpc server starting", slog.String("addr", cfg.GRPCAddr))
			return rpc.Serve(lis)
		})
	}

	if ctr.worker != nil {
		g.Go(func() error {
			return ctr.worker.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		if rpc != nil {
			rpc.GracefulStop()
		}
		posts.Wait()
		return err
	})

	return g.Wait()
}
