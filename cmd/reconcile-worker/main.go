package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/gatewaysync/internal/engine"
	"github.com/angelmondragon/gatewaysync/internal/health"
	"github.com/angelmondragon/gatewaysync/pkg/config"
	"github.com/angelmondragon/gatewaysync/pkg/db"
	"github.com/angelmondragon/gatewaysync/pkg/instance"
	"github.com/angelmondragon/gatewaysync/pkg/logger"
	"github.com/angelmondragon/gatewaysync/pkg/migrate"
	"github.com/angelmondragon/gatewaysync/pkg/redis"
)

func main() {
	once := flag.Bool("once", false, "run a single sweep and exit")
	httpAddr := flag.String("http-addr", "", "serve health and Prometheus metrics on this address (e.g. :9102)")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "reconcile-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "reconcile-worker"

	logg = logger.New(logger.Options{
		ServiceName: "reconcile-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.ID(),
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.Redis.URL != "" || cfg.Redis.Address != "" {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	} else {
		logg.Warn(ctx, "redis not configured; sweep lock is process-local")
	}

	eng, err := engine.New(cfg, engine.Deps{
		DB:         dbClient.DB(),
		Logger:     logg,
		Redis:      redisClient,
		Registerer: prometheus.DefaultRegisterer,
	})
	if err != nil {
		logg.Error(ctx, "failed to build engine", err)
		os.Exit(1)
	}

	sweep, err := eng.Sweep()
	if err != nil {
		logg.Error(ctx, "failed to build reconcile sweep", err)
		os.Exit(1)
	}

	if *httpAddr != "" {
		checks := map[string]health.Pinger{"db": dbClient}
		if redisClient != nil {
			checks["redis"] = redisClient
		}
		srv := &http.Server{
			Addr: *httpAddr,
			Handler: health.NewRouter(health.Params{
				Config:   cfg,
				Logger:   logg,
				Gatherer: prometheus.DefaultGatherer,
				Checks:   checks,
			}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logg.Error(ctx, "health server stopped", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if *once {
		logg.Info(ctx, "running single reconcile sweep")
		if err := sweep.RunOnce(ctx); err != nil {
			logg.Error(ctx, "reconcile sweep failed", err)
			os.Exit(1)
		}
		return
	}

	logg.Info(ctx, "starting reconcile worker")
	if err := sweep.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "reconcile worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "reconcile worker shutting down gracefully")
}
