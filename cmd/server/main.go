package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kdimtricp/listenlog/internal/api"
	"github.com/kdimtricp/listenlog/internal/config"
	"github.com/kdimtricp/listenlog/internal/database"
	"github.com/kdimtricp/listenlog/internal/model"
	"github.com/kdimtricp/listenlog/internal/observe"
	"github.com/kdimtricp/listenlog/internal/session"
	"github.com/kdimtricp/listenlog/internal/storage"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slogLevel(cfg.Server.LogLevel),
	})))

	if err := run(cfg); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Warn("telemetry shutdown", "err", err)
		}
	}()

	dbConfig := database.Config{
		Type:       cfg.Database.Type,
		Host:       cfg.Database.Host,
		Port:       cfg.Database.Port,
		User:       cfg.Database.User,
		Password:   cfg.Database.Password,
		Name:       cfg.Database.Name,
		SQLitePath: cfg.Database.Path,
	}

	db, err := database.NewDB(dbConfig)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("running database migrations", "path", cfg.Database.MigrationsPath)
	if err := db.RunMigrations(cfg.Database.MigrationsPath); err != nil {
		return err
	}

	var exports storage.Storage
	if cfg.Storage.ArchiveExports {
		localStorage, err := storage.NewLocalStorage(cfg.Storage.ExportDir)
		if err != nil {
			return err
		}
		exports = localStorage
	}

	metrics := observe.DefaultMetrics()
	repo := database.NewModelRepository(db)

	manager := session.NewManager(
		session.Options{
			RecentSize:      cfg.Detections.RecentSize,
			TimestampLayout: cfg.Detections.TimestampLayout,
		},
		model.NewLoader(cfg.Model.FetchTimeout),
		repo,
		metrics,
	)

	app := &api.App{
		Sessions: manager,
		Metrics:  metrics,
		Catalog:  repo,
		Storage:  exports,
		DB:       db,
		ListenOptions: model.ListenOptions{
			ProbabilityThreshold:            cfg.Model.ProbabilityThreshold,
			OverlapFactor:                   cfg.Model.OverlapFactor,
			InvokeCallbackOnNoiseAndUnknown: cfg.Model.InvokeCallbackOnNoiseAndUnknown,
		},
		DefaultModelURL: cfg.Model.DefaultURL,
		RecentModels:    cfg.Model.RecentLimit,
	}

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           api.NewRouter(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("server starting",
		"addr", cfg.Server.ListenAddr,
		"db_type", cfg.Database.Type,
		"archive_exports", cfg.Storage.ArchiveExports,
		"session_ttl", cfg.Server.SessionTTL,
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(pruneInterval(cfg.Server.SessionTTL))
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				manager.Prune(gctx, cfg.Server.SessionTTL)
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// pruneInterval sweeps a few times per TTL, but no more than once a minute.
func pruneInterval(ttl time.Duration) time.Duration {
	if d := ttl / 4; d > time.Minute {
		return d
	}
	return time.Minute
}

func slogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
