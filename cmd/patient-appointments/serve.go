package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	patientapp "github.com/vinodyk/patient-appointments"
	tracing "github.com/vinodyk/patient-appointments/internal/observability"
	"github.com/vinodyk/patient-appointments/internal/reasoner"
	"github.com/vinodyk/patient-appointments/internal/server"
	"github.com/vinodyk/patient-appointments/pkg/config"
	"github.com/vinodyk/patient-appointments/pkg/logging"
	"github.com/vinodyk/patient-appointments/pkg/observability"
	"github.com/vinodyk/patient-appointments/pkg/security"
	"github.com/vinodyk/patient-appointments/pkg/session"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server and the observability server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the YAML config file")
	return cmd
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	log := logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stdout)
	log.Info("starting patient-appointments", "version", Version)

	observability.InitMetrics()
	if err := tracing.InitFromEnv(); err != nil {
		log.Warn("tracing init failed", "error", err)
	}

	backend, err := buildBackend(cfg)
	if err != nil {
		return err
	}
	sessions := session.NewManager(backend, log)

	completer, err := buildReasoner(ctx, cfg)
	if err != nil {
		return err
	}
	if completer != nil {
		log.Info("reasoner configured", "provider", cfg.Reasoner.Provider, "model", cfg.Reasoner.Model)
	} else {
		log.Info("no reasoner configured, using rule templates only")
	}

	engine := patientapp.New(patientapp.Options{
		Sessions: sessions,
		Reasoner: completer,
		Screen:   security.NewScreen(cfg.Security.BlockThreshold),
		Log:      log,
	})

	health := observability.InitHealthChecker()
	health.RegisterCheck(observability.SessionBackendCheck(sessions.Ping))
	health.RegisterCheck(observability.ReasonerCheck(func(context.Context) error {
		if completer == nil {
			return errors.New("no provider configured")
		}
		return nil
	}))

	if maxIdle := cfg.SessionMaxIdle(); maxIdle > 0 {
		sweeper, err := session.NewSweeper(sessions, cfg.Session.SweepSchedule, maxIdle, log)
		if err != nil {
			return err
		}
		sweeper.Start()
		defer sweeper.Stop()
	}

	api := server.New(engine, security.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst), log)
	obs := observability.NewServer(cfg.Server.ObservabilityPort)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return api.Start(cfg.Server.Port)
	})
	g.Go(func() error {
		return obs.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := api.Shutdown(drainCtx); err != nil {
			log.Error("api shutdown failed", "error", err)
		}
		if err := obs.Shutdown(drainCtx); err != nil {
			log.Error("observability shutdown failed", "error", err)
		}
		return nil
	})

	err = g.Wait()
	if cerr := engine.Close(); cerr != nil {
		log.Error("engine close failed", "error", cerr)
	}
	if terr := tracing.Shutdown(context.Background()); terr != nil {
		log.Error("tracing shutdown failed", "error", terr)
	}
	log.Info("stopped")
	return err
}

func buildBackend(cfg *config.Config) (session.StorageBackend, error) {
	if cfg.Session.Backend == "redis" {
		return session.NewRedisBackend(session.RedisConfig{
			Addr:       cfg.Session.RedisAddr,
			Password:   cfg.Session.RedisPassword,
			DB:         cfg.Session.RedisDB,
			Prefix:     cfg.Session.KeyPrefix,
			SessionTTL: cfg.SessionTTL(),
		})
	}
	return session.NewMemoryBackend(), nil
}

// buildReasoner returns nil when no provider is configured; the engine then
// answers from rule templates alone.
func buildReasoner(ctx context.Context, cfg *config.Config) (reasoner.Completer, error) {
	switch cfg.Reasoner.Provider {
	case "openai":
		inner := reasoner.NewOpenAICompleter(cfg.Reasoner.APIKey, cfg.Reasoner.Model)
		return reasoner.NewReliable(inner, "openai", cfg.ReasonerTimeout()), nil
	case "vertex":
		inner, err := reasoner.NewVertexCompleter(ctx, cfg.Reasoner.Project, cfg.Reasoner.Location, cfg.Reasoner.Model)
		if err != nil {
			return nil, err
		}
		return reasoner.NewReliable(inner, "vertex", cfg.ReasonerTimeout()), nil
	default:
		return nil, nil
	}
}
