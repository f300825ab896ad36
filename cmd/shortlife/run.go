package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sifan077/ShortLife/config"
	"github.com/sifan077/ShortLife/internal/app/repository"
	"github.com/sifan077/ShortLife/internal/app/service"
	"github.com/sifan077/ShortLife/internal/app/util"
	"github.com/sifan077/ShortLife/internal/infra/logger"
	infraprom "github.com/sifan077/ShortLife/internal/infra/prometheus"
	"github.com/sifan077/ShortLife/internal/shell"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

func runShell(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}

	log, err := logger.Init(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	log.Info("Configuration loaded successfully",
		zap.String("base_url", cfg.Links.BaseURL),
		zap.Duration("default_max_lifetime", cfg.Links.DefaultMaxLifetime),
		zap.Int("default_max_access_limit", cfg.Links.DefaultMaxAccessLimit),
		zap.String("limit_policy", cfg.Links.LimitPolicy),
		zap.String("lifetime_policy", cfg.Links.LifetimePolicy),
		zap.Bool("janitor_enabled", cfg.Janitor.Enabled),
		zap.Duration("janitor_interval", cfg.Janitor.Interval),
	)

	reg := prom.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := infraprom.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	links := repository.NewLinkRepository()
	if err := metrics.TrackLive(links.Len); err != nil {
		return fmt.Errorf("register live links gauge: %w", err)
	}

	settings, err := service.LinkSettingsFromConfig(cfg.Links)
	if err != nil {
		return fmt.Errorf("link settings: %w", err)
	}
	linkService := service.NewLinkService(service.LinkServiceDeps{
		Logger:   log,
		Links:    links,
		Tokens:   util.NewTokenGenerator(),
		Guard:    util.NewReissueGuard(cfg.Links.ReissueGuardCapacity, cfg.Links.ReissueGuardFPRate),
		Metrics:  metrics,
		Settings: settings,
	})
	userService := service.NewUserService(log, repository.NewUserRepository())

	if cfg.Janitor.Enabled {
		janitor := service.NewLinkJanitor(service.JanitorDeps{
			Logger:   log,
			Links:    links,
			Metrics:  metrics,
			Interval: cfg.Janitor.Interval,
		})
		janitor.Start(ctx)
		defer janitor.Stop()
	} else {
		log.Info("Link janitor disabled; dead links are removed only when touched")
	}

	if cfg.Prometheus.Enabled {
		promServer := infraprom.NewServer(cfg.Prometheus, reg)
		go func() {
			log.Info("Starting Prometheus metrics server", zap.Int("port", cfg.Prometheus.Port))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := promServer.Shutdown(shutdownCtx); err != nil {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		}()
	}

	sh := shell.New(shell.Deps{
		Logger:      log,
		Links:       linkService,
		Users:       userService,
		Opener:      shell.BrowserOpener{},
		Config:      cfg.Shell,
		In:          cmd.InOrStdin(),
		Out:         cmd.OutOrStdout(),
		Interactive: shell.StdinIsTerminal(),
	})

	// The shell blocks on input, so a signal must not wait for it to return.
	done := make(chan error, 1)
	go func() { done <- sh.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("shell: %w", err)
		}
	case <-ctx.Done():
		log.Info("Shutting down", zap.Error(context.Cause(ctx)))
	}
	return nil
}
