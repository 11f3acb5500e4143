package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/channelcheck/internal/config"
	"github.com/hamed0406/channelcheck/internal/dispatcharr"
	"github.com/hamed0406/channelcheck/internal/evaluator"
	"github.com/hamed0406/channelcheck/internal/httpapi"
	apimw "github.com/hamed0406/channelcheck/internal/httpapi/middleware"
	"github.com/hamed0406/channelcheck/internal/logging"
	"github.com/hamed0406/channelcheck/internal/metrics"
	"github.com/hamed0406/channelcheck/internal/notify"
	"github.com/hamed0406/channelcheck/internal/probe"
	"github.com/hamed0406/channelcheck/internal/repo"
	"github.com/hamed0406/channelcheck/internal/repo/memory"
	"github.com/hamed0406/channelcheck/internal/repo/postgres"
	"github.com/hamed0406/channelcheck/internal/resolver"
	"github.com/hamed0406/channelcheck/internal/scheduler"
	"github.com/hamed0406/channelcheck/internal/sink"
	"github.com/hamed0406/channelcheck/internal/snapshot"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.FromEnv()
	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("api_exit", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	if cfg.DispatcharrURL == "" {
		return errors.New("DISPATCHARR_URL is required")
	}
	m := metrics.New()

	client := dispatcharr.New(cfg.DispatcharrURL, cfg.DispatcharrAPIKey, cfg.HTTPTimeout, logger)
	if client.APIKey == "" && cfg.DispatcharrUsername != "" {
		token, err := client.Token(ctx, cfg.DispatcharrUsername, cfg.DispatcharrPassword)
		if err != nil {
			return err
		}
		client.APIKey = token
		logger.Info("token_acquired", zap.String("username", cfg.DispatcharrUsername))
	}

	prober := probe.NewFFProbe(cfg.FFProbePath, cfg.ProbeTimeout, logger)
	prober.Observer = m
	ev := evaluator.New(prober, logger)
	ev.DNS = probe.NewDNSClassifier()

	runner := scheduler.NewRunner(resolver.New(client), ev, logger)
	runner.Metrics = m
	if cfg.CaptureImages {
		runner.Snapshot = snapshot.New(cfg.FFmpegPath, cfg.CaptureDir, logger)
	}

	var (
		store  repo.VerdictStore
		alerts repo.AlertStore
	)
	if cfg.DatabaseURL != "" {
		pg, err := postgres.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return err
		}
		defer pg.Close()
		if err := pg.Migrate(ctx); err != nil {
			return err
		}
		store, alerts = pg, pg
		logger.Info("store_postgres")
	} else {
		mem := memory.New()
		store, alerts = mem, mem
		logger.Info("store_memory")
	}

	table := sink.NewTable()
	monitor := scheduler.NewMonitor(logger, client, runner, table, store, cfg.CheckInterval, cfg.MaxWorkers)
	defer monitor.Close()

	notifiers := notify.Multi{notify.Log{Logger: logger}}
	if slack := notify.NewSlack(cfg.SlackWebhookURL); slack != nil {
		notifiers = append(notifiers, slack)
	}
	alerter := scheduler.NewAlerter(store, alerts, notifiers, scheduler.AlerterConfig{
		AlertOnRecovery: cfg.AlertOnRecovery,
		Cooldown:        cfg.AlertCooldown,
		PollInterval:    cfg.AlertPoll,
	}, logger)

	api := httpapi.NewServer(logger, table, monitor, store, client, m)
	keys := apimw.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(keys, cfg.AllowedOrigins, cfg.PublicRPM, cfg.AdminRPM),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		monitor.Run(gctx)
		return nil
	})
	g.Go(func() error {
		if err := alerter.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("api_listen", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("api_shutdown")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
