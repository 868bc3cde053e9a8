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

	"github.com/joho/godotenv"
	"github.com/nidhogg/holiday-agent/internal/api"
	"github.com/nidhogg/holiday-agent/internal/command"
	"github.com/nidhogg/holiday-agent/internal/config"
	"github.com/nidhogg/holiday-agent/internal/criteria"
	"github.com/nidhogg/holiday-agent/internal/errtrack"
	"github.com/nidhogg/holiday-agent/internal/gateway"
	"github.com/nidhogg/holiday-agent/internal/notify"
	"github.com/nidhogg/holiday-agent/internal/processor"
	"github.com/nidhogg/holiday-agent/internal/report"
	msgrouter "github.com/nidhogg/holiday-agent/internal/router"
	"github.com/nidhogg/holiday-agent/internal/source"
	"github.com/nidhogg/holiday-agent/internal/task"
	"github.com/nidhogg/holiday-agent/internal/workflow"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultConfigPath = "configs/holiday.json"

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, cfgErr := loadConfig(cfgPath)

	logger := newLogger(cfg.Server.LogLevel)
	defer logger.Sync()

	if cfgErr != nil {
		if cfgPath != "" || !errors.Is(cfgErr, os.ErrNotExist) {
			logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(cfgErr))
		}
		logger.Warn("config file not found, using defaults", zap.String("path", defaultConfigPath))
	}
	logger.Info("Starting holiday agent...", zap.String("version", version))

	// Error tracking
	var tracker task.ErrorReporter
	if cfg.Sentry.DSN != "" {
		t, err := errtrack.New(cfg.Sentry.DSN, cfg.Sentry.Environment, version)
		if err != nil {
			logger.Warn("Sentry unavailable, running without error tracking", zap.Error(err))
		} else {
			tracker = t
			defer t.Flush(2 * time.Second)
		}
	}

	// Offer source
	var src source.Source
	switch cfg.Search.Source {
	case config.SourcePortal:
		browser := source.NewBrowserSearcher(source.BrowserOptions{
			ExecPath:  cfg.Search.Browser.ExecPath,
			UserAgent: cfg.Search.Browser.UserAgent,
			Headless:  cfg.Search.Browser.Headless,
			Timeout:   cfg.Search.Browser.Timeout(),
		}, logger)
		defer browser.Close()
		src = source.NewPortalSearch(browser, source.PortalOptions{
			MaxResults:        cfg.Search.ResultLimit,
			RequestsPerSecond: cfg.Search.RequestsPerSecond,
		}, logger)
	default:
		src = source.NewMock()
	}
	logger.Info("Offer source ready", zap.String("source", src.Name()))

	pipeline := workflow.New(
		criteria.NewBuilder(),
		src,
		processor.New(logger),
		report.NewBuilder(cfg.Search.ReportOffers),
		logger,
	)

	// Chat gateway
	gw := gateway.NewGateway(logger)
	var restAdapter *gateway.RESTAdapter
	if cfg.Gateway.REST.Enabled {
		restAdapter = gateway.NewRESTAdapter(logger)
		gw.Register(restAdapter)
	}
	if cfg.Gateway.Telegram.Enabled {
		gw.Register(gateway.NewTelegramAdapter(cfg.Gateway.Telegram.BotToken, logger))
	}
	if cfg.Gateway.Slack.Enabled {
		gw.Register(gateway.NewSlackAdapter(cfg.Gateway.Slack.BotToken, cfg.Gateway.Slack.AppToken, logger))
	}
	if cfg.Gateway.Discord.Enabled {
		gw.Register(gateway.NewDiscordAdapter(cfg.Gateway.Discord.BotToken, logger))
	}

	// Completion notifiers
	notifiers := notify.Multi{notify.NewChatNotifier(gw, logger)}
	var stream *notify.StreamNotifier
	if cfg.Redis.URL != "" {
		sn, err := notify.NewStreamNotifier(cfg.Redis.URL, cfg.Redis.Stream, logger)
		if err != nil {
			logger.Warn("Redis unavailable, running without completion stream", zap.Error(err))
		} else {
			stream = sn
			notifiers = append(notifiers, sn)
		}
	}

	manager := task.NewManager(pipeline, task.Options{
		Workers:  cfg.Tasks.Workers,
		Timeout:  cfg.Tasks.Timeout(),
		Notifier: notifiers,
		Tracker:  tracker,
	}, logger)

	// Message routing
	var statusURL func(string) string
	if cfg.Server.BaseURL != "" {
		statusURL = cfg.Server.StatusURL
	}
	commands := command.NewRegistry()
	command.RegisterBuiltins(commands, manager, statusURL)
	gw.SetHandler(msgrouter.New(gw, manager, commands, statusURL, logger).Handle)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := gw.ConnectAll(ctx); err != nil {
		logger.Warn("some chat adapters failed to connect", zap.Error(err))
	}
	logger.Info("Gateway ready", zap.Strings("adapters", gw.Adapters()))

	handler := api.NewHandler(manager, gw, restAdapter, cfg.Server.BaseURL, logger)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Holiday agent listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down holiday agent...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		// Running searches finish and notify before the gateway goes away.
		if err := manager.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("task shutdown: %w", err))
		}
		if err := gw.Close(); err != nil {
			errs = append(errs, fmt.Errorf("gateway close: %w", err))
		}
		if stream != nil {
			stream.Close()
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		logger.Error("holiday agent stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Holiday agent stopped")
}

// loadConfig reads path, or the default path when empty. It always
// returns a usable config; on error the defaults are returned with it.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = defaultConfigPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Default(), err
	}
	return cfg, nil
}

func newLogger(level string) *zap.Logger {
	zcfg := zap.NewDevelopmentConfig()
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		zcfg.Level = lvl
	}
	logger, err := zcfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
