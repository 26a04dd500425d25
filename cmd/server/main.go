package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/AgentOS/webview/internal/config"
	"github.com/GriffinCanCode/AgentOS/webview/internal/engine/headless"
	"github.com/GriffinCanCode/AgentOS/webview/internal/logging"
	"github.com/GriffinCanCode/AgentOS/webview/internal/monitoring"
	"github.com/GriffinCanCode/AgentOS/webview/internal/scriptrunner"
	"github.com/GriffinCanCode/AgentOS/webview/internal/server"
	"github.com/GriffinCanCode/AgentOS/webview/internal/uithread"
	"github.com/GriffinCanCode/AgentOS/webview/internal/webview"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	port := flag.String("port", "", "Server port (overrides config)")
	dev := flag.Bool("dev", false, "Development mode (debug level, console logs)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}

	logCfg := logging.DefaultConfig()
	if cfg.Logging.Development {
		logCfg = logging.DevelopmentConfig()
	}
	logCfg.Level = cfg.Logging.Level

	logger, err := logging.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	if err := run(cfg, logger); err != nil {
		logger.Error("Server exited with error", zap.Error(err))
		logger.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := monitoring.NewMetrics()
	loop := uithread.New(logger.Component("loop"))

	eng := headless.New(loop, headless.Config{
		Script: scriptrunner.Config{Timeout: cfg.Script.Timeout, EnableConsole: cfg.Logging.Development},
	}, logger.Component("engine")).WithMetrics(metrics)

	manager := webview.NewManager(loop, eng, cfg.Webview.MaxWebviews, logger.Component("webview")).
		WithMetrics(metrics)

	srv := server.New(server.Deps{
		Config:  cfg,
		Manager: manager,
		Metrics: metrics,
		Logger:  logger.Component("http"),
	})

	logger.Info("Starting webview bridge",
		zap.String("addr", cfg.Server.Addr()),
		zap.Int("max_webviews", cfg.Webview.MaxWebviews),
	)

	g, gctx := errgroup.WithContext(ctx)

	// The loop outlives the HTTP server so webviews can close cleanly.
	g.Go(func() error {
		if err := loop.Run(context.Background()); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		defer loop.Stop()

		logger.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := manager.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Webviews did not close cleanly", zap.Error(err))
		}
		if err := eng.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("engine shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
