package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"autobump/internal/api"
	"autobump/internal/config"
	"autobump/internal/core"
	autobumpmcp "autobump/internal/mcp"
	"autobump/internal/logging"
	"autobump/internal/notify"
	"autobump/internal/store"
)

func main() {
	cfg, err := config.Parse()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format)

	baseCtx := context.Background()
	storeInst, err := store.Open(baseCtx, cfg.StateDir)
	if err != nil {
		logger.Error("open store", "err", err)
		os.Exit(1)
	}
	defer storeInst.DB.Close()

	location := time.Local
	if cfg.UseUTC {
		location = time.UTC
	}

	var notifier core.Notifier = &notify.NoOpNotifier{}
	if cfg.Bark.Enabled {
		bark, err := notify.NewBarkNotifier(cfg.Bark.URL)
		if err != nil {
			logger.Error("configure bark notifier", "err", err)
			os.Exit(1)
		}
		notifier = bark
	}

	bumper := core.NewBumper(storeInst, cfg.Scheduling(), logger)
	runner := core.NewRunner(bumper, storeInst, notifier, logger, location)

	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	if err := runner.Start(ctx); err != nil {
		logger.Error("start bump runner", "err", err)
		os.Exit(1)
	}

	switch cfg.Mode {
	case "http":
		runHTTPMode(cfg, storeInst, bumper, runner, logger)
	case "mcp":
		runMCPMode(storeInst, bumper, runner, logger, cancel)
	case "both":
		runBothMode(cfg, storeInst, bumper, runner, logger)
	}
}

// runHTTPMode starts only the HTTP server.
func runHTTPMode(cfg *config.Config, storeInst *store.Store, bumper *core.Bumper, runner *core.Runner, logger *slog.Logger) {
	server, err := api.NewServer(cfg.Server.Addr, cfg.Server.AuthToken, storeInst, bumper, runner, logger)
	if err != nil {
		logger.Error("create server", "err", err)
		os.Exit(1)
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Info("received signal", "signal", sig.String())
	case err := <-serverErr:
		logger.Error("server error", "err", err)
	}

	shutdown(server, runner, cfg.ShutdownGrace, logger)
}

// runMCPMode starts only the MCP server.
func runMCPMode(storeInst *store.Store, bumper *core.Bumper, runner *core.Runner, logger *slog.Logger, cancel context.CancelFunc) {
	mcpServer := autobumpmcp.NewMCPServer(storeInst, bumper, logger)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigs
		logger.Info("received signal, shutting down...")
		runner.Stop()
		cancel()
	}()

	if err := mcpServer.Run(); err != nil {
		logger.Error("mcp server error", "err", err)
		os.Exit(1)
	}
}

// runBothMode starts both HTTP and MCP servers.
func runBothMode(cfg *config.Config, storeInst *store.Store, bumper *core.Bumper, runner *core.Runner, logger *slog.Logger) {
	mcpServer := autobumpmcp.NewMCPServer(storeInst, bumper, logger)
	mcpErr := make(chan error, 1)
	go func() {
		if err := mcpServer.Run(); err != nil {
			mcpErr <- err
		}
	}()

	server, err := api.NewServer(cfg.Server.Addr, cfg.Server.AuthToken, storeInst, bumper, runner, logger)
	if err != nil {
		logger.Error("create server", "err", err)
		os.Exit(1)
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Info("received signal", "signal", sig.String())
	case err := <-serverErr:
		logger.Error("server error", "err", err)
	case err := <-mcpErr:
		logger.Error("mcp server error", "err", err)
	}

	shutdown(server, runner, cfg.ShutdownGrace, logger)
	logger.Info("shutdown complete")
}

func shutdown(server *api.Server, runner *core.Runner, grace time.Duration, logger *slog.Logger) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), grace)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "err", err)
	}

	stopCtx := runner.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(grace):
		logger.Warn("bump runner stop timed out")
	}
}
