package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"bonfire-agent/internal/bootstrap"
	"bonfire-agent/internal/config"
	"bonfire-agent/internal/pkg/logger"
	"bonfire-agent/internal/server"
	"bonfire-agent/internal/tracer"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		var cfgErr *config.ConfigurationError
		if errors.As(err, &cfgErr) {
			color.Red("%v", cfgErr)
			os.Exit(2)
		}
		log.Fatalf("Invalid configuration: %v", err)
	}

	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())

	// 2. Tracer
	shutdownTracer := tracer.InitTracer(cfg, sysLogger)
	defer shutdownTracer(context.Background())

	// 3. Bootstrap Dependencies (Container)
	container, err := bootstrap.NewContainer(cfg, sysLogger)
	if err != nil {
		sysLogger.Error("MAIN", "Failed to bootstrap", map[string]interface{}{"error": err})
		sysLogger.Sync()
		os.Exit(1)
	}
	defer container.Close()

	printBanner(cfg, container.Identity.Address())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Mailbox, websocket hub and HTTP server run until a signal arrives
	srv := server.New(cfg, container)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return container.ConsumerService.Consume(gctx)
	})
	g.Go(func() error {
		container.WebSocketHub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return srv.Run()
	})
	g.Go(func() error {
		<-gctx.Done()
		return srv.Shutdown()
	})

	if err := g.Wait(); err != nil {
		sysLogger.Error("MAIN", "Agent stopped with error", map[string]interface{}{"error": err})
	}
	sysLogger.Info("MAIN", "Agent stopping, waiting for in-flight runs", nil)
}

func printBanner(cfg *config.Config, address string) {
	color.Cyan("Bonfire agent %s", cfg.Agent.Name)
	color.Green("  address:   %s", address)
	color.Green("  subject:   %s", cfg.Agent.Subject)
	color.Green("  bonfire:   %s", cfg.Bonfire.Id)
	color.Green("  transport: %s", cfg.App.Transport)
	color.Yellow("  listening on :%s", cfg.App.Port)
}
