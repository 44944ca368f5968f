package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/amankumarsingh77/dubbing-pipeline/internal/config"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/wiring"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/worker"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/logger"
)

func main() {
	configFile := os.Getenv("CONFIG_PATH")
	if configFile == "" {
		configFile = "config.yml"
	}
	cfgFile, err := config.LoadConfig(configFile)
	if err != nil {
		log.Fatalf("loadConfig: %v", err)
	}
	cfg, err := config.ParseConfig(cfgFile)
	if err != nil {
		log.Fatalf("parseConfig: %v", err)
	}
	appLogger := logger.NewApiLogger(cfg)
	appLogger.InitLogger()
	appLogger.Infof("AppVersion: %s, LogLevel: %s, Trigger: %s", cfg.Server.AppVersion, cfg.Logger.Level, cfg.Trigger.Source)

	deps, err := wiring.Build(cfg, appLogger)
	if err != nil {
		appLogger.Fatalf("could not build dependencies: %s", err)
	}
	defer deps.Close()

	source, err := newSource(cfg, deps)
	if err != nil {
		appLogger.Fatalf("could not open trigger source: %s", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := worker.NewWorker(cfg, appLogger, source, deps.UseCase)
	w.Start(ctx)
	<-ctx.Done()
	appLogger.Info("Shutting down...")
	if err := w.Wait(); err != nil {
		appLogger.Errorf("failed to close trigger source: %s", err)
	}
}

func newSource(cfg *config.Config, deps *wiring.Deps) (worker.Source, error) {
	if cfg.Trigger.Source == "nats" {
		nc, _, err := deps.Nats()
		if err != nil {
			return nil, err
		}
		return worker.NewNatsSource(nc, cfg.Nats.Subject, cfg.Nats.QueueGroup)
	}
	client, err := deps.Redis()
	if err != nil {
		return nil, err
	}
	return worker.NewRedisSource(client, cfg.Redis.JobQueueKey), nil
}
