package main

import (
	"log"
	"os"

	"github.com/amankumarsingh77/dubbing-pipeline/internal/config"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/server"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/wiring"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/logger"
)

func main() {
	log.Println("Starting server")
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
	appLogger.Infof("AppVersion: %s, LogLevel: %s, Mode: %s", cfg.Server.AppVersion, cfg.Logger.Level, cfg.Server.Mode)

	deps, err := wiring.Build(cfg, appLogger)
	if err != nil {
		appLogger.Fatalf("could not build dependencies: %s", err)
	}
	defer deps.Close()
	appLogger.Infof("ledger: %s, storage: %s, environment: %s", cfg.Ledger.Driver, cfg.Storage.Driver, cfg.Pipeline.DefaultEnvironment)

	s := server.NewServer(cfg, deps.UseCase, appLogger)
	if err = s.Run(); err != nil {
		appLogger.Errorf("could not start server: %s", err)
	}
}
