package main

import (
	"context"

	"cryptofolio/config"
	"cryptofolio/internal/dashboard"
	"cryptofolio/logger"

	"go.uber.org/zap"
)

func main() {
	// viper config
	cfg := config.Load()

	// zap logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	// run dashboard app
	app, err := dashboard.New(cfg, log)
	if err != nil {
		log.Fatal("failed to build app", zap.Error(err))
	}
	if err := app.Start(context.Background()); err != nil {
		log.Fatal("app failed to start", zap.Error(err))
	}
	defer app.Stop()

	select {}
}
