package main

import (
	"context"
	"flag"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/app"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/config"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/logger"
)

func main() {
	configPath := flag.String("config", os.Getenv("COLLAB_CONFIG"), "path to a YAML config file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zapLogger, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zapLogger.Sync()

	application, err := app.New(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("init app failed", zap.Error(err))
	}

	if err := application.Run(ctx); err != nil {
		zapLogger.Fatal("app stopped", zap.Error(err))
	}
}
