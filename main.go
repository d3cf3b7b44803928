package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"filedrop/internal/api"
	"filedrop/internal/config"
	"filedrop/internal/logger"
	"filedrop/internal/pipeline"
	"filedrop/internal/service/vision"
	"filedrop/internal/store"
)

func main() {
	lg, err := logger.New()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer lg.Sync()

	cfgPath := os.Getenv("FILEDROP_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		lg.Fatal("load config", zap.Error(err))
	}

	provider := cfg.BasicConfig.Provider
	provCfg := cfg.Providers[provider]
	visionSvc, err := vision.NewService(context.Background(), vision.Options{
		Provider: provider,
		Model:    provCfg.Model,
		APIKey:   provCfg.APIKey,
		BaseURL:  provCfg.BaseURL,
	})
	if err != nil {
		lg.Fatal("init vision service", zap.Error(err))
	}

	recordStore := store.New()
	pipe := pipeline.New(recordStore, visionSvc, lg, cfg.BasicConfig.MaxConcurrentAI)
	handlers := api.NewHandler(pipe, recordStore, lg, cfg.BasicConfig.MaxUploadBytes)

	router := gin.Default()
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8090"
	}

	lg.Info("server starting",
		zap.String("addr", addr),
		zap.String("provider", provider))
	if err := router.Run(addr); err != nil {
		lg.Fatal("server stopped", zap.Error(err))
	}
}
