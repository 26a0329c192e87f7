package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"shaderland/backend/api"
	"shaderland/backend/shared"
)

func main() {
	cfg, err := shared.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := shared.NewLogger(cfg.Debug)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	store, closeStore, err := shared.NewShaderStore(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}
	defer closeStore()

	logger.Info("shaders function starting",
		zap.String("store", cfg.StoreDriver),
		zap.String("table", cfg.TableName),
		zap.String("default_model", cfg.DefaultModel))

	handler := api.NewHandler(shared.NewGenerator(cfg, store, logger), store, logger)
	lambda.Start(handler.Handle)
}
