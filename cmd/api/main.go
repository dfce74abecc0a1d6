package main

import (
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"outcomeeval/internal/dashboard"
	"outcomeeval/pkg/utils"
)

func main() {
	_ = godotenv.Load()
	logger := utils.Logger()
	defer logger.Sync()

	runsDir := os.Getenv("RUNS_DIR")
	if runsDir == "" {
		runsDir = "results"
	}
	srv := dashboard.New(runsDir, os.Getenv("API_KEY"), logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	logger.Info("serving evaluation runs", zap.String("runs_dir", runsDir), zap.String("port", port), zap.Bool("api_key", srv.APIKey != ""))
	if err := srv.Router().Run(":" + port); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
