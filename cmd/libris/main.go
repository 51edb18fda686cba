package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/crjyouth/libris/internal/config"
	"github.com/crjyouth/libris/internal/server"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	env, err := config.LoadEnv()
	if err != nil {
		slog.Error("failed to load environment", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load(env.ConfigPath)
	if err != nil {
		slog.Error("failed to load config", "path", env.ConfigPath, "error", err)
		os.Exit(1)
	}

	if err := server.Start(cfg, env); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}
