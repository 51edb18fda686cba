// Command session-cleanup runs one session cleanup sweep, for cron
// deployments that do not rely on the in-process schedule. With -summary
// it emits the daily rollup instead and resets the report buffer.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/crjyouth/libris/internal/cache"
	"github.com/crjyouth/libris/internal/config"
	"github.com/crjyouth/libris/internal/database"
	"github.com/crjyouth/libris/internal/domain/session"
)

func main() {
	summary := flag.Bool("summary", false, "emit the daily rollup and reset the report buffer")
	flag.Parse()

	_ = godotenv.Load()

	env, err := config.LoadEnv()
	if err != nil {
		fatal("failed to load environment", err)
	}
	cfg, err := config.Load(env.ConfigPath)
	if err != nil {
		fatal("failed to load config", err)
	}

	if err := database.ConnectDB(&cfg.Database); err != nil {
		fatal("failed to connect to database", err)
	}
	if err := database.VerifyTimezone(database.DB); err != nil {
		fatal("timezone check failed", err)
	}
	if err := cache.ConnectRedis(&cfg.Redis); err != nil {
		fatal("failed to connect to redis", err)
	}

	repo := session.NewRepository(database.DB)
	store := cache.NewCleanupMetricsStore(cache.RedisClient)
	cleaner := session.NewCleaner(repo, store, cfg.Session.CleanupRetentionDays)

	ctx := context.Background()

	var out any
	if *summary {
		rollup, err := cleaner.DailySummary(ctx)
		if err != nil {
			fatal("daily summary failed", err)
		}
		out = rollup
	} else {
		out = cleaner.Run(ctx)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fatal("failed to encode output", err)
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
