package server

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstorage "github.com/gofiber/storage/redis/v3"

	"github.com/crjyouth/libris/internal/cache"
	"github.com/crjyouth/libris/internal/config"
	"github.com/crjyouth/libris/internal/database"
	"github.com/crjyouth/libris/internal/migrations"
	"github.com/crjyouth/libris/internal/utils"
)

// Start wires up the application and blocks serving HTTP.
func Start(cfg *config.Config, env *config.Environment) error {
	initLogger(cfg.Logging.Level)

	if err := database.ConnectDB(&cfg.Database); err != nil {
		return err
	}
	if err := database.VerifyTimezone(database.DB); err != nil {
		// expiry math is wrong on any other timezone, refuse to serve
		return err
	}
	if err := cache.ConnectRedis(&cfg.Redis); err != nil {
		return err
	}
	if err := migrations.RunMigrations(&cfg.Database); err != nil {
		return err
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: errorHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	})

	app.Use(helmet.New())
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.Server.RateLimit.Max,
		Expiration: time.Duration(cfg.Server.RateLimit.Expiration) * time.Second,
		Storage: redisstorage.New(redisstorage.Config{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			Database: cfg.Redis.DB,
		}),
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.Server.AllowedOrigins, ","),
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Device-ID, X-Session-ID",
	}))

	cleaner, err := SetupRoutes(app, cfg, env)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cleaner.RunPeriodic(ctx, cfg.Session.CleanupInterval.Std())

	slog.Info("server starting", "address", cfg.Server.Address(), "env", env.Environment)
	return app.Listen(cfg.Server.Address())
}

func initLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
}

func errorHandler(c *fiber.Ctx, err error) error {
	var apiErr *utils.APIError
	if errors.As(err, &apiErr) {
		return utils.APIErrorResponse(c, apiErr)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return utils.ErrorResponse(c, fiberErr.Code, "HTTP_ERROR", fiberErr.Message)
	}

	slog.Error("unhandled error", "path", c.Path(), "error", err)
	return utils.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "something went wrong")
}
