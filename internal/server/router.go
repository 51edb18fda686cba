package server

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/crjyouth/libris/internal/cache"
	"github.com/crjyouth/libris/internal/config"
	"github.com/crjyouth/libris/internal/database"
	"github.com/crjyouth/libris/internal/domain/auth"
	"github.com/crjyouth/libris/internal/domain/book"
	"github.com/crjyouth/libris/internal/domain/session"
	"github.com/crjyouth/libris/internal/domain/transaction"
	"github.com/crjyouth/libris/internal/domain/user"
	"github.com/crjyouth/libris/internal/mailer"
	"github.com/crjyouth/libris/internal/utils"
)

// SetupRoutes wires repositories, services and handlers and mounts the
// API. Returns the session cleaner for the caller to schedule.
func SetupRoutes(app *fiber.App, cfg *config.Config, env *config.Environment) (*session.Cleaner, error) {
	secret, err := jwtSecret(env)
	if err != nil {
		return nil, err
	}

	txManager := database.NewTransactionManager(database.DB)

	userRepo := user.NewRepository(database.DB)
	userService := user.NewService(userRepo)

	sessionRepo := session.NewRepository(database.DB)
	sessionService := session.NewService(sessionRepo, txManager, session.Options{
		TTL:                cfg.Session.TTL.Std(),
		RefreshThreshold:   cfg.Session.RefreshThreshold.Std(),
		MaxSessionsPerUser: cfg.Session.MaxSessionsPerUser,
		RetryBackoff:       durations(cfg.Session.RetryBackoff),
		MaxRetries:         cfg.Session.MaxRetries,
		QueryTimeout:       cfg.Database.QueryTimeout.Std(),
	})

	metricsStore := cache.NewCleanupMetricsStore(cache.RedisClient)
	cleaner := session.NewCleaner(sessionRepo, metricsStore, cfg.Session.CleanupRetentionDays)

	tokens := auth.NewTokenIssuer([]byte(secret), cfg.App.Name, cfg.Auth.AccessTokenTTL.Std(), cfg.Auth.ResetTokenTTL.Std())
	nonces := cache.NewNonceStore(cache.RedisClient)
	mail := mailer.New(&cfg.SMTP)

	authHandler := auth.NewHandler(userService, sessionService, tokens, nonces, mail, &cfg.Session.Cookie, env.IsProduction())
	guard := auth.NewMiddleware(sessionService, userService, tokens, &cfg.Session.Cookie, env.IsProduction())

	bookService := book.NewService(book.NewRepository(database.DB))
	bookHandler := book.NewHandler(bookService)

	ticketService := transaction.NewService(transaction.NewRepository(database.DB), bookService, userService, txManager)
	ticketHandler := transaction.NewHandler(ticketService)

	app.Get("/health", func(c *fiber.Ctx) error {
		return utils.SuccessResponse(c, fiber.StatusOK, "ok", fiber.Map{"app": cfg.App.Name, "version": cfg.App.Version})
	})

	api := app.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Get("/nonce", authHandler.Nonce)
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)
	authGroup.Post("/logout", authHandler.Logout)
	authGroup.Post("/logout-all", authHandler.LogoutAll)
	authGroup.Post("/password-reset", authHandler.RequestPasswordReset)
	authGroup.Post("/password-reset/confirm", authHandler.ConfirmPasswordReset)

	sessionGroup := api.Group("/session", guard.RequireSession())
	sessionGroup.Get("/", authHandler.SessionInfo)
	sessionGroup.Post("/refresh", authHandler.RefreshSession)
	sessionGroup.Get("/list", authHandler.ListSessions)
	sessionGroup.Post("/password", authHandler.ChangePassword)

	books := api.Group("/books", guard.RequireSession())
	books.Get("/", bookHandler.List)
	books.Get("/:bookID", bookHandler.Get)
	books.Get("/:bookID/copies", bookHandler.ListCopies)
	books.Post("/", guard.RequireAdmin(), bookHandler.Create)
	books.Patch("/:bookID", guard.RequireAdmin(), bookHandler.Update)
	books.Delete("/:bookID", guard.RequireAdmin(), bookHandler.Delete)
	books.Post("/:bookID/copies", guard.RequireAdmin(), bookHandler.AddCopy)

	tickets := api.Group("/tickets", guard.RequireSession())
	tickets.Post("/", ticketHandler.Create)
	tickets.Get("/", ticketHandler.ListMine)
	tickets.Get("/pending", guard.RequireAdmin(), ticketHandler.ListPending)
	tickets.Get("/:ticketID", ticketHandler.Get)
	tickets.Post("/:ticketID/approve", guard.RequireAdmin(), ticketHandler.Approve)
	tickets.Post("/:ticketID/reject", guard.RequireAdmin(), ticketHandler.Reject)
	tickets.Post("/:ticketID/open", guard.RequireAdmin(), ticketHandler.Open)
	tickets.Post("/:ticketID/close", guard.RequireAdmin(), ticketHandler.Close)
	tickets.Post("/:ticketID/extend", ticketHandler.Extend)

	return cleaner, nil
}

// jwtSecret resolves the signing secret. Production refuses to start
// without one; development generates a throwaway and warns.
func jwtSecret(env *config.Environment) (string, error) {
	if env.JWTSecret != "" {
		return env.JWTSecret, nil
	}
	if env.IsProduction() {
		return "", errors.New("JWT_SECRET_KEY must be set in production")
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	secret := hex.EncodeToString(buf)
	slog.Warn("JWT_SECRET_KEY not set, using a generated secret; tokens will not survive restarts")
	return secret, nil
}

func durations(in []config.Duration) []time.Duration {
	out := make([]time.Duration, len(in))
	for i, d := range in {
		out[i] = d.Std()
	}
	return out
}
