package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/crjyouth/libris/internal/config"
)

// SetSessionCookie issues the session cookie. The cookie expiry mirrors
// the session expiry so the browser drops it when the session dies.
func SetSessionCookie(c *fiber.Ctx, cfg *config.CookieConfig, sessionID string, expiresAt time.Time, production bool) {
	c.Cookie(&fiber.Cookie{
		Name:     cfg.Name,
		Value:    sessionID,
		Path:     cfg.Path,
		Domain:   cfg.Domain,
		Expires:  expiresAt,
		HTTPOnly: true,
		Secure:   cfg.Secure || production,
		SameSite: cfg.SameSite,
	})
}

// ClearSessionCookie expires the session cookie immediately.
func ClearSessionCookie(c *fiber.Ctx, cfg *config.CookieConfig, production bool) {
	c.Cookie(&fiber.Cookie{
		Name:     cfg.Name,
		Value:    "",
		Path:     cfg.Path,
		Domain:   cfg.Domain,
		Expires:  time.Now().UTC().Add(-time.Hour),
		HTTPOnly: true,
		Secure:   cfg.Secure || production,
		SameSite: cfg.SameSite,
	})
}

// SessionToken reads the session id from the request: cookie first,
// header fallback for non-browser clients.
func SessionToken(c *fiber.Ctx, cfg *config.CookieConfig) string {
	if token := c.Cookies(cfg.Name); token != "" {
		return token
	}
	if token := c.Get("X-Session-ID"); token != "" {
		return token
	}
	return c.Get("Session-ID")
}
