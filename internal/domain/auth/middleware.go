package auth

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/crjyouth/libris/internal/config"
	"github.com/crjyouth/libris/internal/domain/session"
	"github.com/crjyouth/libris/internal/domain/user"
	"github.com/crjyouth/libris/internal/utils"
)

const identityKey = "auth_identity"

// Identity is the authenticated principal stored in request locals.
type Identity struct {
	User      *user.User
	SessionID uuid.UUID
}

// Middleware guards routes behind a live session and a matching access
// token.
type Middleware struct {
	sessions   session.Service
	users      user.Service
	tokens     *TokenIssuer
	cookie     *config.CookieConfig
	production bool
}

func NewMiddleware(sessions session.Service, users user.Service, tokens *TokenIssuer, cookie *config.CookieConfig, production bool) *Middleware {
	return &Middleware{
		sessions:   sessions,
		users:      users,
		tokens:     tokens,
		cookie:     cookie,
		production: production,
	}
}

// RequireSession authenticates the request. Both credentials must check
// out: the bearer access token and a live session. A session nearing
// expiry is refreshed in passing; a refresh failure is logged but does
// not fail the request.
func (m *Middleware) RequireSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := m.tokens.VerifyAccessToken(bearerToken(c))
		if err != nil {
			return utils.RequiresLoginResponse(c, "invalid or missing access token")
		}

		rawSession := SessionToken(c, m.cookie)
		sessionID, err := uuid.Parse(rawSession)
		if err != nil {
			return utils.RequiresLoginResponse(c, "invalid or missing session")
		}

		ctx := c.UserContext()
		valid, err := m.sessions.IsValid(ctx, sessionID)
		if err != nil {
			return utils.NewAPIError("SESSION_CHECK_FAILED", "could not verify session", fiber.StatusInternalServerError)
		}
		if !valid {
			return utils.RequiresLoginResponse(c, "session expired or invalidated")
		}

		sess, err := m.sessions.GetByID(ctx, sessionID)
		if err != nil || sess == nil {
			return utils.RequiresLoginResponse(c, "session expired or invalidated")
		}

		u, err := m.users.GetByID(ctx, sess.UserID)
		if err != nil {
			return utils.RequiresLoginResponse(c, "account not found")
		}
		if !u.IsActive {
			return utils.RequiresLoginResponse(c, "account is deactivated")
		}

		// the token must belong to the session's owner
		if claims.Subject != u.ID.String() {
			slog.Warn("token subject does not match session owner",
				"session_id", sessionID,
				"token_subject", claims.Subject,
			)
			return utils.RequiresLoginResponse(c, "credential mismatch")
		}

		if m.sessions.NeedsRefresh(sess, time.Now().UTC()) {
			if ok, err := m.sessions.Refresh(ctx, sessionID); err != nil || !ok {
				slog.Warn("session refresh failed", "session_id", sessionID, "error", err)
			} else if refreshed, err := m.sessions.GetByID(ctx, sessionID); err == nil && refreshed != nil {
				SetSessionCookie(c, m.cookie, sessionID.String(), refreshed.ExpiresAt, m.production)
			}
		}

		c.Locals(identityKey, &Identity{User: u, SessionID: sessionID})
		return c.Next()
	}
}

// RequireAdmin gates a route to admin users. Must run after
// RequireSession.
func (m *Middleware) RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity := GetIdentity(c)
		if identity == nil || !identity.User.IsAdmin {
			return utils.NewAPIError("FORBIDDEN", "admin access required", fiber.StatusForbidden)
		}
		return c.Next()
	}
}

// GetIdentity returns the authenticated principal, or nil outside of
// RequireSession.
func GetIdentity(c *fiber.Ctx) *Identity {
	identity, _ := c.Locals(identityKey).(*Identity)
	return identity
}

func bearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}
