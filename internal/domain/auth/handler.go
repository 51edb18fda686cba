package auth

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/crjyouth/libris/internal/cache"
	"github.com/crjyouth/libris/internal/config"
	"github.com/crjyouth/libris/internal/domain/session"
	"github.com/crjyouth/libris/internal/domain/user"
	"github.com/crjyouth/libris/internal/mailer"
	"github.com/crjyouth/libris/internal/utils"
)

// Handler exposes the authentication endpoints.
type Handler struct {
	users      user.Service
	sessions   session.Service
	tokens     *TokenIssuer
	nonces     *cache.NonceStore
	mail       mailer.Mailer
	cookie     *config.CookieConfig
	production bool
}

func NewHandler(
	users user.Service,
	sessions session.Service,
	tokens *TokenIssuer,
	nonces *cache.NonceStore,
	mail mailer.Mailer,
	cookie *config.CookieConfig,
	production bool,
) *Handler {
	return &Handler{
		users:      users,
		sessions:   sessions,
		tokens:     tokens,
		nonces:     nonces,
		mail:       mail,
		cookie:     cookie,
		production: production,
	}
}

type registerRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Nonce    string `json:"nonce"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type resetRequest struct {
	Email string `json:"email"`
}

type resetConfirmRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// Nonce issues a single-use login nonce.
func (h *Handler) Nonce(c *fiber.Ctx) error {
	nonce, err := h.nonces.Issue(c.UserContext())
	if err != nil {
		slog.Error("failed to issue nonce", "error", err)
		return utils.NewAPIError("NONCE_FAILED", "could not issue nonce", fiber.StatusInternalServerError)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "nonce issued", fiber.Map{"nonce": nonce})
}

// Register creates a new user account.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.NewAPIError("INVALID_BODY", "invalid request body", fiber.StatusBadRequest)
	}
	if req.Email == "" || req.Password == "" || req.FirstName == "" {
		return utils.NewAPIError("MISSING_FIELDS", "first_name, email and password are required", fiber.StatusBadRequest)
	}

	u, err := h.users.Register(c.UserContext(), user.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if errors.Is(err, user.ErrEmailExists) {
		return utils.NewAPIError("EMAIL_EXISTS", "email already registered", fiber.StatusConflict)
	}
	if err != nil {
		slog.Error("registration failed", "error", err)
		return utils.NewAPIError("REGISTRATION_FAILED", "could not register user", fiber.StatusInternalServerError)
	}

	return utils.SuccessResponse(c, fiber.StatusCreated, "user registered", fiber.Map{
		"user_id": u.UserID,
		"email":   u.Email,
	})
}

// Login authenticates a user and opens a device session.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.NewAPIError("INVALID_BODY", "invalid request body", fiber.StatusBadRequest)
	}

	ctx := c.UserContext()

	ok, err := h.nonces.Consume(ctx, req.Nonce)
	if err != nil {
		slog.Error("nonce check failed", "error", err)
		return utils.NewAPIError("NONCE_CHECK_FAILED", "could not verify nonce", fiber.StatusInternalServerError)
	}
	if !ok {
		return utils.NewAPIError("INVALID_NONCE", "missing, expired or reused nonce", fiber.StatusBadRequest)
	}

	u, err := h.users.Authenticate(ctx, req.Email, req.Password)
	if errors.Is(err, user.ErrInvalidCredentials) || errors.Is(err, user.ErrUserInactive) {
		return utils.NewAPIError("INVALID_CREDENTIALS", "invalid email or password", fiber.StatusUnauthorized)
	}
	if err != nil {
		slog.Error("login failed", "error", err)
		return utils.NewAPIError("LOGIN_FAILED", "could not log in", fiber.StatusInternalServerError)
	}

	deviceID, userAgent, ipAddress := DeviceInfo(c)
	res, err := h.sessions.Create(ctx, session.CreateInput{
		UserID:    u.ID,
		DeviceID:  deviceID,
		UserAgent: userAgent,
		IPAddress: ipAddress,
	})
	if err != nil {
		slog.Error("session creation failed", "user_id", u.UserID, "error", err)
		return utils.NewAPIError("SESSION_FAILED", "could not create session", fiber.StatusInternalServerError)
	}

	accessToken, err := h.tokens.IssueAccessToken(u.ID.String(), u.Role())
	if err != nil {
		slog.Error("token issuance failed", "user_id", u.UserID, "error", err)
		return utils.NewAPIError("TOKEN_FAILED", "could not issue token", fiber.StatusInternalServerError)
	}

	SetSessionCookie(c, h.cookie, res.Session.ID.String(), res.Session.ExpiresAt, h.production)

	return utils.SuccessResponse(c, fiber.StatusOK, "logged in", fiber.Map{
		"access_token": accessToken,
		"session_id":   res.Session.ID,
		"expires_at":   res.Session.ExpiresAt,
		"user": fiber.Map{
			"user_id": u.UserID,
			"name":    u.FullName(),
			"email":   u.Email,
			"role":    u.Role(),
		},
	})
}

// Logout invalidates the presented session. Always succeeds and always
// clears the cookie, even when the session is unknown or already dead.
func (h *Handler) Logout(c *fiber.Ctx) error {
	defer ClearSessionCookie(c, h.cookie, h.production)

	raw := SessionToken(c, h.cookie)
	if id, err := uuid.Parse(raw); err == nil {
		if _, err := h.sessions.Invalidate(c.UserContext(), id); err != nil {
			slog.Warn("logout invalidation failed", "session_id", id, "error", err)
		}
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "logged out", nil)
}

// LogoutAll invalidates every session of the presented session's owner.
// Like Logout it succeeds regardless of session state.
func (h *Handler) LogoutAll(c *fiber.Ctx) error {
	defer ClearSessionCookie(c, h.cookie, h.production)

	ctx := c.UserContext()
	raw := SessionToken(c, h.cookie)
	if id, err := uuid.Parse(raw); err == nil {
		if sess, err := h.sessions.GetByID(ctx, id); err == nil && sess != nil {
			if _, err := h.sessions.DeactivateAll(ctx, sess.UserID); err != nil {
				slog.Warn("logout-all failed", "session_id", id, "error", err)
			}
		}
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "logged out everywhere", nil)
}

// SessionInfo returns the current session's lifecycle state.
func (h *Handler) SessionInfo(c *fiber.Ctx) error {
	identity := GetIdentity(c)
	sess, err := h.sessions.GetByID(c.UserContext(), identity.SessionID)
	if err != nil || sess == nil {
		return utils.RequiresLoginResponse(c, "session expired or invalidated")
	}

	now := time.Now().UTC()
	return utils.SuccessResponse(c, fiber.StatusOK, "", fiber.Map{
		"session_id":     sess.ID,
		"device_id":      sess.DeviceID,
		"created_at":     sess.CreatedAt,
		"last_refreshed": sess.LastRefreshed,
		"expires_at":     sess.ExpiresAt,
		"expires_in":     int(sess.TimeUntilExpiry(now).Seconds()),
	})
}

// RefreshSession explicitly slides the session expiry window.
func (h *Handler) RefreshSession(c *fiber.Ctx) error {
	identity := GetIdentity(c)
	ctx := c.UserContext()

	ok, err := h.sessions.Refresh(ctx, identity.SessionID)
	if err != nil {
		slog.Error("manual refresh failed", "session_id", identity.SessionID, "error", err)
		return utils.NewAPIError("REFRESH_FAILED", "could not refresh session", fiber.StatusInternalServerError)
	}
	if !ok {
		return utils.RequiresLoginResponse(c, "session expired or invalidated")
	}

	sess, err := h.sessions.GetByID(ctx, identity.SessionID)
	if err != nil || sess == nil {
		return utils.RequiresLoginResponse(c, "session expired or invalidated")
	}

	SetSessionCookie(c, h.cookie, sess.ID.String(), sess.ExpiresAt, h.production)
	return utils.SuccessResponse(c, fiber.StatusOK, "session refreshed", fiber.Map{
		"expires_at": sess.ExpiresAt,
	})
}

// ListSessions returns the caller's active sessions.
func (h *Handler) ListSessions(c *fiber.Ctx) error {
	identity := GetIdentity(c)
	sessions, err := h.sessions.ListActive(c.UserContext(), identity.User.ID)
	if err != nil {
		slog.Error("failed to list sessions", "user_id", identity.User.UserID, "error", err)
		return utils.NewAPIError("LIST_FAILED", "could not list sessions", fiber.StatusInternalServerError)
	}

	out := make([]fiber.Map, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, fiber.Map{
			"session_id":     s.ID,
			"device_id":      s.DeviceID,
			"user_agent":     s.UserAgent,
			"created_at":     s.CreatedAt,
			"last_refreshed": s.LastRefreshed,
			"expires_at":     s.ExpiresAt,
			"current":        s.ID == identity.SessionID,
		})
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "", fiber.Map{"sessions": out})
}

// ChangePassword updates the caller's password and invalidates every
// other session.
func (h *Handler) ChangePassword(c *fiber.Ctx) error {
	var req changePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.NewAPIError("INVALID_BODY", "invalid request body", fiber.StatusBadRequest)
	}
	if req.NewPassword == "" {
		return utils.NewAPIError("MISSING_FIELDS", "new_password is required", fiber.StatusBadRequest)
	}

	identity := GetIdentity(c)
	ctx := c.UserContext()

	err := h.users.ChangePassword(ctx, identity.User.ID, req.OldPassword, req.NewPassword)
	if errors.Is(err, user.ErrInvalidCredentials) {
		return utils.NewAPIError("INVALID_CREDENTIALS", "current password is incorrect", fiber.StatusUnauthorized)
	}
	if err != nil {
		slog.Error("password change failed", "user_id", identity.User.UserID, "error", err)
		return utils.NewAPIError("PASSWORD_CHANGE_FAILED", "could not change password", fiber.StatusInternalServerError)
	}

	// every other device must log in again with the new password
	if _, err := h.sessions.DeactivateAll(ctx, identity.User.ID, identity.SessionID); err != nil {
		slog.Warn("failed to invalidate other sessions after password change",
			"user_id", identity.User.UserID, "error", err)
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "password changed", nil)
}

// RequestPasswordReset mails a reset token. The response does not reveal
// whether the email is registered.
func (h *Handler) RequestPasswordReset(c *fiber.Ctx) error {
	var req resetRequest
	if err := c.BodyParser(&req); err != nil || req.Email == "" {
		return utils.NewAPIError("INVALID_BODY", "email is required", fiber.StatusBadRequest)
	}

	const accepted = "if the address is registered, a reset link has been sent"

	u, err := h.users.GetByEmail(c.UserContext(), req.Email)
	if err != nil {
		return utils.SuccessResponse(c, fiber.StatusOK, accepted, nil)
	}

	token, err := h.tokens.IssueResetToken(u.ID.String())
	if err != nil {
		slog.Error("failed to issue reset token", "user_id", u.UserID, "error", err)
		return utils.NewAPIError("RESET_FAILED", "could not start password reset", fiber.StatusInternalServerError)
	}

	if err := h.mail.SendPasswordReset(u.Email, u.FullName(), token); err != nil {
		slog.Error("failed to send reset mail", "user_id", u.UserID, "error", err)
		return utils.NewAPIError("RESET_FAILED", "could not send reset mail", fiber.StatusInternalServerError)
	}

	return utils.SuccessResponse(c, fiber.StatusOK, accepted, nil)
}

// ConfirmPasswordReset sets a new password from a reset token and logs
// the user out everywhere.
func (h *Handler) ConfirmPasswordReset(c *fiber.Ctx) error {
	var req resetConfirmRequest
	if err := c.BodyParser(&req); err != nil || req.Token == "" || req.NewPassword == "" {
		return utils.NewAPIError("INVALID_BODY", "token and new_password are required", fiber.StatusBadRequest)
	}

	subject, err := h.tokens.VerifyResetToken(req.Token)
	if err != nil {
		return utils.NewAPIError("INVALID_TOKEN", "invalid or expired reset token", fiber.StatusUnauthorized)
	}

	userID, err := uuid.Parse(subject)
	if err != nil {
		return utils.NewAPIError("INVALID_TOKEN", "invalid or expired reset token", fiber.StatusUnauthorized)
	}

	ctx := c.UserContext()
	if err := h.users.SetPassword(ctx, userID, req.NewPassword); err != nil {
		slog.Error("password reset failed", "error", err)
		return utils.NewAPIError("RESET_FAILED", "could not reset password", fiber.StatusInternalServerError)
	}

	if _, err := h.sessions.DeactivateAll(ctx, userID); err != nil {
		slog.Warn("failed to invalidate sessions after password reset", "error", err)
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "password reset", nil)
}
