package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/crjyouth/libris/internal/database"
)

var (
	ErrUserIDRequired   = errors.New("session requires a user id")
	ErrDeviceIDRequired = errors.New("session requires a device id")
	ErrDeviceIDTooLong  = fmt.Errorf("device id exceeds %d characters", MaxDeviceIDLength)
)

// CreateInput carries the request context for a new session.
type CreateInput struct {
	UserID    uuid.UUID
	DeviceID  string
	UserAgent string
	IPAddress string
}

// CreateResult is the created session plus any evictions the limit check
// performed to make room for it.
type CreateResult struct {
	Session   *Session
	Evictions []Eviction
}

// Options tunes the session lifecycle.
type Options struct {
	TTL                time.Duration
	RefreshThreshold   time.Duration
	MaxSessionsPerUser int
	RetryBackoff       []time.Duration
	MaxRetries         int

	// QueryTimeout bounds every store round trip so a stalled database
	// cannot hang request handlers.
	QueryTimeout time.Duration
}

// Service handles the session lifecycle.
type Service interface {
	Create(ctx context.Context, in CreateInput) (*CreateResult, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Session, error)
	IsValid(ctx context.Context, id uuid.UUID) (bool, error)
	Refresh(ctx context.Context, id uuid.UUID) (bool, error)
	NeedsRefresh(sess *Session, now time.Time) bool
	Invalidate(ctx context.Context, id uuid.UUID) (bool, error)
	DeactivateAll(ctx context.Context, userID uuid.UUID, except ...uuid.UUID) (int64, error)
	ListActive(ctx context.Context, userID uuid.UUID) ([]Session, error)
}

type service struct {
	repo    Repository
	tx      *database.TransactionManager
	limiter *LimitManager
	opts    Options
}

func NewService(repo Repository, tx *database.TransactionManager, opts Options) Service {
	return &service{
		repo:    repo,
		tx:      tx,
		limiter: NewLimitManager(repo, opts.MaxSessionsPerUser),
		opts:    opts,
	}
}

// Create validates the input, then runs the limit check, any evictions and
// the insert as one transaction serialized per user, so concurrent logins
// cannot push a user past the cap.
func (s *service) Create(ctx context.Context, in CreateInput) (*CreateResult, error) {
	if in.UserID == uuid.Nil {
		return nil, ErrUserIDRequired
	}
	if in.DeviceID == "" {
		return nil, ErrDeviceIDRequired
	}
	if len(in.DeviceID) > MaxDeviceIDLength {
		return nil, ErrDeviceIDTooLong
	}

	now := time.Now().UTC()
	sess := &Session{
		ID:            uuid.New(),
		UserID:        in.UserID,
		DeviceID:      in.DeviceID,
		UserAgent:     in.UserAgent,
		IPAddress:     in.IPAddress,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.opts.TTL),
		LastRefreshed: now,
		IsActive:      true,
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var evictions []Eviction
	err := s.tx.RunInTransaction(ctx, func(txCtx context.Context) error {
		if err := s.repo.LockUserSessions(txCtx, in.UserID); err != nil {
			return err
		}

		ev, err := s.limiter.EnforceLimit(txCtx, in.UserID, in.DeviceID)
		if err != nil {
			return err
		}
		evictions = ev

		return s.repo.Create(txCtx, sess)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("session created",
		"session_id", sess.ID,
		"user_id", sess.UserID,
		"device_id", sess.DeviceID,
		"expires_at", sess.ExpiresAt,
		"evicted", len(evictions),
	)

	return &CreateResult{Session: sess, Evictions: evictions}, nil
}

// GetByID returns the session, or (nil, nil) when it does not exist.
func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	sess, err := withRetry(ctx, s.opts, func() (*Session, error) {
		found, err := s.repo.FindByID(ctx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, backoff.Permanent(errNotFound)
		}
		return found, err
	})
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, database.WrapStorage("session.get", err)
	}
	return sess, nil
}

// IsValid is the single source of truth for liveness: a session is valid
// only when it exists, is active and has not passed its expiry.
func (s *service) IsValid(ctx context.Context, id uuid.UUID) (bool, error) {
	sess, err := s.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if sess == nil {
		return false, nil
	}
	return sess.Alive(time.Now().UTC()), nil
}

// Refresh slides the expiry window forward. Returns false when the session
// is missing, inactive or already expired; the state re-check happens
// inside the guarded UPDATE so a stale read cannot resurrect a session.
func (s *service) Refresh(ctx context.Context, id uuid.UUID) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	now := time.Now().UTC()
	ok, err := s.repo.Refresh(ctx, id, now, now.Add(s.opts.TTL))
	if err != nil {
		return false, err
	}
	if ok {
		slog.Debug("session refreshed", "session_id", id, "expires_at", now.Add(s.opts.TTL))
	}
	return ok, nil
}

// NeedsRefresh reports whether a session is close enough to expiry that
// the middleware should slide its window.
func (s *service) NeedsRefresh(sess *Session, now time.Time) bool {
	return sess.TimeUntilExpiry(now) <= s.opts.RefreshThreshold
}

// Invalidate deactivates a session. Idempotent: invalidating a missing or
// already inactive session is not an error, it just reports false.
func (s *service) Invalidate(ctx context.Context, id uuid.UUID) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	ok, err := withRetry(ctx, s.opts, func() (bool, error) {
		return s.repo.Invalidate(ctx, id)
	})
	if err != nil {
		return false, err
	}
	if ok {
		slog.Info("session invalidated", "session_id", id)
	}
	return ok, nil
}

// DeactivateAll invalidates every active session of a user, optionally
// sparing the listed ids.
func (s *service) DeactivateAll(ctx context.Context, userID uuid.UUID, except ...uuid.UUID) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	n, err := s.repo.DeactivateAllForUser(ctx, userID, except...)
	if err != nil {
		return 0, err
	}
	slog.Info("sessions deactivated", "user_id", userID, "count", n)
	return n, nil
}

func (s *service) ListActive(ctx context.Context, userID uuid.UUID) ([]Session, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return s.repo.FindActiveByUser(ctx, userID, time.Now().UTC())
}

func (s *service) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.QueryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opts.QueryTimeout)
}

var errNotFound = errors.New("session not found")

// scheduleBackOff replays a fixed list of delays, then stops.
type scheduleBackOff struct {
	delays []time.Duration
	next   int
}

func (b *scheduleBackOff) NextBackOff() time.Duration {
	if b.next >= len(b.delays) {
		return backoff.Stop
	}
	d := b.delays[b.next]
	b.next++
	return d
}

func (b *scheduleBackOff) Reset() {
	b.next = 0
}

// withRetry runs an idempotent store operation with the configured backoff
// schedule. Only transient failures are retried; callers mark terminal
// outcomes with backoff.Permanent.
func withRetry[T any](ctx context.Context, opts Options, op func() (T, error)) (T, error) {
	if opts.MaxRetries <= 0 {
		return op()
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(&scheduleBackOff{delays: opts.RetryBackoff}),
		backoff.WithMaxTries(uint(opts.MaxRetries)),
	)
}
