package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/crjyouth/libris/internal/database"
)

// Repository handles session persistence. Every method honors a
// transaction carried in the context.
type Repository interface {
	Create(ctx context.Context, s *Session) error
	FindByID(ctx context.Context, id uuid.UUID) (*Session, error)
	FindActiveByUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]Session, error)
	FindActiveByDevice(ctx context.Context, userID uuid.UUID, deviceID string, now time.Time) ([]Session, error)
	Refresh(ctx context.Context, id uuid.UUID, lastRefreshed, expiresAt time.Time) (bool, error)
	Invalidate(ctx context.Context, id uuid.UUID) (bool, error)
	DeactivateAllForUser(ctx context.Context, userID uuid.UUID, except ...uuid.UUID) (int64, error)
	FindExpiredActive(ctx context.Context, now time.Time) ([]Session, error)
	DeactivateByIDs(ctx context.Context, ids []uuid.UUID) (int64, error)
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
	CountActive(ctx context.Context, now time.Time) (int64, error)
	CountExpiredActive(ctx context.Context, now time.Time) (int64, error)
	CountActiveUsers(ctx context.Context, now time.Time) (int64, error)
	LockUserSessions(ctx context.Context, userID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, s *Session) error {
	db := database.GetTxFromContext(ctx, r.db)
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return database.WrapStorage("session.create", db.Create(s).Error)
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	db := database.GetTxFromContext(ctx, r.db)
	var s Session
	if err := db.First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// FindActiveByUser returns a user's live sessions. Rows that have expired
// but not yet been swept by cleanup are excluded; only the expiry check
// keeps them out, is_active alone is not enough.
func (r *repository) FindActiveByUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]Session, error) {
	db := database.GetTxFromContext(ctx, r.db)
	var sessions []Session
	err := db.
		Where("user_id = ? AND is_active = ? AND expires_at > ?", userID, true, now).
		Order("last_refreshed ASC, id ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, database.WrapStorage("session.find_active_by_user", err)
	}
	return sessions, nil
}

func (r *repository) FindActiveByDevice(ctx context.Context, userID uuid.UUID, deviceID string, now time.Time) ([]Session, error) {
	db := database.GetTxFromContext(ctx, r.db)
	var sessions []Session
	err := db.
		Where("user_id = ? AND device_id = ? AND is_active = ? AND expires_at > ?", userID, deviceID, true, now).
		Order("last_refreshed ASC, id ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, database.WrapStorage("session.find_active_by_device", err)
	}
	return sessions, nil
}

// Refresh extends a session in a single guarded UPDATE. The guard re-checks
// liveness inside the statement so a concurrently expired or invalidated
// session never gets extended.
func (r *repository) Refresh(ctx context.Context, id uuid.UUID, lastRefreshed, expiresAt time.Time) (bool, error) {
	db := database.GetTxFromContext(ctx, r.db)
	res := db.Model(&Session{}).
		Where("id = ? AND is_active = ? AND expires_at > ?", id, true, lastRefreshed).
		Updates(map[string]any{
			"last_refreshed": lastRefreshed,
			"expires_at":     expiresAt,
		})
	if res.Error != nil {
		return false, database.WrapStorage("session.refresh", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) Invalidate(ctx context.Context, id uuid.UUID) (bool, error) {
	db := database.GetTxFromContext(ctx, r.db)
	res := db.Model(&Session{}).
		Where("id = ? AND is_active = ?", id, true).
		Update("is_active", false)
	if res.Error != nil {
		return false, database.WrapStorage("session.invalidate", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) DeactivateAllForUser(ctx context.Context, userID uuid.UUID, except ...uuid.UUID) (int64, error) {
	db := database.GetTxFromContext(ctx, r.db)
	q := db.Model(&Session{}).Where("user_id = ? AND is_active = ?", userID, true)
	if len(except) > 0 {
		q = q.Where("id NOT IN ?", except)
	}
	res := q.Update("is_active", false)
	if res.Error != nil {
		return 0, database.WrapStorage("session.deactivate_all", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *repository) FindExpiredActive(ctx context.Context, now time.Time) ([]Session, error) {
	db := database.GetTxFromContext(ctx, r.db)
	var sessions []Session
	err := db.
		Where("is_active = ? AND expires_at <= ?", true, now).
		Order("expires_at ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, database.WrapStorage("session.find_expired_active", err)
	}
	return sessions, nil
}

func (r *repository) DeactivateByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	db := database.GetTxFromContext(ctx, r.db)
	res := db.Model(&Session{}).
		Where("id IN ? AND is_active = ?", ids, true).
		Update("is_active", false)
	if res.Error != nil {
		return 0, database.WrapStorage("session.deactivate_by_ids", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *repository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	db := database.GetTxFromContext(ctx, r.db)
	res := db.Where("expires_at <= ?", cutoff).Delete(&Session{})
	if res.Error != nil {
		return 0, database.WrapStorage("session.delete_expired", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *repository) CountActive(ctx context.Context, now time.Time) (int64, error) {
	db := database.GetTxFromContext(ctx, r.db)
	var n int64
	err := db.Model(&Session{}).
		Where("is_active = ? AND expires_at > ?", true, now).
		Count(&n).Error
	return n, database.WrapStorage("session.count_active", err)
}

func (r *repository) CountExpiredActive(ctx context.Context, now time.Time) (int64, error) {
	db := database.GetTxFromContext(ctx, r.db)
	var n int64
	err := db.Model(&Session{}).
		Where("is_active = ? AND expires_at <= ?", true, now).
		Count(&n).Error
	return n, database.WrapStorage("session.count_expired_active", err)
}

func (r *repository) CountActiveUsers(ctx context.Context, now time.Time) (int64, error) {
	db := database.GetTxFromContext(ctx, r.db)
	var n int64
	err := db.Model(&Session{}).
		Where("is_active = ? AND expires_at > ?", true, now).
		Distinct("user_id").
		Count(&n).Error
	return n, database.WrapStorage("session.count_active_users", err)
}

// LockUserSessions serializes session creation per user with an advisory
// lock held for the rest of the surrounding transaction. SQLite has a
// single writer, so the lock is a no-op there.
func (r *repository) LockUserSessions(ctx context.Context, userID uuid.UUID) error {
	db := database.GetTxFromContext(ctx, r.db)
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	err := db.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", userID.String()).Error
	return database.WrapStorage("session.lock_user", err)
}
