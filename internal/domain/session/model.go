package session

import (
	"time"

	"github.com/google/uuid"
)

// MaxDeviceIDLength bounds the device identifier column.
const MaxDeviceIDLength = 255

// Session represents an authenticated device session.
type Session struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        uuid.UUID `gorm:"type:uuid;index:idx_sessions_user_active;not null" json:"user_id"`
	DeviceID      string    `gorm:"size:255;not null" json:"device_id"`
	UserAgent     string    `json:"user_agent"`
	IPAddress     string    `gorm:"size:45" json:"ip_address"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `gorm:"not null" json:"expires_at"`
	LastRefreshed time.Time `gorm:"not null" json:"last_refreshed"`
	IsActive      bool      `gorm:"index:idx_sessions_user_active;default:true" json:"is_active"`
}

// TableName overrides the table name
func (Session) TableName() string {
	return "sessions"
}

// Alive reports whether the session is active and not past its expiry.
func (s *Session) Alive(now time.Time) bool {
	return s.IsActive && now.Before(s.ExpiresAt)
}

// TimeUntilExpiry returns the remaining lifetime, negative when expired.
func (s *Session) TimeUntilExpiry(now time.Time) time.Duration {
	return s.ExpiresAt.Sub(now)
}
