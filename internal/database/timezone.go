package database

import (
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"
)

// ErrTimezoneInvariant means the database session is not running on UTC.
// Session expiry comparisons are only sound on a single timezone, so
// startup must abort when this is violated.
var ErrTimezoneInvariant = errors.New("database session timezone is not UTC")

// VerifyTimezone checks that the connection timezone is UTC. The check only
// applies to Postgres; other dialects (the test database) are skipped.
func VerifyTimezone(db *gorm.DB) error {
	if db.Dialector.Name() != "postgres" {
		return nil
	}

	var tz string
	if err := db.Raw("SELECT current_setting('TimeZone')").Scan(&tz).Error; err != nil {
		return fmt.Errorf("failed to read session timezone: %w", err)
	}

	if tz != "UTC" {
		slog.Error("timezone invariant violated", "timezone", tz)
		return fmt.Errorf("%w: got %q", ErrTimezoneInvariant, tz)
	}

	slog.Info("timezone verified", "timezone", tz)
	return nil
}
