package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// CleanupMetrics summarizes one deactivation sweep.
type CleanupMetrics struct {
	SessionsCleaned   int         `json:"sessions_cleaned"`
	UsersAffected     int         `json:"users_affected"`
	ExpiredSessionIDs []uuid.UUID `json:"expired_session_ids"`
	Timestamp         time.Time   `json:"timestamp"`
}

// Snapshot captures the session table state at a point in time.
type Snapshot struct {
	ActiveSessions  int64     `json:"active_sessions"`
	ExpiredSessions int64     `json:"expired_sessions"`
	ActiveUsers     int64     `json:"active_users"`
	Timestamp       time.Time `json:"timestamp"`
}

// CleanupReport is the full record of one cleanup run.
type CleanupReport struct {
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     time.Time      `json:"finished_at"`
	DurationMillis int64          `json:"duration_ms"`
	Metrics        CleanupMetrics `json:"metrics"`
	PurgedSessions int64          `json:"purged_sessions"`
	Snapshot       Snapshot       `json:"snapshot"`
	Error          string         `json:"error,omitempty"`
}

// DailySummary aggregates the stored reports of the last day.
type DailySummary struct {
	Runs            int       `json:"runs"`
	SessionsCleaned int       `json:"sessions_cleaned"`
	UsersAffected   int       `json:"users_affected"`
	PurgedSessions  int64     `json:"purged_sessions"`
	Errors          int       `json:"errors"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// MetricsStore persists cleanup reports across processes.
type MetricsStore interface {
	Append(ctx context.Context, report any) error
	List(ctx context.Context, decode func(data []byte) error) error
	Reset(ctx context.Context) error
}

// Cleaner deactivates expired sessions and purges old rows on a schedule.
type Cleaner struct {
	repo          Repository
	store         MetricsStore
	retentionDays int
}

func NewCleaner(repo Repository, store MetricsStore, retentionDays int) *Cleaner {
	return &Cleaner{repo: repo, store: store, retentionDays: retentionDays}
}

// DeactivateExpired flips every expired-but-still-active session and
// returns the sweep metrics.
func (c *Cleaner) DeactivateExpired(ctx context.Context) (CleanupMetrics, error) {
	now := time.Now().UTC()
	metrics := CleanupMetrics{Timestamp: now}

	expired, err := c.repo.FindExpiredActive(ctx, now)
	if err != nil {
		return metrics, err
	}
	if len(expired) == 0 {
		return metrics, nil
	}

	ids := make([]uuid.UUID, 0, len(expired))
	users := make(map[uuid.UUID]struct{})
	for _, s := range expired {
		ids = append(ids, s.ID)
		users[s.UserID] = struct{}{}
		slog.Info("cleanup",
			"session_id", s.ID,
			"user_id", s.UserID,
			"device_id", s.DeviceID,
			"expired_at", s.ExpiresAt,
			"reason", "expired",
		)
	}

	n, err := c.repo.DeactivateByIDs(ctx, ids)
	if err != nil {
		return metrics, err
	}

	metrics.SessionsCleaned = int(n)
	metrics.UsersAffected = len(users)
	metrics.ExpiredSessionIDs = ids
	return metrics, nil
}

// PurgeExpired hard-deletes sessions whose expiry is older than the
// retention window.
func (c *Cleaner) PurgeExpired(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -c.retentionDays)
	n, err := c.repo.DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.Info("expired sessions purged", "count", n, "cutoff", cutoff)
	}
	return n, nil
}

// TakeSnapshot reads the current session counters.
func (c *Cleaner) TakeSnapshot(ctx context.Context) (Snapshot, error) {
	now := time.Now().UTC()
	snap := Snapshot{Timestamp: now}

	var err error
	if snap.ActiveSessions, err = c.repo.CountActive(ctx, now); err != nil {
		return snap, err
	}
	if snap.ExpiredSessions, err = c.repo.CountExpiredActive(ctx, now); err != nil {
		return snap, err
	}
	if snap.ActiveUsers, err = c.repo.CountActiveUsers(ctx, now); err != nil {
		return snap, err
	}
	return snap, nil
}

// Run executes one full sweep: deactivate, purge, snapshot, store the
// report. A failing run is recorded and logged but never propagated, so
// one bad sweep does not kill the schedule.
func (c *Cleaner) Run(ctx context.Context) CleanupReport {
	start := time.Now().UTC()
	report := CleanupReport{StartedAt: start}

	metrics, err := c.DeactivateExpired(ctx)
	report.Metrics = metrics
	if err != nil {
		report.Error = err.Error()
		slog.Error("cleanup sweep failed", "stage", "deactivate", "error", err)
	}

	if report.Error == "" {
		purged, err := c.PurgeExpired(ctx)
		report.PurgedSessions = purged
		if err != nil {
			report.Error = err.Error()
			slog.Error("cleanup sweep failed", "stage", "purge", "error", err)
		}
	}

	if snap, err := c.TakeSnapshot(ctx); err != nil {
		slog.Error("cleanup snapshot failed", "error", err)
	} else {
		report.Snapshot = snap
	}

	report.FinishedAt = time.Now().UTC()
	report.DurationMillis = report.FinishedAt.Sub(start).Milliseconds()

	if c.store != nil {
		if err := c.store.Append(ctx, report); err != nil {
			slog.Error("failed to store cleanup report", "error", err)
		}
	}

	slog.Info("cleanup run finished",
		"sessions_cleaned", report.Metrics.SessionsCleaned,
		"users_affected", report.Metrics.UsersAffected,
		"purged", report.PurgedSessions,
		"duration_ms", report.DurationMillis,
	)

	return report
}

// RunPeriodic runs sweeps on the given interval until the context ends.
func (c *Cleaner) RunPeriodic(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("session cleanup scheduled", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("session cleanup stopped")
			return
		case <-ticker.C:
			c.Run(ctx)
		}
	}
}

// DailySummary aggregates the stored reports and resets the buffer.
func (c *Cleaner) DailySummary(ctx context.Context) (DailySummary, error) {
	summary := DailySummary{GeneratedAt: time.Now().UTC()}

	err := c.store.List(ctx, func(data []byte) error {
		var report CleanupReport
		if err := json.Unmarshal(data, &report); err != nil {
			return err
		}
		summary.Runs++
		summary.SessionsCleaned += report.Metrics.SessionsCleaned
		summary.UsersAffected += report.Metrics.UsersAffected
		summary.PurgedSessions += report.PurgedSessions
		if report.Error != "" {
			summary.Errors++
		}
		return nil
	})
	if err != nil {
		return summary, err
	}

	if err := c.store.Reset(ctx); err != nil {
		return summary, err
	}
	return summary, nil
}
