package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/crjyouth/libris/internal/utils"
)

// memMetricsStore is an in-memory stand-in for the Redis-backed report
// buffer.
type memMetricsStore struct {
	entries [][]byte
}

func (s *memMetricsStore) Append(_ context.Context, report any) error {
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	s.entries = append(s.entries, data)
	return nil
}

func (s *memMetricsStore) List(_ context.Context, decode func(data []byte) error) error {
	for _, e := range s.entries {
		if err := decode(e); err != nil {
			return err
		}
	}
	return nil
}

func (s *memMetricsStore) Reset(_ context.Context) error {
	s.entries = nil
	return nil
}

func seedExpired(t *testing.T, repo Repository, userID uuid.UUID, expiredAgo time.Duration) *Session {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	s := &Session{
		ID:            uuid.New(),
		UserID:        userID,
		DeviceID:      "dev-1",
		CreatedAt:     now.Add(-expiredAgo - 4*time.Hour),
		ExpiresAt:     now.Add(-expiredAgo),
		LastRefreshed: now.Add(-expiredAgo - time.Hour),
		IsActive:      true,
	}
	if err := repo.Create(context.Background(), s); err != nil {
		t.Fatalf("seed expired session: %v", err)
	}
	return s
}

func TestDeactivateExpired(t *testing.T) {
	db := utils.SetupTestDB(t, &Session{})
	repo := NewRepository(db)
	cleaner := NewCleaner(repo, &memMetricsStore{}, 1)
	ctx := context.Background()

	userA, userB := uuid.New(), uuid.New()
	e1 := seedExpired(t, repo, userA, 10*time.Minute)
	e2 := seedExpired(t, repo, userA, 20*time.Minute)
	e3 := seedExpired(t, repo, userB, 30*time.Minute)
	live := seedSession(t, repo, userB, "dev-live", time.Minute)

	metrics, err := cleaner.DeactivateExpired(ctx)
	if err != nil {
		t.Fatalf("DeactivateExpired: %v", err)
	}
	if metrics.SessionsCleaned != 3 {
		t.Errorf("SessionsCleaned = %d, want 3", metrics.SessionsCleaned)
	}
	if metrics.UsersAffected != 2 {
		t.Errorf("UsersAffected = %d, want 2", metrics.UsersAffected)
	}
	if len(metrics.ExpiredSessionIDs) != 3 {
		t.Errorf("ExpiredSessionIDs = %d entries, want 3", len(metrics.ExpiredSessionIDs))
	}

	for _, id := range []uuid.UUID{e1.ID, e2.ID, e3.ID} {
		s, err := repo.FindByID(ctx, id)
		if err != nil {
			t.Fatalf("FindByID: %v", err)
		}
		if s.IsActive {
			t.Errorf("session %s still active after cleanup", id)
		}
	}
	if s, _ := repo.FindByID(ctx, live.ID); !s.IsActive {
		t.Error("live session was deactivated")
	}

	// second sweep finds nothing
	metrics, err = cleaner.DeactivateExpired(ctx)
	if err != nil {
		t.Fatalf("second DeactivateExpired: %v", err)
	}
	if metrics.SessionsCleaned != 0 {
		t.Errorf("second sweep cleaned %d, want 0", metrics.SessionsCleaned)
	}
}

func TestPurgeExpiredHonorsRetention(t *testing.T) {
	db := utils.SetupTestDB(t, &Session{})
	repo := NewRepository(db)
	cleaner := NewCleaner(repo, &memMetricsStore{}, 1)
	ctx := context.Background()
	userID := uuid.New()

	// three sessions older than the one-day retention window, seven within it
	for i := 0; i < 3; i++ {
		seedExpired(t, repo, userID, 25*time.Hour+time.Duration(i)*time.Hour)
	}
	for i := 0; i < 7; i++ {
		seedExpired(t, repo, userID, time.Duration(i+1)*time.Hour)
	}

	purged, err := cleaner.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if purged != 3 {
		t.Errorf("purged = %d, want 3", purged)
	}
}

func TestRunStoresReportAndSnapshot(t *testing.T) {
	db := utils.SetupTestDB(t, &Session{})
	repo := NewRepository(db)
	store := &memMetricsStore{}
	cleaner := NewCleaner(repo, store, 1)
	ctx := context.Background()
	userID := uuid.New()

	seedExpired(t, repo, userID, 10*time.Minute)
	seedSession(t, repo, userID, "dev-live", time.Minute)

	report := cleaner.Run(ctx)
	if report.Error != "" {
		t.Fatalf("Run reported error: %s", report.Error)
	}
	if report.Metrics.SessionsCleaned != 1 {
		t.Errorf("SessionsCleaned = %d, want 1", report.Metrics.SessionsCleaned)
	}
	if report.Snapshot.ActiveSessions != 1 {
		t.Errorf("ActiveSessions = %d, want 1", report.Snapshot.ActiveSessions)
	}
	if report.FinishedAt.Before(report.StartedAt) {
		t.Error("FinishedAt before StartedAt")
	}
	if len(store.entries) != 1 {
		t.Errorf("stored reports = %d, want 1", len(store.entries))
	}
}

func TestDailySummaryAggregatesAndResets(t *testing.T) {
	db := utils.SetupTestDB(t, &Session{})
	repo := NewRepository(db)
	store := &memMetricsStore{}
	cleaner := NewCleaner(repo, store, 1)
	ctx := context.Background()

	seedExpired(t, repo, uuid.New(), 10*time.Minute)
	cleaner.Run(ctx)
	seedExpired(t, repo, uuid.New(), 10*time.Minute)
	cleaner.Run(ctx)

	summary, err := cleaner.DailySummary(ctx)
	if err != nil {
		t.Fatalf("DailySummary: %v", err)
	}
	if summary.Runs != 2 {
		t.Errorf("Runs = %d, want 2", summary.Runs)
	}
	if summary.SessionsCleaned != 2 {
		t.Errorf("SessionsCleaned = %d, want 2", summary.SessionsCleaned)
	}
	if len(store.entries) != 0 {
		t.Error("buffer not reset after summary")
	}
}
