package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/crjyouth/libris/internal/utils"
)

// seedSession inserts an active session with a fixed refresh time. Times
// are spaced by minutes and truncated to seconds so ordering is stable.
func seedSession(t *testing.T, repo Repository, userID uuid.UUID, deviceID string, refreshedAgo time.Duration) *Session {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	s := &Session{
		ID:            uuid.New(),
		UserID:        userID,
		DeviceID:      deviceID,
		UserAgent:     "seed",
		CreatedAt:     now.Add(-refreshedAgo),
		ExpiresAt:     now.Add(4 * time.Hour),
		LastRefreshed: now.Add(-refreshedAgo),
		IsActive:      true,
	}
	if err := repo.Create(context.Background(), s); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return s
}

func activeIDs(t *testing.T, repo Repository, userID uuid.UUID) map[uuid.UUID]bool {
	t.Helper()
	sessions, err := repo.FindActiveByUser(context.Background(), userID, time.Now().UTC())
	if err != nil {
		t.Fatalf("FindActiveByUser: %v", err)
	}
	out := make(map[uuid.UUID]bool, len(sessions))
	for _, s := range sessions {
		out[s.ID] = true
	}
	return out
}

func TestEnforceLimitUnderCap(t *testing.T) {
	db := utils.SetupTestDB(t, &Session{})
	repo := NewRepository(db)
	m := NewLimitManager(repo, 5)
	userID := uuid.New()

	seedSession(t, repo, userID, "dev-1", 10*time.Minute)

	evictions, err := m.EnforceLimit(context.Background(), userID, "dev-1")
	if err != nil {
		t.Fatalf("EnforceLimit: %v", err)
	}
	if len(evictions) != 0 {
		t.Errorf("evictions = %v, want none under the cap", evictions)
	}
}

func TestEnforceLimitPerDeviceLRU(t *testing.T) {
	db := utils.SetupTestDB(t, &Session{})
	repo := NewRepository(db)
	m := NewLimitManager(repo, 5)
	userID := uuid.New()

	// two sessions on the requesting device plus three elsewhere
	oldSame := seedSession(t, repo, userID, "dev-A", 50*time.Minute)
	newSame := seedSession(t, repo, userID, "dev-A", 10*time.Minute)
	other1 := seedSession(t, repo, userID, "dev-B", 60*time.Minute)
	other2 := seedSession(t, repo, userID, "dev-C", 40*time.Minute)
	other3 := seedSession(t, repo, userID, "dev-D", 30*time.Minute)

	evictions, err := m.EnforceLimit(context.Background(), userID, "dev-A")
	if err != nil {
		t.Fatalf("EnforceLimit: %v", err)
	}
	if len(evictions) != 1 {
		t.Fatalf("evictions = %d, want 1", len(evictions))
	}
	if evictions[0].SessionID != oldSame.ID {
		t.Errorf("evicted %s, want the older same-device session %s", evictions[0].SessionID, oldSame.ID)
	}
	if evictions[0].Strategy != StrategyPerDeviceLRU {
		t.Errorf("strategy = %s, want %s", evictions[0].Strategy, StrategyPerDeviceLRU)
	}

	// the globally oldest session on another device survives
	survivors := activeIDs(t, repo, userID)
	for _, want := range []*Session{newSame, other1, other2, other3} {
		if !survivors[want.ID] {
			t.Errorf("session %s (device %s) should have survived", want.ID, want.DeviceID)
		}
	}
}

func TestEnforceLimitGlobalLRU(t *testing.T) {
	db := utils.SetupTestDB(t, &Session{})
	repo := NewRepository(db)
	m := NewLimitManager(repo, 5)
	userID := uuid.New()

	oldest := seedSession(t, repo, userID, "dev-B", 90*time.Minute)
	for i, minutes := range []int{70, 50, 30, 10} {
		seedSession(t, repo, userID, fmt.Sprintf("dev-%c", 'C'+i), time.Duration(minutes)*time.Minute)
	}

	// the requesting device has no existing session
	evictions, err := m.EnforceLimit(context.Background(), userID, "dev-new")
	if err != nil {
		t.Fatalf("EnforceLimit: %v", err)
	}
	if len(evictions) != 1 {
		t.Fatalf("evictions = %d, want 1", len(evictions))
	}
	if evictions[0].SessionID != oldest.ID {
		t.Errorf("evicted %s, want the globally oldest %s", evictions[0].SessionID, oldest.ID)
	}
	if evictions[0].Strategy != StrategyGlobalLRU {
		t.Errorf("strategy = %s, want %s", evictions[0].Strategy, StrategyGlobalLRU)
	}
}

func TestEnforceLimitSurplusShedsMultiple(t *testing.T) {
	db := utils.SetupTestDB(t, &Session{})
	repo := NewRepository(db)
	m := NewLimitManager(repo, 3)
	userID := uuid.New()

	for i, minutes := range []int{80, 60, 40, 20} {
		seedSession(t, repo, userID, fmt.Sprintf("dev-%c", 'a'+i), time.Duration(minutes)*time.Minute)
	}

	// four active with a cap of three: two must go to leave room
	evictions, err := m.EnforceLimit(context.Background(), userID, "dev-new")
	if err != nil {
		t.Fatalf("EnforceLimit: %v", err)
	}
	if len(evictions) != 2 {
		t.Fatalf("evictions = %d, want 2", len(evictions))
	}

	remaining := activeIDs(t, repo, userID)
	if len(remaining) != 2 {
		t.Errorf("remaining = %d, want 2", len(remaining))
	}
}

func TestEnforceLimitIgnoresExpiredSessions(t *testing.T) {
	db := utils.SetupTestDB(t, &Session{})
	repo := NewRepository(db)
	m := NewLimitManager(repo, 2)
	ctx := context.Background()
	userID := uuid.New()
	now := time.Now().UTC().Truncate(time.Second)

	live := seedSession(t, repo, userID, "d1", 10*time.Minute)
	expired := &Session{
		ID:            uuid.New(),
		UserID:        userID,
		DeviceID:      "d2",
		CreatedAt:     now.Add(-5 * time.Hour),
		ExpiresAt:     now.Add(-time.Hour),
		LastRefreshed: now.Add(-5 * time.Hour),
		IsActive:      true,
	}
	if err := repo.Create(ctx, expired); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// only one session is alive, so there is room and nothing to evict
	evictions, err := m.EnforceLimit(ctx, userID, "d1")
	if err != nil {
		t.Fatalf("EnforceLimit: %v", err)
	}
	if len(evictions) != 0 {
		t.Errorf("evictions = %v, want none when only one alive session exists", evictions)
	}

	alive, err := repo.FindActiveByUser(ctx, userID, now)
	if err != nil {
		t.Fatalf("FindActiveByUser: %v", err)
	}
	if len(alive) != 1 || alive[0].ID != live.ID {
		t.Errorf("alive sessions = %v, want only %s; expired rows must not count", alive, live.ID)
	}
}

func TestSingleSameDeviceSessionAtCapUsesGlobalLRU(t *testing.T) {
	db := utils.SetupTestDB(t, &Session{})
	repo := NewRepository(db)
	m := NewLimitManager(repo, 2)
	userID := uuid.New()

	// d1 holds exactly one session, so it is spared and the globally
	// oldest session on d2 goes instead
	recent := seedSession(t, repo, userID, "d1", 10*time.Minute)
	older := seedSession(t, repo, userID, "d2", 60*time.Minute)

	evictions, err := m.EnforceLimit(context.Background(), userID, "d1")
	if err != nil {
		t.Fatalf("EnforceLimit: %v", err)
	}
	if len(evictions) != 1 {
		t.Fatalf("evictions = %d, want 1", len(evictions))
	}
	if evictions[0].SessionID != older.ID {
		t.Errorf("evicted %s, want the global-LRU victim %s on d2", evictions[0].SessionID, older.ID)
	}
	if evictions[0].Strategy != StrategyGlobalLRU {
		t.Errorf("strategy = %s, want %s", evictions[0].Strategy, StrategyGlobalLRU)
	}

	survivors := activeIDs(t, repo, userID)
	if !survivors[recent.ID] {
		t.Errorf("the requesting device's only session %s should have survived", recent.ID)
	}
}

func TestOldestSessionTieBreak(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	a := Session{ID: uuid.MustParse("00000000-0000-0000-0000-00000000000a"), LastRefreshed: now}
	b := Session{ID: uuid.MustParse("00000000-0000-0000-0000-00000000000b"), LastRefreshed: now}

	// same refresh time: the lexically smaller id wins, whatever the order
	if got := oldestSession([]Session{a, b}); got.ID != a.ID {
		t.Errorf("oldestSession = %s, want %s", got.ID, a.ID)
	}
	if got := oldestSession([]Session{b, a}); got.ID != a.ID {
		t.Errorf("oldestSession (reversed) = %s, want %s", got.ID, a.ID)
	}
}

func TestSameDeviceLoginAtCapKeepsNewerSessions(t *testing.T) {
	opts := testOptions()
	opts.MaxSessionsPerUser = 2
	svc, repo, _ := newTestService(t, opts)
	ctx := context.Background()
	userID := uuid.New()

	a := seedSession(t, repo, userID, "d1", 30*time.Minute)
	b := seedSession(t, repo, userID, "d1", 10*time.Minute)

	res, err := svc.Create(ctx, CreateInput{UserID: userID, DeviceID: "d1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(res.Evictions) != 1 || res.Evictions[0].SessionID != a.ID {
		t.Fatalf("evictions = %+v, want just the oldest same-device session %s", res.Evictions, a.ID)
	}

	survivors := activeIDs(t, repo, userID)
	if len(survivors) != 2 || !survivors[b.ID] || !survivors[res.Session.ID] {
		t.Errorf("survivors = %v, want {%s, %s}", survivors, b.ID, res.Session.ID)
	}
}

func TestCreateAtCapEvictsThroughService(t *testing.T) {
	opts := testOptions()
	opts.MaxSessionsPerUser = 2
	svc, repo, _ := newTestService(t, opts)
	ctx := context.Background()
	userID := uuid.New()

	first := seedSession(t, repo, userID, "dev-1", 30*time.Minute)
	seedSession(t, repo, userID, "dev-2", 10*time.Minute)

	res, err := svc.Create(ctx, CreateInput{UserID: userID, DeviceID: "dev-3"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(res.Evictions) != 1 {
		t.Fatalf("evictions = %d, want 1", len(res.Evictions))
	}
	if res.Evictions[0].SessionID != first.ID {
		t.Errorf("evicted %s, want %s", res.Evictions[0].SessionID, first.ID)
	}

	active, err := svc.ListActive(ctx, userID)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 2 {
		t.Errorf("active sessions = %d, want cap of 2", len(active))
	}
}
