package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/crjyouth/libris/internal/database"
	"github.com/crjyouth/libris/internal/utils"
)

func testOptions() Options {
	return Options{
		TTL:                4 * time.Hour,
		RefreshThreshold:   120 * time.Second,
		MaxSessionsPerUser: 5,
		RetryBackoff:       []time.Duration{time.Millisecond, time.Millisecond},
		MaxRetries:         3,
	}
}

func newTestService(t *testing.T, opts Options) (Service, Repository, *gorm.DB) {
	t.Helper()
	db := utils.SetupTestDB(t, &Session{})
	repo := NewRepository(db)
	svc := NewService(repo, database.NewTransactionManager(db), opts)
	return svc, repo, db
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newTestService(t, testOptions())
	ctx := context.Background()

	tests := []struct {
		name    string
		in      CreateInput
		wantErr error
	}{
		{"missing user", CreateInput{DeviceID: "dev-1"}, ErrUserIDRequired},
		{"missing device", CreateInput{UserID: uuid.New()}, ErrDeviceIDRequired},
		{"device too long", CreateInput{UserID: uuid.New(), DeviceID: strings.Repeat("x", MaxDeviceIDLength+1)}, ErrDeviceIDTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tt.in); !errors.Is(err, tt.wantErr) {
				t.Errorf("Create: err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateAndValidate(t *testing.T) {
	svc, _, _ := newTestService(t, testOptions())
	ctx := context.Background()
	userID := uuid.New()

	res, err := svc.Create(ctx, CreateInput{
		UserID:    userID,
		DeviceID:  "dev-1",
		UserAgent: "go-test",
		IPAddress: "127.0.0.1",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(res.Evictions) != 0 {
		t.Errorf("Evictions = %d, want 0", len(res.Evictions))
	}

	ok, err := svc.IsValid(ctx, res.Session.ID)
	if err != nil {
		t.Fatalf("IsValid: %v", err)
	}
	if !ok {
		t.Error("fresh session should be valid")
	}

	got, err := svc.GetByID(ctx, res.Session.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.DeviceID != "dev-1" || got.UserAgent != "go-test" {
		t.Errorf("session fields not persisted: %+v", got)
	}
}

func TestGetByIDMissingReturnsNil(t *testing.T) {
	svc, _, _ := newTestService(t, testOptions())

	got, err := svc.GetByID(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got != nil {
		t.Errorf("GetByID = %+v, want nil", got)
	}
}

func TestIsValidStates(t *testing.T) {
	svc, repo, _ := newTestService(t, testOptions())
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	expired := &Session{
		ID: uuid.New(), UserID: uuid.New(), DeviceID: "dev-1",
		CreatedAt: now.Add(-5 * time.Hour), ExpiresAt: now.Add(-time.Hour),
		LastRefreshed: now.Add(-5 * time.Hour), IsActive: true,
	}
	inactive := &Session{
		ID: uuid.New(), UserID: uuid.New(), DeviceID: "dev-1",
		CreatedAt: now, ExpiresAt: now.Add(time.Hour),
		LastRefreshed: now, IsActive: false,
	}
	for _, s := range []*Session{expired, inactive} {
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	if ok, _ := svc.IsValid(ctx, expired.ID); ok {
		t.Error("expired session should not be valid")
	}
	if ok, _ := svc.IsValid(ctx, inactive.ID); ok {
		t.Error("inactive session should not be valid")
	}
	if ok, _ := svc.IsValid(ctx, uuid.New()); ok {
		t.Error("missing session should not be valid")
	}
}

func TestRefresh(t *testing.T) {
	svc, repo, _ := newTestService(t, testOptions())
	ctx := context.Background()

	res, err := svc.Create(ctx, CreateInput{UserID: uuid.New(), DeviceID: "dev-1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	ok, err := svc.Refresh(ctx, res.Session.ID)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if !ok {
		t.Error("Refresh on a live session should succeed")
	}

	refreshed, err := repo.FindByID(ctx, res.Session.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if !refreshed.ExpiresAt.After(res.Session.ExpiresAt.Add(-time.Second)) {
		t.Errorf("expiry did not move forward: %v -> %v", res.Session.ExpiresAt, refreshed.ExpiresAt)
	}

	// refresh on missing and inactive sessions reports false, not an error
	if ok, err := svc.Refresh(ctx, uuid.New()); err != nil || ok {
		t.Errorf("Refresh missing: ok=%v err=%v, want false nil", ok, err)
	}
	if _, err := svc.Invalidate(ctx, res.Session.ID); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if ok, err := svc.Refresh(ctx, res.Session.ID); err != nil || ok {
		t.Errorf("Refresh inactive: ok=%v err=%v, want false nil", ok, err)
	}
}

func TestRefreshExpiredSessionFails(t *testing.T) {
	svc, repo, _ := newTestService(t, testOptions())
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	expired := &Session{
		ID: uuid.New(), UserID: uuid.New(), DeviceID: "dev-1",
		CreatedAt: now.Add(-5 * time.Hour), ExpiresAt: now.Add(-time.Hour),
		LastRefreshed: now.Add(-5 * time.Hour), IsActive: true,
	}
	if err := repo.Create(ctx, expired); err != nil {
		t.Fatalf("Create: %v", err)
	}

	ok, err := svc.Refresh(ctx, expired.ID)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if ok {
		t.Error("an expired session must not be refreshable")
	}

	// the row is untouched
	got, err := repo.FindByID(ctx, expired.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if !got.ExpiresAt.Equal(expired.ExpiresAt) {
		t.Errorf("ExpiresAt changed: %v -> %v", expired.ExpiresAt, got.ExpiresAt)
	}
}

func TestNeedsRefresh(t *testing.T) {
	svc, _, _ := newTestService(t, testOptions())
	now := time.Now().UTC()

	near := &Session{ExpiresAt: now.Add(time.Minute)}
	far := &Session{ExpiresAt: now.Add(time.Hour)}

	if !svc.NeedsRefresh(near, now) {
		t.Error("session a minute from expiry should need a refresh")
	}
	if svc.NeedsRefresh(far, now) {
		t.Error("session an hour from expiry should not need a refresh")
	}
}

func TestInvalidateIdempotent(t *testing.T) {
	svc, _, _ := newTestService(t, testOptions())
	ctx := context.Background()

	res, err := svc.Create(ctx, CreateInput{UserID: uuid.New(), DeviceID: "dev-1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	ok, err := svc.Invalidate(ctx, res.Session.ID)
	if err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if !ok {
		t.Error("first Invalidate should report true")
	}

	// repeating it is harmless but observable: the session was already dead
	if ok, err := svc.Invalidate(ctx, res.Session.ID); err != nil || ok {
		t.Errorf("second Invalidate: ok=%v err=%v, want false nil", ok, err)
	}
	if ok, err := svc.Invalidate(ctx, uuid.New()); err != nil || ok {
		t.Errorf("Invalidate missing: ok=%v err=%v, want false nil", ok, err)
	}
}

func TestListActiveExcludesExpired(t *testing.T) {
	svc, repo, _ := newTestService(t, testOptions())
	ctx := context.Background()
	userID := uuid.New()
	now := time.Now().UTC().Truncate(time.Second)

	res, err := svc.Create(ctx, CreateInput{UserID: userID, DeviceID: "dev-1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// expired but not yet swept by cleanup
	stale := &Session{
		ID: uuid.New(), UserID: userID, DeviceID: "dev-2",
		CreatedAt: now.Add(-5 * time.Hour), ExpiresAt: now.Add(-time.Hour),
		LastRefreshed: now.Add(-5 * time.Hour), IsActive: true,
	}
	if err := repo.Create(ctx, stale); err != nil {
		t.Fatalf("Create: %v", err)
	}

	active, err := svc.ListActive(ctx, userID)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 1 || active[0].ID != res.Session.ID {
		t.Errorf("ListActive = %v, want only the live session %s", active, res.Session.ID)
	}
}

func TestDeactivateAll(t *testing.T) {
	svc, _, _ := newTestService(t, testOptions())
	ctx := context.Background()
	userID := uuid.New()

	var keep uuid.UUID
	for i := 0; i < 3; i++ {
		res, err := svc.Create(ctx, CreateInput{UserID: userID, DeviceID: uuid.NewString()})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		keep = res.Session.ID
	}

	n, err := svc.DeactivateAll(ctx, userID, keep)
	if err != nil {
		t.Fatalf("DeactivateAll: %v", err)
	}
	if n != 2 {
		t.Errorf("DeactivateAll = %d, want 2", n)
	}

	active, err := svc.ListActive(ctx, userID)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 1 || active[0].ID != keep {
		t.Errorf("surviving sessions = %v, want only %s", active, keep)
	}
}
