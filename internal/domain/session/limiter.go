package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Eviction strategies, logged with every forced invalidation.
const (
	StrategyPerDeviceLRU = "per_device_lru"
	StrategyGlobalLRU    = "global_lru"
)

// Eviction records one session forced out by the limit check.
type Eviction struct {
	SessionID uuid.UUID `json:"session_id"`
	DeviceID  string    `json:"device_id"`
	UserAgent string    `json:"user_agent"`
	Strategy  string    `json:"strategy"`
}

// LimitManager enforces the per-user session cap. When a user is at the
// cap and the requesting device holds multiple sessions, it evicts the
// least recently refreshed one among those; otherwise it evicts the
// globally least recently refreshed session.
type LimitManager struct {
	repo        Repository
	maxSessions int
}

func NewLimitManager(repo Repository, maxSessions int) *LimitManager {
	return &LimitManager{repo: repo, maxSessions: maxSessions}
}

// EnforceLimit makes room for one new session on deviceID. It must run
// inside the same transaction as the subsequent insert, after the per-user
// lock is held. Returns the evictions performed.
func (m *LimitManager) EnforceLimit(ctx context.Context, userID uuid.UUID, deviceID string) ([]Eviction, error) {
	active, err := m.repo.FindActiveByUser(ctx, userID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if len(active) < m.maxSessions {
		return nil, nil
	}

	var evictions []Eviction

	// Evict until one slot is free. Normally a single pass, but a user
	// already above the cap sheds the surplus too.
	for len(active) >= m.maxSessions {
		victim, strategy := m.pickVictim(active, deviceID)

		ok, err := m.repo.Invalidate(ctx, victim.ID)
		if err != nil {
			return evictions, err
		}
		if !ok {
			return evictions, fmt.Errorf("session %s vanished during eviction", victim.ID)
		}

		slog.Info("session evicted",
			"strategy", strategy,
			"session_id", victim.ID,
			"user_id", userID,
			"device_id", victim.DeviceID,
			"user_agent", victim.UserAgent,
			"reason", "session limit reached",
		)

		evictions = append(evictions, Eviction{
			SessionID: victim.ID,
			DeviceID:  victim.DeviceID,
			UserAgent: victim.UserAgent,
			Strategy:  strategy,
		})

		active = removeSession(active, victim.ID)
	}

	return evictions, nil
}

// pickVictim selects the session to evict. Same-device LRU applies only
// when the device holds more than one session; a device with a single
// session keeps it and the globally oldest session goes instead.
func (m *LimitManager) pickVictim(active []Session, deviceID string) (Session, string) {
	var sameDevice []Session
	for _, s := range active {
		if s.DeviceID == deviceID {
			sameDevice = append(sameDevice, s)
		}
	}
	if len(sameDevice) > 1 {
		return oldestSession(sameDevice), StrategyPerDeviceLRU
	}
	return oldestSession(active), StrategyGlobalLRU
}

// oldestSession returns the least recently refreshed session. Ties break
// on the lexically smallest id so concurrent enforcers agree on the victim.
func oldestSession(sessions []Session) Session {
	oldest := sessions[0]
	for _, s := range sessions[1:] {
		if s.LastRefreshed.Before(oldest.LastRefreshed) {
			oldest = s
			continue
		}
		if s.LastRefreshed.Equal(oldest.LastRefreshed) && s.ID.String() < oldest.ID.String() {
			oldest = s
		}
	}
	return oldest
}

func removeSession(sessions []Session, id uuid.UUID) []Session {
	out := sessions[:0]
	for _, s := range sessions {
		if s.ID != id {
			out = append(out, s)
		}
	}
	return out
}
