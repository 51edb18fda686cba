package cache

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NonceTTL bounds how long a login nonce stays valid.
const NonceTTL = 10 * time.Minute

// NonceStore issues single-use nonces for the login handshake. Nonces live
// in Redis so every worker process sees the same set.
type NonceStore struct {
	client *redis.Client
}

func NewNonceStore(client *redis.Client) *NonceStore {
	return &NonceStore{client: client}
}

// Issue creates a new nonce and stores it with a bounded TTL.
func (s *NonceStore) Issue(ctx context.Context) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	nonce := hex.EncodeToString(buf)

	if err := s.client.Set(ctx, s.key(nonce), "1", NonceTTL).Err(); err != nil {
		return "", fmt.Errorf("failed to store nonce: %w", err)
	}
	return nonce, nil
}

// Consume atomically validates and deletes a nonce. Returns false when the
// nonce is unknown, expired or already used.
func (s *NonceStore) Consume(ctx context.Context, nonce string) (bool, error) {
	if nonce == "" {
		return false, nil
	}
	err := s.client.GetDel(ctx, s.key(nonce)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to consume nonce: %w", err)
	}
	return true, nil
}

func (s *NonceStore) key(nonce string) string {
	return "libris:nonce:" + nonce
}
