package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	cleanupReportsKey = "libris:cleanup:reports"

	// maxStoredReports caps the rolling buffer at one day of hourly runs.
	maxStoredReports = 24
)

// CleanupMetricsStore keeps a rolling buffer of cleanup run reports in
// Redis, shared across worker and cron processes.
type CleanupMetricsStore struct {
	client *redis.Client
}

func NewCleanupMetricsStore(client *redis.Client) *CleanupMetricsStore {
	return &CleanupMetricsStore{client: client}
}

// Append stores one report and trims the buffer to the newest entries.
func (s *CleanupMetricsStore) Append(ctx context.Context, report any) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode cleanup report: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, cleanupReportsKey, data)
	pipe.LTrim(ctx, cleanupReportsKey, -maxStoredReports, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store cleanup report: %w", err)
	}
	return nil
}

// List returns the stored reports, oldest first, decoded into out which
// must be a pointer to a slice.
func (s *CleanupMetricsStore) List(ctx context.Context, decode func(data []byte) error) error {
	entries, err := s.client.LRange(ctx, cleanupReportsKey, 0, -1).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("failed to read cleanup reports: %w", err)
	}
	for _, entry := range entries {
		if err := decode([]byte(entry)); err != nil {
			return err
		}
	}
	return nil
}

// Reset clears the buffer, typically after a daily rollup.
func (s *CleanupMetricsStore) Reset(ctx context.Context) error {
	if err := s.client.Del(ctx, cleanupReportsKey).Err(); err != nil {
		return fmt.Errorf("failed to reset cleanup reports: %w", err)
	}
	return nil
}
