package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// CacheGet returns the cached payload for key if present and unexpired.
func (s *Store) CacheGet(ctx context.Context, key string) ([]byte, bool, error) {
	var payload []byte
	err := s.db.QueryRow(ctx, `
		SELECT payload FROM analytics_cache WHERE key = $1 AND expires_at > now()`, key).Scan(&payload)
	if err == pgx.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get analytics cache: %w", err)
	}
	return payload, true, nil
}

// CacheSet stores payload under key with the given TTL, overwriting
// whatever was there before.
func (s *Store) CacheSet(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO analytics_cache (key, payload, expires_at)
		VALUES ($1, $2, now() + make_interval(secs => $3))
		ON CONFLICT (key) DO UPDATE SET payload = EXCLUDED.payload, expires_at = EXCLUDED.expires_at`,
		key, payload, ttl.Seconds())
	if err != nil {
		return fmt.Errorf("set analytics cache: %w", err)
	}
	return nil
}

// CacheDeleteExpired sweeps every expired row, returning the count removed.
// Retention calls this on its hourly schedule.
func (s *Store) CacheDeleteExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM analytics_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("sweep expired cache: %w", err)
	}
	return tag.RowsAffected(), nil
}
