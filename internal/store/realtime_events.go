package store

import (
	"context"
	"fmt"
)

// InsertRealtimeEvent records one durable bus row and returns its id.
func (s *Store) InsertRealtimeEvent(ctx context.Context, profileID, kind string, payload []byte) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO realtime_events (profile_id, kind, payload) VALUES ($1, $2, $3) RETURNING id`,
		profileID, kind, payload).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert realtime event: %w", err)
	}
	return id, nil
}

// MarkRealtimeEventProcessed flags id as delivered.
func (s *Store) MarkRealtimeEventProcessed(ctx context.Context, id int64) error {
	_, err := s.db.Exec(ctx, `UPDATE realtime_events SET processed = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark realtime event processed: %w", err)
	}
	return nil
}

// UnprocessedRealtimeEvents fetches up to limit undelivered events, oldest
// first, for a retry sweep.
func (s *Store) UnprocessedRealtimeEvents(ctx context.Context, limit int) ([]int64, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id FROM realtime_events WHERE NOT processed ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query unprocessed realtime events: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan unprocessed realtime event: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
