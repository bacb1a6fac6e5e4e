package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DeleteOldProfileViews removes raw view rows older than the retention
// window, returning the count removed.
func (s *Store) DeleteOldProfileViews(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM profile_views WHERE timestamp < now() - make_interval(secs => $1)`, olderThan.Seconds())
	if err != nil {
		return 0, fmt.Errorf("delete old profile views: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteOldLinkClicks removes raw click rows older than the retention window.
func (s *Store) DeleteOldLinkClicks(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM link_clicks WHERE timestamp < now() - make_interval(secs => $1)`, olderThan.Seconds())
	if err != nil {
		return 0, fmt.Errorf("delete old link clicks: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteOldSessions removes closed sessions whose start_time is older than
// the retention window. Open sessions are never deleted by this sweep —
// CloseOrphanSessions must run first to close anything truly abandoned.
func (s *Store) DeleteOldSessions(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM sessions
		WHERE end_time IS NOT NULL AND start_time < now() - make_interval(secs => $1)`, olderThan.Seconds())
	if err != nil {
		return 0, fmt.Errorf("delete old sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CloseOrphanSessions ends any session still open after idleAfter has
// elapsed since its start_time, on the assumption the visitor left without
// a final event ever arriving to close it out explicitly.
func (s *Store) CloseOrphanSessions(ctx context.Context, idleAfter time.Duration) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE sessions SET
			end_time = now(),
			duration = EXTRACT(EPOCH FROM (now() - start_time))::bigint
		WHERE end_time IS NULL AND start_time < now() - make_interval(secs => $1)`, idleAfter.Seconds())
	if err != nil {
		return 0, fmt.Errorf("close orphan sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteOldRollups removes DailyStats/LinkStats/GeoStats/DeviceStats/
// ReferrerStats rows past the rollup retention window (years, not days).
func (s *Store) DeleteOldRollups(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format("2006-01-02")
	var total int64
	var errs []error
	for _, table := range []string{"daily_stats", "link_stats", "geo_stats", "device_stats", "referrer_stats"} {
		tag, err := s.db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE date < $1::date`, table), cutoff)
		if err != nil {
			errs = append(errs, fmt.Errorf("delete old rows from %s: %w", table, err))
			continue
		}
		total += tag.RowsAffected()
	}
	return total, errors.Join(errs...)
}

// DeleteOldRealtimeEvents removes already-processed durable bus rows older
// than olderThan, keeping the realtime_events table from growing unbounded.
func (s *Store) DeleteOldRealtimeEvents(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM realtime_events WHERE processed AND timestamp < now() - make_interval(secs => $1)`, olderThan.Seconds())
	if err != nil {
		return 0, fmt.Errorf("delete old realtime events: %w", err)
	}
	return tag.RowsAffected(), nil
}
