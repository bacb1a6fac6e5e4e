package store

import (
	"context"
	"fmt"
	"time"

	"microanalytics/internal/enrich"
)

// dayBounds returns the [start, end) UTC midnight-to-midnight window for date.
func dayBounds(date time.Time) (time.Time, time.Time) {
	d := date.UTC()
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}

// RollupDaily recomputes DailyStats for profileID/date from the raw tables
// and overwrites the row. Re-running it for the same profile/date is a
// no-op on the final state: it always derives the row fresh from
// profile_views/link_clicks/sessions rather than incrementing.
func (s *Store) RollupDaily(ctx context.Context, profileID string, date time.Time) error {
	start, end := dayBounds(date)
	_, err := s.db.Exec(ctx, `
		INSERT INTO daily_stats (profile_id, date, views, unique_views, clicks, unique_clicks, sessions, avg_duration, bounce_rate)
		SELECT
			$1,
			$2::date,
			COALESCE((SELECT count(*) FROM profile_views WHERE profile_id = $1 AND timestamp >= $3 AND timestamp < $4), 0),
			COALESCE((SELECT count(DISTINCT session_id) FILTER (WHERE session_id IS NOT NULL) FROM profile_views WHERE profile_id = $1 AND timestamp >= $3 AND timestamp < $4), 0),
			COALESCE((SELECT count(*) FROM link_clicks WHERE profile_id = $1 AND timestamp >= $3 AND timestamp < $4), 0),
			COALESCE((SELECT count(DISTINCT session_id) FILTER (WHERE session_id IS NOT NULL) FROM link_clicks WHERE profile_id = $1 AND timestamp >= $3 AND timestamp < $4), 0),
			COALESCE((SELECT count(*) FROM sessions WHERE profile_id = $1 AND start_time >= $3 AND start_time < $4), 0),
			(SELECT avg(duration) FROM sessions WHERE profile_id = $1 AND start_time >= $3 AND start_time < $4 AND duration IS NOT NULL),
			COALESCE((
				SELECT 100 * (count(*) FILTER (WHERE page_views <= 1))::float8 / NULLIF(count(*), 0)
				FROM sessions WHERE profile_id = $1 AND start_time >= $3 AND start_time < $4
			), 0)
		ON CONFLICT (profile_id, date) DO UPDATE SET
			views = EXCLUDED.views,
			unique_views = EXCLUDED.unique_views,
			clicks = EXCLUDED.clicks,
			unique_clicks = EXCLUDED.unique_clicks,
			sessions = EXCLUDED.sessions,
			avg_duration = EXCLUDED.avg_duration,
			bounce_rate = EXCLUDED.bounce_rate`,
		profileID, date.UTC().Format("2006-01-02"), start, end)
	if err != nil {
		return fmt.Errorf("rollup daily stats: %w", err)
	}
	return nil
}

// RollupLinkStats recomputes every LinkStats row touched on profileID/date.
// link_title/link_url are refreshed from the most recent click that day, so
// Aggregator (unlike the ingest-path increment) is allowed to correct a
// renamed link's display fields.
func (s *Store) RollupLinkStats(ctx context.Context, profileID string, date time.Time) error {
	start, end := dayBounds(date)
	_, err := s.db.Exec(ctx, `
		INSERT INTO link_stats (profile_id, link_index, date, link_title, link_url, clicks, unique_clicks, ctr)
		SELECT
			profile_id,
			link_index,
			$2::date,
			COALESCE((array_agg(link_title ORDER BY timestamp DESC))[1], 'Untitled'),
			COALESCE((array_agg(link_url ORDER BY timestamp DESC))[1], ''),
			count(*),
			count(DISTINCT session_id) FILTER (WHERE session_id IS NOT NULL),
			0
		FROM link_clicks
		WHERE profile_id = $1 AND timestamp >= $3 AND timestamp < $4
		GROUP BY profile_id, link_index
		ON CONFLICT (profile_id, link_index, date) DO UPDATE SET
			link_title = COALESCE(EXCLUDED.link_title, link_stats.link_title),
			link_url = COALESCE(EXCLUDED.link_url, link_stats.link_url),
			clicks = EXCLUDED.clicks,
			unique_clicks = EXCLUDED.unique_clicks`,
		profileID, date.UTC().Format("2006-01-02"), start, end)
	if err != nil {
		return fmt.Errorf("rollup link stats: %w", err)
	}

	// CTR is clicks-per-link over day views; populate it as a second pass
	// against the just-written daily view total so link_stats and
	// daily_stats always agree on the denominator.
	_, err = s.db.Exec(ctx, `
		UPDATE link_stats SET ctr = CASE WHEN d.views > 0 THEN 100 * link_stats.clicks::float8 / d.views ELSE 0 END
		FROM daily_stats d
		WHERE link_stats.profile_id = d.profile_id AND link_stats.date = d.date
		  AND link_stats.profile_id = $1 AND link_stats.date = $2::date`,
		profileID, date.UTC().Format("2006-01-02"))
	if err != nil {
		return fmt.Errorf("rollup link stats ctr: %w", err)
	}
	return nil
}

// RollupGeoStats recomputes every GeoStats row touched on profileID/date,
// folding views and clicks from both raw tables into one (country, city)
// bucket per day.
func (s *Store) RollupGeoStats(ctx context.Context, profileID string, date time.Time) error {
	start, end := dayBounds(date)
	_, err := s.db.Exec(ctx, `
		INSERT INTO geo_stats (profile_id, country, city, region, date, views, clicks)
		SELECT profile_id, country, city, COALESCE(max(region), ''), $2::date, sum(views), sum(clicks)
		FROM (
			SELECT profile_id, country, COALESCE(city, 'unknown') city, region, 1 AS views, 0 AS clicks
			FROM profile_views WHERE profile_id = $1 AND timestamp >= $3 AND timestamp < $4 AND country IS NOT NULL
			UNION ALL
			SELECT profile_id, country, COALESCE(city, 'unknown') city, region, 0, 1
			FROM link_clicks WHERE profile_id = $1 AND timestamp >= $3 AND timestamp < $4 AND country IS NOT NULL
		) combined
		GROUP BY profile_id, country, city
		ON CONFLICT (profile_id, country, city, date) DO UPDATE SET
			region = EXCLUDED.region,
			views = EXCLUDED.views,
			clicks = EXCLUDED.clicks`,
		profileID, date.UTC().Format("2006-01-02"), start, end)
	if err != nil {
		return fmt.Errorf("rollup geo stats: %w", err)
	}
	return nil
}

// RollupDeviceStats recomputes every DeviceStats row touched on profileID/date.
func (s *Store) RollupDeviceStats(ctx context.Context, profileID string, date time.Time) error {
	start, end := dayBounds(date)
	_, err := s.db.Exec(ctx, `
		INSERT INTO device_stats (profile_id, device_type, browser, os, date, views, clicks)
		SELECT profile_id, device_type, browser, os, $2::date, sum(views), sum(clicks)
		FROM (
			SELECT profile_id, COALESCE(device_type, '') device_type, COALESCE(browser, '') browser,
			       COALESCE(os, '') os, 1 AS views, 0 AS clicks
			FROM profile_views WHERE profile_id = $1 AND timestamp >= $3 AND timestamp < $4
			UNION ALL
			SELECT profile_id, COALESCE(device_type, '') device_type, COALESCE(browser, '') browser,
			       COALESCE(os, '') os, 0, 1
			FROM link_clicks WHERE profile_id = $1 AND timestamp >= $3 AND timestamp < $4
		) combined
		GROUP BY profile_id, device_type, browser, os
		ON CONFLICT (profile_id, device_type, browser, os, date) DO UPDATE SET
			views = EXCLUDED.views,
			clicks = EXCLUDED.clicks`,
		profileID, date.UTC().Format("2006-01-02"), start, end)
	if err != nil {
		return fmt.Errorf("rollup device stats: %w", err)
	}
	return nil
}

// RollupReferrerStats recomputes every ReferrerStats row touched on
// profileID/date, classifying each distinct raw referrer string (an empty
// one counts as "direct") into the search/social/direct/other taxonomy as
// it goes.
func (s *Store) RollupReferrerStats(ctx context.Context, profileID string, date time.Time) error {
	start, end := dayBounds(date)
	rows, err := s.db.Query(ctx, `
		SELECT referrer, sum(views), sum(clicks)
		FROM (
			SELECT COALESCE(NULLIF(referrer, ''), 'direct') referrer, 1 AS views, 0 AS clicks
			FROM profile_views WHERE profile_id = $1 AND timestamp >= $2 AND timestamp < $3
			UNION ALL
			SELECT COALESCE(NULLIF(referrer, ''), 'direct') referrer, 0, 1
			FROM link_clicks WHERE profile_id = $1 AND timestamp >= $2 AND timestamp < $3
		) combined
		GROUP BY referrer`,
		profileID, start, end)
	if err != nil {
		return fmt.Errorf("query referrer stats: %w", err)
	}
	type row struct {
		referrer       string
		views, clicks  int64
	}
	var buckets []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.referrer, &r.views, &r.clicks); err != nil {
			rows.Close()
			return fmt.Errorf("scan referrer stats: %w", err)
		}
		buckets = append(buckets, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate referrer stats: %w", err)
	}

	dateStr := date.UTC().Format("2006-01-02")
	for _, b := range buckets {
		_, err := s.db.Exec(ctx, `
			INSERT INTO referrer_stats (profile_id, referrer, date, referrer_type, views, clicks)
			VALUES ($1,$2,$3::date,$4,$5,$6)
			ON CONFLICT (profile_id, referrer, date) DO UPDATE SET
				referrer_type = EXCLUDED.referrer_type,
				views = EXCLUDED.views,
				clicks = EXCLUDED.clicks`,
			profileID, b.referrer, dateStr, string(enrich.ClassifyReferrer(b.referrer)), b.views, b.clicks)
		if err != nil {
			return fmt.Errorf("upsert referrer stats %q: %w", b.referrer, err)
		}
	}
	return nil
}

// RollupAll runs every rollup for profileID/date. Order doesn't matter
// between them except that daily must land before link CTR, since link
// CTR divides by the day's view total.
func (s *Store) RollupAll(ctx context.Context, profileID string, date time.Time) error {
	if err := s.RollupDaily(ctx, profileID, date); err != nil {
		return err
	}
	if err := s.RollupLinkStats(ctx, profileID, date); err != nil {
		return err
	}
	if err := s.RollupGeoStats(ctx, profileID, date); err != nil {
		return err
	}
	if err := s.RollupDeviceStats(ctx, profileID, date); err != nil {
		return err
	}
	if err := s.RollupReferrerStats(ctx, profileID, date); err != nil {
		return err
	}
	return nil
}

// ProfilesActiveOn lists every profile with at least one raw event in
// [date, date+1day), the fan-out unit Aggregator hands to its worker pool.
func (s *Store) ProfilesActiveOn(ctx context.Context, date time.Time) ([]string, error) {
	start, end := dayBounds(date)
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT profile_id FROM (
			SELECT profile_id FROM profile_views WHERE timestamp >= $1 AND timestamp < $2
			UNION
			SELECT profile_id FROM link_clicks WHERE timestamp >= $1 AND timestamp < $2
		) p`, start, end)
	if err != nil {
		return nil, fmt.Errorf("list active profiles: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan active profile: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
