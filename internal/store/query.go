package store

import (
	"context"
	"fmt"
	"time"

	"microanalytics/internal/models"
)

// DailyStatsRange returns the DailyStats rows for profileID across
// [start, end], ordered by date. This is the rollup-shortcut path Query
// prefers whenever the range aligns to whole days already rolled up.
func (s *Store) DailyStatsRange(ctx context.Context, profileID string, start, end time.Time) ([]models.DailyStats, error) {
	rows, err := s.db.Query(ctx, `
		SELECT profile_id, date::text, views, unique_views, clicks, unique_clicks, sessions, avg_duration, bounce_rate
		FROM daily_stats
		WHERE profile_id = $1 AND date >= $2::date AND date <= $3::date
		ORDER BY date`,
		profileID, start.UTC().Format("2006-01-02"), end.UTC().Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("query daily stats range: %w", err)
	}
	defer rows.Close()

	var out []models.DailyStats
	for rows.Next() {
		var d models.DailyStats
		if err := rows.Scan(&d.ProfileID, &d.Date, &d.Views, &d.UniqueViews, &d.Clicks, &d.UniqueClicks, &d.Sessions, &d.AvgDuration, &d.BounceRate); err != nil {
			return nil, fmt.Errorf("scan daily stats: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// LinkStatsRange returns every LinkStats row across [start, end], summed
// per link rather than per day, ordered by clicks descending.
func (s *Store) LinkStatsRange(ctx context.Context, profileID string, start, end time.Time) ([]models.LinkPerformance, error) {
	rows, err := s.db.Query(ctx, `
		SELECT link_index, (array_agg(link_title ORDER BY date DESC))[1], (array_agg(link_url ORDER BY date DESC))[1],
		       sum(clicks), sum(unique_clicks)
		FROM link_stats
		WHERE profile_id = $1 AND date >= $2::date AND date <= $3::date
		GROUP BY link_index
		ORDER BY sum(clicks) DESC`,
		profileID, start.UTC().Format("2006-01-02"), end.UTC().Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("query link stats range: %w", err)
	}
	defer rows.Close()

	// CTR is left at 0 here; Query recomputes it once it also has the
	// range's total view count.
	var out []models.LinkPerformance
	for rows.Next() {
		var l models.LinkPerformance
		if err := rows.Scan(&l.LinkIndex, &l.LinkTitle, &l.LinkURL, &l.Clicks, &l.UniqueClicks); err != nil {
			return nil, fmt.Errorf("scan link stats: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// GeoStatsRange returns every GeoStats row across [start, end], summed per
// (country, city), ordered by views descending.
func (s *Store) GeoStatsRange(ctx context.Context, profileID string, start, end time.Time) ([]models.GeoPoint, error) {
	rows, err := s.db.Query(ctx, `
		SELECT country, (array_agg(region ORDER BY date DESC))[1], city, sum(views), sum(clicks)
		FROM geo_stats
		WHERE profile_id = $1 AND date >= $2::date AND date <= $3::date
		GROUP BY country, city
		ORDER BY sum(views) DESC`,
		profileID, start.UTC().Format("2006-01-02"), end.UTC().Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("query geo stats range: %w", err)
	}
	defer rows.Close()

	var out []models.GeoPoint
	for rows.Next() {
		var g models.GeoPoint
		if err := rows.Scan(&g.Country, &g.Region, &g.City, &g.Views, &g.Clicks); err != nil {
			return nil, fmt.Errorf("scan geo stats: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// DeviceStatsRange returns every DeviceStats row across [start, end],
// summed per (deviceType, browser, os), ordered by views descending.
func (s *Store) DeviceStatsRange(ctx context.Context, profileID string, start, end time.Time) ([]models.DevicePoint, error) {
	rows, err := s.db.Query(ctx, `
		SELECT device_type, browser, os, sum(views), sum(clicks)
		FROM device_stats
		WHERE profile_id = $1 AND date >= $2::date AND date <= $3::date
		GROUP BY device_type, browser, os
		ORDER BY sum(views) DESC`,
		profileID, start.UTC().Format("2006-01-02"), end.UTC().Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("query device stats range: %w", err)
	}
	defer rows.Close()

	var out []models.DevicePoint
	for rows.Next() {
		var d models.DevicePoint
		if err := rows.Scan(&d.DeviceType, &d.Browser, &d.OS, &d.Views, &d.Clicks); err != nil {
			return nil, fmt.Errorf("scan device stats: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ReferrerStatsRange returns every ReferrerStats row across [start, end],
// summed per referrer hostname (the raw referrer when it has no URL
// scheme), ordered by views descending.
func (s *Store) ReferrerStatsRange(ctx context.Context, profileID string, start, end time.Time) ([]models.ReferrerPoint, error) {
	rows, err := s.db.Query(ctx, `
		SELECT COALESCE(substring(referrer from '^[A-Za-z][A-Za-z0-9+.-]*://([^/?#:]+)'), referrer) AS host,
		       (array_agg(referrer_type ORDER BY date DESC))[1], sum(views), sum(clicks)
		FROM referrer_stats
		WHERE profile_id = $1 AND date >= $2::date AND date <= $3::date
		GROUP BY host
		ORDER BY sum(views) DESC`,
		profileID, start.UTC().Format("2006-01-02"), end.UTC().Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("query referrer stats range: %w", err)
	}
	defer rows.Close()

	var out []models.ReferrerPoint
	for rows.Next() {
		var r models.ReferrerPoint
		var rtype string
		if err := rows.Scan(&r.Referrer, &rtype, &r.Views, &r.Clicks); err != nil {
			return nil, fmt.Errorf("scan referrer stats: %w", err)
		}
		r.ReferrerType = models.ReferrerType(rtype)
		out = append(out, r)
	}
	return out, rows.Err()
}

// TimeSeriesRange buckets raw profile_views/link_clicks into period-sized
// buckets across [start, end]. Query uses it for every report's time
// series, and also to total views/clicks when the requested range doesn't
// align to whole UTC days.
func (s *Store) TimeSeriesRange(ctx context.Context, profileID string, start, end time.Time, period models.Period) ([]models.TimeSeriesPoint, error) {
	trunc, err := truncUnit(period)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, fmt.Sprintf(`
		SELECT to_char(date_trunc('%s', bucket), 'YYYY-MM-DD"T"HH24:MI:SS"Z"') AS b, sum(views), sum(clicks)
		FROM (
			SELECT timestamp AS bucket, 1 AS views, 0 AS clicks FROM profile_views
			WHERE profile_id = $1 AND timestamp >= $2 AND timestamp <= $3
			UNION ALL
			SELECT timestamp AS bucket, 0, 1 FROM link_clicks
			WHERE profile_id = $1 AND timestamp >= $2 AND timestamp <= $3
		) combined
		GROUP BY b
		ORDER BY b`, trunc), profileID, start, end)
	if err != nil {
		return nil, fmt.Errorf("query time series: %w", err)
	}
	defer rows.Close()

	var out []models.TimeSeriesPoint
	for rows.Next() {
		var p models.TimeSeriesPoint
		if err := rows.Scan(&p.Bucket, &p.Views, &p.Clicks); err != nil {
			return nil, fmt.Errorf("scan time series: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func truncUnit(period models.Period) (string, error) {
	switch period {
	case models.PeriodHour:
		return "hour", nil
	case models.PeriodDay:
		return "day", nil
	case models.PeriodWeek:
		return "week", nil
	case models.PeriodMonth:
		return "month", nil
	default:
		return "", fmt.Errorf("unknown period %q", period)
	}
}

// ActiveVisitorCount counts sessions still open (no end_time) that also
// started within the window, for profileID as of now — the activeUsers
// figure in RealTimeAnalytics.
func (s *Store) ActiveVisitorCount(ctx context.Context, profileID string, since time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `
		SELECT count(*) FROM sessions
		WHERE profile_id = $1 AND end_time IS NULL AND start_time >= $2`,
		profileID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active visitors: %w", err)
	}
	return n, nil
}

// RecentEventCounts returns the raw view/click counts for profileID since
// the given cutoff, for RealTimeAnalytics.recentViews/recentClicks.
func (s *Store) RecentEventCounts(ctx context.Context, profileID string, since time.Time) (views, clicks int64, err error) {
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM profile_views WHERE profile_id = $1 AND timestamp >= $2`, profileID, since).Scan(&views); err != nil {
		return 0, 0, fmt.Errorf("count recent views: %w", err)
	}
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM link_clicks WHERE profile_id = $1 AND timestamp >= $2`, profileID, since).Scan(&clicks); err != nil {
		return 0, 0, fmt.Errorf("count recent clicks: %w", err)
	}
	return views, clicks, nil
}

// UniqueSessionCounts counts distinct non-null session ids over
// profile_views/link_clicks in [start, end], for the raw-table query path
// that falls outside the daily rollup shortcut.
func (s *Store) UniqueSessionCounts(ctx context.Context, profileID string, start, end time.Time) (uniqueViews, uniqueClicks int64, err error) {
	if err := s.db.QueryRow(ctx, `
		SELECT count(DISTINCT session_id) FILTER (WHERE session_id IS NOT NULL)
		FROM profile_views WHERE profile_id = $1 AND timestamp >= $2 AND timestamp <= $3`,
		profileID, start, end).Scan(&uniqueViews); err != nil {
		return 0, 0, fmt.Errorf("count unique views: %w", err)
	}
	if err := s.db.QueryRow(ctx, `
		SELECT count(DISTINCT session_id) FILTER (WHERE session_id IS NOT NULL)
		FROM link_clicks WHERE profile_id = $1 AND timestamp >= $2 AND timestamp <= $3`,
		profileID, start, end).Scan(&uniqueClicks); err != nil {
		return 0, 0, fmt.Errorf("count unique clicks: %w", err)
	}
	return uniqueViews, uniqueClicks, nil
}
