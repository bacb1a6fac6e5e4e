package store

import (
	"context"
	"fmt"
	"time"

	"microanalytics/internal/models"

	"github.com/jackc/pgx/v5"
)

// InsertProfileView inserts one raw view row and returns its id.
func (s *Store) InsertProfileView(ctx context.Context, v models.ProfileView) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO profile_views
			(profile_id, session_id, visitor_ip, user_agent, referrer, country, region, city, device_type, browser, os, timestamp)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING id`,
		v.ProfileID, nullable(v.SessionID), nullable(v.VisitorIP), nullable(v.UserAgent), nullable(v.Referrer),
		nullable(v.Country), nullable(v.Region), nullable(v.City), nullable(v.DeviceType), nullable(v.Browser), nullable(v.OS),
		v.Timestamp,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert profile view: %w", err)
	}
	return id, nil
}

// InsertLinkClick inserts one raw click row and returns its id.
func (s *Store) InsertLinkClick(ctx context.Context, c models.LinkClick) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO link_clicks
			(profile_id, link_index, link_title, link_url, session_id, visitor_ip, user_agent, referrer,
			 country, region, city, device_type, browser, os, timestamp)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING id`,
		c.ProfileID, c.LinkIndex, nullable(c.LinkTitle), nullable(c.LinkURL), nullable(c.SessionID),
		nullable(c.VisitorIP), nullable(c.UserAgent), nullable(c.Referrer),
		nullable(c.Country), nullable(c.Region), nullable(c.City), nullable(c.DeviceType), nullable(c.Browser), nullable(c.OS),
		c.Timestamp,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert link click: %w", err)
	}
	return id, nil
}

// BatchInsertProfileViews bulk-inserts views via UNNEST and returns the
// generated ids in the same order as the input.
func (s *Store) BatchInsertProfileViews(ctx context.Context, views []models.ProfileView) ([]int64, error) {
	if len(views) == 0 {
		return nil, nil
	}
	n := len(views)
	profileIDs := make([]string, n)
	sessionIDs := make([]string, n)
	ips := make([]string, n)
	uas := make([]string, n)
	referrers := make([]string, n)
	countries := make([]string, n)
	regions := make([]string, n)
	cities := make([]string, n)
	deviceTypes := make([]string, n)
	browsers := make([]string, n)
	oses := make([]string, n)
	timestamps := make([]time.Time, n)

	for i, v := range views {
		profileIDs[i] = v.ProfileID
		sessionIDs[i] = v.SessionID
		ips[i] = v.VisitorIP
		uas[i] = v.UserAgent
		referrers[i] = v.Referrer
		countries[i] = v.Country
		regions[i] = v.Region
		cities[i] = v.City
		deviceTypes[i] = v.DeviceType
		browsers[i] = v.Browser
		oses[i] = v.OS
		timestamps[i] = v.Timestamp
	}

	rows, err := s.db.Query(ctx, `
		INSERT INTO profile_views
			(profile_id, session_id, visitor_ip, user_agent, referrer, country, region, city, device_type, browser, os, timestamp)
		SELECT * FROM UNNEST(
			$1::text[], $2::text[], $3::text[], $4::text[], $5::text[],
			$6::text[], $7::text[], $8::text[], $9::text[], $10::text[], $11::text[], $12::timestamptz[]
		)
		RETURNING id`,
		profileIDs, sessionIDs, ips, uas, referrers, countries, regions, cities, deviceTypes, browsers, oses, timestamps,
	)
	if err != nil {
		return nil, fmt.Errorf("batch insert profile views: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0, n)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan batch insert id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpsertSessionOnView creates the session on its first event (pageViews=1,
// linkClicks=0), or bumps endTime/duration/pageViews on a later one. The
// UPSERT is a single statement so concurrent writers to the same session
// serialize at the database and every committed event is counted exactly
// once, regardless of arrival order.
func (s *Store) UpsertSessionOnView(ctx context.Context, sessionID, profileID string, geo GeoDevice, now time.Time) (models.Session, error) {
	return s.upsertSession(ctx, sessionID, profileID, geo, now, "page_views")
}

// UpsertSessionOnClick is the click-path equivalent of UpsertSessionOnView.
func (s *Store) UpsertSessionOnClick(ctx context.Context, sessionID, profileID string, geo GeoDevice, now time.Time) (models.Session, error) {
	return s.upsertSession(ctx, sessionID, profileID, geo, now, "link_clicks")
}

// GeoDevice is the enrichment bundle Ingest threads through session/row writes.
type GeoDevice struct {
	VisitorIP  string
	UserAgent  string
	Country    string
	Region     string
	City       string
	DeviceType string
	Browser    string
	OS         string
}

func (s *Store) upsertSession(ctx context.Context, sessionID, profileID string, g GeoDevice, now time.Time, incrementCol string) (models.Session, error) {
	pageViews, linkClicks := 1, 0
	if incrementCol == "link_clicks" {
		pageViews, linkClicks = 0, 1
	}

	query := fmt.Sprintf(`
		INSERT INTO sessions
			(session_id, profile_id, visitor_ip, user_agent, country, region, city, device_type, browser, os,
			 start_time, page_views, link_clicks)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (session_id) DO UPDATE SET
			end_time = $11,
			duration = EXTRACT(EPOCH FROM ($11 - sessions.start_time))::bigint,
			%s = sessions.%s + 1
		RETURNING session_id, profile_id, visitor_ip, user_agent, country, region, city, device_type, browser, os,
			start_time, end_time, duration, page_views, link_clicks`, incrementCol, incrementCol)

	var sess models.Session
	var ip, ua, country, region, city, deviceType, browser, os pgxText
	err := s.db.QueryRow(ctx, query,
		sessionID, profileID, nullable(g.VisitorIP), nullable(g.UserAgent), nullable(g.Country), nullable(g.Region),
		nullable(g.City), nullable(g.DeviceType), nullable(g.Browser), nullable(g.OS), now, pageViews, linkClicks,
	).Scan(&sess.SessionID, &sess.ProfileID, &ip, &ua, &country, &region, &city, &deviceType, &browser, &os,
		&sess.StartTime, &sess.EndTime, &sess.Duration, &sess.PageViews, &sess.LinkClicks)
	if err != nil {
		return models.Session{}, fmt.Errorf("upsert session: %w", err)
	}
	sess.VisitorIP, sess.UserAgent = ip.String, ua.String
	sess.Country, sess.Region, sess.City = country.String, region.String, city.String
	sess.DeviceType, sess.Browser, sess.OS = deviceType.String, browser.String, os.String
	return sess, nil
}

// EndSession closes a session if it is still open. Idempotent: calling it
// again on an already-closed session is a no-op.
func (s *Store) EndSession(ctx context.Context, sessionID string, now time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE sessions SET
			end_time = $2,
			duration = EXTRACT(EPOCH FROM ($2 - start_time))::bigint
		WHERE session_id = $1 AND end_time IS NULL`, sessionID, now)
	if err != nil {
		return false, fmt.Errorf("end session: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetSession fetches a session by id, or (false, nil) if it doesn't exist.
func (s *Store) GetSession(ctx context.Context, sessionID string) (models.Session, bool, error) {
	var sess models.Session
	var ip, ua, country, region, city, deviceType, browser, os pgxText
	err := s.db.QueryRow(ctx, `
		SELECT session_id, profile_id, visitor_ip, user_agent, country, region, city, device_type, browser, os,
			start_time, end_time, duration, page_views, link_clicks
		FROM sessions WHERE session_id = $1`, sessionID,
	).Scan(&sess.SessionID, &sess.ProfileID, &ip, &ua, &country, &region, &city, &deviceType, &browser, &os,
		&sess.StartTime, &sess.EndTime, &sess.Duration, &sess.PageViews, &sess.LinkClicks)
	if err == pgx.ErrNoRows {
		return models.Session{}, false, nil
	}
	if err != nil {
		return models.Session{}, false, fmt.Errorf("get session: %w", err)
	}
	sess.VisitorIP, sess.UserAgent = ip.String, ua.String
	sess.Country, sess.Region, sess.City = country.String, region.String, city.String
	sess.DeviceType, sess.Browser, sess.OS = deviceType.String, browser.String, os.String
	return sess, true, nil
}

// IncrementDailyViews upserts today's DailyStats row with views+=1, best
// effort — Aggregator is the source of truth and overwrites it nightly.
func (s *Store) IncrementDailyViews(ctx context.Context, profileID string, date time.Time) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO daily_stats (profile_id, date, views)
		VALUES ($1, $2, 1)
		ON CONFLICT (profile_id, date) DO UPDATE SET views = daily_stats.views + 1`,
		profileID, date)
	if err != nil {
		return fmt.Errorf("increment daily views: %w", err)
	}
	return nil
}

// IncrementDailyClicks is the click-path equivalent of IncrementDailyViews.
func (s *Store) IncrementDailyClicks(ctx context.Context, profileID string, date time.Time) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO daily_stats (profile_id, date, clicks)
		VALUES ($1, $2, 1)
		ON CONFLICT (profile_id, date) DO UPDATE SET clicks = daily_stats.clicks + 1`,
		profileID, date)
	if err != nil {
		return fmt.Errorf("increment daily clicks: %w", err)
	}
	return nil
}

// IncrementLinkClicks upserts today's LinkStats row. linkTitle/linkUrl are
// set only on the INSERT branch — Aggregator owns them afterwards.
func (s *Store) IncrementLinkClicks(ctx context.Context, profileID string, linkIndex int, date time.Time, title, url string) error {
	if title == "" {
		title = "Untitled"
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO link_stats (profile_id, link_index, date, link_title, link_url, clicks)
		VALUES ($1,$2,$3,$4,$5,1)
		ON CONFLICT (profile_id, link_index, date) DO UPDATE SET clicks = link_stats.clicks + 1`,
		profileID, linkIndex, date, title, url)
	if err != nil {
		return fmt.Errorf("increment link clicks: %w", err)
	}
	return nil
}

// pgxText scans a nullable text column into a zero-value-on-NULL string.
type pgxText struct{ String string }

func (t *pgxText) Scan(src any) error {
	if src == nil {
		t.String = ""
		return nil
	}
	switch v := src.(type) {
	case string:
		t.String = v
	case []byte:
		t.String = string(v)
	}
	return nil
}

// nullable turns an empty Go string into SQL NULL, since empty and absent
// are the same "optional, missing" value throughout this data model.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
