//go:build integration

package store

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"microanalytics/internal/models"
)

func TestDailyStatsRangeAfterRollup(t *testing.T) {
	st, ctx := newTestStore(t)
	profileID := uuid.NewString()
	date := time.Now().UTC()
	start, _ := dayBounds(date)

	if _, err := st.InsertProfileView(ctx, models.ProfileView{
		ProfileID: profileID, SessionID: uuid.NewString(), Timestamp: start.Add(time.Hour),
	}); err != nil {
		t.Fatalf("InsertProfileView: %v", err)
	}
	if err := st.RollupDaily(ctx, profileID, date); err != nil {
		t.Fatalf("RollupDaily: %v", err)
	}

	rows, err := st.DailyStatsRange(ctx, profileID, date, date)
	if err != nil {
		t.Fatalf("DailyStatsRange: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("DailyStatsRange returned %d rows, want 1", len(rows))
	}
	if rows[0].Views != 1 {
		t.Errorf("Views = %d, want 1", rows[0].Views)
	}
}

func TestTimeSeriesRangeBucketsByHour(t *testing.T) {
	st, ctx := newTestStore(t)
	profileID := uuid.NewString()
	now := time.Now().UTC()

	if _, err := st.InsertProfileView(ctx, models.ProfileView{
		ProfileID: profileID, SessionID: uuid.NewString(), Timestamp: now,
	}); err != nil {
		t.Fatalf("InsertProfileView: %v", err)
	}

	points, err := st.TimeSeriesRange(ctx, profileID, now.Add(-time.Hour), now.Add(time.Hour), models.PeriodHour)
	if err != nil {
		t.Fatalf("TimeSeriesRange: %v", err)
	}
	if len(points) == 0 {
		t.Error("TimeSeriesRange returned no buckets for a view inserted inside the window")
	}
}

func TestActiveVisitorCountAndRecentEventCounts(t *testing.T) {
	st, ctx := newTestStore(t)
	profileID := uuid.NewString()
	sessionID := uuid.NewString()
	now := time.Now().UTC()

	if _, err := st.upsertSession(ctx, sessionID, profileID, GeoDevice{}, now, "page_views"); err != nil {
		t.Fatalf("upsertSession: %v", err)
	}
	if _, err := st.InsertProfileView(ctx, models.ProfileView{
		ProfileID: profileID, SessionID: sessionID, Timestamp: now,
	}); err != nil {
		t.Fatalf("InsertProfileView: %v", err)
	}

	active, err := st.ActiveVisitorCount(ctx, profileID, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("ActiveVisitorCount: %v", err)
	}
	if active != 1 {
		t.Errorf("ActiveVisitorCount = %d, want 1", active)
	}

	views, clicks, err := st.RecentEventCounts(ctx, profileID, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("RecentEventCounts: %v", err)
	}
	if views != 1 || clicks != 0 {
		t.Errorf("RecentEventCounts = (%d, %d), want (1, 0)", views, clicks)
	}
}
