//go:build integration

package aggregator

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"microanalytics/internal/models"
	"microanalytics/internal/store"
)

func newTestStore(t *testing.T) (*store.Store, context.Context) {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	st, err := store.Open(ctx, url)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(st.Close)
	if err := st.Migrate(ctx, "../store/schema.sql"); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return st, ctx
}

func TestRunForRollsUpActiveProfiles(t *testing.T) {
	st, ctx := newTestStore(t)
	profileID := uuid.NewString()
	date := time.Now().UTC()

	if _, err := st.InsertProfileView(ctx, models.ProfileView{
		ProfileID: profileID, SessionID: uuid.NewString(), Timestamp: date,
	}); err != nil {
		t.Fatalf("InsertProfileView: %v", err)
	}

	agg := New(st, zerolog.Nop())
	if err := agg.RunFor(ctx, date); err != nil {
		t.Fatalf("RunFor: %v", err)
	}

	rows, err := st.DailyStatsRange(ctx, profileID, date, date)
	if err != nil {
		t.Fatalf("DailyStatsRange: %v", err)
	}
	if len(rows) != 1 || rows[0].Views != 1 {
		t.Errorf("DailyStatsRange = %+v, want one row with Views=1", rows)
	}
}

func TestRunForWithNoActiveProfilesIsANoop(t *testing.T) {
	st, ctx := newTestStore(t)
	agg := New(st, zerolog.Nop())

	farFuture := time.Now().UTC().AddDate(10, 0, 0)
	if err := agg.RunFor(ctx, farFuture); err != nil {
		t.Fatalf("RunFor on an empty day: %v", err)
	}
}
