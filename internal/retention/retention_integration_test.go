//go:build integration

package retention

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"microanalytics/internal/config"
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

func TestRunDailySweepsOldEvents(t *testing.T) {
	st, ctx := newTestStore(t)
	profileID := uuid.NewString()
	old := time.Now().UTC().AddDate(0, 0, -200)

	if _, err := st.InsertProfileView(ctx, models.ProfileView{
		ProfileID: profileID, SessionID: uuid.NewString(), Timestamp: old,
	}); err != nil {
		t.Fatalf("InsertProfileView: %v", err)
	}

	before, err := st.ProfilesActiveOn(ctx, old)
	if err != nil {
		t.Fatalf("ProfilesActiveOn (before): %v", err)
	}
	if !containsID(before, profileID) {
		t.Fatalf("ProfilesActiveOn(before) = %v, want it to contain %q", before, profileID)
	}

	ret := New(st, zerolog.Nop(), config.RetentionConfig{
		Views: 90 * 24 * time.Hour, Clicks: 90 * 24 * time.Hour,
		Sessions: 30 * 24 * time.Hour, Rollups: 2 * 365 * 24 * time.Hour,
	})
	ret.RunDaily(ctx)

	after, err := st.ProfilesActiveOn(ctx, old)
	if err != nil {
		t.Fatalf("ProfilesActiveOn (after): %v", err)
	}
	if containsID(after, profileID) {
		t.Errorf("ProfilesActiveOn(after) = %v, expected the 200-day-old view to have been swept", after)
	}
}

func containsID(ids []string, id string) bool {
	for _, got := range ids {
		if got == id {
			return true
		}
	}
	return false
}

func TestRunOrphanSessionSweepAndCacheSweep(t *testing.T) {
	st, ctx := newTestStore(t)
	ret := New(st, zerolog.Nop(), config.RetentionConfig{})

	ret.RunOrphanSessionSweep(ctx)
	ret.RunCacheSweep(ctx)
	ret.RunRealtimeEventSweep(ctx)
}
