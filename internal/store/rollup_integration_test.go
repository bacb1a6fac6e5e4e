//go:build integration

package store

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"microanalytics/internal/models"
)

func TestRollupAllIsIdempotent(t *testing.T) {
	st, ctx := newTestStore(t)
	profileID := uuid.NewString()
	date := time.Now().UTC()
	start, _ := dayBounds(date)
	mid := start.Add(time.Hour)

	if _, err := st.InsertProfileView(ctx, models.ProfileView{
		ProfileID: profileID, SessionID: uuid.NewString(), Country: "US", Timestamp: mid,
	}); err != nil {
		t.Fatalf("InsertProfileView: %v", err)
	}
	if _, err := st.InsertLinkClick(ctx, models.LinkClick{
		ProfileID: profileID, LinkIndex: 0, LinkTitle: "Home", Country: "US", Timestamp: mid,
	}); err != nil {
		t.Fatalf("InsertLinkClick: %v", err)
	}

	if err := st.RollupAll(ctx, profileID, date); err != nil {
		t.Fatalf("first RollupAll: %v", err)
	}
	if err := st.RollupAll(ctx, profileID, date); err != nil {
		t.Fatalf("second RollupAll: %v", err)
	}
}

func TestProfilesActiveOn(t *testing.T) {
	st, ctx := newTestStore(t)
	profileID := uuid.NewString()
	date := time.Now().UTC()
	start, _ := dayBounds(date)

	if _, err := st.InsertProfileView(ctx, models.ProfileView{
		ProfileID: profileID, SessionID: uuid.NewString(), Timestamp: start.Add(time.Hour),
	}); err != nil {
		t.Fatalf("InsertProfileView: %v", err)
	}

	ids, err := st.ProfilesActiveOn(ctx, date)
	if err != nil {
		t.Fatalf("ProfilesActiveOn: %v", err)
	}
	found := false
	for _, id := range ids {
		if id == profileID {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("ProfilesActiveOn(%v) = %v, want it to contain %q", date, ids, profileID)
	}
}
