//go:build integration

package store

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"microanalytics/internal/models"
)

func TestCloseOrphanSessions(t *testing.T) {
	st, ctx := newTestStore(t)
	sessionID := uuid.NewString()
	profileID := uuid.NewString()
	stale := time.Now().UTC().Add(-8 * time.Hour)

	if _, err := st.upsertSession(ctx, sessionID, profileID, GeoDevice{}, stale, "page_views"); err != nil {
		t.Fatalf("upsertSession: %v", err)
	}

	n, err := st.CloseOrphanSessions(ctx, 6*time.Hour)
	if err != nil {
		t.Fatalf("CloseOrphanSessions: %v", err)
	}
	if n == 0 {
		t.Error("CloseOrphanSessions closed zero sessions, want at least the stale one just inserted")
	}

	sess, ok, err := st.GetSession(ctx, sessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if !ok {
		t.Fatal("GetSession reported the session as missing")
	}
	if sess.EndTime == nil {
		t.Error("expected the orphaned session to have been closed")
	}
}

func TestDeleteOldProfileViews(t *testing.T) {
	st, ctx := newTestStore(t)
	profileID := uuid.NewString()
	old := time.Now().UTC().AddDate(0, 0, -100)

	if _, err := st.InsertProfileView(ctx, models.ProfileView{
		ProfileID: profileID, SessionID: uuid.NewString(), Timestamp: old,
	}); err != nil {
		t.Fatalf("InsertProfileView: %v", err)
	}

	n, err := st.DeleteOldProfileViews(ctx, 90*24*time.Hour)
	if err != nil {
		t.Fatalf("DeleteOldProfileViews: %v", err)
	}
	if n == 0 {
		t.Error("DeleteOldProfileViews removed zero rows, want at least the 100-day-old one just inserted")
	}
}

func TestDeleteOldRealtimeEvents(t *testing.T) {
	st, ctx := newTestStore(t)
	if _, err := st.DeleteOldRealtimeEvents(ctx, 7*24*time.Hour); err != nil {
		t.Fatalf("DeleteOldRealtimeEvents: %v", err)
	}
}
