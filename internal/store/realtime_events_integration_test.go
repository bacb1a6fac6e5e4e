//go:build integration

package store

import (
	"testing"

	"github.com/google/uuid"
)

func TestRealtimeEventLifecycle(t *testing.T) {
	st, ctx := newTestStore(t)
	profileID := uuid.NewString()

	id, err := st.InsertRealtimeEvent(ctx, profileID, "view", []byte(`{"x":1}`))
	if err != nil {
		t.Fatalf("InsertRealtimeEvent: %v", err)
	}

	ids, err := st.UnprocessedRealtimeEvents(ctx, 100)
	if err != nil {
		t.Fatalf("UnprocessedRealtimeEvents: %v", err)
	}
	found := false
	for _, got := range ids {
		if got == id {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("UnprocessedRealtimeEvents = %v, want it to contain %d", ids, id)
	}

	if err := st.MarkRealtimeEventProcessed(ctx, id); err != nil {
		t.Fatalf("MarkRealtimeEventProcessed: %v", err)
	}

	idsAfter, err := st.UnprocessedRealtimeEvents(ctx, 100)
	if err != nil {
		t.Fatalf("UnprocessedRealtimeEvents (after mark): %v", err)
	}
	for _, got := range idsAfter {
		if got == id {
			t.Errorf("event %d still appears as unprocessed after MarkRealtimeEventProcessed", id)
		}
	}
}
