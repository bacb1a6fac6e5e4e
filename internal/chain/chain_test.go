package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"microanalytics/internal/apperr"
	"microanalytics/internal/models"
)

func TestStaticProfileStore(t *testing.T) {
	t.Parallel()

	store := NewStaticProfileStore()
	store.Profiles["p1"] = models.Profile{ProfileID: "p1", ViewCount: 42, Verified: true}

	ctx := context.Background()

	exists, err := store.ProfileExists(ctx, "p1")
	if err != nil || !exists {
		t.Fatalf("ProfileExists(p1) = %v, %v, want true, nil", exists, err)
	}

	exists, err = store.ProfileExists(ctx, "missing")
	if err != nil || exists {
		t.Fatalf("ProfileExists(missing) = %v, %v, want false, nil", exists, err)
	}

	got, err := store.GetProfile(ctx, "p1")
	if err != nil {
		t.Fatalf("GetProfile(p1) unexpected error: %v", err)
	}
	if got.ViewCount != 42 || !got.Verified {
		t.Errorf("GetProfile(p1) = %+v, want ViewCount=42 Verified=true", got)
	}

	_, err = store.GetProfile(ctx, "missing")
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("GetProfile(missing) kind = %v, want KindNotFound", apperr.KindOf(err))
	}
}

func newSuiObjectServer(t *testing.T, profileID string, viewCount string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"jsonrpc": "2.0",
			"id":      1,
			"result": map[string]any{
				"data": map[string]any{
					"content": map[string]any{
						"fields": map[string]any{
							"profile_id": profileID,
							"view_count": viewCount,
							"links":      []string{"https://a.example"},
							"verified":   true,
							"owner":      "0xabc",
						},
					},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestSuiProfileStoreGetProfile(t *testing.T) {
	t.Parallel()

	srv := newSuiObjectServer(t, "p1", "123")
	defer srv.Close()

	store, err := NewSuiProfileStore([]string{srv.URL})
	if err != nil {
		t.Fatalf("NewSuiProfileStore: %v", err)
	}

	got, err := store.GetProfile(context.Background(), "p1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if got.ViewCount != 123 {
		t.Errorf("ViewCount = %d, want 123", got.ViewCount)
	}
	if !got.Verified {
		t.Error("Verified = false, want true")
	}
}

func TestSuiProfileStoreFailsOverToSecondNode(t *testing.T) {
	t.Parallel()

	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer dead.Close()
	// force the node itself to be unreachable by closing it immediately
	dead.Close()

	live := newSuiObjectServer(t, "p1", "7")
	defer live.Close()

	store, err := NewSuiProfileStore([]string{dead.URL, live.URL})
	if err != nil {
		t.Fatalf("NewSuiProfileStore: %v", err)
	}

	got, err := store.GetProfile(context.Background(), "p1")
	if err != nil {
		t.Fatalf("GetProfile should have failed over to the live node: %v", err)
	}
	if got.ViewCount != 7 {
		t.Errorf("ViewCount = %d, want 7", got.ViewCount)
	}
}

func TestNewSuiProfileStoreRequiresNodes(t *testing.T) {
	t.Parallel()

	if _, err := NewSuiProfileStore(nil); err == nil {
		t.Error("expected an error constructing a chain store with no nodes")
	}
}
