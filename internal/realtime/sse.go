package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"microanalytics/internal/models"
	"microanalytics/internal/notify"
)

// ServeSSE streams RealtimeEvents for profileID as Server-Sent Events, for
// clients that can't or don't want a WebSocket. A heartbeat comment is
// sent every 5 seconds to keep intermediary proxies from closing the
// connection during quiet periods.
func ServeSSE(bus *notify.Bus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		profileID := profileIDFromRequest(r)
		if profileID == "" {
			http.Error(w, `{"error":"profileId is required"}`, http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		events := make(chan models.RealtimeEvent, 64)
		bus.Subscribe(profileID, events)
		defer bus.Unsubscribe(profileID, events)

		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()

		ctx := r.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
					return
				}
				flusher.Flush()
			case evt, ok := <-events:
				if !ok {
					return
				}
				data, err := json.Marshal(evt)
				if err != nil {
					continue
				}
				if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Kind, data); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

// profileIDFromRequest reads profileId from the route or query string.
func profileIDFromRequest(r *http.Request) string {
	if v := mux.Vars(r)["profileId"]; v != "" {
		return v
	}
	return r.URL.Query().Get("profileId")
}
