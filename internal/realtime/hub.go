package realtime

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"microanalytics/internal/models"
	"microanalytics/internal/notify"
)

// Hub fans out realtime events to WebSocket subscribers, keyed per
// profile rather than globally: a viewer watching one profile's live
// dashboard never receives another profile's events. The Hub keeps no
// subscriber map or lock of its own: subscriptions live in notify.Bus,
// and each connection is written only by its own ServeWS call.
type Hub struct {
	bus  *notify.Bus
	log  zerolog.Logger

	upgrader websocket.Upgrader
}

func NewHub(bus *notify.Bus, log zerolog.Logger, allowedOrigins func(*http.Request) bool) *Hub {
	return &Hub{
		bus: bus,
		log: log,
		upgrader: websocket.Upgrader{
			CheckOrigin:     allowedOrigins,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// ServeWS upgrades the request to a WebSocket and streams every
// RealtimeEvent published for profileID until the client disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, profileID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("realtime: websocket upgrade failed")
		return
	}
	defer conn.Close()

	events := make(chan models.RealtimeEvent, 64)
	h.bus.Subscribe(profileID, events)
	defer h.bus.Unsubscribe(profileID, events)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case evt, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}
