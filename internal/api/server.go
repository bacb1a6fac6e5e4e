// Package api is the HTTP surface: ingest endpoints, query endpoints, the
// WebSocket/SSE realtime streams, and the sponsored-tx relay passthrough.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"microanalytics/internal/apperr"
	"microanalytics/internal/config"
	"microanalytics/internal/ingest"
	"microanalytics/internal/notify"
	"microanalytics/internal/query"
	"microanalytics/internal/realtime"
	"microanalytics/internal/relay"
)

type Server struct {
	router    *mux.Router
	ingest    *ingest.Ingester
	query     *query.Query
	hub       *realtime.Hub
	notifyBus *notify.Bus
	rtCache   *responseCache
	relay     *relay.Client
	relayAuth *relay.Auth
	log       zerolog.Logger
}

func New(ig *ingest.Ingester, q *query.Query, hub *realtime.Hub, notifyBus *notify.Bus, relayClient *relay.Client, relayAuth *relay.Auth, log zerolog.Logger) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		ingest:    ig,
		query:     q,
		hub:       hub,
		notifyBus: notifyBus,
		rtCache:   newResponseCache(),
		relay:     relayClient,
		relayAuth: relayAuth,
		log:       log,
	}
	s.routes()
	return s
}

// Handler returns the fully wired HTTP handler, CORS and rate-limiting applied.
func (s *Server) Handler(cfg *config.Config) http.Handler {
	limiter := newIPLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	corsMW := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return corsMW.Handler(limiter.middleware(s.router))
}

func (s *Server) routes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	s.router.HandleFunc("/v1/profiles/{profileId}/views", s.handleTrackView).Methods(http.MethodPost)
	s.router.HandleFunc("/v1/profiles/{profileId}/clicks", s.handleTrackClick).Methods(http.MethodPost)
	s.router.HandleFunc("/v1/views/batch", s.handleBatchTrackViews).Methods(http.MethodPost)
	s.router.HandleFunc("/v1/sessions/{sessionId}/end", s.handleEndSession).Methods(http.MethodPost)

	s.router.HandleFunc("/v1/profiles/{profileId}/analytics", s.handleGetAnalytics).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/profiles/{profileId}/analytics/realtime",
		s.rtCache.cached(5*time.Second, s.handleGetRealTimeAnalytics)).Methods(http.MethodGet)

	s.router.HandleFunc("/ws/profiles/{profileId}", s.handleWebSocket).Methods(http.MethodGet)
	s.router.HandleFunc("/sse/profiles/{profileId}", realtime.ServeSSE(s.notifyBus)).Methods(http.MethodGet)

	if s.relay != nil && s.relayAuth != nil {
		s.router.Handle("/v1/relay/sponsor", s.relayAuth.Middleware(http.HandlerFunc(s.handleRelay))).Methods(http.MethodPost)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	profileID := mux.Vars(r)["profileId"]
	s.hub.ServeWS(w, r, profileID)
}

func (s *Server) handleRelay(w http.ResponseWriter, r *http.Request) {
	body, status, err := s.relay.Forward(r.Context(), r.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	writeJSON(w, apperr.StatusCode(kind), map[string]string{"error": err.Error()})
}

// requestContext bounds every handler's downstream work to a sane timeout,
// so a slow store/cache/chain call can't hold a connection open forever.
func requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), 10*time.Second)
}
