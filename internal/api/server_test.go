package api

import (
	"net/http"
	"testing"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"microanalytics/internal/notify"
)

func TestRoutesAreRegistered(t *testing.T) {
	t.Parallel()

	bus := notify.New()
	defer bus.Close()

	s := New(nil, nil, nil, bus, nil, nil, zerolog.Nop())

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/health"},
		{http.MethodPost, "/v1/profiles/p1/views"},
		{http.MethodPost, "/v1/profiles/p1/clicks"},
		{http.MethodPost, "/v1/views/batch"},
		{http.MethodPost, "/v1/sessions/s1/end"},
		{http.MethodGet, "/v1/profiles/p1/analytics"},
		{http.MethodGet, "/v1/profiles/p1/analytics/realtime"},
		{http.MethodGet, "/ws/profiles/p1"},
		{http.MethodGet, "/sse/profiles/p1"},
	}

	for _, tc := range cases {
		req, _ := http.NewRequest(tc.method, tc.path, nil)
		var match mux.RouteMatch
		if !s.router.Match(req, &match) {
			t.Errorf("missing route: %s %s", tc.method, tc.path)
		}
	}
}

func TestRelayRouteOnlyRegisteredWhenConfigured(t *testing.T) {
	t.Parallel()

	bus := notify.New()
	defer bus.Close()

	withoutRelay := New(nil, nil, nil, bus, nil, nil, zerolog.Nop())
	req, _ := http.NewRequest(http.MethodPost, "/v1/relay/sponsor", nil)
	var match mux.RouteMatch
	if withoutRelay.router.Match(req, &match) {
		t.Error("relay route should not be registered without a relay client/auth")
	}
}
