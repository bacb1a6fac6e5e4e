package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"microanalytics/internal/models"
)

// periodSpan maps the ?period= date-range selector to its trailing duration.
// Unknown/absent values fall back to the documented default of 30d.
func periodSpan(v string) time.Duration {
	switch v {
	case "7d":
		return 7 * 24 * time.Hour
	case "90d":
		return 90 * 24 * time.Hour
	case "1y":
		return 365 * 24 * time.Hour
	default:
		return 30 * 24 * time.Hour
	}
}

// parseRange extracts ?period=&from=&to=&granularity= from the query
// string. period selects the trailing date range ({7d|30d|90d|1y},
// defaulting to 30d); explicit from/to override it. granularity selects the
// bucket size timeSeriesData is truncated to, independent of period.
func parseRange(r *http.Request) models.TimeRange {
	now := time.Now().UTC()
	to := now
	from := now.Add(-periodSpan(r.URL.Query().Get("period")))

	if v := r.URL.Query().Get("from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			from = t
		} else if t, err := time.Parse(time.RFC3339, v); err == nil {
			from = t
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			to = t.Add(24*time.Hour - time.Nanosecond)
		} else if t, err := time.Parse(time.RFC3339, v); err == nil {
			to = t
		}
	}

	granularity := models.PeriodDay
	switch r.URL.Query().Get("granularity") {
	case "hour":
		granularity = models.PeriodHour
	case "week":
		granularity = models.PeriodWeek
	case "month":
		granularity = models.PeriodMonth
	}

	return models.TimeRange{Start: from.UTC(), End: to.UTC(), Period: granularity}
}

func (s *Server) handleGetAnalytics(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	profileID := mux.Vars(r)["profileId"]
	report, err := s.query.GetAnalytics(ctx, profileID, parseRange(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleGetRealTimeAnalytics(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	profileID := mux.Vars(r)["profileId"]
	window := 5 * time.Minute
	if v := r.URL.Query().Get("windowSeconds"); v != "" {
		if d, err := time.ParseDuration(v + "s"); err == nil && d > 0 {
			window = d
		}
	}

	rt, err := s.query.GetRealTimeAnalytics(ctx, profileID, window)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rt)
}
