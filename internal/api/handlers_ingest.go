package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"microanalytics/internal/apperr"
	"microanalytics/internal/ingest"
)

type trackViewRequest struct {
	SessionID string `json:"sessionId,omitempty"`
	Referrer  string `json:"referrer,omitempty"`
}

func (s *Server) handleTrackView(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	profileID := mux.Vars(r)["profileId"]
	var body trackViewRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, apperr.Validation("invalid request body"))
			return
		}
	}

	view, err := s.ingest.TrackView(ctx, ingest.ViewInput{
		ProfileID: profileID,
		SessionID: body.SessionID,
		VisitorIP: clientIP(r),
		UserAgent: r.UserAgent(),
		Referrer:  body.Referrer,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

type trackClickRequest struct {
	LinkIndex int    `json:"linkIndex"`
	LinkTitle string `json:"linkTitle,omitempty"`
	LinkURL   string `json:"linkUrl,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Referrer  string `json:"referrer,omitempty"`
}

func (s *Server) handleTrackClick(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	profileID := mux.Vars(r)["profileId"]
	var body trackClickRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}

	click, err := s.ingest.TrackClick(ctx, ingest.ClickInput{
		ProfileID: profileID,
		LinkIndex: body.LinkIndex,
		LinkTitle: body.LinkTitle,
		LinkURL:   body.LinkURL,
		SessionID: body.SessionID,
		VisitorIP: clientIP(r),
		UserAgent: r.UserAgent(),
		Referrer:  body.Referrer,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, click)
}

type batchViewRequest struct {
	Views []struct {
		ProfileID string `json:"profileId"`
		SessionID string `json:"sessionId,omitempty"`
		Referrer  string `json:"referrer,omitempty"`
	} `json:"views"`
}

func (s *Server) handleBatchTrackViews(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	var body batchViewRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}

	ip, ua := clientIP(r), r.UserAgent()
	inputs := make([]ingest.ViewInput, len(body.Views))
	for i, v := range body.Views {
		inputs[i] = ingest.ViewInput{
			ProfileID: v.ProfileID,
			SessionID: v.SessionID,
			VisitorIP: ip,
			UserAgent: ua,
			Referrer:  v.Referrer,
		}
	}

	views, err := s.ingest.BatchTrackViews(ctx, inputs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"views": views, "count": len(views)})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	sessionID := mux.Vars(r)["sessionId"]
	sess, err := s.ingest.EndSession(ctx, sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}
