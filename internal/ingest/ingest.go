// Package ingest is the Ingester component: it accepts raw profile views
// and link clicks, enriches them, stitches them into sessions, persists
// them, and publishes a RealtimeEvent for every committed write.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"microanalytics/internal/apperr"
	"microanalytics/internal/cache"
	"microanalytics/internal/chain"
	"microanalytics/internal/enrich"
	"microanalytics/internal/models"
	"microanalytics/internal/notify"
	"microanalytics/internal/realtime"
	"microanalytics/internal/store"
)

type Ingester struct {
	store              *store.Store
	cache              *cache.Cache
	chain              chain.ProfileStore
	bus                *notify.Bus
	durable            realtime.WebhookDelivery
	profileExistsCheck bool
}

func New(st *store.Store, ch *cache.Cache, cs chain.ProfileStore, bus *notify.Bus, durable realtime.WebhookDelivery, profileExistsCheck bool) *Ingester {
	return &Ingester{store: st, cache: ch, chain: cs, bus: bus, durable: durable, profileExistsCheck: profileExistsCheck}
}

// ViewInput is the raw request to TrackView, before enrichment.
type ViewInput struct {
	ProfileID string
	SessionID string // empty: Ingester mints one
	VisitorIP string
	UserAgent string
	Referrer  string
}

// ClickInput is the raw request to TrackClick, before enrichment.
type ClickInput struct {
	ProfileID string
	LinkIndex int
	LinkTitle string
	LinkURL   string
	SessionID string
	VisitorIP string
	UserAgent string
	Referrer  string
}

func (ig *Ingester) checkProfile(ctx context.Context, profileID string) error {
	if profileID == "" {
		return apperr.Validation("profileId is required", "profileId")
	}
	if !ig.profileExistsCheck || ig.chain == nil {
		return nil
	}
	exists, err := ig.chain.ProfileExists(ctx, profileID)
	if err != nil {
		return err
	}
	if !exists {
		return apperr.NotFound(fmt.Sprintf("profile %s does not exist", profileID))
	}
	return nil
}

// TrackView records one profile page load. A missing sessionId mints a
// fresh one with google/uuid; a present one stitches this view into the
// existing session regardless of arrival order, since the session upsert
// is a single atomic statement at the Store layer.
func (ig *Ingester) TrackView(ctx context.Context, in ViewInput) (models.ProfileView, error) {
	if err := ig.checkProfile(ctx, in.ProfileID); err != nil {
		return models.ProfileView{}, err
	}

	sessionID := in.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	geo := enrich.GeoOf(in.VisitorIP)
	dev := enrich.DeviceOf(in.UserAgent)
	now := time.Now().UTC()

	view := models.ProfileView{
		ProfileID:  in.ProfileID,
		SessionID:  sessionID,
		VisitorIP:  in.VisitorIP,
		UserAgent:  in.UserAgent,
		Referrer:   in.Referrer,
		Country:    geo.Country,
		Region:     geo.Region,
		City:       geo.City,
		DeviceType: dev.DeviceType,
		Browser:    dev.Browser,
		OS:         dev.OS,
		Timestamp:  now,
	}

	id, err := ig.store.InsertProfileView(ctx, view)
	if err != nil {
		return models.ProfileView{}, apperr.Internal("insert profile view", err)
	}
	view.ID = id

	if _, err := ig.store.UpsertSessionOnView(ctx, sessionID, in.ProfileID, store.GeoDevice{
		VisitorIP: in.VisitorIP, UserAgent: in.UserAgent,
		Country: geo.Country, Region: geo.Region, City: geo.City,
		DeviceType: dev.DeviceType, Browser: dev.Browser, OS: dev.OS,
	}, now); err != nil {
		return models.ProfileView{}, apperr.Internal("upsert session", err)
	}

	if err := ig.store.IncrementDailyViews(ctx, in.ProfileID, now); err != nil {
		return models.ProfileView{}, apperr.Internal("increment daily views", err)
	}

	ig.invalidateCache(ctx, in.ProfileID)
	ig.publish(ctx, in.ProfileID, "view", view)

	return view, nil
}

// TrackClick records one link click. Same session-stitching and
// enrichment behavior as TrackView.
func (ig *Ingester) TrackClick(ctx context.Context, in ClickInput) (models.LinkClick, error) {
	if err := ig.checkProfile(ctx, in.ProfileID); err != nil {
		return models.LinkClick{}, err
	}
	if in.LinkIndex < 0 {
		return models.LinkClick{}, apperr.Validation("linkIndex must be non-negative", "linkIndex")
	}

	sessionID := in.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	geo := enrich.GeoOf(in.VisitorIP)
	dev := enrich.DeviceOf(in.UserAgent)
	now := time.Now().UTC()

	click := models.LinkClick{
		ProfileID:  in.ProfileID,
		LinkIndex:  in.LinkIndex,
		LinkTitle:  in.LinkTitle,
		LinkURL:    in.LinkURL,
		SessionID:  sessionID,
		VisitorIP:  in.VisitorIP,
		UserAgent:  in.UserAgent,
		Referrer:   in.Referrer,
		Country:    geo.Country,
		Region:     geo.Region,
		City:       geo.City,
		DeviceType: dev.DeviceType,
		Browser:    dev.Browser,
		OS:         dev.OS,
		Timestamp:  now,
	}

	id, err := ig.store.InsertLinkClick(ctx, click)
	if err != nil {
		return models.LinkClick{}, apperr.Internal("insert link click", err)
	}
	click.ID = id

	if _, err := ig.store.UpsertSessionOnClick(ctx, sessionID, in.ProfileID, store.GeoDevice{
		VisitorIP: in.VisitorIP, UserAgent: in.UserAgent,
		Country: geo.Country, Region: geo.Region, City: geo.City,
		DeviceType: dev.DeviceType, Browser: dev.Browser, OS: dev.OS,
	}, now); err != nil {
		return models.LinkClick{}, apperr.Internal("upsert session", err)
	}

	if err := ig.store.IncrementDailyClicks(ctx, in.ProfileID, now); err != nil {
		return models.LinkClick{}, apperr.Internal("increment daily clicks", err)
	}
	if err := ig.store.IncrementLinkClicks(ctx, in.ProfileID, in.LinkIndex, now, in.LinkTitle, in.LinkURL); err != nil {
		return models.LinkClick{}, apperr.Internal("increment link clicks", err)
	}

	ig.invalidateCache(ctx, in.ProfileID)
	ig.publish(ctx, in.ProfileID, "click", click)

	return click, nil
}

// BatchTrackViews ingests many views as one bulk insert, for high-volume
// producers batching client-side before a flush. Session stitching and
// daily-stats increments still happen per-view, since each may belong to
// a different session.
func (ig *Ingester) BatchTrackViews(ctx context.Context, inputs []ViewInput) ([]models.ProfileView, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	views := make([]models.ProfileView, len(inputs))
	for i, in := range inputs {
		if in.ProfileID == "" {
			return nil, apperr.Validation("profileId is required", "profileId")
		}
		sessionID := in.SessionID
		if sessionID == "" {
			sessionID = uuid.NewString()
		}
		geo := enrich.GeoOf(in.VisitorIP)
		dev := enrich.DeviceOf(in.UserAgent)
		views[i] = models.ProfileView{
			ProfileID: in.ProfileID, SessionID: sessionID, VisitorIP: in.VisitorIP, UserAgent: in.UserAgent,
			Referrer: in.Referrer, Country: geo.Country, Region: geo.Region, City: geo.City,
			DeviceType: dev.DeviceType, Browser: dev.Browser, OS: dev.OS, Timestamp: now,
		}
	}

	ids, err := ig.store.BatchInsertProfileViews(ctx, views)
	if err != nil {
		return nil, apperr.Internal("batch insert profile views", err)
	}
	for i := range views {
		if i < len(ids) {
			views[i].ID = ids[i]
		}
		v := views[i]
		if _, err := ig.store.UpsertSessionOnView(ctx, v.SessionID, v.ProfileID, store.GeoDevice{
			VisitorIP: v.VisitorIP, UserAgent: v.UserAgent, Country: v.Country, Region: v.Region, City: v.City,
			DeviceType: v.DeviceType, Browser: v.Browser, OS: v.OS,
		}, now); err != nil {
			return nil, apperr.Internal("upsert session", err)
		}
		if err := ig.store.IncrementDailyViews(ctx, v.ProfileID, now); err != nil {
			return nil, apperr.Internal("increment daily views", err)
		}
		ig.invalidateCache(ctx, v.ProfileID)
		ig.publish(ctx, v.ProfileID, "view", v)
	}

	return views, nil
}

// EndSession explicitly closes a session (e.g. on page unload/beacon).
// Idempotent: ending an already-closed session is a no-op.
func (ig *Ingester) EndSession(ctx context.Context, sessionID string) (models.Session, error) {
	if sessionID == "" {
		return models.Session{}, apperr.Validation("sessionId is required", "sessionId")
	}
	if _, err := ig.store.EndSession(ctx, sessionID, time.Now().UTC()); err != nil {
		return models.Session{}, apperr.Internal("end session", err)
	}
	sess, ok, err := ig.store.GetSession(ctx, sessionID)
	if err != nil {
		return models.Session{}, apperr.Internal("get session", err)
	}
	if !ok {
		return models.Session{}, apperr.NotFound(fmt.Sprintf("session %s not found", sessionID))
	}
	return sess, nil
}

func (ig *Ingester) invalidateCache(ctx context.Context, profileID string) {
	if ig.cache == nil {
		return
	}
	_ = ig.cache.DeletePrefix(ctx, "analytics:"+profileID+":")
}

func (ig *Ingester) publish(ctx context.Context, profileID, kind string, payload any) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		encoded = nil
	}
	evt := models.RealtimeEvent{ProfileID: profileID, Kind: kind, Payload: encoded, Timestamp: time.Now().UTC()}
	ig.bus.Publish(evt)
	if ig.durable != nil {
		_ = ig.durable.Deliver(ctx, evt)
	}
}
