package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	svix "github.com/svix/svix-webhooks/go"
	svixmodels "github.com/svix/svix-webhooks/go/models"

	"microanalytics/internal/models"
	"microanalytics/internal/store"
)

// WebhookDelivery is the durable, at-least-once side of the realtime
// event bus: every ingest event is recorded as a realtime_events row
// (package store's realtime_events.go owns that table) and, for profiles that have registered one
// or more webhook endpoints, redelivered with retries until acknowledged.
// This is the durable complement to notify.Bus, which only pushes to
// currently-connected WebSocket/SSE subscribers and drops anything nobody
// was listening for.
type WebhookDelivery interface {
	RegisterEndpoint(ctx context.Context, profileID, webhookURL string) (string, error)
	DeregisterEndpoint(ctx context.Context, profileID, endpointID string) error
	Deliver(ctx context.Context, evt models.RealtimeEvent) error
}

// SvixBus implements WebhookDelivery on top of the Svix message-delivery
// platform, treating each profileId as its own Svix application so that a
// profile owner's registered webhooks are isolated from every other
// profile's.
type SvixBus struct {
	client *svix.Svix
	store  *store.Store
}

var _ WebhookDelivery = (*SvixBus)(nil)

func NewSvixBus(authToken, serverURL string, st *store.Store) (*SvixBus, error) {
	var opts *svix.SvixOptions
	if serverURL != "" {
		u, err := url.Parse(serverURL)
		if err != nil {
			return nil, fmt.Errorf("parse svix server url: %w", err)
		}
		opts = &svix.SvixOptions{ServerUrl: u}
	}
	client, err := svix.New(authToken, opts)
	if err != nil {
		return nil, fmt.Errorf("create svix client: %w", err)
	}
	return &SvixBus{client: client, store: st}, nil
}

// RegisterEndpoint creates (or reuses) the profile's Svix application and
// registers webhookURL as one of its endpoints.
func (b *SvixBus) RegisterEndpoint(ctx context.Context, profileID, webhookURL string) (string, error) {
	uid := profileID
	app, err := b.client.Application.GetOrCreate(ctx, svixmodels.ApplicationIn{
		Name: "profile:" + profileID,
		Uid:  &uid,
	}, nil)
	if err != nil {
		return "", fmt.Errorf("svix get-or-create application: %w", err)
	}

	ep, err := b.client.Endpoint.Create(ctx, app.Id, svixmodels.EndpointIn{Url: webhookURL}, nil)
	if err != nil {
		return "", fmt.Errorf("svix create endpoint: %w", err)
	}
	return ep.Id, nil
}

// DeregisterEndpoint removes a previously registered endpoint.
func (b *SvixBus) DeregisterEndpoint(ctx context.Context, profileID, endpointID string) error {
	if err := b.client.Endpoint.Delete(ctx, profileID, endpointID); err != nil {
		return fmt.Errorf("svix delete endpoint: %w", err)
	}
	return nil
}

// Deliver persists evt as a durable realtime_events row and dispatches it
// through Svix. If no endpoint is registered for the profile, Svix's
// GetOrCreate on an unknown application still succeeds with zero
// endpoints and the message simply has nothing to deliver to — recording
// it in Store is what makes it durable and replayable regardless.
func (b *SvixBus) Deliver(ctx context.Context, evt models.RealtimeEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode realtime event: %w", err)
	}
	id, err := b.store.InsertRealtimeEvent(ctx, evt.ProfileID, evt.Kind, payload)
	if err != nil {
		return fmt.Errorf("record realtime event: %w", err)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return fmt.Errorf("decode realtime event payload: %w", err)
	}
	uid := evt.ProfileID
	app, err := b.client.Application.GetOrCreate(ctx, svixmodels.ApplicationIn{
		Name: "profile:" + evt.ProfileID,
		Uid:  &uid,
	}, nil)
	if err != nil {
		return fmt.Errorf("svix get-or-create application: %w", err)
	}
	if _, err := b.client.Message.Create(ctx, app.Id, svixmodels.MessageIn{
		EventType: evt.Kind,
		Payload:   fields,
	}, nil); err != nil {
		return fmt.Errorf("svix send message: %w", err)
	}

	return b.store.MarkRealtimeEventProcessed(ctx, id)
}

// NoopBus discards events without attempting delivery, used when no Svix
// token is configured. Events are still recorded durably through Store so
// replay/audit still works; only the outbound push is skipped.
type NoopBus struct {
	store *store.Store
}

var _ WebhookDelivery = (*NoopBus)(nil)

func NewNoopBus(st *store.Store) *NoopBus { return &NoopBus{store: st} }

func (n *NoopBus) RegisterEndpoint(context.Context, string, string) (string, error) {
	return "", fmt.Errorf("webhook delivery not configured")
}

func (n *NoopBus) DeregisterEndpoint(context.Context, string, string) error {
	return fmt.Errorf("webhook delivery not configured")
}

func (n *NoopBus) Deliver(ctx context.Context, evt models.RealtimeEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode realtime event: %w", err)
	}
	id, err := n.store.InsertRealtimeEvent(ctx, evt.ProfileID, evt.Kind, payload)
	if err != nil {
		return fmt.Errorf("record realtime event: %w", err)
	}
	return n.store.MarkRealtimeEventProcessed(ctx, id)
}
