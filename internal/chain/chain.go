// Package chain adapts the Ingester to the external on-chain
// profile store. It is intentionally thin: the analytics core only ever
// needs to know whether a profileId exists and, occasionally, the handful
// of fields in models.Profile — never the chain's own transaction or
// object model.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"microanalytics/internal/apperr"
	"microanalytics/internal/models"
)

// ProfileStore is the read-only view of the chain the rest of the service
// depends on, so a StaticProfileStore fake can stand in for tests without
// ever dialing a real RPC node.
type ProfileStore interface {
	ProfileExists(ctx context.Context, profileID string) (bool, error)
	GetProfile(ctx context.Context, profileID string) (models.Profile, error)
}

// SuiProfileStore reads profile objects from a Sui full node's JSON-RPC
// endpoint. It round-robins across a small node pool and backs off a node
// for a cooldown window after it errors, the same failover shape the
// upstream multi-node Flow client uses, minus the spork/height bookkeeping
// that has no equivalent on Sui.
type SuiProfileStore struct {
	httpClient *http.Client
	nodes      []string
	limiter    *rate.Limiter
	rr         uint32

	disabledUntil []atomic.Int64
}

// NewSuiProfileStore builds a store over one or more comma-free RPC URLs.
func NewSuiProfileStore(nodes []string) (*SuiProfileStore, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("chain: at least one RPC node is required")
	}
	return &SuiProfileStore{
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		nodes:         nodes,
		limiter:       rate.NewLimiter(rate.Limit(20), 40),
		disabledUntil: make([]atomic.Int64, len(nodes)),
	}, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// sui object field shapes this service reads out of a profile object's
// on-chain "fields" map. Names match the Move struct the profile registry
// defines.
type suiProfileFields struct {
	ProfileID    string   `json:"profile_id"`
	ViewCount    string   `json:"view_count"` // Sui encodes u64 as a JSON string
	Links        []string `json:"links"`
	Verified     bool     `json:"verified"`
	Owner        string   `json:"owner"`
	WalrusSiteID string   `json:"walrus_site_id"`
}

// ProfileExists reports whether profileID resolves to a live on-chain object.
func (c *SuiProfileStore) ProfileExists(ctx context.Context, profileID string) (bool, error) {
	_, err := c.GetProfile(ctx, profileID)
	if apperr.KindOf(err) == apperr.KindNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetProfile fetches and decodes one profile object by id.
func (c *SuiProfileStore) GetProfile(ctx context.Context, profileID string) (models.Profile, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return models.Profile{}, apperr.Unavailable("chain rate limiter", err)
	}

	body, err := c.call(ctx, "sui_getObject", []any{profileID, map[string]any{"showContent": true}})
	if err != nil {
		return models.Profile{}, err
	}

	var parsed struct {
		Data *struct {
			Content *struct {
				Fields suiProfileFields `json:"fields"`
			} `json:"content"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return models.Profile{}, apperr.Internal("decode chain response", err)
	}
	if parsed.Data == nil || parsed.Data.Content == nil {
		return models.Profile{}, apperr.NotFound(fmt.Sprintf("profile %s not found on chain", profileID))
	}

	f := parsed.Data.Content.Fields
	var viewCount int64
	fmt.Sscanf(f.ViewCount, "%d", &viewCount)

	return models.Profile{
		ProfileID:    profileID,
		ViewCount:    viewCount,
		Links:        f.Links,
		Verified:     f.Verified,
		Owner:        f.Owner,
		WalrusSiteID: f.WalrusSiteID,
	}, nil
}

// call issues one JSON-RPC request, round-robining across nodes and
// skipping any node still inside its post-error cooldown window.
func (c *SuiProfileStore) call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	now := time.Now().UnixNano()
	var lastErr error

	for attempt := 0; attempt < len(c.nodes); attempt++ {
		idx := int(atomic.AddUint32(&c.rr, 1)) % len(c.nodes)
		if c.disabledUntil[idx].Load() > now {
			continue
		}

		result, err := c.callNode(ctx, c.nodes[idx], method, params)
		if err == nil {
			return result, nil
		}
		lastErr = err
		c.disabledUntil[idx].Store(now + int64(30*time.Second))
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no chain RPC node available")
	}
	return nil, apperr.Unavailable("chain RPC call failed", lastErr)
}

func (c *SuiProfileStore) callNode(ctx context.Context, node, method string, params []any) (json.RawMessage, error) {
	reqBody, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("encode rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, node, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call node %s: %w", node, err)
	}
	defer resp.Body.Close()

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode rpc response from %s: %w", node, err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("rpc error from %s: %s", node, decoded.Error.Message)
	}
	return decoded.Result, nil
}

// StaticProfileStore is an in-memory ProfileStore fake for tests, standing
// in for a real chain so component tests never need network access.
type StaticProfileStore struct {
	Profiles map[string]models.Profile
}

func NewStaticProfileStore() *StaticProfileStore {
	return &StaticProfileStore{Profiles: make(map[string]models.Profile)}
}

func (s *StaticProfileStore) ProfileExists(_ context.Context, profileID string) (bool, error) {
	_, ok := s.Profiles[profileID]
	return ok, nil
}

func (s *StaticProfileStore) GetProfile(_ context.Context, profileID string) (models.Profile, error) {
	p, ok := s.Profiles[profileID]
	if !ok {
		return models.Profile{}, apperr.NotFound(fmt.Sprintf("profile %s not found", profileID))
	}
	return p, nil
}
