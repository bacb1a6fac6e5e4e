// Package relay passes sponsored-transaction requests through to an
// external relay service, gated by a bearer JWT. It never builds or signs
// a transaction itself — it authenticates the caller, then forwards the
// raw request body to the configured relay URL.
package relay

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"microanalytics/internal/apperr"
)

type contextKey string

const subjectKey contextKey = "relay_subject"

// Auth validates the bearer JWT on a relay request and extracts its
// subject claim.
type Auth struct {
	secret []byte
}

func NewAuth(secret string) *Auth {
	return &Auth{secret: []byte(secret)}
}

// ExtractSubject parses and validates the Authorization header, returning
// the token's "sub" claim.
func (a *Auth) ExtractSubject(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", apperr.Validation("missing Authorization header")
	}
	tokenStr := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))

	token, err := jwtlib.Parse(tokenStr, func(token *jwtlib.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return "", apperr.Validation(fmt.Sprintf("invalid relay token: %v", err))
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok || !token.Valid {
		return "", apperr.Validation("invalid relay token claims")
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", apperr.Validation("relay token missing sub claim")
	}
	return sub, nil
}

// Middleware authenticates the request and stashes the subject in context.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub, err := a.ExtractSubject(r)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(apperr.StatusCode(apperr.KindOf(err)))
			fmt.Fprintf(w, `{"error":%q}`, err.Error())
			return
		}
		ctx := context.WithValue(r.Context(), subjectKey, sub)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SubjectFromContext returns the authenticated relay caller, if any.
func SubjectFromContext(ctx context.Context) string {
	v, _ := ctx.Value(subjectKey).(string)
	return v
}

// Client forwards sponsored-transaction bodies to the external relay.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}
}

// Forward passes body through to the relay's sponsored-tx endpoint and
// returns its raw response body.
func (c *Client) Forward(ctx context.Context, body io.Reader) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sponsor", body)
	if err != nil {
		return nil, 0, fmt.Errorf("build relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, apperr.Unavailable("relay request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read relay response: %w", err)
	}
	return data, resp.StatusCode, nil
}
