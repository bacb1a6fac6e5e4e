package relay

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"microanalytics/internal/apperr"
)

func signToken(t *testing.T, secret, subject string) string {
	t.Helper()
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestExtractSubject(t *testing.T) {
	t.Parallel()

	auth := NewAuth("test-secret")
	valid := signToken(t, "test-secret", "caller-1")

	req := httptest.NewRequest(http.MethodPost, "/v1/relay/sponsor", nil)
	req.Header.Set("Authorization", "Bearer "+valid)

	sub, err := auth.ExtractSubject(req)
	if err != nil {
		t.Fatalf("ExtractSubject: %v", err)
	}
	if sub != "caller-1" {
		t.Errorf("subject = %q, want %q", sub, "caller-1")
	}
}

func TestExtractSubjectRejectsMissingHeader(t *testing.T) {
	t.Parallel()

	auth := NewAuth("test-secret")
	req := httptest.NewRequest(http.MethodPost, "/v1/relay/sponsor", nil)

	_, err := auth.ExtractSubject(req)
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("kind = %v, want KindValidation", apperr.KindOf(err))
	}
}

func TestExtractSubjectRejectsWrongSecret(t *testing.T) {
	t.Parallel()

	auth := NewAuth("test-secret")
	wrongSigned := signToken(t, "other-secret", "caller-1")

	req := httptest.NewRequest(http.MethodPost, "/v1/relay/sponsor", nil)
	req.Header.Set("Authorization", "Bearer "+wrongSigned)

	_, err := auth.ExtractSubject(req)
	if err == nil {
		t.Fatal("expected an error for a token signed with the wrong secret")
	}
}

func TestMiddlewareStashesSubject(t *testing.T) {
	t.Parallel()

	auth := NewAuth("test-secret")
	valid := signToken(t, "test-secret", "caller-2")

	var gotSubject string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSubject = SubjectFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/relay/sponsor", nil)
	req.Header.Set("Authorization", "Bearer "+valid)
	rec := httptest.NewRecorder()

	auth.Middleware(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotSubject != "caller-2" {
		t.Errorf("subject in context = %q, want %q", gotSubject, "caller-2")
	}
}

func TestMiddlewareRejectsInvalidToken(t *testing.T) {
	t.Parallel()

	auth := NewAuth("test-secret")
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

	req := httptest.NewRequest(http.MethodPost, "/v1/relay/sponsor", nil)
	rec := httptest.NewRecorder()

	auth.Middleware(next).ServeHTTP(rec, req)

	if called {
		t.Error("next handler should not be invoked for an unauthenticated request")
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestClientForward(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sponsor" {
			t.Errorf("path = %q, want /sponsor", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"echo":"` + string(body) + `"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	body, status, err := client.Forward(context.Background(), strings.NewReader(`{"tx":"abc"}`))
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if status != http.StatusAccepted {
		t.Errorf("status = %d, want %d", status, http.StatusAccepted)
	}
	if !strings.Contains(string(body), "abc") {
		t.Errorf("body = %s, want it to contain the forwarded payload", body)
	}
}
