//go:build integration

package store

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCacheGetSetAndExpire(t *testing.T) {
	st, ctx := newTestStore(t)
	key := "integration:" + uuid.NewString()

	if _, ok, err := st.CacheGet(ctx, key); err != nil || ok {
		t.Fatalf("CacheGet(missing) = (ok=%v, err=%v), want (false, nil)", ok, err)
	}

	if err := st.CacheSet(ctx, key, []byte(`{"hits":1}`), time.Minute); err != nil {
		t.Fatalf("CacheSet: %v", err)
	}
	payload, ok, err := st.CacheGet(ctx, key)
	if err != nil {
		t.Fatalf("CacheGet: %v", err)
	}
	if !ok {
		t.Fatal("CacheGet reported a miss right after CacheSet")
	}
	if string(payload) != `{"hits":1}` {
		t.Errorf("CacheGet = %q, want %q", payload, `{"hits":1}`)
	}

	if err := st.CacheSet(ctx, key, []byte(`{"hits":2}`), -time.Second); err != nil {
		t.Fatalf("CacheSet(expired): %v", err)
	}
	if _, ok, err := st.CacheGet(ctx, key); err != nil || ok {
		t.Fatalf("CacheGet(expired) = (ok=%v, err=%v), want (false, nil)", ok, err)
	}

	if _, err := st.CacheDeleteExpired(ctx); err != nil {
		t.Fatalf("CacheDeleteExpired: %v", err)
	}
}
