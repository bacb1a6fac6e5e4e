//go:build integration

package store

import (
	"context"
	"os"
	"testing"
	"time"
)

// newTestStore opens a Store against TEST_DATABASE_URL and applies the
// schema. Tests skip rather than fail when the variable is unset, since
// this suite requires a live Postgres instance.
func newTestStore(t *testing.T) (*Store, context.Context) {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	st, err := Open(ctx, url)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(st.Close)

	if err := st.Migrate(ctx, "schema.sql"); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return st, ctx
}

func TestMigrateIsIdempotent(t *testing.T) {
	st, ctx := newTestStore(t)
	if err := st.Migrate(ctx, "schema.sql"); err != nil {
		t.Fatalf("second Migrate call: %v", err)
	}
}
