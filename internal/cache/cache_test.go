package cache

import (
	"context"
	"testing"
)

func TestOpenRejectsInvalidURL(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), "not-a-redis-url"); err == nil {
		t.Error("expected an error parsing a malformed cache URL")
	}
}

func TestOpenRejectsUnreachableServer(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()

	if _, err := Open(ctx, "redis://127.0.0.1:1"); err == nil {
		t.Error("expected an error pinging an unreachable cache server")
	}
}
