package store

import "testing"

func TestNullable(t *testing.T) {
	t.Parallel()

	if got := nullable(""); got != nil {
		t.Errorf("nullable(\"\") = %v, want nil", got)
	}
	if got := nullable("US"); got != "US" {
		t.Errorf("nullable(%q) = %v, want %q", "US", got, "US")
	}
}

func TestPgxTextScan(t *testing.T) {
	t.Parallel()

	var v pgxText
	if err := v.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) error: %v", err)
	}
	if v.String != "" {
		t.Errorf("Scan(nil) = %q, want empty string", v.String)
	}

	if err := v.Scan("hello"); err != nil {
		t.Fatalf("Scan(string) error: %v", err)
	}
	if v.String != "hello" {
		t.Errorf("Scan(string) = %q, want %q", v.String, "hello")
	}

	if err := v.Scan([]byte("world")); err != nil {
		t.Fatalf("Scan([]byte) error: %v", err)
	}
	if v.String != "world" {
		t.Errorf("Scan([]byte) = %q, want %q", v.String, "world")
	}
}
