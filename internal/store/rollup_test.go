package store

import (
	"testing"
	"time"
)

func TestDayBounds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		in        time.Time
		wantStart time.Time
	}{
		{
			"midday input truncates to midnight",
			time.Date(2026, 3, 15, 14, 32, 10, 0, time.UTC),
			time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			"already midnight",
			time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
			time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			"non-UTC input normalizes",
			time.Date(2026, 3, 15, 23, 0, 0, 0, time.FixedZone("UTC-5", -5*3600)),
			time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			start, end := dayBounds(tc.in)
			if !start.Equal(tc.wantStart) {
				t.Errorf("start = %v, want %v", start, tc.wantStart)
			}
			if !end.Equal(tc.wantStart.Add(24 * time.Hour)) {
				t.Errorf("end = %v, want start+24h = %v", end, tc.wantStart.Add(24*time.Hour))
			}
		})
	}
}
