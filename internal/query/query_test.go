package query

import (
	"testing"
	"time"

	"microanalytics/internal/models"
)

func TestAlignsToWholeDays(t *testing.T) {
	t.Parallel()

	midnight := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	endOfDay := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 23, 59, 59, 0, time.UTC)
	}

	cases := []struct {
		name string
		tr   models.TimeRange
		want bool
	}{
		{
			"midnight to midnight",
			models.TimeRange{Start: midnight(2026, 1, 1), End: midnight(2026, 1, 8)},
			true,
		},
		{
			"midnight to end-of-day",
			models.TimeRange{Start: midnight(2026, 1, 1), End: endOfDay(2026, 1, 7)},
			true,
		},
		{
			"start not at midnight",
			models.TimeRange{Start: midnight(2026, 1, 1).Add(time.Hour), End: midnight(2026, 1, 8)},
			false,
		},
		{
			"end mid-afternoon",
			models.TimeRange{Start: midnight(2026, 1, 1), End: midnight(2026, 1, 7).Add(15 * time.Hour)},
			false,
		},
		{
			"same-day, whole day",
			models.TimeRange{Start: midnight(2026, 1, 1), End: endOfDay(2026, 1, 1)},
			true,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := alignsToWholeDays(tc.tr); got != tc.want {
				t.Errorf("alignsToWholeDays(%+v) = %v, want %v", tc.tr, got, tc.want)
			}
		})
	}
}

func TestCacheKeyIsStableAndDistinct(t *testing.T) {
	t.Parallel()

	tr1 := models.TimeRange{Start: time.Unix(1000, 0), End: time.Unix(2000, 0), Period: models.PeriodDay}
	tr2 := models.TimeRange{Start: time.Unix(1000, 0), End: time.Unix(2000, 0), Period: models.PeriodHour}

	k1a := cacheKey("p1", tr1)
	k1b := cacheKey("p1", tr1)
	if k1a != k1b {
		t.Errorf("cacheKey is not stable: %q != %q", k1a, k1b)
	}

	k2 := cacheKey("p1", tr2)
	if k1a == k2 {
		t.Errorf("different periods produced the same cache key %q", k1a)
	}

	k3 := cacheKey("p2", tr1)
	if k1a == k3 {
		t.Errorf("different profiles produced the same cache key %q", k1a)
	}
}
