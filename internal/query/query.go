// Package query is the Query component: it composes AnalyticsReport and
// RealTimeAnalytics from Store and caches the composed report behind the
// Cache component. Report totals come from the daily rollups when a
// request's range aligns to whole UTC days and from the raw tables
// otherwise. The link, geographic, device and referrer breakdowns always
// read the rollup tables, so they cover only days the Aggregator has
// rolled up (link_stats also holds the click counters Ingest increments
// directly); the time series always reads the raw tables.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"microanalytics/internal/apperr"
	"microanalytics/internal/cache"
	"microanalytics/internal/models"
	"microanalytics/internal/notify"
	"microanalytics/internal/store"
)

type Query struct {
	store    *store.Store
	cache    *cache.Cache
	bus      *notify.Bus
	cacheTTL time.Duration
}

func New(st *store.Store, ch *cache.Cache, bus *notify.Bus, cacheTTL time.Duration) *Query {
	return &Query{store: st, cache: ch, bus: bus, cacheTTL: cacheTTL}
}

func cacheKey(profileID string, tr models.TimeRange) string {
	return fmt.Sprintf("analytics:%s:%d:%d:%s", profileID, tr.Start.Unix(), tr.End.Unix(), tr.Period)
}

// GetAnalytics composes the full AnalyticsReport for profileID over tr,
// serving from cache when possible.
func (q *Query) GetAnalytics(ctx context.Context, profileID string, tr models.TimeRange) (models.AnalyticsReport, error) {
	if profileID == "" {
		return models.AnalyticsReport{}, apperr.Validation("profileId is required", "profileId")
	}
	if tr.End.Before(tr.Start) {
		return models.AnalyticsReport{}, apperr.Validation("end must not precede start", "end")
	}

	key := cacheKey(profileID, tr)
	if q.cache != nil {
		if cached, ok, err := q.cache.Get(ctx, key); err == nil && ok {
			var report models.AnalyticsReport
			if json.Unmarshal(cached, &report) == nil {
				return report, nil
			}
		}
	}
	if cached, ok, err := q.store.CacheGet(ctx, key); err == nil && ok {
		var report models.AnalyticsReport
		if json.Unmarshal(cached, &report) == nil {
			if q.cache != nil {
				_ = q.cache.Set(ctx, key, cached, q.cacheTTL)
			}
			return report, nil
		}
	}

	report, err := q.compute(ctx, profileID, tr)
	if err != nil {
		return models.AnalyticsReport{}, err
	}

	if payload, err := json.Marshal(report); err == nil {
		if q.cache != nil {
			_ = q.cache.Set(ctx, key, payload, q.cacheTTL)
		}
		_ = q.store.CacheSet(ctx, key, payload, q.cacheTTL)
	}

	return report, nil
}

// alignsToWholeDays reports whether tr spans only complete UTC midnight
// boundaries, the condition under which the rollup-shortcut path is exact.
func alignsToWholeDays(tr models.TimeRange) bool {
	isMidnight := func(t time.Time) bool {
		u := t.UTC()
		return u.Hour() == 0 && u.Minute() == 0 && u.Second() == 0 && u.Nanosecond() == 0
	}
	return isMidnight(tr.Start) && (isMidnight(tr.End) || tr.End.UTC().Sub(tr.End.UTC().Truncate(24*time.Hour)) == 23*time.Hour+59*time.Minute+59*time.Second)
}

func (q *Query) compute(ctx context.Context, profileID string, tr models.TimeRange) (models.AnalyticsReport, error) {
	report := models.AnalyticsReport{ProfileID: profileID}

	if alignsToWholeDays(tr) {
		daily, err := q.store.DailyStatsRange(ctx, profileID, tr.Start, tr.End)
		if err != nil {
			return report, apperr.Internal("query daily stats", err)
		}
		for _, d := range daily {
			report.ProfileViews += d.Views
			report.UniqueViews += d.UniqueViews
			report.TotalClicks += d.Clicks
			report.UniqueClicks += d.UniqueClicks
		}
	} else {
		// Partial-day range: the daily rollup shortcut only ever covers
		// whole UTC days, so fall back to summing the raw-table time
		// series, which is bucketed at the caller's requested period.
		series, err := q.store.TimeSeriesRange(ctx, profileID, tr.Start, tr.End, tr.Period)
		if err != nil {
			return report, apperr.Internal("query time series for totals", err)
		}
		for _, p := range series {
			report.ProfileViews += p.Views
			report.TotalClicks += p.Clicks
		}

		uniqueViews, uniqueClicks, err := q.store.UniqueSessionCounts(ctx, profileID, tr.Start, tr.End)
		if err != nil {
			return report, apperr.Internal("query unique session counts", err)
		}
		report.UniqueViews = uniqueViews
		report.UniqueClicks = uniqueClicks
	}

	links, err := q.store.LinkStatsRange(ctx, profileID, tr.Start, tr.End)
	if err != nil {
		return report, apperr.Internal("query link stats", err)
	}
	report.TotalLinks = len(links)
	for i := range links {
		if report.ProfileViews > 0 {
			links[i].CTR = 100 * float64(links[i].Clicks) / float64(report.ProfileViews)
		}
	}
	report.LinkPerformance = links
	if len(links) > 0 {
		top := links[0]
		report.TopLink = &top
	}
	if report.TotalLinks > 0 {
		report.AverageClicksPerLink = float64(report.TotalClicks) / float64(report.TotalLinks)
	}

	geo, err := q.store.GeoStatsRange(ctx, profileID, tr.Start, tr.End)
	if err != nil {
		return report, apperr.Internal("query geo stats", err)
	}
	report.GeographicData = geo

	devices, err := q.store.DeviceStatsRange(ctx, profileID, tr.Start, tr.End)
	if err != nil {
		return report, apperr.Internal("query device stats", err)
	}
	report.DeviceData = devices

	referrers, err := q.store.ReferrerStatsRange(ctx, profileID, tr.Start, tr.End)
	if err != nil {
		return report, apperr.Internal("query referrer stats", err)
	}
	report.ReferrerData = referrers

	series, err := q.store.TimeSeriesRange(ctx, profileID, tr.Start, tr.End, tr.Period)
	if err != nil {
		return report, apperr.Internal("query time series", err)
	}
	report.TimeSeriesData = series

	return report, nil
}

// recentEventWindow is the fixed trailing window for recentViews/recentClicks,
// independent of the caller-configurable active-users window.
const recentEventWindow = 60 * time.Second

// GetRealTimeAnalytics composes the live tuple: active sessions within
// window, plus raw event counts over the trailing 60 seconds.
func (q *Query) GetRealTimeAnalytics(ctx context.Context, profileID string, window time.Duration) (models.RealTimeAnalytics, error) {
	if profileID == "" {
		return models.RealTimeAnalytics{}, apperr.Validation("profileId is required", "profileId")
	}

	active, err := q.store.ActiveVisitorCount(ctx, profileID, time.Now().UTC().Add(-window))
	if err != nil {
		return models.RealTimeAnalytics{}, apperr.Internal("query active visitors", err)
	}
	views, clicks, err := q.store.RecentEventCounts(ctx, profileID, time.Now().UTC().Add(-recentEventWindow))
	if err != nil {
		return models.RealTimeAnalytics{}, apperr.Internal("query recent events", err)
	}

	if q.bus != nil {
		if subs := int64(q.bus.SubscriberCount(profileID)); subs > active {
			active = subs
		}
	}

	return models.RealTimeAnalytics{
		ActiveUsers:  active,
		RecentViews:  views,
		RecentClicks: clicks,
	}, nil
}
