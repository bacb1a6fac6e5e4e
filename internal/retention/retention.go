// Package retention is the Retention component: it sweeps expired raw
// events, stale sessions, aged rollups, the analytics cache, and
// delivered durable-bus rows on independent schedules. Every sweep is a
// best-effort DELETE; a single table's failure is logged and does not
// block the others.
package retention

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"microanalytics/internal/config"
	"microanalytics/internal/store"
)

type Retention struct {
	store  *store.Store
	log    zerolog.Logger
	config config.RetentionConfig
}

func New(st *store.Store, log zerolog.Logger, cfg config.RetentionConfig) *Retention {
	return &Retention{store: st, log: log, config: cfg}
}

// RunDaily deletes raw views/clicks/sessions and aged rollups past their
// retention windows. Scheduled at 03:00 UTC, after the Aggregator's
// 02:00 UTC pass has captured the day's rollups.
func (r *Retention) RunDaily(ctx context.Context) {
	if n, err := r.store.DeleteOldProfileViews(ctx, r.config.Views); err != nil {
		r.log.Error().Err(err).Msg("retention: delete old profile views failed")
	} else {
		r.log.Info().Int64("deleted", n).Msg("retention: profile views swept")
	}

	if n, err := r.store.DeleteOldLinkClicks(ctx, r.config.Clicks); err != nil {
		r.log.Error().Err(err).Msg("retention: delete old link clicks failed")
	} else {
		r.log.Info().Int64("deleted", n).Msg("retention: link clicks swept")
	}

	if n, err := r.store.DeleteOldSessions(ctx, r.config.Sessions); err != nil {
		r.log.Error().Err(err).Msg("retention: delete old sessions failed")
	} else {
		r.log.Info().Int64("deleted", n).Msg("retention: sessions swept")
	}

	if n, err := r.store.DeleteOldRollups(ctx, r.config.Rollups); err != nil {
		r.log.Error().Err(err).Msg("retention: delete old rollups failed")
	} else {
		r.log.Info().Int64("deleted", n).Msg("retention: rollups swept")
	}
}

// RunOrphanSessionSweep closes sessions that have sat open for 6 hours,
// assuming the visitor left without an EndSession ever arriving.
func (r *Retention) RunOrphanSessionSweep(ctx context.Context) {
	n, err := r.store.CloseOrphanSessions(ctx, 6*time.Hour)
	if err != nil {
		r.log.Error().Err(err).Msg("retention: orphan session sweep failed")
		return
	}
	r.log.Info().Int64("closed", n).Msg("retention: orphan sessions closed")
}

// RunCacheSweep deletes expired analytics_cache rows. Scheduled hourly.
func (r *Retention) RunCacheSweep(ctx context.Context) {
	n, err := r.store.CacheDeleteExpired(ctx)
	if err != nil {
		r.log.Error().Err(err).Msg("retention: cache sweep failed")
		return
	}
	r.log.Info().Int64("deleted", n).Msg("retention: analytics cache swept")
}

// RunRealtimeEventSweep deletes already-delivered durable bus rows older
// than 7 days. Scheduled weekly.
func (r *Retention) RunRealtimeEventSweep(ctx context.Context) {
	n, err := r.store.DeleteOldRealtimeEvents(ctx, 7*24*time.Hour)
	if err != nil {
		r.log.Error().Err(err).Msg("retention: realtime event sweep failed")
		return
	}
	r.log.Info().Int64("deleted", n).Msg("retention: realtime events swept")
}
