// Package aggregator is the Aggregator component: a nightly batch job
// that recomputes every rollup table from the raw event tables for each
// profile with activity that day. Rollups are idempotent — running the
// same day twice converges to the same numbers — so a missed or retried
// run is always safe.
package aggregator

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"microanalytics/internal/store"
)

type Aggregator struct {
	store      *store.Store
	log        zerolog.Logger
	poolSize   int
}

func New(st *store.Store, log zerolog.Logger) *Aggregator {
	poolSize := 2 * runtime.NumCPU()
	if poolSize > 32 {
		poolSize = 32
	}
	if poolSize < 1 {
		poolSize = 1
	}
	return &Aggregator{store: st, log: log, poolSize: poolSize}
}

// RunFor recomputes rollups for date across every profile active that
// day, fanning work out across a bounded worker pool.
func (a *Aggregator) RunFor(ctx context.Context, date time.Time) error {
	started := time.Now()
	profiles, err := a.store.ProfilesActiveOn(ctx, date)
	if err != nil {
		return fmt.Errorf("list active profiles: %w", err)
	}
	if len(profiles) == 0 {
		a.log.Info().Time("date", date).Msg("aggregator: no active profiles")
		return nil
	}

	jobs := make(chan string)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var failures int

	for w := 0; w < a.poolSize; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for profileID := range jobs {
				if err := a.store.RollupAll(ctx, profileID, date); err != nil {
					a.log.Error().Err(err).Str("profileId", profileID).Time("date", date).Msg("aggregator: rollup failed")
					mu.Lock()
					failures++
					mu.Unlock()
				}
			}
		}()
	}

	for _, p := range profiles {
		jobs <- p
	}
	close(jobs)
	wg.Wait()

	a.log.Info().
		Int("profiles", len(profiles)).
		Int("failures", failures).
		Dur("elapsed", time.Since(started)).
		Time("date", date).
		Msg("aggregator: run complete")

	if failures > 0 {
		return fmt.Errorf("aggregator: %d of %d profiles failed", failures, len(profiles))
	}
	return nil
}

// RunYesterday recomputes rollups for the UTC day that just ended — the
// nightly cron target.
func (a *Aggregator) RunYesterday(ctx context.Context) error {
	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	return a.RunFor(ctx, yesterday)
}
