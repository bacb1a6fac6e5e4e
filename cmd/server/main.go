// Command server wires together every component — Store, Cache, Ingester,
// Aggregator, Query, Retention, the chain adapter, the relay passthrough,
// and the durable/realtime bus — behind the HTTP API, then runs the
// nightly/periodic jobs on a cron schedule until terminated.
package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"microanalytics/internal/aggregator"
	"microanalytics/internal/api"
	"microanalytics/internal/cache"
	"microanalytics/internal/chain"
	"microanalytics/internal/config"
	"microanalytics/internal/ingest"
	"microanalytics/internal/logging"
	"microanalytics/internal/notify"
	"microanalytics/internal/query"
	"microanalytics/internal/realtime"
	"microanalytics/internal/relay"
	"microanalytics/internal/retention"
	"microanalytics/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info().
		Str("store", redactURL(cfg.StoreURL)).
		Str("cache", redactURL(cfg.CacheURL)).
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Msg("starting microanalytics")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(ctx, cfg.StoreURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to store")
	}
	defer st.Close()

	if err := st.Migrate(ctx, schemaPath()); err != nil {
		log.Fatal().Err(err).Msg("failed to apply schema")
	}

	var analyticsCache *cache.Cache
	if cfg.CacheURL != "" {
		analyticsCache, err = cache.Open(ctx, cfg.CacheURL)
		if err != nil {
			log.Warn().Err(err).Msg("cache unavailable, falling back to store-only caching")
			analyticsCache = nil
		} else {
			defer analyticsCache.Close()
		}
	}

	var profileStore chain.ProfileStore
	if cfg.ChainRPCURL != "" {
		sui, err := chain.NewSuiProfileStore(splitAndTrim(cfg.ChainRPCURL))
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize chain profile store")
		}
		profileStore = sui
	} else {
		profileStore = chain.NewStaticProfileStore()
	}

	notifyBus := notify.New()
	defer notifyBus.Close()

	var durableBus realtime.WebhookDelivery
	if cfg.SvixToken != "" {
		svixBus, err := realtime.NewSvixBus(cfg.SvixToken, cfg.SvixServerURL, st)
		if err != nil {
			log.Warn().Err(err).Msg("svix bus unavailable, falling back to store-only durability")
			durableBus = realtime.NewNoopBus(st)
		} else {
			durableBus = svixBus
		}
	} else {
		durableBus = realtime.NewNoopBus(st)
	}

	ingester := ingest.New(st, analyticsCache, profileStore, notifyBus, durableBus, cfg.ProfileExistsCheck)
	q := query.New(st, analyticsCache, notifyBus, cfg.Analytics.CacheTTL)
	agg := aggregator.New(st, log)
	ret := retention.New(st, log, cfg.Retention)
	hub := realtime.NewHub(notifyBus, log, corsOriginChecker(cfg.CORSOrigins))

	var relayClient *relay.Client
	var relayAuth *relay.Auth
	if cfg.RelayURL != "" {
		relayClient = relay.NewClient(cfg.RelayURL)
		relayAuth = relay.NewAuth(cfg.RelayJWTSecret)
	}

	server := api.New(ingester, q, hub, notifyBus, relayClient, relayAuth, log)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           server.Handler(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	scheduler := startScheduler(ctx, agg, ret, log)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Str("addr", httpServer.Addr).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)

	schedStop := scheduler.Stop()
	<-schedStop.Done()

	cancel()
	wg.Wait()
}

// startScheduler puts the Aggregator's nightly rollup pass and the
// Retention component's sweeps onto cron: rollups at 02:00 UTC, the daily
// retention sweep an hour later so it never races the rollups it depends
// on, and the remaining sweeps on their own independent cadences.
func startScheduler(ctx context.Context, agg *aggregator.Aggregator, ret *retention.Retention, log zerolog.Logger) *cron.Cron {
	c := cron.New(cron.WithLocation(time.UTC))

	mustAdd := func(spec string, job func()) {
		if _, err := c.AddFunc(spec, job); err != nil {
			log.Fatal().Err(err).Str("spec", spec).Msg("failed to schedule job")
		}
	}

	mustAdd("0 2 * * *", func() {
		if err := agg.RunYesterday(ctx); err != nil {
			log.Error().Err(err).Msg("scheduled aggregator run failed")
		}
	})
	mustAdd("0 3 * * *", func() { ret.RunDaily(ctx) })
	mustAdd("0 */6 * * *", func() { ret.RunOrphanSessionSweep(ctx) })
	mustAdd("0 * * * *", func() { ret.RunCacheSweep(ctx) })
	mustAdd("0 4 * * 0", func() { ret.RunRealtimeEventSweep(ctx) })

	c.Start()
	return c
}

func schemaPath() string {
	if p := strings.TrimSpace(os.Getenv("SCHEMA_PATH")); p != "" {
		return p
	}
	return "internal/store/schema.sql"
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func corsOriginChecker(origins []string) func(*http.Request) bool {
	allowAll := false
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
	}
	return func(r *http.Request) bool {
		if allowAll {
			return true
		}
		origin := r.Header.Get("Origin")
		for _, o := range origins {
			if o == origin {
				return true
			}
		}
		return false
	}
}

// redactURL masks credentials embedded in a connection string before it
// reaches the logs.
func redactURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if u, err := url.Parse(raw); err == nil && u.Scheme != "" {
		if u.User != nil {
			user := u.User.Username()
			if user == "" {
				user = "user"
			}
			u.User = url.UserPassword(user, "****")
		}
		u.RawQuery = ""
		return u.String()
	}
	re := regexp.MustCompile(`(?i)(://[^:/?#]+):([^@]+)@`)
	return re.ReplaceAllString(raw, `$1:****@`)
}
