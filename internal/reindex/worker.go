// Package reindex is the recovery pass for the search index. The regular
// write path keeps the index in the same transaction as the ledger, so under
// normal operation nothing here ever finds work; after a crash, a botched
// migration, or an operator edit, the worker detects pairs whose search
// record lags the ledger and repairs them with the idempotent per-pair
// reindex.
package reindex

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/rosterkeep/rosterkeep/internal/store"
)

var (
	stalePairsFound = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rosterkeep_reindex_stale_pairs_total",
		Help: "Stale (guild, member) search records detected by the recovery pass.",
	})
	reindexFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rosterkeep_reindex_failures_total",
		Help: "Per-pair reindex attempts that exhausted their retries.",
	})
)

// Config controls scan cadence and batch size.
type Config struct {
	Interval  time.Duration
	BatchSize int
}

type Worker struct {
	store store.Store
	cfg   Config
	log   zerolog.Logger
}

func NewWorker(s store.Store, cfg Config, log zerolog.Logger) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Worker{store: s, cfg: cfg, log: log.With().Str("component", "reindex").Logger()}
}

// Run polls until ctx is canceled. Errors are logged and the next tick
// retries; a failing scan never takes the worker down.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.cfg.Interval).Int("batch", w.cfg.BatchSize).Msg("reindex worker starting")
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("reindex worker stopping")
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.log.Error().Stack().Err(err).Msg("reindex scan failed")
			}
		}
	}
}

// RunOnce scans for stale pairs and repairs them. Returns the number of
// pairs repaired. Also used by the one-shot CLI path.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	pairs, err := w.store.Search().StalePairs(ctx, w.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(pairs) == 0 {
		return 0, nil
	}
	stalePairsFound.Add(float64(len(pairs)))
	w.log.Warn().Int("count", len(pairs)).Msg("stale search records detected")

	repaired := 0
	for _, p := range pairs {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = 100 * time.Millisecond
		bo.MaxElapsedTime = 30 * time.Second
		err := backoff.Retry(func() error {
			return w.store.Search().ReindexMember(ctx, p.GuildID, p.MemberID)
		}, backoff.WithContext(bo, ctx))
		if err != nil {
			// Surfaced for alerting; the pair stays stale and the next scan
			// picks it up again.
			reindexFailures.Inc()
			w.log.Error().Stack().Err(err).
				Str("guild", p.GuildID).Str("member", p.MemberID).
				Msg("pair reindex exhausted retries")
			continue
		}
		repaired++
	}
	return repaired, nil
}
