package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/rosterkeep/rosterkeep/internal/ledger"
	"github.com/rosterkeep/rosterkeep/internal/model"
	"github.com/rosterkeep/rosterkeep/internal/search"
)

// Handler applies one validated event. Implemented by Processor; the
// indirection keeps dispatcher tests free of storage.
type Handler interface {
	Handle(ctx context.Context, ev Event) error
}

// Processor routes events to the ledger. Out-of-order events from the
// external source (duplicate joins, stale leaves) are consistency noise, not
// failures: they are logged, counted, and dropped so one bad event never
// stalls the pair's queue. Index-sync failures go through the idempotent
// per-pair reindex with backoff before they count as failures.
type Processor struct {
	ledger *ledger.Service
	engine *search.Engine
	log    zerolog.Logger
}

func NewProcessor(l *ledger.Service, e *search.Engine, log zerolog.Logger) *Processor {
	return &Processor{ledger: l, engine: e, log: log.With().Str("component", "ingest").Logger()}
}

func (p *Processor) Handle(ctx context.Context, ev Event) error {
	err := p.apply(ctx, ev)
	switch {
	case err == nil:
		eventsProcessed.WithLabelValues(string(ev.Kind)).Inc()
		return nil

	case errors.Is(err, model.ErrConsistency), errors.Is(err, model.ErrNotFound):
		p.log.Warn().Err(err).
			Str("event", ev.ID).Str("kind", string(ev.Kind)).
			Str("guild", ev.GuildID).Str("member", ev.MemberID).
			Msg("dropping out-of-order event")
		eventsDropped.WithLabelValues(string(ev.Kind), "consistency").Inc()
		return nil

	case errors.Is(err, model.ErrValidation):
		p.log.Warn().Err(err).Str("event", ev.ID).Msg("dropping invalid event")
		eventsDropped.WithLabelValues(string(ev.Kind), "validation").Inc()
		return nil

	case errors.Is(err, model.ErrIndexSync):
		// The ledger write committed but the index did not follow. Repair
		// with the idempotent per-pair reindex before giving up.
		if rerr := p.retryReindex(ctx, ev.GuildID, ev.MemberID); rerr != nil {
			eventFailures.WithLabelValues(string(ev.Kind)).Inc()
			return rerr
		}
		eventsProcessed.WithLabelValues(string(ev.Kind)).Inc()
		return nil

	default:
		eventFailures.WithLabelValues(string(ev.Kind)).Inc()
		return err
	}
}

func (p *Processor) apply(ctx context.Context, ev Event) error {
	switch ev.Kind {
	case KindJoin:
		_, err := p.ledger.RecordJoin(ctx, ev.GuildID, ev.MemberID, ev.Timestamp, ev.AccountName, ev.GuildName)
		return err
	case KindLeave:
		_, err := p.ledger.RecordLeave(ctx, ev.GuildID, ev.MemberID, ev.Timestamp)
		return err
	case KindBan:
		_, err := p.ledger.RecordBan(ctx, ev.GuildID, ev.MemberID, ev.Timestamp)
		return err
	case KindRename:
		_, err := p.ledger.RecordNameChange(ctx, ev.GuildID, ev.MemberID, ev.AccountName, ev.GuildName)
		return err
	default:
		return model.ErrValidation
	}
}

func (p *Processor) retryReindex(ctx context.Context, guildID, memberID string) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxElapsedTime = 10 * time.Second
	return backoff.Retry(func() error {
		return p.engine.Reindex(ctx, guildID, memberID)
	}, backoff.WithContext(bo, ctx))
}
