package ingest

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rosterkeep/rosterkeep/internal/model"
)

// Dispatcher serializes event application per (guild, member) pair while
// letting unrelated pairs proceed in parallel. Every pair hashes to a fixed
// shard, and each shard is a single goroutine draining a FIFO channel, so
// two events for one pair can never be applied out of order or interleaved.
type Dispatcher struct {
	shards  []chan Event
	handler Handler
	log     zerolog.Logger

	wg      sync.WaitGroup
	started bool

	// mu guards closed and keeps Close from closing a shard channel while a
	// Submit is mid-send. Workers keep draining until the channels close, so
	// a blocked Submit always completes before Close can proceed.
	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(workers, buffer int, h Handler, log zerolog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 8
	}
	if buffer <= 0 {
		buffer = 256
	}
	shards := make([]chan Event, workers)
	for i := range shards {
		shards[i] = make(chan Event, buffer)
	}
	return &Dispatcher{
		shards:  shards,
		handler: h,
		log:     log.With().Str("component", "dispatcher").Logger(),
	}
}

// Start launches the shard workers. Events already queued when ctx is
// canceled are still handed to the handler; the handler observes the
// cancellation through its own ctx.
func (d *Dispatcher) Start(ctx context.Context) {
	d.started = true
	for i, ch := range d.shards {
		d.wg.Add(1)
		go func(idx int, ch <-chan Event) {
			defer d.wg.Done()
			for ev := range ch {
				if err := d.handler.Handle(ctx, ev); err != nil {
					d.log.Error().Stack().Err(err).
						Str("event", ev.ID).Str("kind", string(ev.Kind)).
						Str("guild", ev.GuildID).Str("member", ev.MemberID).
						Int("shard", idx).
						Msg("event processing failed")
				}
			}
		}(i, ch)
	}
}

// Submit validates and enqueues one event. It blocks only when the pair's
// shard buffer is full, and respects ctx cancellation while waiting.
func (d *Dispatcher) Submit(ctx context.Context, ev Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	ev.stamp()

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return fmt.Errorf("dispatcher closed: %w", model.ErrValidation)
	}
	ch := d.shards[d.shardFor(ev.GuildID, ev.MemberID)]

	select {
	case ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) shardFor(guildID, memberID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(guildID))
	_, _ = h.Write([]byte{0x1f})
	_, _ = h.Write([]byte(memberID))
	return int(h.Sum32() % uint32(len(d.shards)))
}

// Close stops accepting events, drains the queues, and waits for the
// workers to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, ch := range d.shards {
		close(ch)
	}
	d.mu.Unlock()

	if d.started {
		d.wg.Wait()
	}
}
