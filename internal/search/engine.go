// Package search is the guild-scoped name search engine. It validates and
// normalizes free-text queries, then runs the store's tiered lookup:
// exact match, token-prefix match over the precomputed prefix structures,
// substring match. Results rank by tier, then most recent stint activity,
// then member id, so pagination is stable for a given index state.
package search

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rosterkeep/rosterkeep/internal/model"
	"github.com/rosterkeep/rosterkeep/internal/searchidx"
	"github.com/rosterkeep/rosterkeep/internal/store"
)

const (
	// MinQueryLen is the shortest accepted query, in runes. Anything shorter
	// is too unselective to serve from the prefix structures.
	MinQueryLen = 2

	DefaultLimit = 20
	MaxLimit     = 100
)

type Engine struct {
	store store.Store
}

func NewEngine(s store.Store) *Engine { return &Engine{store: s} }

// Query runs a search scoped to one guild. The raw query is trimmed,
// case-folded, and accent-stripped before matching, so "ALV" and "álv" hit
// the same records.
func (e *Engine) Query(ctx context.Context, guildID, raw string, limit, offset int) ([]*model.SearchHit, error) {
	if guildID == "" {
		return nil, fmt.Errorf("empty guild id: %w", model.ErrValidation)
	}

	qn := searchidx.Normalize(strings.TrimSpace(raw))
	if utf8.RuneCountInString(qn) < MinQueryLen {
		return nil, fmt.Errorf("query %q shorter than %d characters: %w", raw, MinQueryLen, model.ErrValidation)
	}

	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}

	return e.store.Search().Query(ctx, model.SearchRequest{
		GuildID: guildID,
		Query:   qn,
		Limit:   limit,
		Offset:  offset,
	})
}

// Record returns the raw search record for one pair, mainly for debugging
// and staleness inspection.
func (e *Engine) Record(ctx context.Context, guildID, memberID string) (*model.SearchRecord, error) {
	if guildID == "" || memberID == "" {
		return nil, fmt.Errorf("empty guild or member id: %w", model.ErrValidation)
	}
	return e.store.Search().Get(ctx, guildID, memberID)
}

// Reindex recomputes the search record for one pair from ledger state.
func (e *Engine) Reindex(ctx context.Context, guildID, memberID string) error {
	if guildID == "" || memberID == "" {
		return fmt.Errorf("empty guild or member id: %w", model.ErrValidation)
	}
	return e.store.Search().ReindexMember(ctx, guildID, memberID)
}
