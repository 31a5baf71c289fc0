// Package store defines the persistence interface shared by the membership
// ledger and the search index. Implementations live under
// internal/store/<driver>/ (sqlite, postgres).
//
// Every stint mutation and the recomputation of the pair's search record are
// one transaction inside the driver: either both persist or neither. That is
// what keeps the index causally consistent with the ledger without a
// read-your-writes gap.
package store

import (
	"context"
	"time"

	"github.com/rosterkeep/rosterkeep/internal/model"
)

type Store interface {
	Stints() Stints
	Search() Search
	Settings() Settings

	Ping(ctx context.Context) error
	Close() error
}

// Stints is the membership ledger. Writes serialize per (guild, member) at
// the ingest layer; drivers additionally rely on their transaction primitive
// so concurrent writers for one pair cannot interleave.
type Stints interface {
	// RecordJoin opens a new stint. If an open stint already exists for the
	// pair it returns model.ErrConsistency and writes nothing; the prior
	// stint is never auto-closed.
	RecordJoin(ctx context.Context, guildID, memberID string, at time.Time, accountName, guildName *string) (*model.Stint, error)

	// RecordLeave closes the open stint. Returns model.ErrNotFound when no
	// open stint exists (stale or duplicate leave). Returns
	// model.ErrValidation when at precedes the stint's join timestamp.
	RecordLeave(ctx context.Context, guildID, memberID string, at time.Time) (*model.Stint, error)

	// RecordBan sets the banned flag on the most recent stint, open or
	// closed. It never closes a stint. model.ErrNotFound when the pair has
	// no history.
	RecordBan(ctx context.Context, guildID, memberID string, at time.Time) (*model.Stint, error)

	// RecordNameChange updates last-known names on the most recent stint.
	// Nil fields are left untouched. Timestamps are not altered.
	RecordNameChange(ctx context.Context, guildID, memberID string, accountName, guildName *string) (*model.Stint, error)

	// History returns all stints for a pair, oldest first.
	// model.ErrNotFound when the pair has no history.
	History(ctx context.Context, guildID, memberID string) ([]*model.Stint, error)

	// CurrentStint returns the open stint, or model.ErrNotFound.
	CurrentStint(ctx context.Context, guildID, memberID string) (*model.Stint, error)

	// RecentMembers lists latest-stint summaries newest first. A non-nil
	// before cursor restricts to rows strictly older than it.
	RecentMembers(ctx context.Context, guildID string, limit int, before *int64) ([]*model.MemberSummary, error)

	// Rejoiners lists members with at least minStints stints.
	Rejoiners(ctx context.Context, guildID string, minStints, limit int) ([]*model.Rejoiner, error)

	GuildStats(ctx context.Context, guildID string) (*model.GuildStats, error)

	// Exits lists recorded departures newest first, one entry per closed
	// stint, with names taken from the member's latest stint.
	Exits(ctx context.Context, guildID string, limit int) ([]*model.Exit, error)

	// PurgeMember deletes all stints for a pair together with its search
	// record, in one transaction.
	PurgeMember(ctx context.Context, guildID, memberID string) error
}

// Search is the query side of the index plus the idempotent repair path.
// Regular upserts happen inside Stints transactions; only the reindex worker
// and operators call ReindexMember directly.
type Search interface {
	// Query runs the tiered lookup. req.Query must be normalized
	// (searchidx.Normalize) before it reaches the driver.
	Query(ctx context.Context, req model.SearchRequest) ([]*model.SearchHit, error)

	// Get fetches the search record for a pair, or model.ErrNotFound.
	Get(ctx context.Context, guildID, memberID string) (*model.SearchRecord, error)

	// ReindexMember recomputes the search record for one pair from ledger
	// state. Removes the record when the pair has no stints. Idempotent.
	ReindexMember(ctx context.Context, guildID, memberID string) error

	// StalePairs reports pairs whose search record is missing, orphaned, or
	// derived from an outdated stint. Used by the recovery pass.
	StalePairs(ctx context.Context, limit int) ([]model.PairKey, error)
}

// Settings stores per-guild channel routing. The membership core only reads
// it; writes come from the configuration surface.
type Settings interface {
	Get(ctx context.Context, guildID string) (*model.GuildSettings, error)
	Upsert(ctx context.Context, s *model.GuildSettings) error
	SetChannel(ctx context.Context, guildID string, kind model.ChannelKind, channelID *string) error

	// ChannelFor returns the configured channel for kind, or nil when the
	// guild has no settings row or the slot is unset.
	ChannelFor(ctx context.Context, guildID string, kind model.ChannelKind) (*string, error)
}
