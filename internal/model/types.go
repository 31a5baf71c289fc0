package model

import "time"

// Stint is one continuous presence interval of a member in a guild.
// LeftAt is nil while the stint is open. JoinedAt and LeftAt are immutable
// once set; the single write path in the store enforces this.
type Stint struct {
	ID          int64      `json:"id"`
	GuildID     string     `json:"guildId"`
	MemberID    string     `json:"memberId"`
	JoinedAt    time.Time  `json:"joinedAt"`
	LeftAt      *time.Time `json:"leftAt,omitempty"`
	Banned      bool       `json:"banned"`
	AccountName *string    `json:"accountName,omitempty"`
	GuildName   *string    `json:"guildName,omitempty"`
}

// Open reports whether the stint has no leave timestamp yet.
func (s *Stint) Open() bool { return s.LeftAt == nil }

// SearchRecord is the denormalized, search-optimized row for a (guild,
// member) pair. Derived from the pair's most recent stint; the synchronizer
// owns all writes.
type SearchRecord struct {
	GuildID     string  `json:"guildId"`
	MemberID    string  `json:"memberId"`
	AccountName *string `json:"accountName,omitempty"`
	GuildName   *string `json:"guildName,omitempty"`
	AccountNorm string  `json:"-"`
	GuildNorm   string  `json:"-"`
	Label       string  `json:"label"`
	LabelNorm   string  `json:"labelNorm"`
	// LastRowID is the id of the stint the record was derived from. A record
	// whose LastRowID lags the ledger's max stint id for the pair is stale.
	LastRowID int64 `json:"-"`
	// LastActiveAt is when the record was last synchronized. Renames rewrite
	// the latest stint in place, so this moves even when LastRowID does not;
	// search ranking breaks ties on it.
	LastActiveAt time.Time `json:"-"`
}

// MatchTier says which matching tier produced a search hit. Lower is better.
type MatchTier int

const (
	TierExact     MatchTier = 1 // full label or full name field, accent/case-insensitive
	TierPrefix    MatchTier = 2 // token prefix against the normalized label
	TierSubstring MatchTier = 3 // substring anywhere in the normalized label
)

func (t MatchTier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierPrefix:
		return "prefix"
	case TierSubstring:
		return "substring"
	default:
		return "unknown"
	}
}

// SearchHit is one ranked search result.
type SearchHit struct {
	MemberID    string    `json:"memberId"`
	AccountName *string   `json:"accountName,omitempty"`
	GuildName   *string   `json:"guildName,omitempty"`
	Tier        MatchTier `json:"tier"`
	LastRowID   int64     `json:"-"`
}

// SearchRequest carries a guild-scoped query. Query must already be
// normalized by the engine before it reaches a store driver.
type SearchRequest struct {
	GuildID string
	Query   string
	Limit   int
	Offset  int
}

// MemberSummary is the latest-stint view of a member, used for recent-member
// listings. LastRowID doubles as the pagination cursor.
type MemberSummary struct {
	MemberID    string  `json:"memberId"`
	LastRowID   int64   `json:"cursor"`
	AccountName *string `json:"accountName,omitempty"`
	GuildName   *string `json:"guildName,omitempty"`
}

// Rejoiner is a member with multiple recorded stints.
type Rejoiner struct {
	MemberID    string  `json:"memberId"`
	StintCount  int64   `json:"stintCount"`
	TimesLeft   int64   `json:"timesLeft"`
	AccountName *string `json:"accountName,omitempty"`
	GuildName   *string `json:"guildName,omitempty"`
}

// Exit is one recorded departure. A member who left several times appears
// once per closed stint; names come from the member's latest stint so the
// listing reads with current identities.
type Exit struct {
	MemberID    string    `json:"memberId"`
	LeftAt      time.Time `json:"leftAt"`
	Banned      bool      `json:"banned"`
	AccountName *string   `json:"accountName,omitempty"`
	GuildName   *string   `json:"guildName,omitempty"`
}

// GuildStats are point-in-time and lifetime counters for one guild.
type GuildStats struct {
	CurrentMembers int64 `json:"currentMembers"`
	UniqueMembers  int64 `json:"uniqueMembers"`
	TotalStints    int64 `json:"totalStints"`
	TotalExits     int64 `json:"totalExits"`
	TotalBans      int64 `json:"totalBans"`
}

// ChannelKind selects one of the per-guild log channel slots.
type ChannelKind string

const (
	ChannelJoin       ChannelKind = "join"
	ChannelLeave      ChannelKind = "leave"
	ChannelModeration ChannelKind = "moderation"
)

// GuildSettings holds per-guild channel routing identifiers. The membership
// core only reads these; the configuration surface writes them.
type GuildSettings struct {
	GuildID           string  `json:"guildId"`
	JoinLogChannelID  *string `json:"joinLogChannelId,omitempty"`
	LeaveLogChannelID *string `json:"leaveLogChannelId,omitempty"`
	ModLogChannelID   *string `json:"modLogChannelId,omitempty"`
}

// Channel returns the configured channel id for kind, if any.
func (g *GuildSettings) Channel(kind ChannelKind) *string {
	switch kind {
	case ChannelJoin:
		return g.JoinLogChannelID
	case ChannelLeave:
		return g.LeaveLogChannelID
	case ChannelModeration:
		return g.ModLogChannelID
	default:
		return nil
	}
}

// PairKey identifies one (guild, member) pair.
type PairKey struct {
	GuildID  string `json:"guildId"`
	MemberID string `json:"memberId"`
}
