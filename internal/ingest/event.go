// Package ingest accepts membership events from the external event source,
// validates them at the boundary, and applies them to the ledger with writes
// serialized per (guild, member) pair.
package ingest

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rosterkeep/rosterkeep/internal/model"
)

// Kind is the fixed four-event taxonomy. Anything the event source delivers
// is normalized into one of these before it reaches the ledger.
type Kind string

const (
	KindJoin   Kind = "join"
	KindLeave  Kind = "leave"
	KindBan    Kind = "ban"
	KindRename Kind = "rename"
)

// Event is one inbound membership event.
type Event struct {
	ID          string    `json:"id,omitempty"`
	Kind        Kind      `json:"kind"`
	GuildID     string    `json:"guildId"`
	MemberID    string    `json:"memberId"`
	Timestamp   time.Time `json:"timestamp"`
	AccountName *string   `json:"accountName,omitempty"`
	GuildName   *string   `json:"guildName,omitempty"`
}

// Validate rejects malformed events before they are queued. Renames carry no
// meaningful timestamp, so only the other kinds require one.
func (e *Event) Validate() error {
	switch e.Kind {
	case KindJoin, KindLeave, KindBan, KindRename:
	default:
		return fmt.Errorf("unknown event kind %q: %w", e.Kind, model.ErrValidation)
	}
	if e.GuildID == "" {
		return fmt.Errorf("event missing guild id: %w", model.ErrValidation)
	}
	if e.MemberID == "" {
		return fmt.Errorf("event missing member id: %w", model.ErrValidation)
	}
	if e.Kind != KindRename && e.Timestamp.IsZero() {
		return fmt.Errorf("%s event missing timestamp: %w", e.Kind, model.ErrValidation)
	}
	if e.Kind == KindRename && e.AccountName == nil && e.GuildName == nil {
		return fmt.Errorf("rename event carries no name fields: %w", model.ErrValidation)
	}
	return nil
}

// stamp assigns a correlation id when the source did not provide one.
func (e *Event) stamp() {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
}
