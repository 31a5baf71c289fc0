// Package ledger is the membership ledger service: validation and policy on
// top of the store's transactional stint operations.
//
// Policies, fixed here and asserted by tests:
//   - a join while a stint is open is a consistency error; the open stint is
//     never auto-closed,
//   - a ban flags the most recent stint and does not close it,
//   - a leave with no open stint is reported as not-found so the caller can
//     log and drop the stale event.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rosterkeep/rosterkeep/internal/model"
	"github.com/rosterkeep/rosterkeep/internal/store"
)

type Service struct {
	store store.Store
	log   zerolog.Logger
}

func New(s store.Store, log zerolog.Logger) *Service {
	return &Service{store: s, log: log.With().Str("component", "ledger").Logger()}
}

func validatePair(guildID, memberID string) error {
	if guildID == "" {
		return fmt.Errorf("empty guild id: %w", model.ErrValidation)
	}
	if memberID == "" {
		return fmt.Errorf("empty member id: %w", model.ErrValidation)
	}
	return nil
}

func validateTimestamp(at time.Time) error {
	if at.IsZero() {
		return fmt.Errorf("zero timestamp: %w", model.ErrValidation)
	}
	return nil
}

func (s *Service) RecordJoin(ctx context.Context, guildID, memberID string, at time.Time, accountName, guildName *string) (*model.Stint, error) {
	if err := validatePair(guildID, memberID); err != nil {
		return nil, err
	}
	if err := validateTimestamp(at); err != nil {
		return nil, err
	}
	st, err := s.store.Stints().RecordJoin(ctx, guildID, memberID, at, accountName, guildName)
	if err != nil {
		return nil, err
	}
	s.log.Debug().Str("guild", guildID).Str("member", memberID).Int64("stint", st.ID).Msg("join recorded")
	return st, nil
}

func (s *Service) RecordLeave(ctx context.Context, guildID, memberID string, at time.Time) (*model.Stint, error) {
	if err := validatePair(guildID, memberID); err != nil {
		return nil, err
	}
	if err := validateTimestamp(at); err != nil {
		return nil, err
	}
	st, err := s.store.Stints().RecordLeave(ctx, guildID, memberID, at)
	if err != nil {
		return nil, err
	}
	s.log.Debug().Str("guild", guildID).Str("member", memberID).Int64("stint", st.ID).Msg("leave recorded")
	return st, nil
}

func (s *Service) RecordBan(ctx context.Context, guildID, memberID string, at time.Time) (*model.Stint, error) {
	if err := validatePair(guildID, memberID); err != nil {
		return nil, err
	}
	if err := validateTimestamp(at); err != nil {
		return nil, err
	}
	st, err := s.store.Stints().RecordBan(ctx, guildID, memberID, at)
	if err != nil {
		return nil, err
	}
	s.log.Debug().Str("guild", guildID).Str("member", memberID).Int64("stint", st.ID).Msg("ban recorded")
	return st, nil
}

func (s *Service) RecordNameChange(ctx context.Context, guildID, memberID string, accountName, guildName *string) (*model.Stint, error) {
	if err := validatePair(guildID, memberID); err != nil {
		return nil, err
	}
	if accountName == nil && guildName == nil {
		return nil, fmt.Errorf("rename carries no name fields: %w", model.ErrValidation)
	}
	return s.store.Stints().RecordNameChange(ctx, guildID, memberID, accountName, guildName)
}

func (s *Service) History(ctx context.Context, guildID, memberID string) ([]*model.Stint, error) {
	if err := validatePair(guildID, memberID); err != nil {
		return nil, err
	}
	return s.store.Stints().History(ctx, guildID, memberID)
}

func (s *Service) CurrentStint(ctx context.Context, guildID, memberID string) (*model.Stint, error) {
	if err := validatePair(guildID, memberID); err != nil {
		return nil, err
	}
	return s.store.Stints().CurrentStint(ctx, guildID, memberID)
}

func (s *Service) RecentMembers(ctx context.Context, guildID string, limit int, before *int64) ([]*model.MemberSummary, error) {
	if guildID == "" {
		return nil, fmt.Errorf("empty guild id: %w", model.ErrValidation)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.Stints().RecentMembers(ctx, guildID, limit, before)
}

func (s *Service) Rejoiners(ctx context.Context, guildID string, minStints, limit int) ([]*model.Rejoiner, error) {
	if guildID == "" {
		return nil, fmt.Errorf("empty guild id: %w", model.ErrValidation)
	}
	if minStints < 2 {
		minStints = 2
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.Stints().Rejoiners(ctx, guildID, minStints, limit)
}

func (s *Service) Exits(ctx context.Context, guildID string, limit int) ([]*model.Exit, error) {
	if guildID == "" {
		return nil, fmt.Errorf("empty guild id: %w", model.ErrValidation)
	}
	if limit <= 0 || limit > 2000 {
		limit = 200
	}
	return s.store.Stints().Exits(ctx, guildID, limit)
}

func (s *Service) GuildStats(ctx context.Context, guildID string) (*model.GuildStats, error) {
	if guildID == "" {
		return nil, fmt.Errorf("empty guild id: %w", model.ErrValidation)
	}
	return s.store.Stints().GuildStats(ctx, guildID)
}
