package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rosterkeep/rosterkeep/internal/model"
)

type settings struct{ db *sql.DB }

func (s *settings) Get(ctx context.Context, guildID string) (*model.GuildSettings, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT join_log_channel_id, leave_log_channel_id, mod_log_channel_id
		  FROM guild_settings WHERE guild_id = ?`, guildID)

	var join, leave, mod sql.NullString
	err := row.Scan(&join, &leave, &mod)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no settings for guild %s: %w", guildID, model.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &model.GuildSettings{
		GuildID:           guildID,
		JoinLogChannelID:  strPtr(join),
		LeaveLogChannelID: strPtr(leave),
		ModLogChannelID:   strPtr(mod),
	}, nil
}

func (s *settings) Upsert(ctx context.Context, gs *model.GuildSettings) error {
	// Nil fields keep whatever is already stored.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guild_settings (guild_id, join_log_channel_id, leave_log_channel_id, mod_log_channel_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (guild_id) DO UPDATE SET
		    join_log_channel_id  = COALESCE(excluded.join_log_channel_id,  guild_settings.join_log_channel_id),
		    leave_log_channel_id = COALESCE(excluded.leave_log_channel_id, guild_settings.leave_log_channel_id),
		    mod_log_channel_id   = COALESCE(excluded.mod_log_channel_id,   guild_settings.mod_log_channel_id)`,
		gs.GuildID, nullStr(gs.JoinLogChannelID), nullStr(gs.LeaveLogChannelID), nullStr(gs.ModLogChannelID))
	return err
}

func (s *settings) SetChannel(ctx context.Context, guildID string, kind model.ChannelKind, channelID *string) error {
	col, err := channelColumn(kind)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO guild_settings (guild_id) VALUES (?) ON CONFLICT (guild_id) DO NOTHING`, guildID); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE guild_settings SET %s = ? WHERE guild_id = ?`, col),
		nullStr(channelID), guildID)
	return err
}

func (s *settings) ChannelFor(ctx context.Context, guildID string, kind model.ChannelKind) (*string, error) {
	if _, err := channelColumn(kind); err != nil {
		return nil, err
	}
	gs, err := s.Get(ctx, guildID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return gs.Channel(kind), nil
}

// channelColumn maps a kind to its fixed column name. Input never reaches
// SQL unvalidated.
func channelColumn(kind model.ChannelKind) (string, error) {
	switch kind {
	case model.ChannelJoin:
		return "join_log_channel_id", nil
	case model.ChannelLeave:
		return "leave_log_channel_id", nil
	case model.ChannelModeration:
		return "mod_log_channel_id", nil
	default:
		return "", fmt.Errorf("unknown channel kind %q: %w", kind, model.ErrValidation)
	}
}
