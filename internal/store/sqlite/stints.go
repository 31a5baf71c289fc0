package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rosterkeep/rosterkeep/internal/model"
)

type stints struct{ db *sql.DB }

const stintColumns = `id, guild_id, member_id, joined_at, left_at, banned, account_name, guild_name`

type rowScanner interface{ Scan(dest ...any) error }

func scanStint(r rowScanner) (*model.Stint, error) {
	var (
		s              model.Stint
		joined         string
		left           sql.NullString
		account, guild sql.NullString
	)
	if err := r.Scan(&s.ID, &s.GuildID, &s.MemberID, &joined, &left, &s.Banned, &account, &guild); err != nil {
		return nil, err
	}
	var err error
	if s.JoinedAt, err = parseTime(joined); err != nil {
		return nil, fmt.Errorf("corrupt joined_at for stint %d: %w", s.ID, err)
	}
	if left.Valid {
		t, err := parseTime(left.String)
		if err != nil {
			return nil, fmt.Errorf("corrupt left_at for stint %d: %w", s.ID, err)
		}
		s.LeftAt = &t
	}
	s.AccountName = strPtr(account)
	s.GuildName = strPtr(guild)
	return &s, nil
}

func getStintTx(ctx context.Context, tx *sql.Tx, id int64) (*model.Stint, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+stintColumns+` FROM memberships WHERE id = ?`, id)
	return scanStint(row)
}

func (s *stints) RecordJoin(ctx context.Context, guildID, memberID string, at time.Time, accountName, guildName *string) (*model.Stint, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var openID int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM memberships WHERE guild_id = ? AND member_id = ? AND left_at IS NULL`,
		guildID, memberID).Scan(&openID)
	switch {
	case err == nil:
		return nil, fmt.Errorf("join for %s/%s: stint %d still open: %w", guildID, memberID, openID, model.ErrConsistency)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, err
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO memberships (guild_id, member_id, joined_at, left_at, banned, account_name, guild_name)
		VALUES (?, ?, ?, NULL, 0, ?, ?)`,
		guildID, memberID, formatTime(at), nullStr(accountName), nullStr(guildName))
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	if err := syncPairTx(ctx, tx, guildID, memberID); err != nil {
		return nil, err
	}
	out, err := getStintTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	return out, tx.Commit()
}

func (s *stints) RecordLeave(ctx context.Context, guildID, memberID string, at time.Time) (*model.Stint, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		id     int64
		joined string
	)
	err = tx.QueryRowContext(ctx,
		`SELECT id, joined_at FROM memberships WHERE guild_id = ? AND member_id = ? AND left_at IS NULL`,
		guildID, memberID).Scan(&id, &joined)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("leave for %s/%s: no open stint: %w", guildID, memberID, model.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	joinedAt, err := parseTime(joined)
	if err != nil {
		return nil, fmt.Errorf("corrupt joined_at for stint %d: %w", id, err)
	}
	if at.Before(joinedAt) {
		return nil, fmt.Errorf("leave at %s precedes join at %s: %w", at.UTC(), joinedAt, model.ErrValidation)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE memberships SET left_at = ? WHERE id = ? AND left_at IS NULL`,
		formatTime(at), id); err != nil {
		return nil, err
	}

	if err := syncPairTx(ctx, tx, guildID, memberID); err != nil {
		return nil, err
	}
	out, err := getStintTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	return out, tx.Commit()
}

func (s *stints) RecordBan(ctx context.Context, guildID, memberID string, at time.Time) (*model.Stint, error) {
	_ = at // the banned flag carries no timestamp of its own
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	id, err := latestStintID(ctx, tx, guildID, memberID)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE memberships SET banned = 1 WHERE id = ?`, id); err != nil {
		return nil, err
	}

	if err := syncPairTx(ctx, tx, guildID, memberID); err != nil {
		return nil, err
	}
	out, err := getStintTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	return out, tx.Commit()
}

func (s *stints) RecordNameChange(ctx context.Context, guildID, memberID string, accountName, guildName *string) (*model.Stint, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	id, err := latestStintID(ctx, tx, guildID, memberID)
	if err != nil {
		return nil, err
	}

	// COALESCE keeps the stored value for fields the event did not carry.
	if _, err := tx.ExecContext(ctx, `
		UPDATE memberships
		   SET account_name = COALESCE(?, account_name),
		       guild_name   = COALESCE(?, guild_name)
		 WHERE id = ?`,
		nullStr(accountName), nullStr(guildName), id); err != nil {
		return nil, err
	}

	if err := syncPairTx(ctx, tx, guildID, memberID); err != nil {
		return nil, err
	}
	out, err := getStintTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	return out, tx.Commit()
}

func latestStintID(ctx context.Context, tx *sql.Tx, guildID, memberID string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM memberships WHERE guild_id = ? AND member_id = ? ORDER BY id DESC LIMIT 1`,
		guildID, memberID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("no stints for %s/%s: %w", guildID, memberID, model.ErrNotFound)
	}
	return id, err
}

func (s *stints) History(ctx context.Context, guildID, memberID string) ([]*model.Stint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+stintColumns+` FROM memberships WHERE guild_id = ? AND member_id = ? ORDER BY id ASC`,
		guildID, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Stint
	for rows.Next() {
		st, err := scanStint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no stints for %s/%s: %w", guildID, memberID, model.ErrNotFound)
	}
	return out, nil
}

func (s *stints) CurrentStint(ctx context.Context, guildID, memberID string) (*model.Stint, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+stintColumns+` FROM memberships WHERE guild_id = ? AND member_id = ? AND left_at IS NULL`,
		guildID, memberID)
	st, err := scanStint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no open stint for %s/%s: %w", guildID, memberID, model.ErrNotFound)
	}
	return st, err
}

func (s *stints) RecentMembers(ctx context.Context, guildID string, limit int, before *int64) ([]*model.MemberSummary, error) {
	q := `
		WITH last AS (
		    SELECT member_id, MAX(id) AS last_row_id
		      FROM memberships
		     WHERE guild_id = ?
		     GROUP BY member_id
		)
		SELECT m.member_id, l.last_row_id, m.account_name, m.guild_name
		  FROM last l
		  JOIN memberships m ON m.id = l.last_row_id`
	args := []any{guildID}
	if before != nil {
		q += ` WHERE l.last_row_id < ?`
		args = append(args, *before)
	}
	q += ` ORDER BY l.last_row_id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.MemberSummary
	for rows.Next() {
		var (
			ms             model.MemberSummary
			account, guild sql.NullString
		)
		if err := rows.Scan(&ms.MemberID, &ms.LastRowID, &account, &guild); err != nil {
			return nil, err
		}
		ms.AccountName = strPtr(account)
		ms.GuildName = strPtr(guild)
		out = append(out, &ms)
	}
	return out, rows.Err()
}

func (s *stints) Rejoiners(ctx context.Context, guildID string, minStints, limit int) ([]*model.Rejoiner, error) {
	rows, err := s.db.QueryContext(ctx, `
		WITH last AS (
		    SELECT member_id, MAX(id) AS last_row_id
		      FROM memberships
		     WHERE guild_id = ?
		     GROUP BY member_id
		),
		agg AS (
		    SELECT member_id,
		           COUNT(*) AS stints,
		           SUM(CASE WHEN left_at IS NOT NULL THEN 1 ELSE 0 END) AS times_left
		      FROM memberships
		     WHERE guild_id = ?
		     GROUP BY member_id
		)
		SELECT a.member_id, a.stints, a.times_left, m.account_name, m.guild_name
		  FROM agg a
		  JOIN last l ON l.member_id = a.member_id
		  JOIN memberships m ON m.id = l.last_row_id
		 WHERE a.stints >= ?
		 ORDER BY a.stints DESC, l.last_row_id DESC
		 LIMIT ?`,
		guildID, guildID, minStints, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Rejoiner
	for rows.Next() {
		var (
			r              model.Rejoiner
			account, guild sql.NullString
		)
		if err := rows.Scan(&r.MemberID, &r.StintCount, &r.TimesLeft, &account, &guild); err != nil {
			return nil, err
		}
		r.AccountName = strPtr(account)
		r.GuildName = strPtr(guild)
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (s *stints) GuildStats(ctx context.Context, guildID string) (*model.GuildStats, error) {
	var st model.GuildStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT CASE WHEN left_at IS NULL THEN member_id END),
		       COUNT(DISTINCT member_id),
		       COUNT(*),
		       COALESCE(SUM(CASE WHEN left_at IS NOT NULL THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN banned = 1 THEN 1 ELSE 0 END), 0)
		  FROM memberships
		 WHERE guild_id = ?`, guildID).
		Scan(&st.CurrentMembers, &st.UniqueMembers, &st.TotalStints, &st.TotalExits, &st.TotalBans)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *stints) Exits(ctx context.Context, guildID string, limit int) ([]*model.Exit, error) {
	rows, err := s.db.QueryContext(ctx, `
		WITH last AS (
		    SELECT member_id, MAX(id) AS last_row_id
		      FROM memberships
		     WHERE guild_id = ?
		     GROUP BY member_id
		)
		SELECT m.member_id, m.left_at, m.banned, n.account_name, n.guild_name
		  FROM memberships m
		  JOIN last l ON l.member_id = m.member_id
		  JOIN memberships n ON n.id = l.last_row_id
		 WHERE m.guild_id = ? AND m.left_at IS NOT NULL
		 ORDER BY m.id DESC
		 LIMIT ?`, guildID, guildID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Exit
	for rows.Next() {
		var (
			e              model.Exit
			left           string
			account, guild sql.NullString
		)
		if err := rows.Scan(&e.MemberID, &left, &e.Banned, &account, &guild); err != nil {
			return nil, err
		}
		if e.LeftAt, err = parseTime(left); err != nil {
			return nil, fmt.Errorf("corrupt left_at for %s/%s: %w", guildID, e.MemberID, err)
		}
		e.AccountName = strPtr(account)
		e.GuildName = strPtr(guild)
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *stints) PurgeMember(ctx context.Context, guildID, memberID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM memberships WHERE guild_id = ? AND member_id = ?`, guildID, memberID); err != nil {
		return err
	}
	// No stints remain, so the sync removes the search record.
	if err := syncPairTx(ctx, tx, guildID, memberID); err != nil {
		return err
	}
	return tx.Commit()
}
