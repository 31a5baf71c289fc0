package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rosterkeep/rosterkeep/internal/model"
	"github.com/rosterkeep/rosterkeep/internal/searchidx"
)

type search struct{ db *sql.DB }

// syncPairTx recomputes the search record for one pair from the pair's
// latest stint, inside the caller's transaction. Removing the last stint
// removes the record. Called by every stint mutation and by ReindexMember.
func syncPairTx(ctx context.Context, tx *sql.Tx, guildID, memberID string) error {
	var (
		rowID          int64
		account, guild sql.NullString
	)
	err := tx.QueryRowContext(ctx, `
		SELECT id, account_name, guild_name
		  FROM memberships
		 WHERE guild_id = ? AND member_id = ?
		 ORDER BY id DESC LIMIT 1`,
		guildID, memberID).Scan(&rowID, &account, &guild)

	if _, derr := tx.ExecContext(ctx,
		`DELETE FROM search_records WHERE guild_id = ? AND member_id = ?`, guildID, memberID); derr != nil {
		return derr
	}
	if _, derr := tx.ExecContext(ctx,
		`DELETE FROM search_tokens WHERE guild_id = ? AND member_id = ?`, guildID, memberID); derr != nil {
		return derr
	}

	if errors.Is(err, sql.ErrNoRows) {
		return nil // no history left; record stays removed
	}
	if err != nil {
		return err
	}

	doc := searchidx.BuildDoc(memberID, strPtr(account), strPtr(guild))
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO search_records
		    (guild_id, member_id, account_name, guild_name, account_norm, guild_norm, label, label_norm, last_row_id, last_active_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		guildID, memberID, nullStr(doc.AccountName), nullStr(doc.GuildName),
		doc.AccountNorm, doc.GuildNorm, doc.Label, doc.LabelNorm, rowID, time.Now().UnixNano()); err != nil {
		return err
	}
	for _, t := range doc.Tokens {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO search_tokens (guild_id, member_id, token, prefix2, prefix3, prefix4)
			VALUES (?, ?, ?, ?, ?, ?)`,
			guildID, memberID, t.Text, t.Prefix2, t.Prefix3, t.Prefix4); err != nil {
			return err
		}
	}
	return nil
}

func (s *search) ReindexMember(ctx context.Context, guildID, memberID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("reindex %s/%s: %v: %w", guildID, memberID, err, model.ErrIndexSync)
	}
	defer func() { _ = tx.Rollback() }()

	if err := syncPairTx(ctx, tx, guildID, memberID); err != nil {
		return fmt.Errorf("reindex %s/%s: %v: %w", guildID, memberID, err, model.ErrIndexSync)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("reindex %s/%s: %v: %w", guildID, memberID, err, model.ErrIndexSync)
	}
	return nil
}

func (s *search) Get(ctx context.Context, guildID, memberID string) (*model.SearchRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT guild_id, member_id, account_name, guild_name, account_norm, guild_norm, label, label_norm, last_row_id, last_active_at
		  FROM search_records
		 WHERE guild_id = ? AND member_id = ?`, guildID, memberID)

	var (
		r              model.SearchRecord
		account, guild sql.NullString
		activeNanos    int64
	)
	err := row.Scan(&r.GuildID, &r.MemberID, &account, &guild, &r.AccountNorm, &r.GuildNorm, &r.Label, &r.LabelNorm, &r.LastRowID, &activeNanos)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no search record for %s/%s: %w", guildID, memberID, model.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	r.AccountName = strPtr(account)
	r.GuildName = strPtr(guild)
	r.LastActiveAt = time.Unix(0, activeNanos).UTC()
	return &r, nil
}

// escapeLike escapes LIKE metacharacters so user input matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (s *search) Query(ctx context.Context, req model.SearchRequest) ([]*model.SearchHit, error) {
	qn := req.Query
	esc := escapeLike(qn)

	var b strings.Builder
	b.WriteString(`
		WITH hits (member_id, tier) AS (
		    SELECT member_id, 1 FROM search_records
		     WHERE guild_id = ?
		       AND (label_norm = ? OR (account_norm <> '' AND account_norm = ?) OR (guild_norm <> '' AND guild_norm = ?))
		    UNION ALL
		`)
	args := []any{req.GuildID, qn, qn, qn}

	switch utf8.RuneCountInString(qn) {
	case 2:
		b.WriteString(`SELECT member_id, 2 FROM search_tokens WHERE guild_id = ? AND prefix2 = ?`)
		args = append(args, req.GuildID, qn)
	case 3:
		b.WriteString(`SELECT member_id, 2 FROM search_tokens WHERE guild_id = ? AND prefix3 = ?`)
		args = append(args, req.GuildID, qn)
	default:
		// The prefix-4 bucket narrows the scan; the LIKE finishes the match.
		b.WriteString(`SELECT member_id, 2 FROM search_tokens WHERE guild_id = ? AND prefix4 = ? AND token LIKE ? ESCAPE '\'`)
		args = append(args, req.GuildID, searchidx.QueryPrefix(qn), esc+"%")
	}

	b.WriteString(`
		    UNION ALL
		    SELECT member_id, 3 FROM search_records
		     WHERE guild_id = ? AND label_norm LIKE ? ESCAPE '\'
		),
		best AS (
		    SELECT member_id, MIN(tier) AS tier FROM hits GROUP BY member_id
		)
		SELECT r.member_id, r.account_name, r.guild_name, b.tier, r.last_row_id
		  FROM best b
		  JOIN search_records r ON r.guild_id = ? AND r.member_id = b.member_id
		 ORDER BY b.tier ASC, r.last_active_at DESC, r.last_row_id DESC, r.member_id ASC
		 LIMIT ? OFFSET ?`)
	args = append(args, req.GuildID, "%"+esc+"%", req.GuildID, req.Limit, req.Offset)

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.SearchHit
	for rows.Next() {
		var (
			h              model.SearchHit
			account, guild sql.NullString
		)
		if err := rows.Scan(&h.MemberID, &account, &guild, &h.Tier, &h.LastRowID); err != nil {
			return nil, err
		}
		h.AccountName = strPtr(account)
		h.GuildName = strPtr(guild)
		out = append(out, &h)
	}
	return out, rows.Err()
}

func (s *search) StalePairs(ctx context.Context, limit int) ([]model.PairKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT guild_id, member_id FROM (
		    SELECT m.guild_id AS guild_id, m.member_id AS member_id
		      FROM memberships m
		      LEFT JOIN search_records r
		        ON r.guild_id = m.guild_id AND r.member_id = m.member_id
		     GROUP BY m.guild_id, m.member_id
		    HAVING MAX(m.id) <> COALESCE(MAX(r.last_row_id), -1)
		    UNION
		    SELECT r.guild_id, r.member_id
		      FROM search_records r
		      LEFT JOIN memberships m
		        ON m.guild_id = r.guild_id AND m.member_id = r.member_id
		     WHERE m.id IS NULL
		)
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PairKey
	for rows.Next() {
		var k model.PairKey
		if err := rows.Scan(&k.GuildID, &k.MemberID); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}
