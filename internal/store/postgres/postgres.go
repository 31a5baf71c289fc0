// Package postgres implements store.Store on PostgreSQL via the pgx stdlib
// driver. Semantics are identical to the sqlite driver; row locking uses
// FOR UPDATE so concurrent writers for one pair serialize at the database.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/rosterkeep/rosterkeep/internal/model"
	"github.com/rosterkeep/rosterkeep/internal/searchidx"
	"github.com/rosterkeep/rosterkeep/internal/store"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Open connects and verifies reachability.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate applies the embedded goose migrations.
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Up(db, "migrations")
}

// New opens dsn, applies migrations, and returns the store.
func New(dsn string) (store.Store, error) {
	db, err := Open(dsn)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewWithDB(db), nil
}

// NewWithDB wraps an existing connection; schema setup is the caller's job.
func NewWithDB(db *sql.DB) store.Store { return &pgStore{db: db} }

type pgStore struct{ db *sql.DB }

func (s *pgStore) Stints() store.Stints     { return &stints{db: s.db} }
func (s *pgStore) Search() store.Search     { return &search{db: s.db} }
func (s *pgStore) Settings() store.Settings { return &settings{db: s.db} }

func (s *pgStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *pgStore) Close() error                   { return s.db.Close() }

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) }

func nullStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// --- Stints ---

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
	row := tx.QueryRowContext(ctx, `SELECT `+stintColumns+` FROM memberships WHERE id = $1`, id)
	return scanStint(row)
}

func (s *stints) RecordJoin(ctx context.Context, guildID, memberID string, at time.Time, accountName, guildName *string) (*model.Stint, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var openID int64
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM memberships
		 WHERE guild_id = $1 AND member_id = $2 AND left_at IS NULL
		 FOR UPDATE`, guildID, memberID).Scan(&openID)
	switch {
	case err == nil:
		return nil, fmt.Errorf("join for %s/%s: stint %d still open: %w", guildID, memberID, openID, model.ErrConsistency)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, err
	}

	var id int64
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO memberships (guild_id, member_id, joined_at, left_at, banned, account_name, guild_name)
		VALUES ($1, $2, $3, NULL, FALSE, $4, $5)
		RETURNING id`,
		guildID, memberID, formatTime(at), nullStr(accountName), nullStr(guildName)).Scan(&id); err != nil {
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
	err = tx.QueryRowContext(ctx, `
		SELECT id, joined_at FROM memberships
		 WHERE guild_id = $1 AND member_id = $2 AND left_at IS NULL
		 FOR UPDATE`, guildID, memberID).Scan(&id, &joined)
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
		`UPDATE memberships SET left_at = $1 WHERE id = $2 AND left_at IS NULL`,
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
	_ = at
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	id, err := latestStintID(ctx, tx, guildID, memberID)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE memberships SET banned = TRUE WHERE id = $1`, id); err != nil {
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

	if _, err := tx.ExecContext(ctx, `
		UPDATE memberships
		   SET account_name = COALESCE($1, account_name),
		       guild_name   = COALESCE($2, guild_name)
		 WHERE id = $3`,
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
	err := tx.QueryRowContext(ctx, `
		SELECT id FROM memberships
		 WHERE guild_id = $1 AND member_id = $2
		 ORDER BY id DESC LIMIT 1
		 FOR UPDATE`, guildID, memberID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("no stints for %s/%s: %w", guildID, memberID, model.ErrNotFound)
	}
	return id, err
}

func (s *stints) History(ctx context.Context, guildID, memberID string) ([]*model.Stint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+stintColumns+` FROM memberships WHERE guild_id = $1 AND member_id = $2 ORDER BY id ASC`,
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
		`SELECT `+stintColumns+` FROM memberships WHERE guild_id = $1 AND member_id = $2 AND left_at IS NULL`,
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
		     WHERE guild_id = $1
		     GROUP BY member_id
		)
		SELECT m.member_id, l.last_row_id, m.account_name, m.guild_name
		  FROM last l
		  JOIN memberships m ON m.id = l.last_row_id`
	args := []any{guildID}
	if before != nil {
		q += ` WHERE l.last_row_id < $2 ORDER BY l.last_row_id DESC LIMIT $3`
		args = append(args, *before, limit)
	} else {
		q += ` ORDER BY l.last_row_id DESC LIMIT $2`
		args = append(args, limit)
	}

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
		     WHERE guild_id = $1
		     GROUP BY member_id
		),
		agg AS (
		    SELECT member_id,
		           COUNT(*) AS stints,
		           SUM(CASE WHEN left_at IS NOT NULL THEN 1 ELSE 0 END) AS times_left
		      FROM memberships
		     WHERE guild_id = $1
		     GROUP BY member_id
		)
		SELECT a.member_id, a.stints, a.times_left, m.account_name, m.guild_name
		  FROM agg a
		  JOIN last l ON l.member_id = a.member_id
		  JOIN memberships m ON m.id = l.last_row_id
		 WHERE a.stints >= $2
		 ORDER BY a.stints DESC, l.last_row_id DESC
		 LIMIT $3`,
		guildID, minStints, limit)
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
		       COALESCE(SUM(CASE WHEN banned THEN 1 ELSE 0 END), 0)
		  FROM memberships
		 WHERE guild_id = $1`, guildID).
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
		     WHERE guild_id = $1
		     GROUP BY member_id
		)
		SELECT m.member_id, m.left_at, m.banned, n.account_name, n.guild_name
		  FROM memberships m
		  JOIN last l ON l.member_id = m.member_id
		  JOIN memberships n ON n.id = l.last_row_id
		 WHERE m.guild_id = $1 AND m.left_at IS NOT NULL
		 ORDER BY m.id DESC
		 LIMIT $2`, guildID, limit)
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
		`DELETE FROM memberships WHERE guild_id = $1 AND member_id = $2`, guildID, memberID); err != nil {
		return err
	}
	if err := syncPairTx(ctx, tx, guildID, memberID); err != nil {
		return err
	}
	return tx.Commit()
}

// --- Search ---

type search struct{ db *sql.DB }

func syncPairTx(ctx context.Context, tx *sql.Tx, guildID, memberID string) error {
	var (
		rowID          int64
		account, guild sql.NullString
	)
	err := tx.QueryRowContext(ctx, `
		SELECT id, account_name, guild_name
		  FROM memberships
		 WHERE guild_id = $1 AND member_id = $2
		 ORDER BY id DESC LIMIT 1`,
		guildID, memberID).Scan(&rowID, &account, &guild)

	if _, derr := tx.ExecContext(ctx,
		`DELETE FROM search_records WHERE guild_id = $1 AND member_id = $2`, guildID, memberID); derr != nil {
		return derr
	}
	if _, derr := tx.ExecContext(ctx,
		`DELETE FROM search_tokens WHERE guild_id = $1 AND member_id = $2`, guildID, memberID); derr != nil {
		return derr
	}

	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}

	doc := searchidx.BuildDoc(memberID, strPtr(account), strPtr(guild))
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO search_records
		    (guild_id, member_id, account_name, guild_name, account_norm, guild_norm, label, label_norm, last_row_id, last_active_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		guildID, memberID, nullStr(doc.AccountName), nullStr(doc.GuildName),
		doc.AccountNorm, doc.GuildNorm, doc.Label, doc.LabelNorm, rowID, time.Now().UnixNano()); err != nil {
		return err
	}
	for _, t := range doc.Tokens {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO search_tokens (guild_id, member_id, token, prefix2, prefix3, prefix4)
			VALUES ($1, $2, $3, $4, $5, $6)`,
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
		 WHERE guild_id = $1 AND member_id = $2`, guildID, memberID)

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

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (s *search) Query(ctx context.Context, req model.SearchRequest) ([]*model.SearchHit, error) {
	qn := req.Query
	esc := escapeLike(qn)

	// Placeholder numbering varies with the prefix branch, so the tail
	// clauses are built alongside the argument list.
	var prefixClause, tailClause string
	args := []any{req.GuildID, qn}
	switch utf8.RuneCountInString(qn) {
	case 2:
		prefixClause = `SELECT member_id, 2 FROM search_tokens WHERE guild_id = $1 AND prefix2 = $2`
		tailClause = `$3`
		args = append(args, "%"+esc+"%", req.Limit, req.Offset)
	case 3:
		prefixClause = `SELECT member_id, 2 FROM search_tokens WHERE guild_id = $1 AND prefix3 = $2`
		tailClause = `$3`
		args = append(args, "%"+esc+"%", req.Limit, req.Offset)
	default:
		prefixClause = `SELECT member_id, 2 FROM search_tokens WHERE guild_id = $1 AND prefix4 = $3 AND token LIKE $4`
		tailClause = `$5`
		args = append(args, searchidx.QueryPrefix(qn), esc+"%", "%"+esc+"%", req.Limit, req.Offset)
	}
	limitPh := fmt.Sprintf("$%d OFFSET $%d", len(args)-1, len(args))

	q := `
		WITH hits (member_id, tier) AS (
		    SELECT member_id, 1 FROM search_records
		     WHERE guild_id = $1
		       AND (label_norm = $2 OR (account_norm <> '' AND account_norm = $2) OR (guild_norm <> '' AND guild_norm = $2))
		    UNION ALL
		    ` + prefixClause + `
		    UNION ALL
		    SELECT member_id, 3 FROM search_records
		     WHERE guild_id = $1 AND label_norm LIKE ` + tailClause + `
		),
		best AS (
		    SELECT member_id, MIN(tier) AS tier FROM hits GROUP BY member_id
		)
		SELECT r.member_id, r.account_name, r.guild_name, b.tier, r.last_row_id
		  FROM best b
		  JOIN search_records r ON r.guild_id = $1 AND r.member_id = b.member_id
		 ORDER BY b.tier ASC, r.last_active_at DESC, r.last_row_id DESC, r.member_id ASC
		 LIMIT ` + limitPh

	rows, err := s.db.QueryContext(ctx, q, args...)
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
		) stale
		LIMIT $1`, limit)
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

// --- Settings ---

type settings struct{ db *sql.DB }

func (s *settings) Get(ctx context.Context, guildID string) (*model.GuildSettings, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT join_log_channel_id, leave_log_channel_id, mod_log_channel_id
		  FROM guild_settings WHERE guild_id = $1`, guildID)

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
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guild_settings (guild_id, join_log_channel_id, leave_log_channel_id, mod_log_channel_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (guild_id) DO UPDATE SET
		    join_log_channel_id  = COALESCE(EXCLUDED.join_log_channel_id,  guild_settings.join_log_channel_id),
		    leave_log_channel_id = COALESCE(EXCLUDED.leave_log_channel_id, guild_settings.leave_log_channel_id),
		    mod_log_channel_id   = COALESCE(EXCLUDED.mod_log_channel_id,   guild_settings.mod_log_channel_id)`,
		gs.GuildID, nullStr(gs.JoinLogChannelID), nullStr(gs.LeaveLogChannelID), nullStr(gs.ModLogChannelID))
	return err
}

func (s *settings) SetChannel(ctx context.Context, guildID string, kind model.ChannelKind, channelID *string) error {
	col, err := channelColumn(kind)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO guild_settings (guild_id) VALUES ($1) ON CONFLICT (guild_id) DO NOTHING`, guildID); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE guild_settings SET %s = $1 WHERE guild_id = $2`, col),
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
