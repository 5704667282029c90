package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Stockspotdeals/stockspot-dispatch/internal/models"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS channel_state (
	channel_id           TEXT PRIMARY KEY,
	last_dispatch_at     INTEGER NOT NULL,
	dispatch_count_today INTEGER NOT NULL,
	daily_reset_at       INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS channel_admin (
	channel_id TEXT PRIMARY KEY,
	disabled   INTEGER NOT NULL,
	reason     TEXT
);
CREATE TABLE IF NOT EXISTS dispatch_record (
	deal_key      TEXT PRIMARY KEY,
	channel_id    TEXT NOT NULL,
	dispatched_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_dispatch_record_at ON dispatch_record(dispatched_at);
`

// SQLite is the embedded Store. A single connection in WAL mode keeps
// writers serialized; each dispatch commit runs in one transaction so the
// channel state and its record land atomically.
type SQLite struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA busy_timeout = 5000")

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Load(ctx context.Context) (*State, error) {
	state := NewState()

	rows, err := s.db.QueryContext(ctx,
		`SELECT channel_id, last_dispatch_at, dispatch_count_today, daily_reset_at FROM channel_state`)
	if err != nil {
		return nil, fmt.Errorf("load channel state: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var cs models.ChannelState
		var lastMS, resetMS int64
		if err := rows.Scan(&cs.ChannelID, &lastMS, &cs.DispatchCountToday, &resetMS); err != nil {
			return nil, fmt.Errorf("scan channel state: %w", err)
		}
		cs.LastDispatchAt = msToTime(lastMS)
		cs.DailyResetAt = msToTime(resetMS)
		state.Channels[cs.ChannelID] = cs
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load channel state: %w", err)
	}

	adminRows, err := s.db.QueryContext(ctx, `SELECT channel_id, disabled, reason FROM channel_admin`)
	if err != nil {
		return nil, fmt.Errorf("load channel admin: %w", err)
	}
	defer adminRows.Close()
	for adminRows.Next() {
		var id string
		var disabled int
		var reason sql.NullString
		if err := adminRows.Scan(&id, &disabled, &reason); err != nil {
			return nil, fmt.Errorf("scan channel admin: %w", err)
		}
		state.Disabled[id] = DisableFlag{Disabled: disabled != 0, Reason: reason.String}
	}
	if err := adminRows.Err(); err != nil {
		return nil, fmt.Errorf("load channel admin: %w", err)
	}

	recRows, err := s.db.QueryContext(ctx, `SELECT deal_key, channel_id, dispatched_at FROM dispatch_record`)
	if err != nil {
		return nil, fmt.Errorf("load dispatch records: %w", err)
	}
	defer recRows.Close()
	for recRows.Next() {
		var rec models.DistributionRecord
		var atMS int64
		if err := recRows.Scan(&rec.DealKey, &rec.ChannelID, &atMS); err != nil {
			return nil, fmt.Errorf("scan dispatch record: %w", err)
		}
		rec.DispatchedAt = msToTime(atMS)
		state.Records = append(state.Records, rec)
	}
	if err := recRows.Err(); err != nil {
		return nil, fmt.Errorf("load dispatch records: %w", err)
	}

	return state, nil
}

func (s *SQLite) CommitDispatch(ctx context.Context, state models.ChannelState, record models.DistributionRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin dispatch tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO channel_state(channel_id, last_dispatch_at, dispatch_count_today, daily_reset_at)
		 VALUES(?,?,?,?)
		 ON CONFLICT(channel_id) DO UPDATE SET
			last_dispatch_at=excluded.last_dispatch_at,
			dispatch_count_today=excluded.dispatch_count_today,
			daily_reset_at=excluded.daily_reset_at`,
		state.ChannelID, timeToMS(state.LastDispatchAt), state.DispatchCountToday, timeToMS(state.DailyResetAt))
	if err != nil {
		return fmt.Errorf("upsert channel state: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO dispatch_record(deal_key, channel_id, dispatched_at) VALUES(?,?,?)
		 ON CONFLICT(deal_key) DO UPDATE SET
			channel_id=excluded.channel_id,
			dispatched_at=excluded.dispatched_at`,
		record.DealKey, record.ChannelID, timeToMS(record.DispatchedAt))
	if err != nil {
		return fmt.Errorf("upsert dispatch record: %w", err)
	}

	return tx.Commit()
}

func (s *SQLite) SetChannelDisabled(ctx context.Context, channelID string, disabled bool, reason string) error {
	flag := 0
	if disabled {
		flag = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO channel_admin(channel_id, disabled, reason) VALUES(?,?,?)
		 ON CONFLICT(channel_id) DO UPDATE SET disabled=excluded.disabled, reason=excluded.reason`,
		channelID, flag, reason)
	if err != nil {
		return fmt.Errorf("set channel admin: %w", err)
	}
	return nil
}

func (s *SQLite) PruneRecords(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM dispatch_record WHERE dispatched_at < ?`, timeToMS(before))
	if err != nil {
		return 0, fmt.Errorf("prune dispatch records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count pruned records: %w", err)
	}
	return int(n), nil
}

func timeToMS(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func msToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
