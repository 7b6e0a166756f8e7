package outcomes

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
    id TEXT PRIMARY KEY,
    symbol TEXT NOT NULL,
    source TEXT NOT NULL,
    batch_id TEXT,
    tier TEXT NOT NULL,
    regime TEXT NOT NULL,
    phase_grade TEXT,
    divergence TEXT,
    horizon TEXT NOT NULL,
    direction TEXT NOT NULL,
    confidence REAL NOT NULL,
    entry_price REAL NOT NULL,
    created_at TIMESTAMP NOT NULL,
    resolve_at TIMESTAMP NOT NULL,
    resolved BOOLEAN NOT NULL DEFAULT 0,
    hit BOOLEAN NOT NULL DEFAULT 0,
    realized_price REAL,
    resolved_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_snapshots_symbol_source ON snapshots(symbol, source);
CREATE INDEX IF NOT EXISTS idx_snapshots_pending ON snapshots(symbol, resolved, resolve_at);
CREATE INDEX IF NOT EXISTS idx_snapshots_batch ON snapshots(batch_id);
`

// SQLiteConfig contains configuration for the SQLite snapshot store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:        "data/outcomes.db",
		BusyTimeout: 5 * time.Second,
	}
}

// SQLiteStore implements Store using SQLite via the pure-Go driver.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite-backed snapshot store.
func NewSQLiteStore(config *SQLiteConfig) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	db, err := sql.Open("sqlite", config.Path)
	if err != nil {
		return nil, NewStorageError("sqlite", "open", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, NewStorageError("sqlite", "enable_wal", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", config.BusyTimeout.Milliseconds())); err != nil {
		db.Close()
		return nil, NewStorageError("sqlite", "set_busy_timeout", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, NewStorageError("sqlite", "create_schema", err)
	}

	logger := slog.Default().With("component", "outcomes.store.sqlite")
	logger.Info("SQLite snapshot store initialized", "path", config.Path)

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Insert stores a new snapshot.
func (s *SQLiteStore) Insert(ctx context.Context, snap *Snapshot) error {
	return s.insert(ctx, s.db, snap)
}

// InsertBatch stores many snapshots in a single transaction.
func (s *SQLiteStore) InsertBatch(ctx context.Context, snaps []*Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return NewStorageError("sqlite", "batch_begin", err)
	}
	defer tx.Rollback()

	for _, snap := range snaps {
		if err := s.insert(ctx, tx, snap); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return NewStorageError("sqlite", "batch_commit", err)
	}
	return nil
}

type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (s *SQLiteStore) insert(ctx context.Context, ex sqlExecer, snap *Snapshot) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO snapshots (
			id, symbol, source, batch_id, tier, regime, phase_grade, divergence,
			horizon, direction, confidence, entry_price, created_at, resolve_at,
			resolved, hit, realized_price, resolved_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.Symbol, string(snap.Source), nullable(snap.BatchID),
		snap.Tier, snap.Regime, snap.PhaseGrade, snap.Divergence,
		snap.Horizon, string(snap.Direction), snap.Confidence, snap.EntryPrice,
		snap.CreatedAt, snap.ResolveAt,
		snap.Resolved, snap.Hit, snap.RealizedPrice, nullableTime(snap.ResolvedAt),
	)
	if err != nil {
		return NewStorageError("sqlite", "insert", err)
	}
	return nil
}

// List returns snapshots matching the filter, newest first.
func (s *SQLiteStore) List(ctx context.Context, f Filter) ([]*Snapshot, error) {
	where, args := buildWhere(f)
	query := "SELECT " + snapshotColumns + " FROM snapshots"
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, NewStorageError("sqlite", "list", err)
	}
	defer rows.Close()

	var out []*Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, NewStorageError("sqlite", "scan", err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "list", err)
	}
	return out, nil
}

// ListPending returns unresolved snapshots due for resolution.
func (s *SQLiteStore) ListPending(ctx context.Context, symbol string, asOf time.Time) ([]*Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+snapshotColumns+` FROM snapshots
		 WHERE symbol = ? AND resolved = 0 AND resolve_at <= ?
		 ORDER BY resolve_at ASC`, symbol, asOf)
	if err != nil {
		return nil, NewStorageError("sqlite", "list_pending", err)
	}
	defer rows.Close()

	var out []*Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, NewStorageError("sqlite", "scan", err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "list_pending", err)
	}
	return out, nil
}

// MarkResolved records the realized outcome for a snapshot.
func (s *SQLiteStore) MarkResolved(ctx context.Context, id string, hit bool, realizedPrice float64, resolvedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE snapshots SET resolved = 1, hit = ?, realized_price = ?, resolved_at = ?
		 WHERE id = ?`, hit, realizedPrice, resolvedAt, id)
	if err != nil {
		return NewStorageError("sqlite", "mark_resolved", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return NewStorageError("sqlite", "mark_resolved", err)
	}
	if affected == 0 {
		return &NotFoundError{ID: id}
	}
	return nil
}

// Count returns the number of snapshots matching the filter.
func (s *SQLiteStore) Count(ctx context.Context, f Filter) (int, error) {
	where, args := buildWhere(f)
	query := "SELECT COUNT(*) FROM snapshots"
	if where != "" {
		query += " WHERE " + where
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, NewStorageError("sqlite", "count", err)
	}
	return count, nil
}

// DeleteBatch removes all snapshots belonging to a bootstrap batch.
func (s *SQLiteStore) DeleteBatch(ctx context.Context, batchID string) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM snapshots WHERE batch_id = ?", batchID)
	if err != nil {
		return 0, NewStorageError("sqlite", "delete_batch", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, NewStorageError("sqlite", "delete_batch", err)
	}
	return int(affected), nil
}

// Close releases resources held by the store.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return NewStorageError("sqlite", "close", err)
	}
	return nil
}

const snapshotColumns = `id, symbol, source, batch_id, tier, regime, phase_grade, divergence,
	horizon, direction, confidence, entry_price, created_at, resolve_at,
	resolved, hit, realized_price, resolved_at`

func buildWhere(f Filter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if f.Symbol != "" {
		conditions = append(conditions, "symbol = ?")
		args = append(args, f.Symbol)
	}
	if f.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, string(f.Source))
	}
	if f.ResolvedOnly {
		conditions = append(conditions, "resolved = 1")
	}
	if !f.Since.IsZero() {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, f.Since)
	}

	return strings.Join(conditions, " AND "), args
}

func scanSnapshot(rows *sql.Rows) (*Snapshot, error) {
	var snap Snapshot
	var source, direction string
	var batchID sql.NullString
	var realizedPrice sql.NullFloat64
	var resolvedAt sql.NullTime

	err := rows.Scan(
		&snap.ID, &snap.Symbol, &source, &batchID,
		&snap.Tier, &snap.Regime, &snap.PhaseGrade, &snap.Divergence,
		&snap.Horizon, &direction, &snap.Confidence, &snap.EntryPrice,
		&snap.CreatedAt, &snap.ResolveAt,
		&snap.Resolved, &snap.Hit, &realizedPrice, &resolvedAt,
	)
	if err != nil {
		return nil, err
	}

	snap.Source = Source(source)
	snap.Direction = Direction(direction)
	if batchID.Valid {
		snap.BatchID = batchID.String
	}
	if realizedPrice.Valid {
		snap.RealizedPrice = realizedPrice.Float64
	}
	if resolvedAt.Valid {
		snap.ResolvedAt = resolvedAt.Time
	}
	return &snap, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
