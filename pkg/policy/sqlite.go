package policy

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteConfig contains configuration for the SQLite policy store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// WALMode enables Write-Ahead Logging for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/policies.db",
		MaxOpenConns: 10,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStore implements Store using SQLite. Replacement runs inside an
// immediate transaction so two concurrent Replace calls for the same
// symbol serialize at the database: one commits, the other observes the
// moved hash and fails with StaleHashError.
type SQLiteStore struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite-backed policy store and
// initializes the schema.
func NewSQLiteStore(config *SQLiteConfig) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	logger := slog.Default().With("component", "policy.store.sqlite")

	// _txlock=immediate makes BeginTx take the write lock up front, so
	// concurrent Replace calls serialize instead of failing mid-transaction.
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_txlock=immediate", config.Path))
	if err != nil {
		return nil, NewStorageError("sqlite", "open", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)

	s := &SQLiteStore{db: db, config: config, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite policy store initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
	)

	return s, nil
}

// initialize sets up the database schema and pragmas.
func (s *SQLiteStore) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return NewStorageError("sqlite", "enable_wal", err)
		}
	}

	busyTimeoutMs := s.config.BusyTimeout.Milliseconds()
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeoutMs)); err != nil {
		return NewStorageError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	return nil
}

// GetCurrent returns the active policy for the symbol.
func (s *SQLiteStore) GetCurrent(ctx context.Context, symbol string) (*Policy, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT symbol, version, content, hash, actor, reason, updated_at
		 FROM policies WHERE symbol = ? ORDER BY version DESC LIMIT 1`, symbol)

	p, err := scanPolicy(row)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Symbol: symbol}
	}
	if err != nil {
		return nil, NewStorageError("sqlite", "get_current", err)
	}
	return p, nil
}

// Seed installs version 1 for a symbol with no policy.
func (s *SQLiteStore) Seed(ctx context.Context, symbol string, content Weights, actor string) (*Policy, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, NewStorageError("sqlite", "seed_begin", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT symbol, version, content, hash, actor, reason, updated_at
		 FROM policies WHERE symbol = ? ORDER BY version DESC LIMIT 1`, symbol)
	existing, err := scanPolicy(row)
	if err == nil {
		return existing, nil
	}
	if err != sql.ErrNoRows {
		return nil, NewStorageError("sqlite", "seed_check", err)
	}

	p := &Policy{
		Symbol:    symbol,
		Version:   1,
		Content:   content.Clone(),
		Hash:      HashWeights(content),
		Actor:     actor,
		Reason:    "seed default policy",
		UpdatedAt: time.Now().UTC(),
	}
	if err := insertPolicy(ctx, tx, p); err != nil {
		return nil, NewStorageError("sqlite", "seed_insert", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, NewStorageError("sqlite", "seed_commit", err)
	}

	s.logger.Info("seeded default policy", "symbol", symbol, "hash", short(p.Hash))
	return p.Clone(), nil
}

// Replace atomically swaps the active policy with a hash-guarded CAS.
func (s *SQLiteStore) Replace(ctx context.Context, symbol, expectedHash string, content Weights, actor, reason string) (*Policy, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, NewStorageError("sqlite", "replace_begin", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT symbol, version, content, hash, actor, reason, updated_at
		 FROM policies WHERE symbol = ? ORDER BY version DESC LIMIT 1`, symbol)
	current, err := scanPolicy(row)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Symbol: symbol}
	}
	if err != nil {
		return nil, NewStorageError("sqlite", "replace_read", err)
	}

	if current.Hash != expectedHash {
		return nil, &StaleHashError{
			Symbol:       symbol,
			ExpectedHash: expectedHash,
			CurrentHash:  current.Hash,
		}
	}

	p := &Policy{
		Symbol:    symbol,
		Version:   current.Version + 1,
		Content:   content.Clone(),
		Hash:      HashWeights(content),
		Actor:     actor,
		Reason:    reason,
		UpdatedAt: time.Now().UTC(),
	}
	if err := insertPolicy(ctx, tx, p); err != nil {
		return nil, NewStorageError("sqlite", "replace_insert", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, NewStorageError("sqlite", "replace_commit", err)
	}

	return p.Clone(), nil
}

// History returns policy versions newest first.
func (s *SQLiteStore) History(ctx context.Context, symbol string, limit int) ([]*Policy, error) {
	query := `SELECT symbol, version, content, hash, actor, reason, updated_at
	          FROM policies WHERE symbol = ? ORDER BY version DESC`
	args := []interface{}{symbol}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, NewStorageError("sqlite", "history", err)
	}
	defer rows.Close()

	var out []*Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, NewStorageError("sqlite", "history_scan", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "history", err)
	}
	return out, nil
}

// Close releases resources held by the store.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return NewStorageError("sqlite", "close", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPolicy(row rowScanner) (*Policy, error) {
	var p Policy
	var content string
	err := row.Scan(&p.Symbol, &p.Version, &content, &p.Hash, &p.Actor, &p.Reason, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(content), &p.Content); err != nil {
		return nil, err
	}
	return &p, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func insertPolicy(ctx context.Context, ex execer, p *Policy) error {
	content, err := json.Marshal(p.Content)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx,
		`INSERT INTO policies (symbol, version, content, hash, actor, reason, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Symbol, p.Version, string(content), p.Hash, p.Actor, p.Reason, p.UpdatedAt)
	return err
}
