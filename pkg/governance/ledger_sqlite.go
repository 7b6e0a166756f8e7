package governance

import (
	"context"
	"database/sql"
	"log/slog"
)

// SQLiteLedgerStore implements LedgerStore using SQLite. It only ever
// inserts; there is no update or delete path.
type SQLiteLedgerStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteLedgerStore creates a new SQLite-backed ledger store and
// initializes the schema.
func NewSQLiteLedgerStore(config *SQLiteConfig) (*SQLiteLedgerStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	db, err := openGovernanceDB(config)
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("component", "governance.ledger.sqlite")
	logger.Info("SQLite ledger store initialized", "path", config.Path, "wal_mode", config.WALMode)
	return &SQLiteLedgerStore{db: db, logger: logger}, nil
}

// Append persists a new application entry.
func (s *SQLiteLedgerStore) Append(ctx context.Context, app *Application) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO applications
		 (id, proposal_id, symbol, applied_at, applied_by, reason, previous_policy_hash, new_policy_hash, rollback_of)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		app.ID, app.ProposalID, app.Symbol, app.AppliedAt, app.AppliedBy,
		app.Reason, app.PreviousPolicyHash, app.NewPolicyHash, app.RollbackOf)
	if err != nil {
		return NewStorageError("sqlite", "ledger_append", err)
	}
	return nil
}

// GetByID returns the application or a NotFoundError.
func (s *SQLiteLedgerStore) GetByID(ctx context.Context, id string) (*Application, error) {
	row := s.db.QueryRowContext(ctx, selectApplication+` WHERE id = ?`, id)
	app, err := scanApplication(row)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Entity: "application", ID: id}
	}
	if err != nil {
		return nil, NewStorageError("sqlite", "ledger_get_by_id", err)
	}
	return app, nil
}

// List returns applications for the symbol, newest first.
func (s *SQLiteLedgerStore) List(ctx context.Context, symbol string, limit int) ([]*Application, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM applications WHERE symbol = ?`, symbol).Scan(&total); err != nil {
		return nil, 0, NewStorageError("sqlite", "ledger_list_count", err)
	}

	query := selectApplication + ` WHERE symbol = ? ORDER BY applied_at DESC, id DESC`
	args := []interface{}{symbol}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, NewStorageError("sqlite", "ledger_list", err)
	}
	defer rows.Close()

	var out []*Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, 0, NewStorageError("sqlite", "ledger_list_scan", err)
		}
		out = append(out, app)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, NewStorageError("sqlite", "ledger_list", err)
	}
	return out, total, nil
}

// Latest returns the most recent application for the symbol, or nil when
// the ledger is empty for it.
func (s *SQLiteLedgerStore) Latest(ctx context.Context, symbol string) (*Application, error) {
	row := s.db.QueryRowContext(ctx,
		selectApplication+` WHERE symbol = ? ORDER BY applied_at DESC, id DESC LIMIT 1`, symbol)
	app, err := scanApplication(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, NewStorageError("sqlite", "ledger_latest", err)
	}
	return app, nil
}

// Close releases resources held by the store.
func (s *SQLiteLedgerStore) Close() error {
	if err := s.db.Close(); err != nil {
		return NewStorageError("sqlite", "close", err)
	}
	return nil
}

const selectApplication = `SELECT id, proposal_id, symbol, applied_at, applied_by, reason,
	previous_policy_hash, new_policy_hash, rollback_of FROM applications`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanApplication(row rowScanner) (*Application, error) {
	var app Application
	if err := row.Scan(&app.ID, &app.ProposalID, &app.Symbol, &app.AppliedAt, &app.AppliedBy,
		&app.Reason, &app.PreviousPolicyHash, &app.NewPolicyHash, &app.RollbackOf); err != nil {
		return nil, err
	}
	app.AppliedAt = app.AppliedAt.UTC()
	return &app, nil
}
