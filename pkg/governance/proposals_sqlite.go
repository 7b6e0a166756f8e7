package governance

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"spxcore/fractal/pkg/outcomes"
)

// SQLiteConfig contains configuration for the SQLite governance stores.
// One database file holds both proposals and the application ledger.
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
		Path:         "data/governance.db",
		MaxOpenConns: 10,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

func openGovernanceDB(config *SQLiteConfig) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, NewStorageError("sqlite", "open", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)

	if config.WALMode {
		if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			db.Close()
			return nil, NewStorageError("sqlite", "enable_wal", err)
		}
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", config.BusyTimeout.Milliseconds())); err != nil {
		db.Close()
		return nil, NewStorageError("sqlite", "set_busy_timeout", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, NewStorageError("sqlite", "create_schema", err)
	}
	if _, err := db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		db.Close()
		return nil, NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err = db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		db.Close()
		return nil, NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		db.Close()
		return nil, NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}
	return db, nil
}

// SQLiteProposalStore implements ProposalStore using SQLite. Lifecycle
// transitions run inside a transaction so a concurrent reject and apply
// of the same proposal serialize at the database.
type SQLiteProposalStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteProposalStore creates a new SQLite-backed proposal store and
// initializes the schema.
func NewSQLiteProposalStore(config *SQLiteConfig) (*SQLiteProposalStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	db, err := openGovernanceDB(config)
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("component", "governance.proposals.sqlite")
	logger.Info("SQLite proposal store initialized", "path", config.Path, "wal_mode", config.WALMode)
	return &SQLiteProposalStore{db: db, logger: logger}, nil
}

// Create persists a new proposal.
func (s *SQLiteProposalStore) Create(ctx context.Context, p *Proposal) error {
	if p.Status != StatusProposed {
		return &InvalidTransitionError{ProposalID: p.ID, From: p.Status, To: StatusProposed}
	}

	payload, err := json.Marshal(p)
	if err != nil {
		return NewStorageError("sqlite", "create_marshal", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO proposals (id, symbol, source, status, created_at, payload)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Symbol, string(p.Source), string(p.Status), p.CreatedAt, string(payload))
	if err != nil {
		return NewStorageError("sqlite", "create", err)
	}
	return nil
}

// GetByID returns the proposal or a NotFoundError.
func (s *SQLiteProposalStore) GetByID(ctx context.Context, id string) (*Proposal, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM proposals WHERE id = ?`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Entity: "proposal", ID: id}
	}
	if err != nil {
		return nil, NewStorageError("sqlite", "get_by_id", err)
	}
	return unmarshalProposal(payload)
}

// List returns proposals matching the filter, newest first.
func (s *SQLiteProposalStore) List(ctx context.Context, f ProposalFilter) ([]*Proposal, int, error) {
	where := "1=1"
	var args []interface{}
	if f.Symbol != "" {
		where += " AND symbol = ?"
		args = append(args, f.Symbol)
	}
	if f.Status != "" {
		where += " AND status = ?"
		args = append(args, string(f.Status))
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM proposals WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, NewStorageError("sqlite", "list_count", err)
	}

	query := "SELECT payload FROM proposals WHERE " + where + " ORDER BY created_at DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, NewStorageError("sqlite", "list", err)
	}
	defer rows.Close()

	var out []*Proposal
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, 0, NewStorageError("sqlite", "list_scan", err)
		}
		p, err := unmarshalProposal(payload)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, NewStorageError("sqlite", "list", err)
	}
	return out, total, nil
}

// Latest returns the most recent PROPOSED or APPLIED proposal for the
// symbol and source, or nil when none exists.
func (s *SQLiteProposalStore) Latest(ctx context.Context, symbol string, source outcomes.Source) (*Proposal, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM proposals
		 WHERE symbol = ? AND source = ? AND status IN (?, ?)
		 ORDER BY created_at DESC LIMIT 1`,
		symbol, string(source), string(StatusProposed), string(StatusApplied)).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, NewStorageError("sqlite", "latest", err)
	}
	return unmarshalProposal(payload)
}

// Reject moves a PROPOSED proposal to REJECTED.
func (s *SQLiteProposalStore) Reject(ctx context.Context, id, reason, actor string) (*Proposal, error) {
	at := time.Now().UTC()
	return s.transition(ctx, id, StatusRejected, func(p *Proposal) {
		p.Status = StatusRejected
		p.RejectedAt = &at
		p.RejectedBy = actor
		p.RejectedReason = reason
	})
}

// MarkApplied moves a PROPOSED proposal to APPLIED.
func (s *SQLiteProposalStore) MarkApplied(ctx context.Context, id string, at time.Time) (*Proposal, error) {
	applied := at.UTC()
	return s.transition(ctx, id, StatusApplied, func(p *Proposal) {
		p.Status = StatusApplied
		p.AppliedAt = &applied
	})
}

// transition reads the proposal, validates the lifecycle edge, applies
// the mutation and rewrites both the payload and the status column in
// one transaction.
func (s *SQLiteProposalStore) transition(ctx context.Context, id string, to Status, mutate func(*Proposal)) (*Proposal, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, NewStorageError("sqlite", "transition_begin", err)
	}
	defer tx.Rollback()

	var payload string
	err = tx.QueryRowContext(ctx,
		`SELECT payload FROM proposals WHERE id = ?`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Entity: "proposal", ID: id}
	}
	if err != nil {
		return nil, NewStorageError("sqlite", "transition_read", err)
	}

	p, err := unmarshalProposal(payload)
	if err != nil {
		return nil, err
	}
	if !p.Status.canTransition(to) {
		return nil, &InvalidTransitionError{ProposalID: id, From: p.Status, To: to}
	}

	mutate(p)

	updated, err := json.Marshal(p)
	if err != nil {
		return nil, NewStorageError("sqlite", "transition_marshal", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE proposals SET status = ?, payload = ? WHERE id = ?`,
		string(p.Status), string(updated), id); err != nil {
		return nil, NewStorageError("sqlite", "transition_update", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, NewStorageError("sqlite", "transition_commit", err)
	}
	return p, nil
}

// Stats returns proposal counts for the symbol.
func (s *SQLiteProposalStore) Stats(ctx context.Context, symbol string) (*Stats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, source, COUNT(*) FROM proposals WHERE symbol = ? GROUP BY status, source`, symbol)
	if err != nil {
		return nil, NewStorageError("sqlite", "stats", err)
	}
	defer rows.Close()

	stats := &Stats{
		ByStatus: make(map[Status]int),
		BySource: make(map[string]int),
	}
	for rows.Next() {
		var status, source string
		var count int
		if err := rows.Scan(&status, &source, &count); err != nil {
			return nil, NewStorageError("sqlite", "stats_scan", err)
		}
		stats.Total += count
		stats.ByStatus[Status(status)] += count
		stats.BySource[source] += count
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "stats", err)
	}
	return stats, nil
}

// Close releases resources held by the store.
func (s *SQLiteProposalStore) Close() error {
	if err := s.db.Close(); err != nil {
		return NewStorageError("sqlite", "close", err)
	}
	return nil
}

func unmarshalProposal(payload string) (*Proposal, error) {
	var p Proposal
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return nil, NewStorageError("sqlite", "unmarshal_proposal", err)
	}
	return &p, nil
}
