package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"spxcore/fractal/pkg/outcomes"
)

// DefaultChunkSize is how many snapshots are inserted per store call.
const DefaultChunkSize = 500

// Record is one historical forecast plus its realized outcome.
type Record struct {
	Tier          string
	Regime        string
	PhaseGrade    string
	Divergence    string
	Horizon       string
	Direction     outcomes.Direction
	Confidence    float64
	EntryPrice    float64
	RealizedPrice float64
	CreatedAt     time.Time
	ResolvedAt    time.Time
}

// BatchResult summarizes one backfill run.
type BatchResult struct {
	BatchID  string `json:"batchId"`
	Symbol   string `json:"symbol"`
	Inserted int    `json:"inserted"`
}

// Engine ingests historical records into the outcome store.
type Engine struct {
	store     outcomes.Store
	chunkSize int
	logger    *slog.Logger

	// OnProgress, when set, is called after each inserted chunk with the
	// running insert count and the total record count.
	OnProgress func(inserted, total int)
}

// NewEngine creates a new backfill engine.
func NewEngine(store outcomes.Store) *Engine {
	return &Engine{
		store:     store,
		chunkSize: DefaultChunkSize,
		logger:    slog.Default().With("component", "bootstrap.engine"),
	}
}

// Backfill inserts the records as resolved BOOTSTRAP snapshots under a
// fresh batch ID. The whole input is validated before anything is
// written; a mid-run store failure leaves the batch partially inserted
// but removable via Clear with the returned batch ID.
func (e *Engine) Backfill(ctx context.Context, symbol string, records []Record) (*BatchResult, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	for i, rec := range records {
		if err := validate(rec); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}

	batchID := uuid.NewString()
	result := &BatchResult{BatchID: batchID, Symbol: symbol}

	for start := 0; start < len(records); start += e.chunkSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		end := start + e.chunkSize
		if end > len(records) {
			end = len(records)
		}

		chunk := make([]*outcomes.Snapshot, 0, end-start)
		for i, rec := range records[start:end] {
			chunk = append(chunk, e.snapshot(symbol, batchID, start+i, rec))
		}
		if err := e.store.InsertBatch(ctx, chunk); err != nil {
			return result, fmt.Errorf("insert chunk at %d: %w", start, err)
		}
		result.Inserted += len(chunk)

		if e.OnProgress != nil {
			e.OnProgress(result.Inserted, len(records))
		}
		e.logger.Debug("backfill progress",
			"batch_id", batchID,
			"symbol", symbol,
			"inserted", result.Inserted,
			"total", len(records),
		)
	}

	e.logger.Info("backfill complete",
		"batch_id", batchID,
		"symbol", symbol,
		"inserted", result.Inserted,
	)
	return result, nil
}

// Clear removes every snapshot belonging to the batch and returns the
// number removed.
func (e *Engine) Clear(ctx context.Context, batchID string) (int, error) {
	removed, err := e.store.DeleteBatch(ctx, batchID)
	if err != nil {
		return 0, err
	}
	e.logger.Info("backfill batch cleared", "batch_id", batchID, "removed", removed)
	return removed, nil
}

func (e *Engine) snapshot(symbol, batchID string, seq int, rec Record) *outcomes.Snapshot {
	hit := false
	switch rec.Direction {
	case outcomes.DirectionUp:
		hit = rec.RealizedPrice > rec.EntryPrice
	case outcomes.DirectionDown:
		hit = rec.RealizedPrice < rec.EntryPrice
	}

	return &outcomes.Snapshot{
		ID:            fmt.Sprintf("%s-%06d", batchID, seq),
		Symbol:        symbol,
		Source:        outcomes.SourceBootstrap,
		BatchID:       batchID,
		Tier:          rec.Tier,
		Regime:        rec.Regime,
		PhaseGrade:    rec.PhaseGrade,
		Divergence:    rec.Divergence,
		Horizon:       rec.Horizon,
		Direction:     rec.Direction,
		Confidence:    rec.Confidence,
		EntryPrice:    rec.EntryPrice,
		CreatedAt:     rec.CreatedAt.UTC(),
		ResolveAt:     rec.ResolvedAt.UTC(),
		Resolved:      true,
		Hit:           hit,
		RealizedPrice: rec.RealizedPrice,
		ResolvedAt:    rec.ResolvedAt.UTC(),
	}
}

func validate(rec Record) error {
	if rec.Confidence < 0 || rec.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0,1]", rec.Confidence)
	}
	if rec.Direction != outcomes.DirectionUp && rec.Direction != outcomes.DirectionDown {
		return fmt.Errorf("unknown direction %q", rec.Direction)
	}
	if rec.EntryPrice <= 0 || rec.RealizedPrice <= 0 {
		return fmt.Errorf("prices must be positive")
	}
	if rec.CreatedAt.IsZero() || rec.ResolvedAt.IsZero() {
		return fmt.Errorf("timestamps are required")
	}
	return nil
}
