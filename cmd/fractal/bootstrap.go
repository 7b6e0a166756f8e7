package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"spxcore/fractal/pkg/bootstrap"
	"spxcore/fractal/pkg/cli"
	"spxcore/fractal/pkg/config"
	"spxcore/fractal/pkg/outcomes"
)

var bootstrapFlags struct {
	symbol  string
	file    string
	batchID string
	format  string
}

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Backfill historical forecast outcomes",
	Long: `Backfill historical forecast outcomes into the snapshot store.

Backfilled snapshots are tagged with a batch ID and Source BOOTSTRAP.
They feed learning and drift comparison but can never satisfy the
live-only governance gate, and a whole batch can be removed at once.

Subcommands:
  ingest - Ingest a JSON file of historical records
  clear  - Remove a previously ingested batch

Examples:
  # Ingest historical records
  fractal bootstrap ingest --symbol BTC --file history.json

  # Remove a batch
  fractal bootstrap clear --batch-id 6f1c9a2e-...`,
}

var bootstrapIngestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest a JSON file of historical records",
	Long: `Ingest a JSON file of historical forecast records.

The file holds a JSON array of records:

  [
    {
      "tier": "STRUCTURE",
      "regime": "NORMAL",
      "phaseGrade": "B",
      "divergence": "NONE",
      "horizon": "7d",
      "direction": "UP",
      "confidence": 0.62,
      "entryPrice": 43250.0,
      "realizedPrice": 44310.5,
      "createdAt": "2025-06-01T00:00:00Z",
      "resolvedAt": "2025-06-08T00:00:00Z"
    }
  ]

Every record is validated before anything is written. The batch ID
printed on success is the handle for later removal.

Examples:
  # Ingest into the configured store
  fractal bootstrap ingest --symbol BTC --file history.json

  # Machine-readable result
  fractal bootstrap ingest --symbol BTC --file history.json --format json`,
	RunE: runBootstrapIngest,
}

var bootstrapClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove a previously ingested batch",
	Long: `Remove every snapshot belonging to a bootstrap batch.

Examples:
  # Remove a batch by ID
  fractal bootstrap clear --batch-id 6f1c9a2e-8a61-4c11-9f0e-2b9d6c1a7f3d`,
	RunE: runBootstrapClear,
}

func init() {
	rootCmd.AddCommand(bootstrapCmd)
	bootstrapCmd.AddCommand(bootstrapIngestCmd)
	bootstrapCmd.AddCommand(bootstrapClearCmd)

	bootstrapIngestCmd.Flags().StringVarP(&bootstrapFlags.symbol, "symbol", "s", "", "symbol to backfill (required)")
	bootstrapIngestCmd.Flags().StringVarP(&bootstrapFlags.file, "file", "f", "", "JSON file of historical records (required)")
	bootstrapIngestCmd.Flags().StringVar(&bootstrapFlags.format, "format", "text", "output format: text, json")
	bootstrapClearCmd.Flags().StringVar(&bootstrapFlags.batchID, "batch-id", "", "batch to remove (required)")
}

// ingestRecord is the wire form of one historical record.
type ingestRecord struct {
	Tier          string    `json:"tier"`
	Regime        string    `json:"regime"`
	PhaseGrade    string    `json:"phaseGrade"`
	Divergence    string    `json:"divergence"`
	Horizon       string    `json:"horizon"`
	Direction     string    `json:"direction"`
	Confidence    float64   `json:"confidence"`
	EntryPrice    float64   `json:"entryPrice"`
	RealizedPrice float64   `json:"realizedPrice"`
	CreatedAt     time.Time `json:"createdAt"`
	ResolvedAt    time.Time `json:"resolvedAt"`
}

func openOutcomeStore() (outcomes.Store, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	switch cfg.Storage.Backend {
	case "memory":
		return nil, cli.NewConfigError("storage.backend",
			"memory backend holds no data outside a running server; point --config at a sqlite deployment")
	case "sqlite":
		return outcomes.NewSQLiteStore(&outcomes.SQLiteConfig{
			Path:        cfg.Storage.OutcomesPath,
			BusyTimeout: cfg.Storage.BusyTimeout,
		})
	default:
		return nil, cli.NewConfigError("storage.backend", fmt.Sprintf("unknown backend %q", cfg.Storage.Backend)).
			WithHint("supported backends are memory and sqlite")
	}
}

func loadIngestRecords(path string) ([]bootstrap.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read records file: %w", err)
	}

	var raw []ingestRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse records file: %w", err)
	}

	records := make([]bootstrap.Record, 0, len(raw))
	for _, r := range raw {
		records = append(records, bootstrap.Record{
			Tier:          r.Tier,
			Regime:        r.Regime,
			PhaseGrade:    r.PhaseGrade,
			Divergence:    r.Divergence,
			Horizon:       r.Horizon,
			Direction:     outcomes.Direction(r.Direction),
			Confidence:    r.Confidence,
			EntryPrice:    r.EntryPrice,
			RealizedPrice: r.RealizedPrice,
			CreatedAt:     r.CreatedAt,
			ResolvedAt:    r.ResolvedAt,
		})
	}
	return records, nil
}

func runBootstrapIngest(cmd *cobra.Command, args []string) error {
	if bootstrapFlags.symbol == "" {
		return cli.NewConfigError("symbol", "required flag --symbol not set")
	}
	if bootstrapFlags.file == "" {
		return cli.NewConfigError("file", "required flag --file not set")
	}

	records, err := loadIngestRecords(bootstrapFlags.file)
	if err != nil {
		return cli.NewCommandError("bootstrap ingest", err)
	}
	if len(records) == 0 {
		return cli.NewCommandError("bootstrap ingest", fmt.Errorf("no records in %s", bootstrapFlags.file))
	}

	store, err := openOutcomeStore()
	if err != nil {
		return err
	}
	defer store.Close()

	engine := bootstrap.NewEngine(store)

	var progress cli.ProgressReporter
	asJSON := cli.OutputFormat(bootstrapFlags.format) == cli.FormatJSON
	if !asJSON {
		progress = cli.NewProgressReporter(os.Stdout)
		progress.Start(int64(len(records)))
		engine.OnProgress = func(inserted, total int) {
			progress.Update(int64(inserted))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	result, err := engine.Backfill(ctx, bootstrapFlags.symbol, records)
	if err != nil {
		if progress != nil {
			progress.Error(err)
		}
		return cli.NewCommandError("bootstrap ingest", err)
	}

	if asJSON {
		return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, result)
	}
	progress.Finish()
	fmt.Printf("✓ Backfilled %d records for %s (batch %s)\n", result.Inserted, result.Symbol, result.BatchID)
	return nil
}

func runBootstrapClear(cmd *cobra.Command, args []string) error {
	if bootstrapFlags.batchID == "" {
		return cli.NewConfigError("batch-id", "required flag --batch-id not set")
	}

	store, err := openOutcomeStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	removed, err := bootstrap.NewEngine(store).Clear(ctx, bootstrapFlags.batchID)
	if err != nil {
		return cli.NewCommandError("bootstrap clear", err)
	}

	fmt.Printf("✓ Removed %d snapshots from batch %s\n", removed, bootstrapFlags.batchID)
	return nil
}
