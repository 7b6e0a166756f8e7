package main

import (
	"os"
	"path/filepath"
	"testing"

	"spxcore/fractal/pkg/outcomes"
)

func TestLoadIngestRecords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.json")
	payload := `[
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
	]`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	records, err := loadIngestRecords(path)
	if err != nil {
		t.Fatalf("loadIngestRecords() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	rec := records[0]
	if rec.Direction != outcomes.DirectionUp {
		t.Errorf("Direction = %q, want %q", rec.Direction, outcomes.DirectionUp)
	}
	if rec.RealizedPrice != 44310.5 {
		t.Errorf("RealizedPrice = %v, want 44310.5", rec.RealizedPrice)
	}
	if rec.CreatedAt.IsZero() || rec.ResolvedAt.IsZero() {
		t.Error("timestamps not parsed")
	}
}

func TestLoadIngestRecords_Malformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := loadIngestRecords(path); err == nil {
		t.Fatal("loadIngestRecords() error = nil, want parse error")
	}
}

func TestLoadIngestRecords_MissingFile(t *testing.T) {
	if _, err := loadIngestRecords(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("loadIngestRecords() error = nil, want read error")
	}
}
