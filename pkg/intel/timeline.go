package intel

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"spxcore/fractal/pkg/drift"
	"spxcore/fractal/pkg/governance"
)

// Entry is one day's rollup for one symbol. Re-collecting the same day
// overwrites the entry; the timeline always reflects the latest
// collection.
type Entry struct {
	Date   string `json:"date"` // YYYY-MM-DD
	Symbol string `json:"symbol"`

	ProposalsTotal    int            `json:"proposalsTotal"`
	ProposalsByStatus map[string]int `json:"proposalsByStatus"`
	Applications      int            `json:"applications"`
	Rollbacks         int            `json:"rollbacks"`
	LiveSamples       int            `json:"liveSamples"`
	DriftSeverity     string         `json:"driftSeverity"`

	CollectedAt time.Time `json:"collectedAt"`
}

// Timeline stores daily entries in memory, keyed by date and symbol.
type Timeline struct {
	mu      sync.RWMutex
	entries map[string]map[string]*Entry // date -> symbol -> entry
}

// NewTimeline creates an empty timeline.
func NewTimeline() *Timeline {
	return &Timeline{entries: make(map[string]map[string]*Entry)}
}

// Record stores the entry, replacing any previous rollup for the same
// date and symbol.
func (t *Timeline) Record(entry *Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	day, ok := t.entries[entry.Date]
	if !ok {
		day = make(map[string]*Entry)
		t.entries[entry.Date] = day
	}
	cp := *entry
	day[entry.Symbol] = &cp
}

// Query returns entries for the symbol over the last windowDays, newest
// first.
func (t *Timeline) Query(symbol string, windowDays int) []*Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cutoff := ""
	if windowDays > 0 {
		cutoff = time.Now().UTC().AddDate(0, 0, -windowDays).Format("2006-01-02")
	}

	var out []*Entry
	for date, day := range t.entries {
		if cutoff != "" && date < cutoff {
			continue
		}
		if entry, ok := day[symbol]; ok {
			cp := *entry
			out = append(out, &cp)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out
}

// Latest returns the most recent entry for the symbol, or nil.
func (t *Timeline) Latest(symbol string) *Entry {
	entries := t.Query(symbol, 0)
	if len(entries) == 0 {
		return nil
	}
	return entries[0]
}

// ProposalSource supplies proposal counts. Implemented by the
// governance service.
type ProposalSource interface {
	ProposalStats(ctx context.Context, symbol string) (*governance.Stats, error)
}

// ApplicationSource supplies ledger entries. Implemented by the
// governance service.
type ApplicationSource interface {
	ListApplications(ctx context.Context, symbol string, limit int) ([]*governance.Application, int, error)
}

// SampleSource supplies resolved live sample counts.
type SampleSource interface {
	LiveSampleCount(ctx context.Context, symbol string) (int, error)
}

// DriftSource supplies cohort drift reports.
type DriftSource interface {
	CompareCohorts(ctx context.Context, symbol string, windowDays int) (*drift.Report, error)
}

// Collector gathers one timeline entry per tracked symbol.
type Collector struct {
	symbols    []string
	windowDays int

	proposals    ProposalSource
	applications ApplicationSource
	samples      SampleSource
	drift        DriftSource

	logger *slog.Logger
	now    func() time.Time
}

// NewCollector creates a collector for the given symbols.
func NewCollector(symbols []string, windowDays int, proposals ProposalSource, applications ApplicationSource, samples SampleSource, drifts DriftSource) *Collector {
	if windowDays <= 0 {
		windowDays = 90
	}
	return &Collector{
		symbols:      symbols,
		windowDays:   windowDays,
		proposals:    proposals,
		applications: applications,
		samples:      samples,
		drift:        drifts,
		logger:       slog.Default().With("component", "intel.collector"),
		now:          time.Now,
	}
}

// Collect builds an entry per symbol and records it into the timeline.
// A failure on one symbol does not abort the rest; the first error is
// returned after all symbols were attempted.
func (c *Collector) Collect(ctx context.Context, timeline *Timeline) error {
	var firstErr error
	collected := 0

	for _, symbol := range c.symbols {
		entry, err := c.collectSymbol(ctx, symbol)
		if err != nil {
			c.logger.Warn("timeline collection failed for symbol", "symbol", symbol, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("collect %s: %w", symbol, err)
			}
			continue
		}
		timeline.Record(entry)
		collected++
	}

	c.logger.Info("timeline collection complete",
		"symbols", len(c.symbols),
		"collected", collected,
	)
	return firstErr
}

func (c *Collector) collectSymbol(ctx context.Context, symbol string) (*Entry, error) {
	now := c.now().UTC()
	entry := &Entry{
		Date:        now.Format("2006-01-02"),
		Symbol:      symbol,
		CollectedAt: now,
	}

	stats, err := c.proposals.ProposalStats(ctx, symbol)
	if err != nil {
		return nil, err
	}
	entry.ProposalsTotal = stats.Total
	entry.ProposalsByStatus = make(map[string]int, len(stats.ByStatus))
	for status, n := range stats.ByStatus {
		entry.ProposalsByStatus[string(status)] = n
	}

	apps, total, err := c.applications.ListApplications(ctx, symbol, 0)
	if err != nil {
		return nil, err
	}
	entry.Applications = total
	for _, app := range apps {
		if app.RollbackOf != "" {
			entry.Rollbacks++
		}
	}

	entry.LiveSamples, err = c.samples.LiveSampleCount(ctx, symbol)
	if err != nil {
		return nil, err
	}

	report, err := c.drift.CompareCohorts(ctx, symbol, c.windowDays)
	if err != nil {
		return nil, err
	}
	entry.DriftSeverity = string(report.Verdict.OverallSeverity)

	return entry, nil
}
