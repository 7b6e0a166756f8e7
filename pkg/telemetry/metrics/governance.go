package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"spxcore/fractal/pkg/governance"
)

// GovernanceMetrics tracks the proposal lifecycle.
//
// Metrics:
//   - fractal_governance_proposals_total: proposals created by symbol, verdict, risk
//   - fractal_governance_applies_total: proposals applied by symbol
//   - fractal_governance_rejections_total: proposals rejected by symbol
//   - fractal_governance_rollbacks_total: rollbacks performed by symbol
//   - fractal_governance_lock_denials_total: apply attempts denied by the lock
//   - fractal_governance_integrity_faults_total: ledger integrity faults raised
//   - fractal_governance_apply_duration_seconds: apply latency histogram
//   - fractal_governance_policy_version: live policy version by symbol
type GovernanceMetrics struct {
	enabled bool

	proposalsTotal  *prometheus.CounterVec
	appliesTotal    *prometheus.CounterVec
	rejectionsTotal *prometheus.CounterVec
	rollbacksTotal  *prometheus.CounterVec
	lockDenials     *prometheus.CounterVec
	integrityFaults *prometheus.CounterVec
	applyDuration   *prometheus.HistogramVec
	policyVersion   *prometheus.GaugeVec
}

var _ governance.Metrics = (*GovernanceMetrics)(nil)

// NewGovernanceMetrics creates and registers governance metrics with the
// provided registry.
func NewGovernanceMetrics(cfg *Config, registry *prometheus.Registry) *GovernanceMetrics {
	gm := &GovernanceMetrics{
		enabled: cfg.Enabled,

		proposalsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "governance",
				Name:      "proposals_total",
				Help:      "Total number of proposals created",
			},
			[]string{"symbol", "verdict", "risk"},
		),

		appliesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "governance",
				Name:      "applies_total",
				Help:      "Total number of proposals applied",
			},
			[]string{"symbol"},
		),

		rejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "governance",
				Name:      "rejections_total",
				Help:      "Total number of proposals rejected",
			},
			[]string{"symbol"},
		),

		rollbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "governance",
				Name:      "rollbacks_total",
				Help:      "Total number of applications rolled back",
			},
			[]string{"symbol"},
		),

		lockDenials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "governance",
				Name:      "lock_denials_total",
				Help:      "Total number of applies denied by the governance lock",
			},
			[]string{"symbol", "reasons"},
		),

		integrityFaults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "governance",
				Name:      "integrity_faults_total",
				Help:      "Total number of ledger integrity faults raised",
			},
			[]string{"symbol"},
		),

		applyDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "governance",
				Name:      "apply_duration_seconds",
				Help:      "Duration of proposal applies in seconds",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"symbol"},
		),

		policyVersion: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: "governance",
				Name:      "policy_version",
				Help:      "Live policy version by symbol",
			},
			[]string{"symbol"},
		),
	}

	registry.MustRegister(
		gm.proposalsTotal,
		gm.appliesTotal,
		gm.rejectionsTotal,
		gm.rollbacksTotal,
		gm.lockDenials,
		gm.integrityFaults,
		gm.applyDuration,
		gm.policyVersion,
	)

	return gm
}

// ProposalCreated records a created proposal.
func (gm *GovernanceMetrics) ProposalCreated(symbol string, verdict governance.Verdict, risk governance.Risk) {
	if !gm.enabled {
		return
	}
	gm.proposalsTotal.WithLabelValues(symbol, string(verdict), string(risk)).Inc()
}

// ProposalApplied records an applied proposal.
func (gm *GovernanceMetrics) ProposalApplied(symbol string) {
	if !gm.enabled {
		return
	}
	gm.appliesTotal.WithLabelValues(symbol).Inc()
}

// ProposalRejected records a rejected proposal.
func (gm *GovernanceMetrics) ProposalRejected(symbol string) {
	if !gm.enabled {
		return
	}
	gm.rejectionsTotal.WithLabelValues(symbol).Inc()
}

// RollbackPerformed records a completed rollback.
func (gm *GovernanceMetrics) RollbackPerformed(symbol string) {
	if !gm.enabled {
		return
	}
	gm.rollbacksTotal.WithLabelValues(symbol).Inc()
}

// LockDenied records an apply denied by the governance lock, labelled with
// the number of failed lock conditions.
func (gm *GovernanceMetrics) LockDenied(symbol string, reasons int) {
	if !gm.enabled {
		return
	}
	gm.lockDenials.WithLabelValues(symbol, strconv.Itoa(reasons)).Inc()
}

// IntegrityFault records a raised ledger integrity fault.
func (gm *GovernanceMetrics) IntegrityFault(symbol string) {
	if !gm.enabled {
		return
	}
	gm.integrityFaults.WithLabelValues(symbol).Inc()
}

// ObserveApplyDuration records the latency of a proposal apply.
func (gm *GovernanceMetrics) ObserveApplyDuration(symbol string, d time.Duration) {
	if !gm.enabled {
		return
	}
	gm.applyDuration.WithLabelValues(symbol).Observe(d.Seconds())
}

// SetPolicyVersion records the live policy version for a symbol.
func (gm *GovernanceMetrics) SetPolicyVersion(symbol string, version int64) {
	if !gm.enabled {
		return
	}
	gm.policyVersion.WithLabelValues(symbol).Set(float64(version))
}
