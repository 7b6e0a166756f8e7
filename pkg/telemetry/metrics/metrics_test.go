package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"spxcore/fractal/pkg/governance"
)

func newTestCollector(t *testing.T) *Collector {
	t.Helper()
	return NewCollector(&Config{Enabled: true}, prometheus.NewRegistry())
}

func TestGovernanceMetrics_ProposalLifecycle(t *testing.T) {
	c := newTestCollector(t)

	c.Governance.ProposalCreated("BTC", governance.VerdictTune, governance.RiskLow)
	c.Governance.ProposalCreated("BTC", governance.VerdictTune, governance.RiskLow)
	c.Governance.ProposalCreated("ETH", governance.VerdictHold, governance.RiskMed)
	c.Governance.ProposalApplied("BTC")
	c.Governance.ProposalRejected("ETH")
	c.Governance.RollbackPerformed("BTC")
	c.Governance.LockDenied("BTC", 2)
	c.Governance.IntegrityFault("BTC")

	if got := testutil.ToFloat64(c.Governance.proposalsTotal.WithLabelValues("BTC", "TUNE", "LOW")); got != 2 {
		t.Errorf("proposals BTC/TUNE/LOW = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.Governance.proposalsTotal.WithLabelValues("ETH", "HOLD", "MED")); got != 1 {
		t.Errorf("proposals ETH/HOLD/MED = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.Governance.appliesTotal.WithLabelValues("BTC")); got != 1 {
		t.Errorf("applies BTC = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.Governance.rejectionsTotal.WithLabelValues("ETH")); got != 1 {
		t.Errorf("rejections ETH = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.Governance.rollbacksTotal.WithLabelValues("BTC")); got != 1 {
		t.Errorf("rollbacks BTC = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.Governance.lockDenials.WithLabelValues("BTC", "2")); got != 1 {
		t.Errorf("lock denials BTC/2 = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.Governance.integrityFaults.WithLabelValues("BTC")); got != 1 {
		t.Errorf("integrity faults BTC = %v, want 1", got)
	}
}

func TestGovernanceMetrics_DisabledIsNoop(t *testing.T) {
	c := NewCollector(&Config{Enabled: false}, prometheus.NewRegistry())

	c.Governance.ProposalCreated("BTC", governance.VerdictTune, governance.RiskLow)
	c.Governance.ProposalApplied("BTC")
	c.HTTP.RecordRequest("GET", "/api/v1/proposals", 200, time.Millisecond)

	if got := testutil.ToFloat64(c.Governance.proposalsTotal.WithLabelValues("BTC", "TUNE", "LOW")); got != 0 {
		t.Errorf("disabled collector recorded %v proposals", got)
	}
}

func TestGovernanceMetrics_SetPolicyVersion(t *testing.T) {
	c := newTestCollector(t)

	c.Governance.SetPolicyVersion("BTC", 3)
	c.Governance.SetPolicyVersion("BTC", 4)

	if got := testutil.ToFloat64(c.Governance.policyVersion.WithLabelValues("BTC")); got != 4 {
		t.Errorf("policy version = %v, want 4", got)
	}
}

func TestHTTPMetrics_RecordRequest(t *testing.T) {
	c := newTestCollector(t)

	c.HTTP.RecordRequest("POST", "/api/v1/proposals", 201, 5*time.Millisecond)
	c.HTTP.RecordRequest("POST", "/api/v1/proposals", 201, 7*time.Millisecond)
	c.HTTP.RecordRequest("GET", "/api/v1/policy", 404, time.Millisecond)

	if got := testutil.ToFloat64(c.HTTP.requestsTotal.WithLabelValues("POST", "/api/v1/proposals", "201")); got != 2 {
		t.Errorf("requests POST/201 = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.HTTP.requestsTotal.WithLabelValues("GET", "/api/v1/policy", "404")); got != 1 {
		t.Errorf("requests GET/404 = %v, want 1", got)
	}
}

func TestCollector_HandlerExposesMetrics(t *testing.T) {
	c := newTestCollector(t)
	c.Governance.ProposalApplied("BTC")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "fractal_governance_applies_total") {
		t.Error("exposition does not contain fractal_governance_applies_total")
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("exposition does not contain runtime metrics")
	}
}
