package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"spxcore/fractal/pkg/config"
	"spxcore/fractal/pkg/drift"
	"spxcore/fractal/pkg/governance"
	"spxcore/fractal/pkg/intel"
	"spxcore/fractal/pkg/learning"
	"spxcore/fractal/pkg/outcomes"
	"spxcore/fractal/pkg/policy"
	"spxcore/fractal/pkg/simulation"
	"spxcore/fractal/pkg/telemetry/health"
	"spxcore/fractal/pkg/telemetry/metrics"
)

type stubLearning struct {
	vector *learning.Vector
}

func (s *stubLearning) ComputeVector(ctx context.Context, q learning.Query) (*learning.Vector, error) {
	v := *s.vector
	v.Symbol = q.Symbol
	v.Source = q.Source
	return &v, nil
}

type stubDrift struct {
	severity drift.Severity
}

func (s *stubDrift) CompareCohorts(ctx context.Context, symbol string, windowDays int) (*drift.Report, error) {
	return &drift.Report{
		Symbol:     symbol,
		WindowDays: windowDays,
		Verdict:    drift.Verdict{OverallSeverity: s.severity},
	}, nil
}

type stubSamples struct {
	count int
}

func (s *stubSamples) LiveSampleCount(ctx context.Context, symbol string) (int, error) {
	return s.count, nil
}

type stubSimulator struct {
	result *simulation.Result
}

func (s *stubSimulator) Simulate(ctx context.Context, symbol string, baseline, candidate policy.Weights, windowDays int) (*simulation.Result, error) {
	return s.result, nil
}

func edgeVector(hitRate float64) *learning.Vector {
	tier := map[string]learning.BucketStats{}
	for _, name := range []string{"STRUCTURE", "TACTICAL", "TIMING"} {
		tier[name] = learning.BucketStats{
			Samples:       40,
			Hits:          int(40 * hitRate),
			HitRate:       hitRate,
			AvgConfidence: hitRate,
		}
	}
	return &learning.Vector{
		WindowDays:      90,
		Source:          outcomes.SourceLive,
		ResolvedSamples: 120,
		Tier:            tier,
		Regime: map[string]learning.BucketStats{
			"NORMAL": {Samples: 120, Hits: int(120 * hitRate), HitRate: hitRate, AvgConfidence: hitRate},
		},
		CalibrationError: 0.02,
		LearningEligible: true,
		DominantTier:     "STRUCTURE",
	}
}

type testServer struct {
	handler  http.Handler
	service  *governance.Service
	timeline *intel.Timeline
	samples  *stubSamples
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	policies := policy.NewMemoryStore()
	proposals := governance.NewMemoryProposalStore()
	ledger := governance.NewLedger(governance.NewMemoryLedgerStore(), policies)
	samples := &stubSamples{count: 50}

	sim := &stubSimulator{result: &simulation.Result{
		Method:  "shadow_replay",
		Passed:  true,
		Metrics: map[string]float64{"hitRateDelta": 0.02},
	}}

	service := governance.NewService(governance.ServiceConfig{
		Policies:  policies,
		Proposals: proposals,
		Ledger:    ledger,
		Engine:    governance.NewEngine(governance.DefaultEngineConfig(), sim),
		Learning:  &stubLearning{vector: edgeVector(0.62)},
		Drift:     &stubDrift{severity: drift.SeverityNone},
		Samples:   samples,
	})

	cfg := &config.Config{Symbols: []string{"BTC"}}
	config.ApplyDefaults(cfg)

	timeline := intel.NewTimeline()
	collector := metrics.NewCollector(&metrics.Config{Enabled: true}, prometheus.NewRegistry())

	srv := NewServer(&cfg.Server, Dependencies{
		Service:   service,
		Timeline:  timeline,
		Health:    health.New(0),
		Metrics:   collector,
		Version:   "test",
		Commit:    "none",
		BuildTime: "now",
	})

	return &testServer{
		handler:  srv.setupRoutes(),
		service:  service,
		timeline: timeline,
		samples:  samples,
	}
}

type testEnvelope struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, *testEnvelope) {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = &bytes.Buffer{}
	}

	req := httptest.NewRequest(method, path, reqBody)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	var env testEnvelope
	if rec.Header().Get("Content-Type") == "application/json" {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode envelope: %v\n%s", err, rec.Body.String())
		}
	}
	return rec, &env
}

// propose creates a proposal over the API and returns its ID.
func (ts *testServer) propose(t *testing.T, symbol string) string {
	t.Helper()

	rec, env := ts.do(t, http.MethodPost, "/api/v1/symbols/"+symbol+"/proposals", proposeRequest{
		Source: "LIVE",
		Scope:  governance.Scope{Preset: "balanced", Role: "ACTIVE", WindowDays: 90},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("propose status = %d: %s", rec.Code, rec.Body.String())
	}

	var p governance.Proposal
	if err := json.Unmarshal(env.Data, &p); err != nil {
		t.Fatalf("decode proposal: %v", err)
	}
	return p.ID
}

func TestServer_Propose_CreatesProposal(t *testing.T) {
	ts := newTestServer(t)

	rec, env := ts.do(t, http.MethodPost, "/api/v1/symbols/BTC/proposals", proposeRequest{
		Source: "LIVE",
		Scope:  governance.Scope{Preset: "balanced", Role: "ACTIVE", WindowDays: 90},
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if !env.OK {
		t.Fatal("envelope ok = false")
	}

	var p governance.Proposal
	if err := json.Unmarshal(env.Data, &p); err != nil {
		t.Fatalf("decode proposal: %v", err)
	}
	if p.ID == "" || p.Symbol != "BTC" || p.Status != governance.StatusProposed {
		t.Errorf("proposal = %+v", p)
	}
}

func TestServer_Propose_UnknownSource(t *testing.T) {
	ts := newTestServer(t)

	rec, env := ts.do(t, http.MethodPost, "/api/v1/symbols/BTC/proposals", proposeRequest{
		Source: "ORACLE",
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if env.Error == nil || env.Error.Code != CodeBadRequest {
		t.Errorf("error = %+v", env.Error)
	}
}

func TestServer_GetProposal_NotFound(t *testing.T) {
	ts := newTestServer(t)

	rec, env := ts.do(t, http.MethodGet, "/api/v1/proposals/nope", nil)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if env.Error == nil || env.Error.Code != CodeNotFound {
		t.Errorf("error = %+v", env.Error)
	}
}

func TestServer_Apply_HappyPath(t *testing.T) {
	ts := newTestServer(t)
	id := ts.propose(t, "BTC")

	rec, env := ts.do(t, http.MethodPost, "/api/v1/proposals/"+id+"/apply", actorRequest{Actor: "ops"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Application *governance.Application `json:"application"`
		Policy      *policy.Policy          `json:"policy"`
	}
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Application == nil || resp.Application.AppliedBy != "ops" {
		t.Errorf("application = %+v", resp.Application)
	}
	if resp.Policy == nil || resp.Policy.Version != 2 {
		t.Errorf("policy = %+v", resp.Policy)
	}
}

func TestServer_Apply_ReasonInBody(t *testing.T) {
	ts := newTestServer(t)
	id := ts.propose(t, "BTC")

	rec, env := ts.do(t, http.MethodPost, "/api/v1/proposals/"+id+"/apply",
		actorRequest{Actor: "ops", Reason: "scheduled tuning"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Application *governance.Application `json:"application"`
		Policy      *policy.Policy          `json:"policy"`
	}
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Application.Reason != "scheduled tuning" {
		t.Errorf("application reason = %q", resp.Application.Reason)
	}
	if resp.Policy.Reason != "scheduled tuning" {
		t.Errorf("policy reason = %q", resp.Policy.Reason)
	}
}

func TestServer_Apply_MissingActor(t *testing.T) {
	ts := newTestServer(t)
	id := ts.propose(t, "BTC")

	rec, env := ts.do(t, http.MethodPost, "/api/v1/proposals/"+id+"/apply", actorRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if env.Error.Code != CodeBadRequest {
		t.Errorf("code = %s", env.Error.Code)
	}
}

func TestServer_Apply_GovernanceLocked(t *testing.T) {
	ts := newTestServer(t)
	id := ts.propose(t, "BTC")

	ts.samples.count = 0

	rec, env := ts.do(t, http.MethodPost, "/api/v1/proposals/"+id+"/apply", actorRequest{Actor: "ops"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if env.Error.Code != CodeGovernanceLocked {
		t.Errorf("code = %s", env.Error.Code)
	}
}

func TestServer_Apply_InvalidTransition(t *testing.T) {
	ts := newTestServer(t)
	id := ts.propose(t, "BTC")

	rec, _ := ts.do(t, http.MethodPost, "/api/v1/proposals/"+id+"/apply", actorRequest{Actor: "ops"})
	if rec.Code != http.StatusOK {
		t.Fatalf("first apply status = %d", rec.Code)
	}

	rec, env := ts.do(t, http.MethodPost, "/api/v1/proposals/"+id+"/apply", actorRequest{Actor: "ops"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("second apply status = %d", rec.Code)
	}
	if env.Error.Code != CodeInvalidTransition {
		t.Errorf("code = %s", env.Error.Code)
	}
}

func TestServer_Reject(t *testing.T) {
	ts := newTestServer(t)
	id := ts.propose(t, "BTC")

	rec, env := ts.do(t, http.MethodPost, "/api/v1/proposals/"+id+"/reject", rejectRequest{
		Reason: "too aggressive",
		Actor:  "ops",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var p governance.Proposal
	if err := json.Unmarshal(env.Data, &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Status != governance.StatusRejected {
		t.Errorf("status = %s", p.Status)
	}
}

func TestServer_ListProposals_FiltersByStatus(t *testing.T) {
	ts := newTestServer(t)
	first := ts.propose(t, "BTC")
	ts.propose(t, "ETH")

	rec, _ := ts.do(t, http.MethodPost, "/api/v1/proposals/"+first+"/reject", rejectRequest{Actor: "ops"})
	if rec.Code != http.StatusOK {
		t.Fatalf("reject status = %d", rec.Code)
	}

	rec, env := ts.do(t, http.MethodGet, "/api/v1/proposals?status=PROPOSED", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}

	var resp struct {
		Proposals []*governance.Proposal `json:"proposals"`
		Total     int                    `json:"total"`
	}
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 1 || len(resp.Proposals) != 1 {
		t.Fatalf("total = %d, proposals = %d", resp.Total, len(resp.Proposals))
	}
	if resp.Proposals[0].Symbol != "ETH" {
		t.Errorf("symbol = %s", resp.Proposals[0].Symbol)
	}
}

func TestServer_ListProposals_UnknownStatus(t *testing.T) {
	ts := newTestServer(t)

	rec, env := ts.do(t, http.MethodGet, "/api/v1/proposals?status=PENDING", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if env.Error.Code != CodeBadRequest {
		t.Errorf("code = %s", env.Error.Code)
	}
}

func TestServer_LatestProposal_NoneIsNull(t *testing.T) {
	ts := newTestServer(t)

	rec, env := ts.do(t, http.MethodGet, "/api/v1/symbols/BTC/proposals/latest", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if env.Error != nil {
		t.Errorf("error = %+v", env.Error)
	}
	if string(env.Data) != "null" {
		t.Errorf("data = %s, want null", env.Data)
	}
}

func TestServer_LearningVector(t *testing.T) {
	ts := newTestServer(t)

	rec, env := ts.do(t, http.MethodGet, "/api/v1/symbols/BTC/learning", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var v learning.Vector
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.Symbol != "BTC" {
		t.Errorf("symbol = %q, want BTC", v.Symbol)
	}
	if v.Source != outcomes.SourceLive {
		t.Errorf("source = %s, want LIVE", v.Source)
	}
	if v.DominantTier != "STRUCTURE" {
		t.Errorf("dominant tier = %q", v.DominantTier)
	}
}

func TestServer_LearningVector_UnknownSource(t *testing.T) {
	ts := newTestServer(t)

	rec, env := ts.do(t, http.MethodGet, "/api/v1/symbols/BTC/learning?source=BOGUS", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if env.Error.Code != CodeBadRequest {
		t.Errorf("code = %s", env.Error.Code)
	}
}

func TestServer_DriftReport(t *testing.T) {
	ts := newTestServer(t)

	rec, env := ts.do(t, http.MethodGet, "/api/v1/symbols/BTC/drift?windowDays=30", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var report drift.Report
	if err := json.Unmarshal(env.Data, &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Symbol != "BTC" {
		t.Errorf("symbol = %q, want BTC", report.Symbol)
	}
	if report.WindowDays != 30 {
		t.Errorf("windowDays = %d, want 30", report.WindowDays)
	}
}

func TestServer_DriftReport_DefaultWindow(t *testing.T) {
	ts := newTestServer(t)

	rec, env := ts.do(t, http.MethodGet, "/api/v1/symbols/BTC/drift", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var report drift.Report
	if err := json.Unmarshal(env.Data, &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.WindowDays != 90 {
		t.Errorf("windowDays = %d, want the 90-day default", report.WindowDays)
	}
}

func TestServer_CurrentPolicy_SeedsDefaults(t *testing.T) {
	ts := newTestServer(t)

	rec, env := ts.do(t, http.MethodGet, "/api/v1/symbols/BTC/policy", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var p policy.Policy
	if err := json.Unmarshal(env.Data, &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Version != 1 || p.Symbol != "BTC" {
		t.Errorf("policy = %+v", p)
	}
}

func TestServer_PolicyHistory_AfterApply(t *testing.T) {
	ts := newTestServer(t)
	id := ts.propose(t, "BTC")

	rec, _ := ts.do(t, http.MethodPost, "/api/v1/proposals/"+id+"/apply", actorRequest{Actor: "ops"})
	if rec.Code != http.StatusOK {
		t.Fatalf("apply status = %d", rec.Code)
	}

	rec, env := ts.do(t, http.MethodGet, "/api/v1/symbols/BTC/policy/history", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d", rec.Code)
	}

	var resp struct {
		Versions []*policy.Policy `json:"versions"`
		Total    int              `json:"total"`
	}
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 2 {
		t.Errorf("total = %d, want 2", resp.Total)
	}
}

func TestServer_LockStatus(t *testing.T) {
	ts := newTestServer(t)

	rec, env := ts.do(t, http.MethodGet, "/api/v1/symbols/BTC/lock?source=LIVE", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var status governance.LockStatus
	if err := json.Unmarshal(env.Data, &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !status.CanApply {
		t.Errorf("canApply = false, reasons: %v", status.Reasons)
	}
}

func TestServer_RollbackFlow(t *testing.T) {
	ts := newTestServer(t)
	id := ts.propose(t, "BTC")

	rec, env := ts.do(t, http.MethodPost, "/api/v1/proposals/"+id+"/apply", actorRequest{Actor: "ops"})
	if rec.Code != http.StatusOK {
		t.Fatalf("apply status = %d", rec.Code)
	}
	var applied struct {
		Application *governance.Application `json:"application"`
	}
	if err := json.Unmarshal(env.Data, &applied); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec, env = ts.do(t, http.MethodPost, "/api/v1/applications/"+applied.Application.ID+"/rollback", actorRequest{Actor: "ops"})
	if rec.Code != http.StatusOK {
		t.Fatalf("rollback status = %d: %s", rec.Code, rec.Body.String())
	}

	var rolled struct {
		Application *governance.Application `json:"application"`
		Policy      *policy.Policy          `json:"policy"`
	}
	if err := json.Unmarshal(env.Data, &rolled); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rolled.Application.RollbackOf != applied.Application.ID {
		t.Errorf("rollbackOf = %s", rolled.Application.RollbackOf)
	}
	if rolled.Policy.Version != 3 {
		t.Errorf("policy version = %d, want 3", rolled.Policy.Version)
	}

	rec, env = ts.do(t, http.MethodGet, "/api/v1/symbols/BTC/applications", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(env.Data, &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if list.Total != 2 {
		t.Errorf("applications total = %d, want 2", list.Total)
	}
}

func TestServer_Rollback_NotFound(t *testing.T) {
	ts := newTestServer(t)

	rec, env := ts.do(t, http.MethodPost, "/api/v1/applications/nope/rollback", actorRequest{Actor: "ops"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if env.Error.Code != CodeNotFound {
		t.Errorf("code = %s", env.Error.Code)
	}
}

func TestServer_VerifyLedger(t *testing.T) {
	ts := newTestServer(t)
	id := ts.propose(t, "BTC")

	rec, _ := ts.do(t, http.MethodPost, "/api/v1/proposals/"+id+"/apply", actorRequest{Actor: "ops"})
	if rec.Code != http.StatusOK {
		t.Fatalf("apply status = %d", rec.Code)
	}

	rec, env := ts.do(t, http.MethodGet, "/api/v1/symbols/BTC/ledger/verify", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("verify status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Verified bool `json:"verified"`
	}
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Verified {
		t.Error("verified = false")
	}
}

func TestServer_ClearFault_NotFound(t *testing.T) {
	ts := newTestServer(t)

	rec, env := ts.do(t, http.MethodDelete, "/api/v1/faults/BTC", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if env.Error.Code != CodeNotFound {
		t.Errorf("code = %s", env.Error.Code)
	}
}

func TestServer_Timeline(t *testing.T) {
	ts := newTestServer(t)

	ts.timeline.Record(&intel.Entry{
		Date:           time.Now().UTC().Format("2006-01-02"),
		Symbol:         "BTC",
		ProposalsTotal: 3,
	})

	rec, env := ts.do(t, http.MethodGet, "/api/v1/symbols/BTC/timeline", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Entries []*intel.Entry `json:"entries"`
		Total   int            `json:"total"`
	}
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 1 || resp.Entries[0].ProposalsTotal != 3 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestServer_OperationalEndpoints(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz", "/version", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		ts.handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rec.Code)
		}
	}
}

func TestServer_RequestIDHeader(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/proposals", nil)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("X-Request-ID header not set")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/proposals", nil)
	req.Header.Set(RequestIDHeader, "client-supplied-id")
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	if got := rec.Header().Get(RequestIDHeader); got != "client-supplied-id" {
		t.Errorf("request id = %q, want client-supplied-id", got)
	}
}

func TestServer_StatsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.propose(t, "BTC")
	ts.propose(t, "BTC")

	rec, env := ts.do(t, http.MethodGet, "/api/v1/symbols/BTC/proposals/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var stats governance.Stats
	if err := json.Unmarshal(env.Data, &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Total != 2 {
		t.Errorf("total = %d, want 2", stats.Total)
	}
	if got := stats.ByStatus[governance.StatusProposed]; got != 2 {
		t.Errorf("proposed = %d, want 2", got)
	}
}

func TestServer_BadJSONBody(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/symbols/BTC/proposals",
		bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var env testEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Error.Code != CodeBadRequest {
		t.Errorf("code = %s", env.Error.Code)
	}
}
