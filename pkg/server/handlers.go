package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"spxcore/fractal/pkg/governance"
	"spxcore/fractal/pkg/intel"
	"spxcore/fractal/pkg/outcomes"
)

// proposeRequest is the body for creating a proposal.
type proposeRequest struct {
	Source string           `json:"source"`
	Scope  governance.Scope `json:"scope"`
}

// actorRequest is the body for apply and rollback. Reason is optional; the
// service synthesizes a summary when it is empty.
type actorRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

// rejectRequest is the body for rejecting a proposal.
type rejectRequest struct {
	Reason string `json:"reason"`
	Actor  string `json:"actor"`
}

// applyResponse pairs the ledger entry with the policy it produced.
type applyResponse struct {
	Application *governance.Application `json:"application"`
	Policy      interface{}             `json:"policy"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body: "+err.Error(), nil)
		return false
	}
	return true
}

func parseLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return def
	}
	return limit
}

// parseSource reads the source query parameter, defaulting to LIVE.
func parseSource(w http.ResponseWriter, r *http.Request) (outcomes.Source, bool) {
	raw := r.URL.Query().Get("source")
	if raw == "" {
		return outcomes.SourceLive, true
	}
	source := outcomes.Source(raw)
	if !source.Valid() {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "unknown source: "+raw, nil)
		return "", false
	}
	return source, true
}

func (s *Server) handlePropose(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")

	var req proposeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	source := outcomes.Source(req.Source)
	if !source.Valid() {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "unknown source: "+req.Source, nil)
		return
	}

	proposal, err := s.deps.Service.Propose(r.Context(), symbol, source, req.Scope)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeData(w, http.StatusCreated, proposal)
}

func (s *Server) handleListProposals(w http.ResponseWriter, r *http.Request) {
	filter := governance.ProposalFilter{
		Symbol: r.URL.Query().Get("symbol"),
		Limit:  parseLimit(r, 50),
	}

	if raw := r.URL.Query().Get("status"); raw != "" {
		status := governance.Status(raw)
		if !status.Valid() {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "unknown status: "+raw, nil)
			return
		}
		filter.Status = status
	}

	proposals, total, err := s.deps.Service.ListProposals(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeData(w, http.StatusOK, map[string]interface{}{
		"proposals": proposals,
		"total":     total,
	})
}

func (s *Server) handleGetProposal(w http.ResponseWriter, r *http.Request) {
	proposal, err := s.deps.Service.GetProposal(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, proposal)
}

func (s *Server) handleLatestProposal(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")

	source, ok := parseSource(w, r)
	if !ok {
		return
	}

	proposal, err := s.deps.Service.LatestProposal(r.Context(), symbol, source)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if proposal == nil {
		// No proposal yet is not an error: the envelope carries a null payload.
		writeData(w, http.StatusOK, json.RawMessage("null"))
		return
	}
	writeData(w, http.StatusOK, proposal)
}

func (s *Server) handleProposalStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Service.ProposalStats(r.Context(), r.PathValue("symbol"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, stats)
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	var req actorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Actor == "" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "actor is required", nil)
		return
	}

	start := time.Now()
	app, pol, err := s.deps.Service.Apply(r.Context(), r.PathValue("id"), req.Actor, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if s.deps.Metrics != nil {
		s.deps.Metrics.Governance.ObserveApplyDuration(app.Symbol, time.Since(start))
		s.deps.Metrics.Governance.SetPolicyVersion(app.Symbol, pol.Version)
	}

	writeData(w, http.StatusOK, applyResponse{Application: app, Policy: pol})
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Actor == "" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "actor is required", nil)
		return
	}

	proposal, err := s.deps.Service.Reject(r.Context(), r.PathValue("id"), req.Reason, req.Actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, proposal)
}

func (s *Server) handleCurrentPolicy(w http.ResponseWriter, r *http.Request) {
	pol, err := s.deps.Service.CurrentPolicy(r.Context(), r.PathValue("symbol"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, pol)
}

func (s *Server) handlePolicyHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.deps.Service.PolicyHistory(r.Context(), r.PathValue("symbol"), parseLimit(r, 20))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]interface{}{
		"versions": history,
		"total":    len(history),
	})
}

func (s *Server) handleLockStatus(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")

	source, ok := parseSource(w, r)
	if !ok {
		return
	}

	status, err := s.deps.Service.LockStatus(r.Context(), symbol, source)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, status)
}

func parseWindowDays(r *http.Request) int {
	raw := r.URL.Query().Get("windowDays")
	if raw == "" {
		return 0
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 0 {
		return 0
	}
	return days
}

func (s *Server) handleLearningVector(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")

	source, ok := parseSource(w, r)
	if !ok {
		return
	}

	vector, err := s.deps.Service.LearningVector(r.Context(), symbol, source, parseWindowDays(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, vector)
}

func (s *Server) handleDriftReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.deps.Service.DriftReport(r.Context(), r.PathValue("symbol"), parseWindowDays(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, report)
}

func (s *Server) handleListApplications(w http.ResponseWriter, r *http.Request) {
	apps, total, err := s.deps.Service.ListApplications(r.Context(), r.PathValue("symbol"), parseLimit(r, 50))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]interface{}{
		"applications": apps,
		"total":        total,
	})
}

func (s *Server) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	app, err := s.deps.Service.GetApplication(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, app)
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	var req actorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Actor == "" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "actor is required", nil)
		return
	}

	app, pol, err := s.deps.Service.Rollback(r.Context(), r.PathValue("id"), req.Actor, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if s.deps.Metrics != nil {
		s.deps.Metrics.Governance.SetPolicyVersion(app.Symbol, pol.Version)
	}

	writeData(w, http.StatusOK, applyResponse{Application: app, Policy: pol})
}

func (s *Server) handleVerifyLedger(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")

	if err := s.deps.Service.VerifyLedger(r.Context(), symbol); err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]interface{}{
		"symbol":   symbol,
		"verified": true,
	})
}

func (s *Server) handleListFaults(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, s.deps.Service.Faults())
}

func (s *Server) handleClearFault(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")

	if !s.deps.Service.ClearFault(symbol) {
		writeError(w, http.StatusNotFound, CodeNotFound, "no fault recorded for symbol "+symbol, nil)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"symbol": symbol, "status": "cleared"})
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")

	windowDays := 30
	if raw := r.URL.Query().Get("windowDays"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			windowDays = parsed
		}
	}

	entries := []*intel.Entry{}
	if s.deps.Timeline != nil {
		entries = s.deps.Timeline.Query(symbol, windowDays)
	}

	writeData(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"total":   len(entries),
	})
}
