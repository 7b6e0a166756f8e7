package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"spxcore/fractal/pkg/governance"
	"spxcore/fractal/pkg/policy"
)

// Machine-readable error codes returned in the error envelope.
const (
	CodeNotFound              = "NOT_FOUND"
	CodeBadRequest            = "BAD_REQUEST"
	CodeStaleHash             = "STALE_HASH"
	CodeInvalidTransition     = "INVALID_TRANSITION"
	CodeGovernanceLocked      = "GOVERNANCE_LOCKED"
	CodeAlreadyRolledBack     = "ALREADY_ROLLED_BACK"
	CodeSimulationUnavailable = "SIMULATION_UNAVAILABLE"
	CodeIntegrityFault        = "INTEGRITY_FAULT"
	CodeInternal              = "INTERNAL"
)

// envelope is the uniform response wrapper for all API endpoints.
type envelope struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error *apiError   `json:"error,omitempty"`
}

// apiError is the error payload inside a failed envelope.
type apiError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// writeData writes a successful envelope with the given status code.
func writeData(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{OK: true, Data: data}); err != nil {
		slog.Default().With("component", "server").Error("failed to encode response", "error", err)
	}
}

// writeError writes a failed envelope with the given status and code.
func writeError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{
		OK:    false,
		Error: &apiError{Code: code, Message: message, Details: details},
	})
}

// writeDomainError maps a domain error to its HTTP status and machine code
// and writes the failed envelope. Lock denials carry the full lock status
// in the details so callers can see which conditions failed.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		notFound       *governance.NotFoundError
		policyNotFound *policy.NotFoundError
		staleHash      *policy.StaleHashError
		transition     *governance.InvalidTransitionError
		locked         *governance.GovernanceLockedError
		rolledBack     *governance.AlreadyRolledBackError
		simUnavailable *governance.SimulationUnavailableError
		integrity      *governance.IntegrityFaultError
	)

	switch {
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, CodeNotFound, err.Error(), nil)
	case errors.As(err, &policyNotFound):
		writeError(w, http.StatusNotFound, CodeNotFound, err.Error(), nil)
	case errors.As(err, &staleHash):
		writeError(w, http.StatusConflict, CodeStaleHash, err.Error(), map[string]string{
			"expectedHash": staleHash.ExpectedHash,
			"currentHash":  staleHash.CurrentHash,
		})
	case errors.As(err, &transition):
		writeError(w, http.StatusConflict, CodeInvalidTransition, err.Error(), map[string]string{
			"from": string(transition.From),
			"to":   string(transition.To),
		})
	case errors.As(err, &locked):
		writeError(w, http.StatusConflict, CodeGovernanceLocked, err.Error(), map[string]interface{}{
			"reasons": locked.Reasons,
			"status":  locked.Status,
		})
	case errors.As(err, &rolledBack):
		writeError(w, http.StatusConflict, CodeAlreadyRolledBack, err.Error(), map[string]string{
			"latestApplicationId": rolledBack.LatestID,
		})
	case errors.As(err, &simUnavailable):
		writeError(w, http.StatusServiceUnavailable, CodeSimulationUnavailable, err.Error(), nil)
	case errors.As(err, &integrity):
		writeError(w, http.StatusInternalServerError, CodeIntegrityFault, err.Error(), map[string]string{
			"symbol": integrity.Symbol,
			"stage":  integrity.Stage,
		})
	default:
		writeError(w, http.StatusInternalServerError, CodeInternal, "an internal error occurred", nil)
	}
}
