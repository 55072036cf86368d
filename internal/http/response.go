package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"cardledger/internal/core"
	"cardledger/internal/log"
)

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// writeJSON encodes v as the response body. A nil v writes only the status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	if v == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

// writeError maps a ledger error onto its status code. Persistence failures
// are logged and answered with a generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		s.logRejected(r, op, err, log.ErrorTypeValidation)
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: ve.Err.Error(), Field: ve.Field})
	case core.IsNotFound(err):
		s.logRejected(r, op, err, log.ErrorTypeNotFound)
		writeJSON(w, http.StatusNotFound, errorBody{Error: notFoundMessage(err)})
	default:
		errorType := log.ErrorTypeInternal
		var pe *core.PersistenceError
		if errors.As(err, &pe) {
			errorType = log.ErrorTypeDatabase
		}
		fields := log.NewFields().WithClientIP(clientIPFromContext(r.Context()))
		s.structured.LogError(r.Context(), "Request failed", err, errorType, op, fields)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
	}
}

// logRejected records a request the ledger turned down. These are caller
// mistakes, so they stay at debug level.
func (s *Server) logRejected(r *http.Request, op string, err error, errorType string) {
	ctx := r.Context()
	fields := log.NewFields().WithOperation(op).WithError(err, errorType)
	log.FromContext(ctx).DebugContext(ctx, "Request rejected", fields.ToSlice()...)
}

func notFoundMessage(err error) string {
	var nf *core.NotFoundError
	if errors.As(err, &nf) {
		return nf.Error()
	}
	return core.ErrNotFound.Error()
}

// writeBodyError answers a failed decodeJSON. Malformed amounts and dates are
// validation failures; anything else is a bad request.
func (s *Server) writeBodyError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if core.IsValidation(err) {
		s.writeError(w, r, op, err)
		return
	}
	badRequest(w, err.Error())
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}
