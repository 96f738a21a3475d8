// Package http provides HTTP server and handler implementations.
//
// This file builds JSON responses and maps domain errors to status codes.

package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"costboard/internal/core"
	"costboard/internal/log"
	"costboard/internal/middleware/trace"
	"costboard/internal/profile"
	"costboard/internal/storage"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

// writeJSON encodes v with status code.
func writeJSON(ctx context.Context, w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Failed to encode response", log.FieldError, err)
	}
}

// writeError writes message under code, tagged with the request id.
func writeError(ctx context.Context, w http.ResponseWriter, code int, message string) {
	writeJSON(ctx, w, code, errorBody{Error: message, RequestID: trace.GetRequestID(ctx)})
}

// statusFor maps a service error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidQuery),
		errors.Is(err, core.ErrInvalidPeriod),
		errors.Is(err, storage.ErrInvalidKey):
		return http.StatusBadRequest
	case errors.Is(err, profile.ErrUnknownBrand),
		errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		// client went away; nothing will read the body
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError logs err and writes the mapped status. Server errors
// hide the cause from the client.
func (s *Server) writeServiceError(ctx context.Context, w http.ResponseWriter, msg, operation string, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.structLog.LogError(ctx, msg, err, operation, log.NewFields().WithRequestID(trace.GetRequestID(ctx)))
		writeError(ctx, w, code, http.StatusText(code))
		return
	}
	s.logger.WarnContext(ctx, msg, log.FieldError, err, log.FieldStatusCode, code)
	writeError(ctx, w, code, err.Error())
}
