package middleware

import (
	"encoding/json"
	"net/http"
)

// contextKey is a private type for context values set by middleware.
type contextKey string

const (
	// RequestIDKey carries the request ID through the request context.
	RequestIDKey contextKey = "request_id"
)

// writeJSON writes a JSON payload with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}
