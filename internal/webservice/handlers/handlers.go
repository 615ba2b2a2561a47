// Package handlers provides HTTP handlers for the intake service.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Error codes surfaced to clients. Internal detail never leaves the server.
const (
	errCodeDBInsertFailed      = "db_insert_failed"
	errCodeInternalError       = "internal_error"
	errCodeMissingCredentials  = "missing_credentials"
	errCodeInvalidCredentials  = "invalid_credentials"
	errCodeLookupFailed        = "lookup_failed"
	errCodeServerMisconfigured = "server_misconfigured"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write JSON response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, errorResponse{Success: false, Error: code})
}
