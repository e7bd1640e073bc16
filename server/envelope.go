package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// Error codes carried in the response envelope.
const (
	codeBadRequest = "bad_request"
	codeForbidden  = "forbidden"
	codeNotFound   = "not_found"
	codeInternal   = "internal_error"
)

type envelopeError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// envelope wraps every RPC response.
type envelope struct {
	Success   bool           `json:"success"`
	Data      any            `json:"data,omitempty"`
	Error     *envelopeError `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

func writeSuccess(w http.ResponseWriter, data any) {
	writeEnvelope(w, http.StatusOK, envelope{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeEnvelope(w, status, envelope{
		Success:   false,
		Error:     &envelopeError{Message: message, Code: code},
		Timestamp: time.Now().UTC(),
	})
}

func writeEnvelope(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		slog.Error("encoding response envelope failed", "err", err)
	}
}
