package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// ErrorEnvelope standardizes JSON error responses for API namespaces.
type ErrorEnvelope struct {
	Message string            `json:"message"`
	Code    string            `json:"code"`
	Meta    map[string]string `json:"meta,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	if w == nil {
		return nil
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(payload)
}

func WriteError(w http.ResponseWriter, status int, code, message string, meta map[string]string) error {
	return WriteJSON(w, status, &ErrorEnvelope{
		Code:    code,
		Message: message,
		Meta:    meta,
	})
}

// WriteValidationError writes a 400 envelope carrying field-level reasons.
func WriteValidationError(w http.ResponseWriter, code, message string, fields map[string]string, meta map[string]string) error {
	return WriteJSON(w, http.StatusBadRequest, &ErrorEnvelope{
		Code:    code,
		Message: message,
		Meta:    meta,
		Fields:  fields,
	})
}

// RequestID returns the incoming request id from header, generating and
// echoing one when the client sent none.
func RequestID(w http.ResponseWriter, r *http.Request, header string) string {
	if r == nil {
		return ""
	}
	if strings.TrimSpace(header) == "" {
		header = "X-Request-ID"
	}
	id := strings.TrimSpace(r.Header.Get(header))
	if id == "" {
		id = strings.TrimSpace(w.Header().Get(header))
	}
	if id == "" {
		id = uuid.NewString()
		w.Header().Set(header, id)
	}
	return id
}
