// Package http provides HTTP utilities shared by the operational endpoints.
package http

import (
	"encoding/json"
	"net/http"
)

// WriteJSON encodes v as the response body with the given status code.
// Encoding failures after the header is written can only be logged by the
// caller's middleware; the status line is already on the wire.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
