package httptransport

import (
	"encoding/json"
	"net/http"

	dErrors "keyward/pkg/domain-errors"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps a domain error to its HTTP status. Internal errors reach
// the client as a generic message only; detail stays in server logs.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, dErrors.ToHTTPStatus(err), errorResponse{Error: dErrors.MessageOf(err)})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: message})
}
