package server

import (
	"encoding/json"
	"net/http"
)

// errorBody is the JSON error envelope: {"error":{"code":...,"message":...}}.
// Conflict responses additionally carry the versions the caller needs to
// reconcile.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code            string `json:"code"`
	Message         string `json:"message"`
	ExpectedVersion *int64 `json:"expected_version,omitempty"`
	CurrentVersion  *int64 `json:"current_version,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

func respondConflict(w http.ResponseWriter, message string, expected, current int64) {
	respondJSON(w, http.StatusConflict, errorBody{Error: errorDetail{
		Code:            "version_conflict",
		Message:         message,
		ExpectedVersion: &expected,
		CurrentVersion:  &current,
	}})
}
