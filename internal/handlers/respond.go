// Package handlers implements the HTTP endpoints of the dashboard API.
package handlers

import (
	"encoding/json"
	"net/http"
)

// JSON writes payload as a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// JSONError writes {"success": false, "error": message}.
func JSONError(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// envelope is the success body shared by the dashboard endpoints.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Summary interface{} `json:"summary,omitempty"`
}

func ok(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusOK, envelope{Success: true, Data: data})
}
