package assettracking

import (
	"encoding/json"
	"net/http"
)

// errorPayload is the JSON body of every non-2xx API response.
type errorPayload struct {
	Error struct {
		Reason  string `json:"reason,omitempty"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, reason, msg string) {
	var p errorPayload
	p.Error.Reason = reason
	p.Error.Message = msg
	writeJSON(w, status, p)
}
