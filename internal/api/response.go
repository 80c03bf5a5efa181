package api

import (
	"encoding/json"
	"net/http"
)

type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// writeOK wraps the payload in the {ok:true, ...} envelope every direct
// caller receives.
func writeOK(w http.ResponseWriter, status int, fields map[string]interface{}) {
	body := map[string]interface{}{"ok": true}
	for k, v := range fields {
		body[k] = v
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{OK: false, Error: message})
}
