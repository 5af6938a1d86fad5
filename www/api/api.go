package api

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"pagesmith/engine"
	"pagesmith/engine/config"
)

var (
	conf *config.ConfigSettings
	eng  *engine.BuildEngine
)

func SetConfig(c *config.ConfigSettings) {
	conf = c
}

func SetEngine(e *engine.BuildEngine) {
	eng = e
}

// WriteJSON writes a JSON response with the given status code.
// Errors are logged but not returned since there's nothing actionable
// the caller can do if the response write fails.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

// Authenticate maps a bearer token to a role. Only the admin token exists;
// submission requests authenticate with the in-payload secret instead.
func Authenticate(r *http.Request) string {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return ""
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(conf.RequiredSettings.AdminToken)) == 1 {
		return "admin"
	}
	return ""
}
