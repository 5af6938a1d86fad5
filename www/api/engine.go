package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

func PauseEngine(w http.ResponseWriter, r *http.Request) {
	type Form struct {
		Pause bool `json:"pause"`
	}

	var form Form
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	slog.Debug("pause engine requested", "wasEnginePausedWhenRequestIssued", eng.IsEnginePaused, "setPauseTo", form.Pause)
	if eng.IsEnginePaused && !form.Pause {
		eng.ResumeEngine()
	} else if !eng.IsEnginePaused && form.Pause {
		eng.PauseEngine()
	} else {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	d := []byte(`{"status": "success"}`)
	w.Write(d)
}

func GetEngine(w http.ResponseWriter, r *http.Request) {
	status, err := eng.GetStatus(r.Context())
	if err != nil {
		slog.Error("failed to get engine status", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	WriteJSON(w, http.StatusOK, status)
}
