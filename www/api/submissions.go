package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"pagesmith/engine/db"
	"pagesmith/engine/generate"
)

// RoundPayload is the submission request shape: who is submitting, which
// task and round, the brief to build, and optional checks and attachments.
type RoundPayload struct {
	Email         string                `json:"email"`
	Secret        string                `json:"secret"`
	Task          string                `json:"task"`
	Round         int                   `json:"round"`
	Nonce         string                `json:"nonce"`
	Brief         string                `json:"brief"`
	Checks        []string              `json:"checks"`
	EvaluationURL string                `json:"evaluation_url"`
	Attachments   []generate.Attachment `json:"attachments"`
}

func (p *RoundPayload) Validate() error {
	var errResult error

	if p.Email == "" {
		errResult = errors.Join(errResult, errors.New("email is required"))
	}
	if p.Task == "" {
		errResult = errors.Join(errResult, errors.New("task is required"))
	}
	if p.Round < 1 {
		errResult = errors.Join(errResult, errors.New("round must be at least 1"))
	}
	if p.Nonce == "" {
		errResult = errors.Join(errResult, errors.New("nonce is required"))
	}
	if p.Brief == "" {
		errResult = errors.Join(errResult, errors.New("brief is required"))
	}
	for _, att := range p.Attachments {
		if !strings.HasPrefix(att.URL, "data:") {
			errResult = errors.Join(errResult, fmt.Errorf("attachment %s must be a data URI", att.Name))
		}
	}

	return errResult
}

// LandingPage tells a browser the service is up.
func LandingPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<html>
    <head>
        <title>%s</title>
    </head>
    <body style="font-family: sans-serif; text-align: center; padding-top: 50px;">
        <h1>%s is running</h1>
        <p>Use the API endpoint <code>/api-endpoint</code> to send round payloads.</p>
    </body>
</html>
`, conf.MiscSettings.PageName, conf.MiscSettings.PageName)
}

// ReceiveSubmission is the round intake endpoint. It acknowledges
// immediately; the engine picks the job up and builds asynchronously.
func ReceiveSubmission(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, conf.MiscSettings.MaxAttachment)

	var payload RoundPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON payload"})
		return
	}

	if subtle.ConstantTimeCompare([]byte(payload.Secret), []byte(conf.RequiredSettings.SubmissionSecret)) != 1 {
		slog.Warn("submission with invalid secret", "email", payload.Email, "task", payload.Task)
		WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid secret"})
		return
	}

	if err := payload.Validate(); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	key := db.DedupeKeyFor(payload.Email, payload.Task, payload.Round, payload.Nonce)

	existing, found, err := db.GetJobByKey(key)
	if err != nil {
		slog.Error("dedupe lookup failed", "key", key, "error", err)
		WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	if found {
		handleDuplicate(w, r, existing)
		return
	}

	job, err := createJob(payload, key)
	if err != nil {
		slog.Error("failed to create job", "key", key, "error", err)
		WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	slog.Info("submission accepted", "job_id", job.ID, "task", job.Task, "round", job.Round)
	WriteJSON(w, http.StatusOK, map[string]string{
		"status": "accepted",
		"note":   fmt.Sprintf("processing round %d started", payload.Round),
	})
}

// handleDuplicate answers a replayed nonce. A published job just gets its
// receipt re-sent; anything still in flight is acknowledged as-is.
func handleDuplicate(w http.ResponseWriter, r *http.Request, job db.JobSchema) {
	slog.Warn("duplicate submission", "job_id", job.ID, "key", job.DedupeKey, "state", job.State)

	switch job.State {
	case db.JobStatePublished:
		// the response doesn't wait on the re-notify, so detach from the
		// request context
		go func() {
			if err := eng.DeliverReceipt(context.Background(), job); err != nil {
				slog.Error("re-notify failed", "job_id", job.ID, "error", err)
			}
		}()
		WriteJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
			"note":   "duplicate handled & re-notified",
		})
	case db.JobStateFailed:
		WriteJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
			"note":   "duplicate of a failed build; requeue it via the admin API",
		})
	default:
		WriteJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
			"note":   fmt.Sprintf("round %d is still processing", job.Round),
		})
	}
}

func createJob(payload RoundPayload, key string) (db.JobSchema, error) {
	checksJSON, err := json.Marshal(payload.Checks)
	if err != nil {
		return db.JobSchema{}, fmt.Errorf("failed to serialize checks: %v", err)
	}
	attachmentsJSON, err := json.Marshal(payload.Attachments)
	if err != nil {
		return db.JobSchema{}, fmt.Errorf("failed to serialize attachments: %v", err)
	}

	job, err := db.CreateJob(db.JobSchema{
		Email:         payload.Email,
		Task:          payload.Task,
		Round:         payload.Round,
		Nonce:         payload.Nonce,
		Brief:         payload.Brief,
		Checks:        string(checksJSON),
		Attachments:   string(attachmentsJSON),
		EvaluationURL: payload.EvaluationURL,
		DedupeKey:     key,
		State:         db.JobStateQueued,
	})
	if err != nil {
		return db.JobSchema{}, err
	}

	// decode attachments up front so bad ones surface in the job record,
	// not just in runner logs
	saved, err := generate.DecodeAttachments(conf.MiscSettings.AttachmentDir, payload.Attachments)
	if err != nil {
		slog.Warn("attachment decoding failed at intake", "job_id", job.ID, "error", err)
		return job, nil
	}
	for _, att := range saved {
		if _, err := db.CreateAttachment(db.AttachmentSchema{
			JobID: job.ID,
			Name:  att.Name,
			Mime:  att.Mime,
			Size:  att.Size,
			Path:  att.Path,
		}); err != nil {
			slog.Error("failed to record attachment", "job_id", job.ID, "name", att.Name, "error", err)
		}
	}

	return job, nil
}
