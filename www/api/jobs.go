package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"pagesmith/engine/db"
)

func GetJobs(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")

	jobs, err := db.GetJobs(state)
	if err != nil {
		slog.Error("failed to list jobs", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	WriteJSON(w, http.StatusOK, jobs)
}

func jobFromPath(w http.ResponseWriter, r *http.Request) (db.JobSchema, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid job id"})
		return db.JobSchema{}, false
	}

	job, err := db.GetJobByID(uint(id))
	if err != nil {
		WriteJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
		return db.JobSchema{}, false
	}
	return job, true
}

func GetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := jobFromPath(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// RedeliverJob re-sends a published job's receipt to the evaluation server.
func RedeliverJob(w http.ResponseWriter, r *http.Request) {
	job, ok := jobFromPath(w, r)
	if !ok {
		return
	}

	if job.State != db.JobStatePublished {
		WriteJSON(w, http.StatusConflict, map[string]string{"error": "job has no receipt to deliver"})
		return
	}

	if err := eng.DeliverReceipt(r.Context(), job); err != nil {
		slog.Error("admin redeliver failed", "job_id", job.ID, "error", err)
		WriteJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// RequeueJob puts a failed build back in the queue for another attempt.
func RequeueJob(w http.ResponseWriter, r *http.Request) {
	job, ok := jobFromPath(w, r)
	if !ok {
		return
	}

	if job.State != db.JobStateFailed {
		WriteJSON(w, http.StatusConflict, map[string]string{"error": "only failed jobs can be requeued"})
		return
	}

	if err := db.MarkJobQueued(job.ID); err != nil {
		slog.Error("failed to requeue job", "job_id", job.ID, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	slog.Info("job requeued by admin", "job_id", job.ID)
	WriteJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
