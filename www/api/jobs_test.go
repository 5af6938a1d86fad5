package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagesmith/engine/db"
)

func seedJob(t *testing.T, state string) db.JobSchema {
	t.Helper()
	job, err := db.CreateJob(db.JobSchema{
		Email:         "student@example.com",
		Task:          "todo-app-x1",
		Round:         1,
		Nonce:         "nonce-" + state,
		Brief:         "a todo app",
		EvaluationURL: "https://example.com/notify",
		DedupeKey:     db.DedupeKeyFor("student@example.com", "todo-app-x1", 1, "nonce-"+state),
		State:         state,
	})
	require.NoError(t, err)
	return job
}

func getWithPathID(t *testing.T, handler http.HandlerFunc, method string, id uint) *httptest.ResponseRecorder {
	t.Helper()
	// route through a mux so PathValue is populated
	mux := http.NewServeMux()
	mux.HandleFunc(fmt.Sprintf("%s /api/jobs/{id}", method), handler)
	req := httptest.NewRequest(method, fmt.Sprintf("/api/jobs/%d", id), nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestGetJobs_FiltersByState(t *testing.T) {
	setupAPI(t)

	seedJob(t, db.JobStateQueued)
	seedJob(t, db.JobStateFailed)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs?state=failed", nil)
	rec := httptest.NewRecorder()
	GetJobs(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var jobs []db.JobSchema
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, db.JobStateFailed, jobs[0].State)

	req = httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	rec = httptest.NewRecorder()
	GetJobs(rec, req)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jobs))
	assert.Len(t, jobs, 2)
}

func TestGetJob(t *testing.T) {
	setupAPI(t)

	job := seedJob(t, db.JobStateQueued)

	rec := getWithPathID(t, GetJob, http.MethodGet, job.ID)
	require.Equal(t, http.StatusOK, rec.Code)

	var got db.JobSchema
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, "todo-app-x1", got.Task)

	rec = getWithPathID(t, GetJob, http.MethodGet, job.ID+100)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRedeliverJob_RequiresPublishedState(t *testing.T) {
	setupAPI(t)

	job := seedJob(t, db.JobStateQueued)
	rec := getWithPathID(t, RedeliverJob, http.MethodPost, job.ID)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRedeliverJob_SendsReceipt(t *testing.T) {
	setupAPI(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	job, err := db.CreateJob(db.JobSchema{
		Email:         "student@example.com",
		Task:          "todo-app-x1",
		Round:         1,
		Nonce:         "nonce-redeliver",
		Brief:         "a todo app",
		EvaluationURL: srv.URL,
		DedupeKey:     db.DedupeKeyFor("student@example.com", "todo-app-x1", 1, "nonce-redeliver"),
		State:         db.JobStateQueued,
	})
	require.NoError(t, err)
	require.NoError(t, db.MarkJobPublished(job.ID, "https://github.com/o/r", "https://o.github.io/r/", "sha1"))

	rec := getWithPathID(t, RedeliverJob, http.MethodPost, job.ID)
	assert.Equal(t, http.StatusOK, rec.Code)

	deliveries, err := db.GetDeliveriesForJob(job.ID)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Equal(t, http.StatusOK, deliveries[0].StatusCode)
}

func TestRequeueJob(t *testing.T) {
	setupAPI(t)

	queued := seedJob(t, db.JobStateQueued)
	rec := getWithPathID(t, RequeueJob, http.MethodPost, queued.ID)
	assert.Equal(t, http.StatusConflict, rec.Code)

	failed := seedJob(t, db.JobStateFailed)
	require.NoError(t, db.MarkJobFailed(failed.ID, "build blew up"))
	rec = getWithPathID(t, RequeueJob, http.MethodPost, failed.ID)
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := db.GetJobByID(failed.ID)
	require.NoError(t, err)
	assert.Equal(t, db.JobStateQueued, got.State)
	assert.Empty(t, got.Error)
}
