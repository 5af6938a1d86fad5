package engine

import (
	"time"

	"pagesmith/engine/generate"
)

// Queue names shared by the engine and the runners.
const (
	BuildQueue  = "builds"
	ResultQueue = "results"
)

// Task is one build of one round, handed to a runner over Redis.
type Task struct {
	JobID       uint                  `json:"job_id"`
	TaskName    string                `json:"task_name"` // doubles as the repo name
	Round       int                   `json:"round"`
	Brief       string                `json:"brief"`
	Checks      []string              `json:"checks"`
	Attachments []generate.Attachment `json:"attachments"`
	Deadline    time.Time             `json:"deadline"`
}

// Result is what a runner reports back once a build finishes or dies.
type Result struct {
	JobID     uint   `json:"job_id"`
	Status    bool   `json:"status"`
	RepoURL   string `json:"repo_url,omitempty"`
	PagesURL  string `json:"pages_url,omitempty"`
	CommitSHA string `json:"commit_sha,omitempty"`
	Fallback  bool   `json:"fallback,omitempty"`
	Error     string `json:"error,omitempty"`
	Debug     string `json:"debug,omitempty"`
}
