package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Job states. A job moves queued -> building -> published, or to failed
// when the runner reports an unrecoverable error.
const (
	JobStateQueued    = "queued"
	JobStateBuilding  = "building"
	JobStatePublished = "published"
	JobStateFailed    = "failed"
)

type JobSchema struct {
	ID            uint `gorm:"primarykey"`
	Email         string
	Task          string
	Round         int
	Nonce         string
	Brief         string
	Checks        string // JSON-encoded list of check strings
	Attachments   string // JSON-encoded list of raw attachments (data URIs)
	EvaluationURL string
	DedupeKey     string `gorm:"uniqueIndex"`
	State         string
	RepoURL       string
	PagesURL      string
	CommitSHA     string
	Error         string
	BuildDeadline time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Files      []AttachmentSchema `gorm:"foreignKey:JobID"`
	Deliveries []DeliverySchema   `gorm:"foreignKey:JobID"`
}

// DedupeKeyFor builds the idempotency key for a submission. Two requests with
// the same email, task, round, and nonce are the same submission.
func DedupeKeyFor(email string, task string, round int, nonce string) string {
	return fmt.Sprintf("%s::%s::round%d::nonce%s", email, task, round, nonce)
}

func (job *JobSchema) ChecksList() []string {
	var checks []string
	if job.Checks == "" {
		return checks
	}
	if err := json.Unmarshal([]byte(job.Checks), &checks); err != nil {
		return nil
	}
	return checks
}

func CreateJob(job JobSchema) (JobSchema, error) {
	if job.State == "" {
		job.State = JobStateQueued
	}
	result := db.Create(&job)
	if result.Error != nil {
		return JobSchema{}, result.Error
	}
	return job, nil
}

func GetJobByID(id uint) (JobSchema, error) {
	var job JobSchema
	result := db.Preload("Files").Preload("Deliveries").First(&job, id)
	if result.Error != nil {
		return JobSchema{}, result.Error
	}
	return job, nil
}

func GetJobByKey(key string) (JobSchema, bool, error) {
	var job JobSchema
	result := db.Where("dedupe_key = ?", key).First(&job)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return JobSchema{}, false, nil
		}
		return JobSchema{}, false, result.Error
	}
	return job, true, nil
}

func GetJobs(state string) ([]JobSchema, error) {
	var jobs []JobSchema
	query := db.Order("id desc")
	if state != "" {
		query = query.Where("state = ?", state)
	}
	result := query.Find(&jobs)
	if result.Error != nil {
		return nil, result.Error
	}
	return jobs, nil
}

func GetJobsByState(state string) ([]JobSchema, error) {
	var jobs []JobSchema
	result := db.Where("state = ?", state).Order("id asc").Find(&jobs)
	if result.Error != nil {
		return nil, result.Error
	}
	return jobs, nil
}

// GetStuckJobs returns building jobs whose deadline has passed, so the
// dispatcher can requeue them.
func GetStuckJobs(now time.Time) ([]JobSchema, error) {
	var jobs []JobSchema
	result := db.Where("state = ? AND build_deadline < ?", JobStateBuilding, now).Find(&jobs)
	if result.Error != nil {
		return nil, result.Error
	}
	return jobs, nil
}

func MarkJobBuilding(id uint, deadline time.Time) error {
	result := db.Model(&JobSchema{}).Where("id = ?", id).Updates(map[string]any{
		"state":          JobStateBuilding,
		"build_deadline": deadline,
	})
	return result.Error
}

func MarkJobQueued(id uint) error {
	result := db.Model(&JobSchema{}).Where("id = ?", id).Updates(map[string]any{
		"state": JobStateQueued,
		"error": "",
	})
	return result.Error
}

func MarkJobPublished(id uint, repoURL string, pagesURL string, commitSHA string) error {
	result := db.Model(&JobSchema{}).Where("id = ?", id).Updates(map[string]any{
		"state":      JobStatePublished,
		"repo_url":   repoURL,
		"pages_url":  pagesURL,
		"commit_sha": commitSHA,
		"error":      "",
	})
	return result.Error
}

func MarkJobFailed(id uint, buildError string) error {
	result := db.Model(&JobSchema{}).Where("id = ?", id).Updates(map[string]any{
		"state": JobStateFailed,
		"error": buildError,
	})
	return result.Error
}

func CountJobsByState() (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, state := range []string{JobStateQueued, JobStateBuilding, JobStatePublished, JobStateFailed} {
		var count int64
		result := db.Model(&JobSchema{}).Where("state = ?", state).Count(&count)
		if result.Error != nil {
			return nil, result.Error
		}
		counts[state] = count
	}
	return counts, nil
}
