package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"pagesmith/engine/config"
	"pagesmith/engine/db"
	"pagesmith/engine/generate"
	"pagesmith/engine/notify"
)

// BuildEngine owns the job lifecycle: it dispatches queued jobs onto the
// build queue, requeues builds that blew their deadline, finalizes runner
// results, and delivers receipts to the evaluation server.
type BuildEngine struct {
	Config         *config.ConfigSettings
	RedisClient    *redis.Client
	Deliverer      *notify.Deliverer
	EnginePauseWg  *sync.WaitGroup
	IsEnginePaused bool

	// signals
	ResetChan chan struct{}
}

func NewEngine(conf *config.ConfigSettings) *BuildEngine {
	rdb := redis.NewClient(&redis.Options{
		Addr:     conf.RequiredSettings.RedisAddress,
		Password: os.Getenv("REDIS_PASSWORD"),
	})

	return &BuildEngine{
		Config:      conf,
		RedisClient: rdb,
		Deliverer: notify.NewDeliverer(
			conf.MiscSettings.DeliveryRetries,
			time.Duration(conf.MiscSettings.DeliveryBackoff)*time.Second,
		),
		ResetChan: make(chan struct{}),
	}
}

func (be *BuildEngine) Start() {
	// start paused if configured
	be.IsEnginePaused = false
	be.EnginePauseWg = &sync.WaitGroup{}
	if be.Config.MiscSettings.StartPaused {
		be.IsEnginePaused = true
		be.EnginePauseWg.Add(1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	go be.collectResults(ctx)

	// dispatch loop
	go func() {
		pollInterval := time.Duration(be.Config.MiscSettings.PollInterval) * time.Second
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			be.EnginePauseWg.Wait()

			if err := be.dispatchQueued(ctx); err != nil {
				slog.Error("dispatch sweep failed", "error", err)
			}
			if err := be.requeueStuck(); err != nil {
				slog.Error("requeue sweep failed", "error", err)
			}

			time.Sleep(pollInterval)
		}
	}()

	<-be.ResetChan
	cancel()
	slog.Info("engine loop ending (probably due to reset)")
}

// dispatchQueued pushes every queued job onto the build queue and marks it
// building with a deadline the requeue sweep can check against.
func (be *BuildEngine) dispatchQueued(ctx context.Context) error {
	jobs, err := db.GetJobsByState(db.JobStateQueued)
	if err != nil {
		return fmt.Errorf("failed to get queued jobs: %v", err)
	}

	for _, job := range jobs {
		task, err := taskForJob(job, be.Config.MiscSettings.BuildTimeout)
		if err != nil {
			slog.Error("failed to build task, failing job", "job_id", job.ID, "error", err)
			db.MarkJobFailed(job.ID, err.Error())
			continue
		}

		taskJSON, err := json.Marshal(task)
		if err != nil {
			return fmt.Errorf("failed to marshal task for job %d: %v", job.ID, err)
		}

		if err := be.RedisClient.RPush(ctx, BuildQueue, taskJSON).Err(); err != nil {
			return fmt.Errorf("failed to push task for job %d: %v", job.ID, err)
		}

		if err := db.MarkJobBuilding(job.ID, task.Deadline); err != nil {
			return fmt.Errorf("failed to mark job %d building: %v", job.ID, err)
		}
		slog.Info("dispatched build", "job_id", job.ID, "task", job.Task, "round", job.Round)
	}

	return nil
}

// requeueStuck puts builds whose runner never reported back into the queue
// again.
func (be *BuildEngine) requeueStuck() error {
	jobs, err := db.GetStuckJobs(time.Now())
	if err != nil {
		return fmt.Errorf("failed to get stuck jobs: %v", err)
	}

	for _, job := range jobs {
		slog.Warn("requeueing stuck build", "job_id", job.ID, "task", job.Task, "deadline", job.BuildDeadline)
		if err := db.MarkJobQueued(job.ID); err != nil {
			return fmt.Errorf("failed to requeue job %d: %v", job.ID, err)
		}
	}

	return nil
}

// collectResults blocks on the result queue and finalizes each build.
func (be *BuildEngine) collectResults(ctx context.Context) {
	for {
		val, err := be.RedisClient.BLPop(ctx, 5*time.Second, ResultQueue).Result()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if err != redis.Nil {
				slog.Error("failed to pop result from redis", "error", err)
				time.Sleep(time.Second)
			}
			continue
		}

		// val[0] = queue name, val[1] = the JSON payload
		if len(val) < 2 {
			slog.Error("invalid BLPop response", "value", val)
			continue
		}

		var result Result
		if err := json.Unmarshal([]byte(val[1]), &result); err != nil {
			slog.Error("invalid result format", "error", err)
			continue
		}

		be.handleResult(ctx, result)
	}
}

func (be *BuildEngine) handleResult(ctx context.Context, result Result) {
	slog.Debug("build finished", "job_id", result.JobID, "status", result.Status, "fallback", result.Fallback)

	if !result.Status {
		if err := db.MarkJobFailed(result.JobID, result.Error); err != nil {
			slog.Error("failed to mark job failed", "job_id", result.JobID, "error", err)
		}
		slog.Error("build failed", "job_id", result.JobID, "error", result.Error, "debug", result.Debug)
		return
	}

	if err := db.MarkJobPublished(result.JobID, result.RepoURL, result.PagesURL, result.CommitSHA); err != nil {
		slog.Error("failed to mark job published", "job_id", result.JobID, "error", err)
		return
	}

	job, err := db.GetJobByID(result.JobID)
	if err != nil {
		slog.Error("failed to load job for receipt", "job_id", result.JobID, "error", err)
		return
	}

	if err := be.DeliverReceipt(ctx, job); err != nil {
		slog.Error("receipt delivery failed", "job_id", job.ID, "error", err)
	}
}

// DeliverReceipt posts the job's receipt to its evaluation URL and records
// every attempt. Used for fresh builds, duplicate re-notifies, and the admin
// redeliver endpoint.
func (be *BuildEngine) DeliverReceipt(ctx context.Context, job db.JobSchema) error {
	attempts, err := be.Deliverer.Deliver(ctx, job.EvaluationURL, ReceiptForJob(job))
	for _, attempt := range attempts {
		if _, dbErr := db.CreateDelivery(db.DeliverySchema{
			JobID:      job.ID,
			TargetURL:  job.EvaluationURL,
			Attempt:    attempt.Attempt,
			StatusCode: attempt.StatusCode,
			Error:      attempt.Error,
		}); dbErr != nil {
			slog.Error("failed to record delivery attempt", "job_id", job.ID, "error", dbErr)
		}
	}
	if err != nil {
		return err
	}
	slog.Info("receipt delivered", "job_id", job.ID, "target", job.EvaluationURL, "attempts", len(attempts))
	return nil
}

// ReceiptForJob maps a published job to the payload the evaluation server
// expects.
func ReceiptForJob(job db.JobSchema) notify.Receipt {
	return notify.Receipt{
		Email:     job.Email,
		Task:      job.Task,
		Round:     job.Round,
		Nonce:     job.Nonce,
		RepoURL:   job.RepoURL,
		CommitSHA: job.CommitSHA,
		PagesURL:  job.PagesURL,
	}
}

func taskForJob(job db.JobSchema, buildTimeout int) (Task, error) {
	var attachments []generate.Attachment
	if job.Attachments != "" {
		if err := json.Unmarshal([]byte(job.Attachments), &attachments); err != nil {
			return Task{}, fmt.Errorf("job %d has invalid attachments: %v", job.ID, err)
		}
	}

	return Task{
		JobID:       job.ID,
		TaskName:    job.Task,
		Round:       job.Round,
		Brief:       job.Brief,
		Checks:      job.ChecksList(),
		Attachments: attachments,
		Deadline:    time.Now().Add(time.Duration(buildTimeout) * time.Second),
	}, nil
}

func (be *BuildEngine) PauseEngine() {
	if !be.IsEnginePaused {
		be.EnginePauseWg.Add(1)
		be.IsEnginePaused = true
	}
}

func (be *BuildEngine) ResumeEngine() {
	if be.IsEnginePaused {
		be.EnginePauseWg.Done()
		be.IsEnginePaused = false
	}
}

// Status is the admin view of the engine.
type Status struct {
	Paused     bool             `json:"paused"`
	QueueDepth int64            `json:"queue_depth"`
	Jobs       map[string]int64 `json:"jobs"`
}

func (be *BuildEngine) GetStatus(ctx context.Context) (Status, error) {
	depth, err := be.RedisClient.LLen(ctx, BuildQueue).Result()
	if err != nil {
		return Status{}, fmt.Errorf("failed to read queue depth: %v", err)
	}

	counts, err := db.CountJobsByState()
	if err != nil {
		return Status{}, fmt.Errorf("failed to count jobs: %v", err)
	}

	return Status{
		Paused:     be.IsEnginePaused,
		QueueDepth: depth,
		Jobs:       counts,
	}, nil
}
