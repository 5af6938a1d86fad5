package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"pagesmith/engine"
	"pagesmith/engine/builder"
	"pagesmith/engine/generate"
	"pagesmith/engine/publish"

	"github.com/redis/go-redis/v9"
)

func main() {
	// Redis connection info
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "pagesmith_redis:6379"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	ctx := context.Background()

	githubToken := os.Getenv("GITHUB_TOKEN")
	githubOwner := os.Getenv("GITHUB_OWNER")
	if githubToken == "" || githubOwner == "" {
		log.Fatalln("GITHUB_TOKEN and GITHUB_OWNER must be set")
	}

	openaiKey := os.Getenv("OPENAI_API_KEY")
	if openaiKey == "" {
		log.Fatalln("OPENAI_API_KEY must be set")
	}
	openaiModel := os.Getenv("OPENAI_MODEL")
	if openaiModel == "" {
		openaiModel = "gpt-4o"
	}

	attachmentDir := os.Getenv("ATTACHMENT_DIR")
	if attachmentDir == "" {
		attachmentDir = os.TempDir() + "/pagesmith_attachments"
	}

	b := builder.New(
		generate.NewGenerator(openaiKey, os.Getenv("OPENAI_BASE_URL"), openaiModel),
		publish.New(ctx, githubToken, githubOwner),
		attachmentDir,
	)

	log.Println("Runner started, listening for builds on Redis at:", "redisAddr", redisAddr)

	for {
		// Block until we get a task from the build list (no timeout here).
		val, err := rdb.BLPop(ctx, 0, engine.BuildQueue).Result()
		if err != nil {
			log.Println("Failed to pop task from Redis: ", "err", err)
			continue
		}

		// val[0] = queue name, val[1] = the JSON payload
		if len(val) < 2 {
			log.Println("Invalid BLPop response:", val)
			continue
		}

		var task engine.Task
		if err := json.Unmarshal([]byte(val[1]), &task); err != nil {
			log.Println("Invalid task format:", "err", err)
			continue
		}
		log.Printf("[Runner] Received task: JobID: %d Task: %s Round: %d", task.JobID, task.TaskName, task.Round)

		// honor the engine's deadline, with a floor so a late pop still
		// gets a chance to report failure instead of hanging forever
		timeout := time.Until(task.Deadline)
		if timeout < 10*time.Second {
			timeout = 10 * time.Second
		}
		buildCtx, cancel := context.WithTimeout(ctx, timeout)

		resultChan := make(chan engine.Result, 1)
		go func() {
			resultChan <- b.Build(buildCtx, task)
		}()

		var result engine.Result
		select {
		case result = <-resultChan:
			// success or failure, we got a result
		case <-buildCtx.Done():
			result = engine.Result{
				JobID:  task.JobID,
				Status: false,
				Error:  "runner internal timeout",
			}
			log.Printf("Runner internal timeout for task: %s", task.TaskName)
		}
		cancel()

		resultJSON, _ := json.Marshal(result)

		if err := rdb.RPush(ctx, engine.ResultQueue, resultJSON).Err(); err != nil {
			log.Printf("Failed to push result to Redis: %v", err)
		} else {
			log.Printf("Pushed result for task %s (JobID=%d), success=%v", task.TaskName, task.JobID, result.Status)
		}
	}
}
