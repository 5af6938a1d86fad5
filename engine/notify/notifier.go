// Package notify posts build receipts back to the evaluation server.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Receipt is the payload the evaluation server expects once a round has
// been published.
type Receipt struct {
	Email     string `json:"email"`
	Task      string `json:"task"`
	Round     int    `json:"round"`
	Nonce     string `json:"nonce"`
	RepoURL   string `json:"repo_url"`
	CommitSHA string `json:"commit_sha,omitempty"`
	PagesURL  string `json:"pages_url,omitempty"`
}

// Attempt records the outcome of a single delivery try.
type Attempt struct {
	Attempt    int
	StatusCode int
	Error      string
}

type Deliverer struct {
	Client  *http.Client
	Retries int
	Backoff time.Duration
}

func NewDeliverer(retries int, backoff time.Duration) *Deliverer {
	return &Deliverer{
		Client:  &http.Client{Timeout: 30 * time.Second},
		Retries: retries,
		Backoff: backoff,
	}
}

// Deliver posts the receipt to url, retrying on network errors and 5xx
// responses. All attempts are returned so the caller can record them; the
// error is non-nil only when every attempt failed.
func (d *Deliverer) Deliver(ctx context.Context, url string, receipt Receipt) ([]Attempt, error) {
	if url == "" {
		return nil, fmt.Errorf("no evaluation url to deliver to")
	}

	body, err := json.Marshal(receipt)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal receipt: %v", err)
	}

	var attempts []Attempt
	for i := 1; i <= d.Retries; i++ {
		status, attemptErr := d.post(ctx, url, body)
		attempt := Attempt{Attempt: i, StatusCode: status}
		if attemptErr != nil {
			attempt.Error = attemptErr.Error()
		}
		attempts = append(attempts, attempt)

		if attemptErr == nil {
			return attempts, nil
		}

		if i < d.Retries {
			select {
			case <-time.After(d.Backoff):
			case <-ctx.Done():
				return attempts, ctx.Err()
			}
		}
	}

	return attempts, fmt.Errorf("all %d delivery attempts to %s failed", d.Retries, url)
}

func (d *Deliverer) post(ctx context.Context, url string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return resp.StatusCode, fmt.Errorf("evaluation server returned %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}
