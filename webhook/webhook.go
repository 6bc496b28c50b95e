// Package webhook notifies callers when a submitted job finishes.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/use-agent/tokscrape/models"
)

// EventJobCompleted is sent once a job reaches a terminal status.
const EventJobCompleted = "job.completed"

// SignatureHeader carries "sha256=<hex>" of the body when a secret is set.
const SignatureHeader = "X-Tokscrape-Signature"

// Event is the payload posted to webhook endpoints.
type Event struct {
	Type      string      `json:"type"`
	JobID     string      `json:"job_id"`
	Timestamp int64       `json:"timestamp"`
	Job       *models.Job `json:"job"`
}

// NewJobEvent wraps a finished job.
func NewJobEvent(job *models.Job) *Event {
	return &Event{
		Type:      EventJobCompleted,
		JobID:     job.ID,
		Timestamp: time.Now().Unix(),
		Job:       job,
	}
}

// Notifier signs and delivers events.
type Notifier struct {
	secret string
	client *http.Client
	delays []time.Duration
}

func NewNotifier(secret string) *Notifier {
	return &Notifier{
		secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
		delays: []time.Duration{0, 1 * time.Second, 5 * time.Second, 30 * time.Second},
	}
}

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Deliver makes a single delivery attempt.
func (n *Notifier) Deliver(ctx context.Context, url string, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Tokscrape-Webhook/1.0")
	if n.secret != "" {
		req.Header.Set(SignatureHeader, Sign(n.secret, body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// DeliverWithRetry retries after 1s, 5s and 30s. It blocks until the
// event is delivered, retries run out, or ctx is done.
func (n *Notifier) DeliverWithRetry(ctx context.Context, url string, event *Event) error {
	var err error
	for attempt, delay := range n.delays {
		if delay > 0 {
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = n.Deliver(attemptCtx, url, event)
		cancel()
		if err == nil {
			slog.Info("webhook delivered", "url", url, "event", event.Type, "job_id", event.JobID, "attempt", attempt+1)
			return nil
		}
		slog.Warn("webhook delivery failed", "url", url, "event", event.Type, "job_id", event.JobID,
			"attempt", attempt+1, "error", err)
	}
	slog.Error("webhook delivery exhausted all retries", "url", url, "event", event.Type, "job_id", event.JobID)
	return err
}
