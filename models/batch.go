package models

import "time"

// BatchResult is the outcome for one input URL. Results are kept in input
// order and never modified after they are placed.
type BatchResult struct {
	URL     string       `json:"url"`
	Success bool         `json:"success"`
	Record  *VideoRecord `json:"record,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// Job kinds.
const (
	JobKindSingle = "single"
	JobKindBatch  = "batch"
)

// Job statuses.
const (
	JobQueued     = "queued"
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobPartial    = "partial"
	JobFailed     = "failed"
)

// Job tracks an asynchronous scrape submitted through the API.
type Job struct {
	ID         string        `json:"id"`
	Kind       string        `json:"kind"`
	Status     string        `json:"status"`
	URLs       []string      `json:"urls"`
	Total      int           `json:"total"`
	Completed  int           `json:"completed"`
	Succeeded  int           `json:"succeeded"`
	Results    []BatchResult `json:"results"`
	WebhookURL string        `json:"webhook_url,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// Finished reports whether the job reached a terminal status.
func (j *Job) Finished() bool {
	switch j.Status {
	case JobCompleted, JobPartial, JobFailed:
		return true
	}
	return false
}

// FinalStatus derives the terminal status from the success count.
func FinalStatus(succeeded, total int) string {
	switch {
	case total > 0 && succeeded == total:
		return JobCompleted
	case succeeded == 0:
		return JobFailed
	default:
		return JobPartial
	}
}
