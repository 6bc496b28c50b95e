package models

// ScrapeAccepted is the immediate response for POST /api/scrape.
type ScrapeAccepted struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	URL       string `json:"url"`
	Timestamp string `json:"timestamp"`
	JobID     string `json:"job_id"`
}

// BatchAccepted is the immediate response for POST /api/scrape/batch.
type BatchAccepted struct {
	Success   bool     `json:"success"`
	Message   string   `json:"message"`
	Count     int      `json:"count"`
	Skipped   []string `json:"skipped,omitempty"`
	Timestamp string   `json:"timestamp"`
	JobID     string   `json:"job_id"`
}

// ErrorResponse wraps an ErrorDetail for non-2xx API responses.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error"`
}

// StatusResponse is the response for GET /api/status.
type StatusResponse struct {
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	Environment string `json:"environment"`
}

// HealthResponse is the response for GET /api/health.
type HealthResponse struct {
	Status    string    `json:"status"` // "healthy" or "degraded"
	Uptime    string    `json:"uptime"`
	Store     string    `json:"store"`
	PoolStats PoolStats `json:"pool_stats"`
	Version   string    `json:"version"`
}

// PoolStats reports the state of the browser.
type PoolStats struct {
	Exclusive   bool `json:"exclusive"`
	ActivePages int  `json:"active_pages"`
	TotalPages  int  `json:"total_pages"`
}
