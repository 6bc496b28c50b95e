package models

// ScrapeRequest is the payload for POST /api/scrape.
type ScrapeRequest struct {
	// URL is the TikTok video page to scrape. Required.
	URL string `json:"url" binding:"required"`

	// WebhookURL receives a job.completed event when the job finishes.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`
}

// BatchRequest is the payload for POST /api/scrape/batch.
type BatchRequest struct {
	// URLs is the list of video pages. Required.
	URLs []string `json:"urls" binding:"required,min=1"`

	// WebhookURL receives a job.completed event when the job finishes.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`
}
