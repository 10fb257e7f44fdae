package model

import "time"

// GenerateVideoRequest is the submission body. The handler validates it
// before the pipeline is ever reached; the pipeline trusts its input.
type GenerateVideoRequest struct {
	Topic     string     `json:"topic" validate:"required,min=3,max=100"`
	Questions []Question `json:"questions" validate:"required,min=2,max=5,dive"`
}

// GenerateVideoResponse acknowledges a queued job.
type GenerateVideoResponse struct {
	JobID     string    `json:"jobId"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// VideoStatusResponse is what pollers see.
type VideoStatusResponse struct {
	JobID       string    `json:"jobId"`
	Status      JobStatus `json:"status"`
	Progress    int       `json:"progress"`
	CurrentStep string    `json:"currentStep,omitempty"`
	Error       *string   `json:"error,omitempty"`
	DownloadURL string    `json:"downloadUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
