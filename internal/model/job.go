package model

import "time"

// Job status
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transition may leave the status.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Question is one quiz question/answer pair.
type Question struct {
	Question string `json:"question" validate:"required,min=3,max=200"`
	Answer   string `json:"answer" validate:"required,min=1,max=100"`
}

// AudioWithDuration is a narration file together with its spoken length in seconds.
type AudioWithDuration struct {
	Path     string  `json:"path"`
	Duration float64 `json:"duration"`
}

// AudioFiles groups the narration segments of one job. Intro and outro
// are optional; questions and answers always match the question count.
type AudioFiles struct {
	Intro     *AudioWithDuration  `json:"intro,omitempty"`
	Questions []AudioWithDuration `json:"questions"`
	Answers   []AudioWithDuration `json:"answers"`
	Outro     *AudioWithDuration  `json:"outro,omitempty"`
}

// VideoAssets holds everything generated for a job before rendering:
// one background per question plus one for the intro, and all narration.
type VideoAssets struct {
	BackgroundImages []string   `json:"backgroundImages"`
	AudioFiles       AudioFiles `json:"audioFiles"`
}

// VideoJob is one end-to-end generation request and its lifecycle state.
// Records live only in process memory; they die with the process.
type VideoJob struct {
	ID          string       `json:"id"`
	Status      JobStatus    `json:"status"`
	Topic       string       `json:"topic"`
	Questions   []Question   `json:"questions"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	Progress    int          `json:"progress"`
	CurrentStep string       `json:"currentStep,omitempty"`
	Error       *string      `json:"error,omitempty"`
	FilePath    string       `json:"filePath,omitempty"`
	Assets      *VideoAssets `json:"assets,omitempty"`
}

// VideoJobPayload is the task payload carried through the queue.
type VideoJobPayload struct {
	Topic     string     `json:"topic"`
	Questions []Question `json:"questions"`
}
