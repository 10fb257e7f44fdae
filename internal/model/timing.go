package model

// SceneTiming is the per-segment duration plan derived from the actual
// narration lengths. It is computed fresh whenever rendering needs it
// and never stored on the job. All values are seconds, unrounded;
// seconds-to-frames conversion is the renderer's business.
type SceneTiming struct {
	Intro     float64   `json:"intro"`
	Questions []float64 `json:"questions"`
	Timer     float64   `json:"timer"`
	Answers   []float64 `json:"answers"`
	Outro     float64   `json:"outro"`
}

// CompositionInput is the full payload handed to the renderer.
type CompositionInput struct {
	Topic            string      `json:"topic"`
	Questions        []Question  `json:"questions"`
	BackgroundImages []string    `json:"backgroundImages"`
	AudioFiles       AudioFiles  `json:"audioFiles"`
	Timing           SceneTiming `json:"timing"`
}
