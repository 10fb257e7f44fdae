// Package timing derives the per-scene duration plan from the narration
// actually synthesized for a job.
package timing

import "github.com/quizreel/api/internal/model"

const (
	// TimerSec is the fixed countdown shown after each question.
	TimerSec = 3.0

	// Fallback durations when the optional intro/outro narration is
	// missing, so those scenes are never instantaneous.
	DefaultIntroSec = 3.0
	DefaultOutroSec = 4.0
)

// Calculate builds a SceneTiming from generated audio durations. Values
// pass through unrounded; frame rounding belongs to the renderer.
func Calculate(assets *model.VideoAssets) model.SceneTiming {
	t := model.SceneTiming{
		Intro:     DefaultIntroSec,
		Timer:     TimerSec,
		Outro:     DefaultOutroSec,
		Questions: make([]float64, len(assets.AudioFiles.Questions)),
		Answers:   make([]float64, len(assets.AudioFiles.Answers)),
	}

	if assets.AudioFiles.Intro != nil {
		t.Intro = assets.AudioFiles.Intro.Duration
	}
	if assets.AudioFiles.Outro != nil {
		t.Outro = assets.AudioFiles.Outro.Duration
	}
	for i, a := range assets.AudioFiles.Questions {
		t.Questions[i] = a.Duration
	}
	for i, a := range assets.AudioFiles.Answers {
		t.Answers[i] = a.Duration
	}
	return t
}

// Total sums the full video length in seconds: intro, every question,
// one countdown per question, every answer, outro.
func Total(t model.SceneTiming) float64 {
	total := t.Intro + t.Outro
	for _, d := range t.Questions {
		total += d
	}
	for _, d := range t.Answers {
		total += d
	}
	total += float64(len(t.Questions)) * t.Timer
	return total
}
