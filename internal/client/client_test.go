package client

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/quizreel/api/internal/config"
	"github.com/quizreel/api/internal/model"
)

func TestFalMockWritesPlaceholders(t *testing.T) {
	c := NewFalClient(&config.FalConfig{})
	if c.IsConfigured() {
		t.Fatal("client with no key reports configured")
	}

	dir := t.TempDir()
	ctx := context.Background()

	intro, err := c.GenerateIntroBackground(ctx, "Stolice Europy", dir)
	if err != nil {
		t.Fatalf("GenerateIntroBackground: %v", err)
	}
	if filepath.Base(intro) != "intro-bg.jpg" {
		t.Errorf("intro file = %s", filepath.Base(intro))
	}
	assertNonEmptyFile(t, intro)

	q, err := c.GenerateQuestionBackground(ctx, "Stolica Francji?", 0, dir)
	if err != nil {
		t.Fatalf("GenerateQuestionBackground: %v", err)
	}
	if filepath.Base(q) != "question-1-bg.jpg" {
		t.Errorf("question file = %s", filepath.Base(q))
	}
	assertNonEmptyFile(t, q)
}

func TestElevenLabsMockWritesAudioWithEstimate(t *testing.T) {
	c := NewElevenLabsClient(&config.ElevenLabsConfig{})
	if c.IsConfigured() {
		t.Fatal("client with no key reports configured")
	}

	dir := t.TempDir()
	ctx := context.Background()

	intro, err := c.GenerateIntroAudio(ctx, "Stolice Europy", dir)
	if err != nil {
		t.Fatalf("GenerateIntroAudio: %v", err)
	}
	if filepath.Base(intro.Path) != "intro.mp3" {
		t.Errorf("intro file = %s", filepath.Base(intro.Path))
	}
	if intro.Duration < 1 {
		t.Errorf("intro duration = %v, want >= 1", intro.Duration)
	}
	assertNonEmptyFile(t, intro.Path)

	ans, err := c.GenerateAnswerAudio(ctx, "Paryż", 1, dir)
	if err != nil {
		t.Fatalf("GenerateAnswerAudio: %v", err)
	}
	if filepath.Base(ans.Path) != "answer-2.mp3" {
		t.Errorf("answer file = %s", filepath.Base(ans.Path))
	}

	outro, err := c.GenerateOutroAudio(ctx, dir)
	if err != nil {
		t.Fatalf("GenerateOutroAudio: %v", err)
	}
	if filepath.Base(outro.Path) != "outro.mp3" {
		t.Errorf("outro file = %s", filepath.Base(outro.Path))
	}
}

func TestEstimateDuration(t *testing.T) {
	cases := []struct {
		text string
		want float64
	}{
		{"", 1},
		{"jedno", 1},
		{"pięć słów w tym zdaniu tutaj", 3}, // 6 words -> 2.4s -> ceil 3
	}
	for _, tc := range cases {
		if got := EstimateDuration(tc.text); got != tc.want {
			t.Errorf("EstimateDuration(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestRendererPrepareValidatesComposition(t *testing.T) {
	c := NewRendererClient(&config.RendererConfig{Timeout: 10})
	ctx := context.Background()
	dir := t.TempDir()

	mkAsset := func(name string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		return p
	}

	input := &model.CompositionInput{
		Topic: "Stolice Europy",
		Questions: []model.Question{
			{Question: "Stolica Francji?", Answer: "Paryż"},
		},
		BackgroundImages: []string{mkAsset("intro-bg.jpg"), mkAsset("question-1-bg.jpg")},
		AudioFiles: model.AudioFiles{
			Intro:     &model.AudioWithDuration{Path: mkAsset("intro.mp3"), Duration: 3},
			Questions: []model.AudioWithDuration{{Path: mkAsset("question-1.mp3"), Duration: 4}},
			Answers:   []model.AudioWithDuration{{Path: mkAsset("answer-1.mp3"), Duration: 3}},
			Outro:     &model.AudioWithDuration{Path: mkAsset("outro.mp3"), Duration: 4},
		},
		Timing: model.SceneTiming{
			Intro:     3,
			Questions: []float64{4},
			Timer:     3,
			Answers:   []float64{3},
			Outro:     4,
		},
	}

	if err := c.Prepare(ctx, input); err != nil {
		t.Fatalf("valid composition rejected: %v", err)
	}

	var mismatch *AssetMismatchError

	short := *input
	short.Timing.Questions = nil
	if err := c.Prepare(ctx, &short); !errors.As(err, &mismatch) {
		t.Errorf("timing mismatch err = %v, want AssetMismatchError", err)
	}

	missing := *input
	missing.BackgroundImages = []string{input.BackgroundImages[0], filepath.Join(dir, "gone.jpg")}
	if err := c.Prepare(ctx, &missing); !errors.As(err, &mismatch) {
		t.Errorf("missing file err = %v, want AssetMismatchError", err)
	}

	few := *input
	few.BackgroundImages = input.BackgroundImages[:1]
	if err := c.Prepare(ctx, &few); !errors.As(err, &mismatch) {
		t.Errorf("too few backgrounds err = %v, want AssetMismatchError", err)
	}
}

func TestRendererMockRender(t *testing.T) {
	c := NewRendererClient(&config.RendererConfig{Timeout: 10})
	if c.IsConfigured() {
		t.Fatal("client with no URL reports configured")
	}

	outputPath := filepath.Join(t.TempDir(), "out.mp4")
	progress := make(chan float64, 32)

	if err := c.Render(context.Background(), &model.CompositionInput{}, outputPath, progress); err != nil {
		t.Fatalf("Render: %v", err)
	}
	assertNonEmptyFile(t, outputPath)

	// The channel is closed on return and fractions never go backwards.
	last := 0.0
	for p := range progress {
		if p < last || p > 1 {
			t.Errorf("progress %v after %v out of order", p, last)
		}
		last = p
	}
	if last == 0 {
		t.Error("no progress reported")
	}
}

func assertNonEmptyFile(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	if info.Size() == 0 {
		t.Errorf("%s is empty", path)
	}
}
