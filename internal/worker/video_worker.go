package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/quizreel/api/internal/client"
	"github.com/quizreel/api/internal/model"
	"github.com/quizreel/api/internal/service"
	"github.com/quizreel/api/internal/store"
	"github.com/quizreel/api/internal/timing"
	"github.com/quizreel/api/internal/websocket"
)

// providerConcurrency bounds the fan-out against each generative API so
// one job cannot open an unbounded number of upstream calls at once.
const providerConcurrency = 3

// VideoWorker runs the generation pipeline for one job at a time per
// task: backgrounds, narration, composition, render. All state flows
// through the video service; the worker owns no records of its own.
type VideoWorker struct {
	videoService *service.VideoService
	images       client.ImageGenerator
	speech       client.SpeechSynthesizer
	renderer     client.VideoRenderer
	hub          *websocket.Hub
}

// NewVideoWorker creates a new video pipeline worker
func NewVideoWorker(videoService *service.VideoService, images client.ImageGenerator, speech client.SpeechSynthesizer, renderer client.VideoRenderer, hub *websocket.Hub) *VideoWorker {
	return &VideoWorker{
		videoService: videoService,
		images:       images,
		speech:       speech,
		renderer:     renderer,
		hub:          hub,
	}
}

// ProcessTask handles one video:generate task
func (w *VideoWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var taskPayload struct {
		JobID   string          `json:"jobId"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(t.Payload(), &taskPayload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	jobID := taskPayload.JobID

	// Records don't survive a restart; a task whose record is gone has
	// nobody to report to and is dropped.
	if _, err := w.videoService.GetJob(jobID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Printf("Dropping task for unknown job %s (restarted process?)", jobID)
			return nil
		}
		return err
	}

	var payload model.VideoJobPayload
	if err := json.Unmarshal(taskPayload.Payload, &payload); err != nil {
		w.failJob(jobID, "Invalid payload")
		return fmt.Errorf("failed to unmarshal video payload: %w", err)
	}

	log.Printf("Starting video job: %s (%d questions)", jobID, len(payload.Questions))
	return w.process(ctx, jobID, &payload)
}

// process walks the stage ladder. Any stage error lands the job in
// failed with its assets cleaned up; nothing is retried.
func (w *VideoWorker) process(ctx context.Context, jobID string, payload *model.VideoJobPayload) error {
	w.updateProgress(jobID, 10, "Starting generation...")

	jobDir := w.videoService.JobDir(jobID)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		w.failJob(jobID, "failed to create job directory: "+err.Error())
		return err
	}

	w.updateProgress(jobID, 20, "Generating background images...")
	backgrounds, err := w.generateBackgrounds(ctx, payload, jobDir)
	if err != nil {
		w.failJob(jobID, err.Error())
		return err
	}

	w.updateProgress(jobID, 40, "Synthesizing narration...")
	audio, err := w.generateNarration(ctx, payload, jobDir)
	if err != nil {
		w.failJob(jobID, err.Error())
		return err
	}

	// Both stages succeeded; attach everything in one shot.
	assets := &model.VideoAssets{
		BackgroundImages: backgrounds,
		AudioFiles:       *audio,
	}
	if err := w.videoService.SetAssets(jobID, assets); err != nil {
		w.failJob(jobID, "failed to attach assets: "+err.Error())
		return err
	}

	w.updateProgress(jobID, 60, "Composing video...")
	sceneTiming := timing.Calculate(assets)
	input := &model.CompositionInput{
		Topic:            payload.Topic,
		Questions:        payload.Questions,
		BackgroundImages: assets.BackgroundImages,
		AudioFiles:       assets.AudioFiles,
		Timing:           sceneTiming,
	}
	log.Printf("Job %s composition: %d questions, %.2fs total", jobID, len(payload.Questions), timing.Total(sceneTiming))

	if err := w.renderer.Prepare(ctx, input); err != nil {
		w.failJob(jobID, err.Error())
		return err
	}

	w.updateProgress(jobID, 80, "Rendering video...")
	outputPath := w.videoService.OutputPath(jobID)

	// The renderer reports fractions on its own cadence; map them into
	// the 80-100 band as they arrive and close out when it finishes.
	progressCh := make(chan float64, 16)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for p := range progressCh {
			pct := 80 + int(p*20)
			if pct > 99 {
				pct = 99
			}
			w.updateProgress(jobID, pct, fmt.Sprintf("Rendering video... %d%%", int(p*100)))
		}
	}()

	renderErr := w.renderer.Render(ctx, input, outputPath, progressCh)
	<-drained
	if renderErr != nil {
		w.failJob(jobID, renderErr.Error())
		return renderErr
	}

	w.videoService.CompleteJob(jobID, outputPath)
	w.hub.BroadcastComplete(jobID, "/api/videos/download/"+jobID)
	log.Printf("Video job %s completed: %s", jobID, outputPath)
	return nil
}

// generateBackgrounds fans out one image per question plus the intro.
// The stage succeeds or fails as a unit: on any error every image the
// stage already produced is deleted before the error propagates.
func (w *VideoWorker) generateBackgrounds(ctx context.Context, payload *model.VideoJobPayload, jobDir string) ([]string, error) {
	results := make([]string, len(payload.Questions)+1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(providerConcurrency)

	g.Go(func() error {
		path, err := w.images.GenerateIntroBackground(gctx, payload.Topic, jobDir)
		if err != nil {
			return err
		}
		results[0] = path
		return nil
	})
	for i, q := range payload.Questions {
		i, q := i, q
		g.Go(func() error {
			path, err := w.images.GenerateQuestionBackground(gctx, q.Question, i, jobDir)
			if err != nil {
				return err
			}
			results[i+1] = path
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		removeFiles(results)
		return nil, err
	}
	return results, nil
}

// generateNarration fans out intro, outro, and one segment per question
// and answer, each carrying its measured duration. Same all-or-nothing
// cleanup as the background stage.
func (w *VideoWorker) generateNarration(ctx context.Context, payload *model.VideoJobPayload, jobDir string) (*model.AudioFiles, error) {
	n := len(payload.Questions)
	var intro, outro model.AudioWithDuration
	questions := make([]model.AudioWithDuration, n)
	answers := make([]model.AudioWithDuration, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(providerConcurrency)

	g.Go(func() error {
		a, err := w.speech.GenerateIntroAudio(gctx, payload.Topic, jobDir)
		if err != nil {
			return err
		}
		intro = a
		return nil
	})
	g.Go(func() error {
		a, err := w.speech.GenerateOutroAudio(gctx, jobDir)
		if err != nil {
			return err
		}
		outro = a
		return nil
	})
	for i, q := range payload.Questions {
		i, q := i, q
		g.Go(func() error {
			a, err := w.speech.GenerateQuestionAudio(gctx, q.Question, i, jobDir)
			if err != nil {
				return err
			}
			questions[i] = a
			return nil
		})
		g.Go(func() error {
			a, err := w.speech.GenerateAnswerAudio(gctx, q.Answer, i, jobDir)
			if err != nil {
				return err
			}
			answers[i] = a
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		paths := []string{intro.Path, outro.Path}
		for _, a := range questions {
			paths = append(paths, a.Path)
		}
		for _, a := range answers {
			paths = append(paths, a.Path)
		}
		removeFiles(paths)
		return nil, err
	}

	return &model.AudioFiles{
		Intro:     &intro,
		Questions: questions,
		Answers:   answers,
		Outro:     &outro,
	}, nil
}

// removeFiles deletes stage output after a partial failure, best-effort
func removeFiles(paths []string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.Printf("Failed to clean up partial asset %s: %v", p, err)
		}
	}
}

func (w *VideoWorker) updateProgress(jobID string, progress int, step string) {
	w.videoService.UpdateProgress(jobID, progress, step)
	w.hub.BroadcastProgress(jobID, progress, model.JobStatusProcessing, step)
}

// failJob records the terminal failure, then cleans up whatever assets
// exist. Cleanup problems are logged only; the original failure reason
// is what the job keeps.
func (w *VideoWorker) failJob(jobID, errMsg string) {
	w.videoService.FailJob(jobID, errMsg)
	w.hub.BroadcastError(jobID, "JOB_FAILED", errMsg)
	w.videoService.CleanupAssets(jobID)
	log.Printf("Video job %s failed: %s", jobID, errMsg)
}
