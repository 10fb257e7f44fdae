package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/quizreel/api/internal/config"
	"github.com/quizreel/api/internal/model"
	"github.com/quizreel/api/internal/store"
)

const (
	TaskTypeVideoGenerate = "video:generate"
	TaskTypeCleanupSweep  = "cleanup:sweep"
)

// TaskEnqueuer is the slice of asynq.Client the service needs. Tests
// substitute a fake so submission stays queue-free.
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// VideoService owns the job lifecycle around the pipeline: record
// creation, queueing, disk layout, and cleanup. The pipeline itself
// runs in the worker.
type VideoService struct {
	jobs      *store.JobStore
	enqueuer  TaskEnqueuer
	outputDir string
	maxAge    time.Duration
}

// NewVideoService creates the service and ensures the output root exists.
func NewVideoService(jobs *store.JobStore, enqueuer TaskEnqueuer, storageCfg *config.StorageConfig, retentionCfg *config.RetentionConfig) *VideoService {
	if err := os.MkdirAll(storageCfg.OutputDir, 0o755); err != nil {
		log.Printf("Warning: failed to create output dir %s: %v", storageCfg.OutputDir, err)
	}
	return &VideoService{
		jobs:      jobs,
		enqueuer:  enqueuer,
		outputDir: storageCfg.OutputDir,
		maxAge:    time.Duration(retentionCfg.MaxAgeHours) * time.Hour,
	}
}

// CreateVideoJob registers a pending job and queues its pipeline run.
// It returns as soon as the task is enqueued; no generation work happens
// on this path. The record is inserted first so a poller sees "pending"
// the instant this returns.
func (s *VideoService) CreateVideoJob(ctx context.Context, req *model.GenerateVideoRequest) (*model.GenerateVideoResponse, error) {
	jobID := s.jobs.Create(req.Topic, req.Questions)

	payload := &model.VideoJobPayload{
		Topic:     req.Topic,
		Questions: req.Questions,
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	task, err := newVideoTask(jobID, payloadBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	// Failed jobs are never retried automatically; the caller resubmits.
	_, err = s.enqueuer.Enqueue(task,
		asynq.Queue("video"),
		asynq.MaxRetry(0),
		asynq.Timeout(30*time.Minute),
	)
	if err != nil {
		s.FailJob(jobID, "failed to queue generation: "+err.Error())
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	job, err := s.jobs.Get(jobID)
	if err != nil {
		return nil, err
	}

	return &model.GenerateVideoResponse{
		JobID:     jobID,
		Status:    job.Status,
		CreatedAt: job.CreatedAt,
	}, nil
}

// GetJob returns the raw record.
func (s *VideoService) GetJob(jobID string) (*model.VideoJob, error) {
	return s.jobs.Get(jobID)
}

// GetStatus returns the poller view of a job.
func (s *VideoService) GetStatus(jobID string) (*model.VideoStatusResponse, error) {
	job, err := s.jobs.Get(jobID)
	if err != nil {
		return nil, err
	}

	resp := &model.VideoStatusResponse{
		JobID:       job.ID,
		Status:      job.Status,
		Progress:    job.Progress,
		CurrentStep: job.CurrentStep,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
	}
	if job.Status == model.JobStatusCompleted {
		resp.DownloadURL = "/api/videos/download/" + job.ID
	}
	return resp, nil
}

// VideoFilePath returns the rendered file of a completed job.
func (s *VideoService) VideoFilePath(jobID string) (string, error) {
	job, err := s.jobs.Get(jobID)
	if err != nil {
		return "", err
	}
	if job.Status != model.JobStatusCompleted || job.FilePath == "" {
		return "", fmt.Errorf("job not completed")
	}
	return job.FilePath, nil
}

// AssetPath resolves one generated asset of a live job. The filename is
// reduced to its base name so the resolved path can never leave the
// job's own directory.
func (s *VideoService) AssetPath(jobID, filename string) (string, error) {
	if _, err := s.jobs.Get(jobID); err != nil {
		return "", err
	}

	name := filepath.Base(filepath.Clean(filename))
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return "", fmt.Errorf("invalid asset name")
	}

	dir := s.JobDir(jobID)
	path := filepath.Join(dir, name)
	if !strings.HasPrefix(path, filepath.Clean(dir)+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid asset name")
	}
	if _, err := os.Stat(path); err != nil {
		return "", store.ErrNotFound
	}
	return path, nil
}

// JobDir is the directory owning all of one job's files, derived
// deterministically from the ID. No two jobs ever share it.
func (s *VideoService) JobDir(jobID string) string {
	return filepath.Join(s.outputDir, jobID)
}

// OutputPath is the final video location inside the job directory.
func (s *VideoService) OutputPath(jobID string) string {
	return filepath.Join(s.JobDir(jobID), fmt.Sprintf("quiz-%s.mp4", jobID))
}

// UpdateProgress records pipeline progress (called by worker). The first
// update flips a pending job to processing.
func (s *VideoService) UpdateProgress(jobID string, progress int, step string) {
	s.jobs.UpdateStatus(jobID, store.StatusUpdate{
		Status:      model.JobStatusProcessing,
		Progress:    &progress,
		CurrentStep: &step,
	})
}

// SetAssets attaches generated assets exactly once (called by worker).
func (s *VideoService) SetAssets(jobID string, assets *model.VideoAssets) error {
	return s.jobs.SetAssets(jobID, assets)
}

// CompleteJob marks a job done with its rendered file (called by worker).
func (s *VideoService) CompleteJob(jobID, filePath string) {
	s.jobs.SetFilePath(jobID, filePath)
	progress := 100
	step := "Video ready for download"
	s.jobs.UpdateStatus(jobID, store.StatusUpdate{
		Status:      model.JobStatusCompleted,
		Progress:    &progress,
		CurrentStep: &step,
	})
}

// FailJob marks a job failed with its reason (called by worker).
func (s *VideoService) FailJob(jobID, errMsg string) {
	s.jobs.UpdateStatus(jobID, store.StatusUpdate{
		Status: model.JobStatusFailed,
		Error:  &errMsg,
	})
}

// CleanupAssets removes a job's directory, best-effort. The record
// stays; a failed job remains pollable until the sweep takes it.
func (s *VideoService) CleanupAssets(jobID string) {
	dir := s.JobDir(jobID)
	if err := os.RemoveAll(dir); err != nil {
		log.Printf("Failed to clean up assets for job %s: %v", jobID, err)
	}
}

// CleanupJob removes a job's files and its record.
func (s *VideoService) CleanupJob(jobID string) error {
	if _, err := s.jobs.Get(jobID); err != nil {
		return err
	}
	s.CleanupAssets(jobID)
	s.jobs.Delete(jobID)
	return nil
}

// CleanupOldJobs deletes every job older than the retention threshold:
// files first, then the record. Deletion is idempotent; a directory
// that is already gone is not an error. Errors on one job never stop
// the sweep for the rest.
func (s *VideoService) CleanupOldJobs(ctx context.Context) int {
	cutoff := time.Now().Add(-s.maxAge)
	removed := 0

	for _, job := range s.jobs.List() {
		select {
		case <-ctx.Done():
			return removed
		default:
		}
		if !job.CreatedAt.Before(cutoff) {
			continue
		}
		s.CleanupAssets(job.ID)
		s.jobs.Delete(job.ID)
		removed++
		log.Printf("Cleaned up expired job %s (created %s)", job.ID, job.CreatedAt.Format(time.RFC3339))
	}
	return removed
}

func newVideoTask(jobID string, payload []byte) (*asynq.Task, error) {
	taskPayload := map[string]interface{}{
		"jobId":   jobID,
		"payload": json.RawMessage(payload),
	}
	data, err := json.Marshal(taskPayload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeVideoGenerate, data), nil
}

// NewCleanupTask builds the retention sweep task for the scheduler.
func NewCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskTypeCleanupSweep, nil)
}
