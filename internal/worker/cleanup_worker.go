package worker

import (
	"context"
	"log"

	"github.com/hibiken/asynq"

	"github.com/quizreel/api/internal/service"
)

// CleanupWorker processes the periodic retention sweep.
type CleanupWorker struct {
	videoService *service.VideoService
}

// NewCleanupWorker creates a new retention sweep worker
func NewCleanupWorker(videoService *service.VideoService) *CleanupWorker {
	return &CleanupWorker{videoService: videoService}
}

// ProcessTask handles one cleanup:sweep task. The sweep is idempotent;
// running it twice back to back changes nothing the second time.
func (w *CleanupWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	removed := w.videoService.CleanupOldJobs(ctx)
	if removed > 0 {
		log.Printf("Retention sweep removed %d expired jobs", removed)
	}
	return nil
}
