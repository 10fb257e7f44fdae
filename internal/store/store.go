package store

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quizreel/api/internal/model"
)

// ErrNotFound is returned when a job ID is unknown or already expired.
var ErrNotFound = errors.New("job not found")

// StatusUpdate is a partial in-place update of a job record. Nil fields
// are left untouched.
type StatusUpdate struct {
	Status      model.JobStatus
	Error       *string
	Progress    *int
	CurrentStep *string
}

// JobStore is the in-process registry of video jobs. Records are not
// persisted anywhere; losing them on restart is an accepted trade.
// A single lock over the map is enough at the contention this service
// sees (one writer goroutine per job, occasional pollers).
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*model.VideoJob
}

// NewJobStore creates an empty store.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*model.VideoJob)}
}

// Create inserts a fresh pending record and returns its ID. The job is
// visible to Get from the moment this returns.
func (s *JobStore) Create(topic string, questions []model.Question) string {
	id := uuid.New().String()
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[id] = &model.VideoJob{
		ID:        id,
		Status:    model.JobStatusPending,
		Topic:     topic,
		Questions: questions,
		CreatedAt: now,
		UpdatedAt: now,
		Progress:  0,
	}
	return id
}

// Get returns a copy of the record so callers never alias live state.
func (s *JobStore) Get(id string) (*model.VideoJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *job
	return &cp, nil
}

// UpdateStatus applies a partial update. Unknown IDs are a no-op: the
// caller just created the job, so a miss only happens after a sweep
// raced the pipeline, and that must not blow up either side.
func (s *JobStore) UpdateStatus(id string, upd StatusUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return
	}
	// completed and failed are terminal; nothing moves a job out of them
	if job.Status.Terminal() {
		return
	}
	job.Status = upd.Status
	job.UpdatedAt = time.Now()
	if upd.Error != nil {
		job.Error = upd.Error
	}
	if upd.Progress != nil {
		job.Progress = *upd.Progress
	}
	if upd.CurrentStep != nil {
		job.CurrentStep = *upd.CurrentStep
	}
}

// SetAssets attaches the generated assets. Assets are written exactly
// once, after both generation stages succeed, and never mutated again.
func (s *JobStore) SetAssets(id string, assets *model.VideoAssets) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if job.Assets != nil {
		return errors.New("assets already set")
	}
	job.Assets = assets
	job.UpdatedAt = time.Now()
	return nil
}

// SetFilePath records the rendered output location.
func (s *JobStore) SetFilePath(id, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job, ok := s.jobs[id]; ok {
		job.FilePath = path
		job.UpdatedAt = time.Now()
	}
}

// Delete removes the record. Deleting a missing ID is fine.
func (s *JobStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
}

// List returns copies of all records, for the retention sweep.
func (s *JobStore) List() []*model.VideoJob {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.VideoJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		cp := *job
		out = append(out, &cp)
	}
	return out
}

// Len returns the number of live records.
func (s *JobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
