package store

import (
	"errors"
	"testing"

	"github.com/quizreel/api/internal/model"
)

func testQuestions() []model.Question {
	return []model.Question{
		{Question: "Stolica Francji?", Answer: "Paryż"},
		{Question: "Stolica Japonii?", Answer: "Tokio"},
	}
}

func TestCreateIsImmediatelyVisible(t *testing.T) {
	s := NewJobStore()

	id := s.Create("Stolice Europy", testQuestions())
	if id == "" {
		t.Fatal("expected non-empty job ID")
	}

	job, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get after Create: %v", err)
	}
	if job.Status != model.JobStatusPending {
		t.Errorf("status = %s, want pending", job.Status)
	}
	if job.Progress != 0 {
		t.Errorf("progress = %d, want 0", job.Progress)
	}
	if job.Topic != "Stolice Europy" {
		t.Errorf("topic = %q", job.Topic)
	}
	if len(job.Questions) != 2 {
		t.Errorf("questions = %d, want 2", len(job.Questions))
	}
}

func TestGetUnknownID(t *testing.T) {
	s := NewJobStore()
	if _, err := s.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewJobStore()
	id := s.Create("Topic", testQuestions())

	job, _ := s.Get(id)
	job.Status = model.JobStatusFailed
	job.Progress = 99

	again, _ := s.Get(id)
	if again.Status != model.JobStatusPending || again.Progress != 0 {
		t.Error("mutating a returned job changed the stored record")
	}
}

func TestUpdateStatus(t *testing.T) {
	s := NewJobStore()
	id := s.Create("Topic", testQuestions())

	progress := 40
	step := "Synthesizing narration..."
	s.UpdateStatus(id, StatusUpdate{
		Status:      model.JobStatusProcessing,
		Progress:    &progress,
		CurrentStep: &step,
	})

	job, _ := s.Get(id)
	if job.Status != model.JobStatusProcessing {
		t.Errorf("status = %s, want processing", job.Status)
	}
	if job.Progress != 40 {
		t.Errorf("progress = %d, want 40", job.Progress)
	}
	if job.CurrentStep != step {
		t.Errorf("step = %q", job.CurrentStep)
	}
	if !job.UpdatedAt.After(job.CreatedAt) && !job.UpdatedAt.Equal(job.CreatedAt) {
		t.Error("UpdatedAt not advanced")
	}
}

func TestUpdateStatusUnknownIDIsNoOp(t *testing.T) {
	s := NewJobStore()
	s.UpdateStatus("nope", StatusUpdate{Status: model.JobStatusProcessing})
	if s.Len() != 0 {
		t.Error("update on unknown ID created a record")
	}
}

func TestTerminalStatesAreImmutable(t *testing.T) {
	s := NewJobStore()
	id := s.Create("Topic", testQuestions())

	errMsg := "provider unavailable"
	s.UpdateStatus(id, StatusUpdate{Status: model.JobStatusFailed, Error: &errMsg})

	progress := 50
	s.UpdateStatus(id, StatusUpdate{Status: model.JobStatusProcessing, Progress: &progress})

	job, _ := s.Get(id)
	if job.Status != model.JobStatusFailed {
		t.Errorf("status = %s, terminal state was overwritten", job.Status)
	}
	if job.Error == nil || *job.Error != errMsg {
		t.Error("failure reason lost")
	}
}

func TestSetAssetsExactlyOnce(t *testing.T) {
	s := NewJobStore()
	id := s.Create("Topic", testQuestions())

	assets := &model.VideoAssets{BackgroundImages: []string{"a.jpg", "b.jpg", "c.jpg"}}
	if err := s.SetAssets(id, assets); err != nil {
		t.Fatalf("first SetAssets: %v", err)
	}
	if err := s.SetAssets(id, assets); err == nil {
		t.Fatal("second SetAssets succeeded, want error")
	}

	job, _ := s.Get(id)
	if job.Assets == nil || len(job.Assets.BackgroundImages) != 3 {
		t.Error("assets not attached")
	}
}

func TestDelete(t *testing.T) {
	s := NewJobStore()
	id := s.Create("Topic", testQuestions())

	s.Delete(id)
	if _, err := s.Get(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("err after delete = %v, want ErrNotFound", err)
	}
	// Deleting again is fine.
	s.Delete(id)
}

func TestList(t *testing.T) {
	s := NewJobStore()
	s.Create("A", testQuestions())
	s.Create("B", testQuestions())

	jobs := s.List()
	if len(jobs) != 2 {
		t.Fatalf("len = %d, want 2", len(jobs))
	}
	jobs[0].Status = model.JobStatusFailed
	for _, j := range s.List() {
		if j.Status != model.JobStatusPending {
			t.Error("List leaked a mutable reference")
		}
	}
}
