package worker

import (
	"sync"
	"time"

	"github.com/avito-tech/gravure/internal/domain"
	"github.com/avito-tech/gravure/internal/usecase/processor"

	"github.com/google/uuid"
)

// Job is one run of a task pipeline over one uploaded image. Done is
// optional; when set it fires exactly once with the job's Result.
type Job struct {
	ID        string
	ImageID   uint64
	ImagePath string
	Preset    string
	Task      string
	Pipeline  *processor.Pipeline
	Done      *domain.Completion
	Client    string

	SubmittedAt time.Time

	mu    sync.Mutex
	state domain.JobState
}

func NewJob(imageID uint64, imagePath, preset string, task processor.Task) *Job {
	return &Job{
		ID:        uuid.New().String(),
		ImageID:   imageID,
		ImagePath: imagePath,
		Preset:    preset,
		Task:      task.Name,
		Pipeline:  task.Pipeline,
	}
}

func (j *Job) State() domain.JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

func (j *Job) setState(s domain.JobState) {
	j.mu.Lock()
	j.state = s
	j.mu.Unlock()
}

// claim marks a fresh job as queued. A job can be submitted only once.
func (j *Job) claim() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != "" {
		return false
	}
	j.state = domain.JobQueued
	j.SubmittedAt = time.Now()
	return true
}

func (j *Job) release() {
	j.mu.Lock()
	j.state = ""
	j.mu.Unlock()
}

func (j *Job) result() domain.Result {
	return domain.Result{
		JobID:   j.ID,
		ImageID: j.ImageID,
		Preset:  j.Preset,
		Task:    j.Task,
		Client:  j.Client,
		Step:    -1,
	}
}
