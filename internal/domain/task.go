package domain

import "time"

type JobState string

const (
	JobQueued    JobState = "queued"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
	JobCancelled JobState = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// Result is the outcome of one job. Step is the index of the failing action,
// -1 when the failure happened before the pipeline started.
type Result struct {
	JobID      string
	ImageID    uint64
	Preset     string
	Task       string
	Client     string
	State      JobState
	Step       int
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

func (r Result) OK() bool {
	return r.State == JobCompleted
}

func (r Result) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// JobRecord is the persisted and published view of a Result.
type JobRecord struct {
	JobID      string    `json:"job_id"`
	ImageID    uint64    `json:"image_id"`
	Preset     string    `json:"preset"`
	Task       string    `json:"task"`
	Client     string    `json:"client,omitempty"`
	State      JobState  `json:"state"`
	Step       int       `json:"step"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

func NewJobRecord(r Result) JobRecord {
	rec := JobRecord{
		JobID:      r.JobID,
		ImageID:    r.ImageID,
		Preset:     r.Preset,
		Task:       r.Task,
		Client:     r.Client,
		State:      r.State,
		Step:       r.Step,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	}
	return rec
}
