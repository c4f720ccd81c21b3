package dto

import "time"

type UploadResponse struct {
	ImageID uint64        `json:"image_id"`
	Preset  string        `json:"preset"`
	Done    bool          `json:"done"`
	Jobs    []JobResponse `json:"jobs"`
}

type JobResponse struct {
	ID         string `json:"id"`
	Task       string `json:"task"`
	State      string `json:"state"`
	URL        string `json:"url,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
}

type JobsResponse struct {
	ImageID uint64          `json:"image_id"`
	Jobs    []JobRecordView `json:"jobs"`
}

type JobRecordView struct {
	ID         string    `json:"id"`
	ImageID    uint64    `json:"image_id"`
	Preset     string    `json:"preset"`
	Task       string    `json:"task"`
	Client     string    `json:"client,omitempty"`
	State      string    `json:"state"`
	Step       int       `json:"step"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// PartialUploadResponse lists the jobs that were queued before submission
// stopped. They run to completion even though the request failed.
type PartialUploadResponse struct {
	ErrorResponse
	Accepted []JobResponse `json:"accepted"`
}
