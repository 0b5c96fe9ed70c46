package model

import (
	"encoding/json"
	"time"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether the status is one a job never leaves.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is the persisted record of one asynchronous extraction unit. The ID is
// assigned by the event dispatcher at send time, so dispatch and execution
// share a single correlation key.
type Job struct {
	ID        string          `json:"id"`
	OwnerID   *string         `json:"ownerId,omitempty"`
	Status    JobStatus       `json:"status"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// NewPendingJob builds the initial record created synchronously right after a
// successful dispatch, before the caller ever sees the job ID.
func NewPendingJob(id string, ownerID *string) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:        id,
		OwnerID:   ownerID,
		Status:    JobStatusPending,
		Data:      json.RawMessage(`[]`),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Product is one structured record extracted from a flyer. Products are owned
// entirely by their job's data array and have no lifecycle of their own.
type Product struct {
	Name                string `json:"name"`
	Description         string `json:"description,omitempty"`
	Price               string `json:"price,omitempty"`
	Limit               string `json:"limit,omitempty"`
	Group               string `json:"group,omitempty"`
	PhysicalDescription string `json:"physical_description,omitempty"`
}

// Artifact describes a downloadable deliverable produced by a finalize job
// when the build is configured to emit files instead of arrays.
type Artifact struct {
	FileURL  string `json:"file_url"`
	FileType string `json:"file_type"`
}
