// Package queue carries segmentation jobs between the enqueuing CLI and the
// worker pool.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// JobTypeSegmentFile asks a worker to classify, extract and chunk one file.
const JobTypeSegmentFile = "segment_file"

// Job is the envelope stored in the queue.
type Job struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
}

// SegmentJob is the payload of a segment_file job. MIME and Coarse may be
// empty, in which case the worker detects them from the path.
type SegmentJob struct {
	Path   string `json:"path"`
	MIME   string `json:"mime,omitempty"`
	Coarse string `json:"coarse,omitempty"`
	FileID string `json:"file_id,omitempty"`
}

// NewSegmentJob wraps a SegmentJob in a Job envelope.
func NewSegmentJob(sj SegmentJob) (Job, error) {
	if sj.Path == "" {
		return Job{}, fmt.Errorf("segment job requires a path")
	}
	payload, err := json.Marshal(sj)
	if err != nil {
		return Job{}, fmt.Errorf("failed to marshal segment job: %w", err)
	}
	return Job{Type: JobTypeSegmentFile, Payload: payload, CreatedAt: time.Now().UTC()}, nil
}

// DecodeSegmentJob unpacks the payload of a segment_file job.
func DecodeSegmentJob(job Job) (SegmentJob, error) {
	if job.Type != JobTypeSegmentFile {
		return SegmentJob{}, fmt.Errorf("unexpected job type %q", job.Type)
	}
	var sj SegmentJob
	if err := json.Unmarshal(job.Payload, &sj); err != nil {
		return SegmentJob{}, fmt.Errorf("failed to unmarshal segment job: %w", err)
	}
	if sj.Path == "" {
		return SegmentJob{}, fmt.Errorf("segment job has no path")
	}
	return sj, nil
}

// Queue defines the interface for job queues.
type Queue interface {
	// Enqueue adds a job to the queue.
	Enqueue(ctx context.Context, job Job) error

	// Dequeue blocks until a job is available, then returns it.
	// Returns an error if the context is cancelled or if the operation fails.
	Dequeue(ctx context.Context) (Job, error)
}

// MemoryQueue is an in-process Queue backed by a buffered channel. It is used
// when no Redis instance is configured.
type MemoryQueue struct {
	jobs chan Job
}

// NewMemoryQueue creates a MemoryQueue holding up to size pending jobs.
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 64
	}
	return &MemoryQueue{jobs: make(chan Job, size)}
}

// Enqueue implements Queue. It blocks while the buffer is full.
func (m *MemoryQueue) Enqueue(ctx context.Context, job Job) error {
	select {
	case m.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue implements Queue.
func (m *MemoryQueue) Dequeue(ctx context.Context) (Job, error) {
	select {
	case job := <-m.jobs:
		return job, nil
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

// Len returns the number of pending jobs.
func (m *MemoryQueue) Len() int {
	return len(m.jobs)
}
