// Package queue provides the durable Kafka-backed job queue. Delivery
// is at-least-once; every handler must be idempotent per job id.
package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Task names carried on the queue.
const (
	TaskProcessImageJob = "image_job.process"
	TaskImageUpdate     = "image_job.update"
)

// Task is one unit of background work.
type Task struct {
	Name       string            `json:"name"`
	Key        string            `json:"key"`
	Args       map[string]string `json:"args,omitempty"`
	EnqueuedAt time.Time         `json:"enqueued_at"`
}

// NewImageJobTask builds the task that hands a queued job to a worker.
func NewImageJobTask(jobID string) *Task {
	return &Task{
		Name:       TaskProcessImageJob,
		Key:        jobID,
		Args:       map[string]string{"job_id": jobID},
		EnqueuedAt: time.Now().UTC(),
	}
}

// NewImageUpdateTask builds the task carrying a provider push update.
func NewImageUpdateTask(jobID, status, url string) *Task {
	return &Task{
		Name:       TaskImageUpdate,
		Key:        jobID,
		Args:       map[string]string{"job_id": jobID, "status": status, "url": url},
		EnqueuedAt: time.Now().UTC(),
	}
}

// Encode serializes the task for the wire.
func (t *Task) Encode() ([]byte, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encode task: %w", err)
	}
	return data, nil
}

// DecodeTask parses a task off the wire.
func DecodeTask(data []byte) (*Task, error) {
	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	if t.Name == "" {
		return nil, fmt.Errorf("decode task: missing name")
	}
	return &t, nil
}
