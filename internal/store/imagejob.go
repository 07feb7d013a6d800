package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateImageJob persists a queued job synchronously so the caller holds
// a durable job id before any submission is attempted.
func (s *Store) CreateImageJob(agentID, prompt, kind string) (*ImageJob, error) {
	now := time.Now().UTC()
	job := &ImageJob{
		ID:        uuid.NewString(),
		AgentID:   agentID,
		Prompt:    prompt,
		Kind:      kind,
		Status:    JobQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.db.Exec(
		`INSERT INTO image_jobs (id, agent_id, prompt, kind, status, result_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, '', ?, ?)`,
		job.ID, job.AgentID, job.Prompt, job.Kind, job.Status,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	); err != nil {
		return nil, fmt.Errorf("create image job: %w", err)
	}
	return job, nil
}

// GetImageJob returns the job by id, or (nil, nil) when unknown.
func (s *Store) GetImageJob(id string) (*ImageJob, error) {
	var j ImageJob
	var created, updated sql.NullString
	err := s.db.QueryRow(
		`SELECT id, agent_id, prompt, kind, status, result_url, created_at, updated_at
		 FROM image_jobs WHERE id = ?`, id).
		Scan(&j.ID, &j.AgentID, &j.Prompt, &j.Kind, &j.Status, &j.ResultURL, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get image job: %w", err)
	}
	if t := scanTime(created); t != nil {
		j.CreatedAt = *t
	}
	if t := scanTime(updated); t != nil {
		j.UpdatedAt = *t
	}
	return &j, nil
}

// MarkJobRunning transitions queued -> running. Returns false when the
// job was not queued (already claimed or terminal), which lets a
// duplicate queue delivery detect that another attempt owns the job.
func (s *Store) MarkJobRunning(id string) (bool, error) {
	res, err := s.db.Exec(
		`UPDATE image_jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		JobRunning, time.Now().UTC().Format(time.RFC3339Nano), id, JobQueued)
	if err != nil {
		return false, fmt.Errorf("mark job running: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// FinalizeImageJob writes a terminal status. The guard on the current
// status makes the write idempotent and keeps transitions monotonic:
// a job already terminal is never rewritten, and a failed finalize
// never carries a result URL.
func (s *Store) FinalizeImageJob(id, status, resultURL string) (bool, error) {
	if status != JobSucceeded && status != JobFailed {
		return false, fmt.Errorf("finalize image job: %q is not terminal", status)
	}
	if status == JobFailed {
		resultURL = ""
	}
	res, err := s.db.Exec(
		`UPDATE image_jobs SET status = ?, result_url = ?, updated_at = ?
		 WHERE id = ? AND status IN (?, ?)`,
		status, resultURL, time.Now().UTC().Format(time.RFC3339Nano),
		id, JobQueued, JobRunning)
	if err != nil {
		return false, fmt.Errorf("finalize image job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
