// Package scheduler runs background sweeps on a tick loop with
// file-lock overlap prevention and per-category concurrency caps.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// JobCategory classifies jobs for semaphore-based concurrency limits.
type JobCategory string

const (
	CategoryLLM     JobCategory = "llm"
	CategoryDefault JobCategory = "default"
)

// Job is a schedulable sweep. Exactly one of Every or AtHour drives it:
// interval jobs run when Every has elapsed since the last run; at-hour
// jobs run once per day when the local hour in Timezone matches.
type Job struct {
	Name     string
	Category JobCategory
	Every    time.Duration
	AtHour   int
	Timezone string
	Fn       func(ctx context.Context, now time.Time)

	lastRun time.Time
}

// Config holds scheduler settings.
type Config struct {
	TickInterval   time.Duration
	MaxConcLLM     int
	MaxConcDefault int
	LockPath       string
}

// Scheduler manages job registration, tick dispatch, and concurrency.
type Scheduler struct {
	cfg        Config
	jobs       map[string]*Job
	mu         sync.RWMutex
	semaphores map[JobCategory]*Semaphore
	lock       *FileLock
	now        func() time.Time
}

// New creates a Scheduler.
func New(cfg Config) *Scheduler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 60 * time.Second
	}
	if cfg.MaxConcLLM <= 0 {
		cfg.MaxConcLLM = 2
	}
	if cfg.MaxConcDefault <= 0 {
		cfg.MaxConcDefault = 5
	}
	return &Scheduler{
		cfg:  cfg,
		jobs: make(map[string]*Job),
		semaphores: map[JobCategory]*Semaphore{
			CategoryLLM:     NewSemaphore(cfg.MaxConcLLM),
			CategoryDefault: NewSemaphore(cfg.MaxConcDefault),
		},
		lock: NewFileLock(cfg.LockPath),
		now:  time.Now,
	}
}

// Register adds a job to the scheduler.
func (s *Scheduler) Register(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.Name] = job
	slog.Info("Scheduler job registered", "name", job.Name, "category", job.Category)
}

// Run starts the tick loop. Blocks until context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("Scheduler started", "tick", s.cfg.TickInterval, "jobs", len(s.jobs))
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Scheduler stopped")
			return ctx.Err()
		case t := <-ticker.C:
			s.tick(ctx, t)
		}
	}
}

// tick acquires the global file lock, then dispatches due jobs.
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	if s.cfg.LockPath != "" {
		acquired, err := s.lock.TryLock()
		if err != nil {
			slog.Warn("Scheduler lock error", "error", err)
			return
		}
		if !acquired {
			slog.Debug("Scheduler tick skipped: lock held by another process")
			return
		}
		defer s.lock.Unlock()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, job := range s.jobs {
		if !s.due(job, now) {
			continue
		}
		job.lastRun = now
		s.dispatch(ctx, job, now)
	}
}

func (s *Scheduler) due(job *Job, now time.Time) bool {
	if job.Every > 0 {
		return job.lastRun.IsZero() || now.Sub(job.lastRun) >= job.Every
	}
	loc, err := time.LoadLocation(job.Timezone)
	if err != nil || job.Timezone == "" {
		loc = time.UTC
	}
	local := now.In(loc)
	if local.Hour() != job.AtHour {
		return false
	}
	// At most once per local day.
	return job.lastRun.IsZero() || job.lastRun.In(loc).YearDay() != local.YearDay() ||
		job.lastRun.In(loc).Year() != local.Year()
}

// dispatch runs the job on a goroutine if a semaphore slot is free.
func (s *Scheduler) dispatch(ctx context.Context, job *Job, now time.Time) {
	sem := s.semaphores[job.Category]
	if sem == nil {
		sem = s.semaphores[CategoryDefault]
	}
	if !sem.TryAcquire() {
		slog.Warn("Scheduler job skipped: concurrency limit", "job", job.Name, "category", job.Category)
		return
	}

	slog.Info("Scheduler dispatching job", "job", job.Name)
	go func() {
		defer sem.Release()
		job.Fn(ctx, now)
	}()
}
