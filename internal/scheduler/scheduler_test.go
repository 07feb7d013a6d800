package scheduler

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestDueIntervalJob(t *testing.T) {
	s := New(Config{})
	job := &Job{Name: "sweep", Every: time.Hour}
	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	if !s.due(job, base) {
		t.Error("never-run interval job should be due")
	}
	job.lastRun = base
	if s.due(job, base.Add(30*time.Minute)) {
		t.Error("job due again before the interval elapsed")
	}
	if !s.due(job, base.Add(time.Hour)) {
		t.Error("job not due after the interval elapsed")
	}
}

func TestDueAtHourJobOncePerLocalDay(t *testing.T) {
	s := New(Config{})
	job := &Job{Name: "daily", AtHour: 8}

	before := time.Date(2026, 6, 1, 7, 59, 0, 0, time.UTC)
	if s.due(job, before) {
		t.Error("due before the configured hour")
	}

	at := time.Date(2026, 6, 1, 8, 5, 0, 0, time.UTC)
	if !s.due(job, at) {
		t.Error("not due at the configured hour")
	}
	job.lastRun = at

	later := time.Date(2026, 6, 1, 8, 45, 0, 0, time.UTC)
	if s.due(job, later) {
		t.Error("due twice in the same local day")
	}

	nextDay := time.Date(2026, 6, 2, 8, 5, 0, 0, time.UTC)
	if !s.due(job, nextDay) {
		t.Error("not due the next day")
	}
}

func TestDueAtHourJobBadTimezoneFallsBackToUTC(t *testing.T) {
	s := New(Config{})
	job := &Job{Name: "daily", AtHour: 8, Timezone: "Not/AZone"}
	at := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	if !s.due(job, at) {
		t.Error("bad timezone should degrade to UTC")
	}
}

func TestTickDispatchesDueJobs(t *testing.T) {
	s := New(Config{LockPath: filepath.Join(t.TempDir(), "sched.lock")})

	var mu sync.Mutex
	ran := 0
	done := make(chan struct{}, 1)
	s.Register(&Job{
		Name:  "sweep",
		Every: time.Hour,
		Fn: func(ctx context.Context, now time.Time) {
			mu.Lock()
			ran++
			mu.Unlock()
			done <- struct{}{}
		},
	})

	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	s.tick(context.Background(), now)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}

	// Same instant again: not due.
	s.tick(context.Background(), now)
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if ran != 1 {
		t.Errorf("ran = %d, want 1", ran)
	}
}

func TestSemaphoreLimitsConcurrency(t *testing.T) {
	sem := NewSemaphore(2)
	if !sem.TryAcquire() || !sem.TryAcquire() {
		t.Fatal("expected two slots")
	}
	if sem.TryAcquire() {
		t.Error("third acquire succeeded past the limit")
	}
	sem.Release()
	if !sem.TryAcquire() {
		t.Error("slot not reusable after release")
	}
}

func TestFileLockExcludes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lock")
	a := NewFileLock(path)
	b := NewFileLock(path)

	got, err := a.TryLock()
	if err != nil || !got {
		t.Fatalf("first lock = (%v, %v), want (true, nil)", got, err)
	}
	got, err = b.TryLock()
	if err != nil {
		t.Fatal(err)
	}
	if got {
		t.Error("second lock acquired while first is held")
	}
	if err := a.Unlock(); err != nil {
		t.Fatal(err)
	}
	got, err = b.TryLock()
	if err != nil || !got {
		t.Errorf("lock not acquirable after unlock: (%v, %v)", got, err)
	}
	b.Unlock()
}
