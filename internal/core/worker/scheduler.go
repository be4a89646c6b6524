// Package worker runs the watcher's periodic jobs.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is a unit of periodic work. Exactly one of Interval or Daily is used:
// Daily jobs run once per UTC day at Hour:Minute.
type Job struct {
	Name       string
	Interval   time.Duration
	Daily      bool
	Hour       int
	Minute     int
	RunAtStart bool
	Fn         func(ctx context.Context)
}

// Scheduler runs jobs until its context is canceled. A job never overlaps
// with itself; a tick that arrives while it is still running is dropped.
type Scheduler struct {
	jobs []Job
	log  *slog.Logger
	now  func() time.Time

	mu      sync.RWMutex
	lastRun map[string]time.Time
}

// NewScheduler creates a scheduler for jobs.
func NewScheduler(jobs ...Job) *Scheduler {
	return &Scheduler{
		jobs:    jobs,
		log:     slog.Default().With("component", "scheduler"),
		now:     time.Now,
		lastRun: make(map[string]time.Time),
	}
}

// Run blocks until ctx is done and every job has returned.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, j := range s.jobs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if j.Daily {
				s.runDaily(ctx, j)
			} else {
				s.runInterval(ctx, j)
			}
		}()
	}
	wg.Wait()
}

// LastRun returns when job name last finished.
func (s *Scheduler) LastRun(name string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.lastRun[name]
	return t, ok
}

func (s *Scheduler) exec(ctx context.Context, j Job) {
	start := time.Now()
	s.log.Debug("running job", "job", j.Name)
	j.Fn(ctx)
	s.mu.Lock()
	s.lastRun[j.Name] = s.now().UTC()
	s.mu.Unlock()
	s.log.Debug("job finished", "job", j.Name, "duration", time.Since(start))
}

func (s *Scheduler) runInterval(ctx context.Context, j Job) {
	if j.Interval <= 0 {
		s.log.Warn("job has no interval, not scheduled", "job", j.Name)
		return
	}
	if j.RunAtStart {
		s.exec(ctx, j)
	}

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.exec(ctx, j)
		}
	}
}

func (s *Scheduler) runDaily(ctx context.Context, j Job) {
	if j.RunAtStart {
		s.exec(ctx, j)
	}
	for {
		next := NextDaily(s.now(), j.Hour, j.Minute)
		s.log.Info("next daily run", "job", j.Name, "at", next.Format(time.RFC3339))
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.exec(ctx, j)
		}
	}
}

// NextDaily returns the next UTC time strictly after now at hour:minute.
func NextDaily(now time.Time, hour, minute int) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
