// Package scheduler fires the daily reminder run on a cron schedule.
//
// Overlap policy is skip-if-running: when a run is still in progress at the
// next fire time, that fire is dropped. Individual sends are idempotent
// through the notification log, so no run-level lock is kept beyond that.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Config configures a Scheduler.
type Config struct {
	// Spec is a five-field cron expression or descriptor such as "@daily".
	Spec string
	// Timezone is an IANA zone name; empty means UTC.
	Timezone string
	// RunTimeout bounds a single run; zero disables the bound.
	RunTimeout time.Duration
}

// Scheduler runs a Job on a cron schedule.
type Scheduler struct {
	mu sync.Mutex

	cfg    Config
	name   string
	job    Job
	loc    *time.Location
	sched  cron.Schedule
	c      *cron.Cron
	cancel context.CancelFunc
}

// New validates cfg and creates a stopped Scheduler.
func New(name string, cfg Config, job Job) (*Scheduler, error) {
	loc := time.UTC
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
		}
		loc = l
	}

	sched, err := parser().Parse(cfg.Spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", cfg.Spec, err)
	}

	return &Scheduler{
		cfg:   cfg,
		name:  name,
		job:   job,
		loc:   loc,
		sched: sched,
	}, nil
}

func parser() cron.Parser {
	return cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
}

// Location returns the time zone the schedule is evaluated in.
func (s *Scheduler) Location() *time.Location { return s.loc }

// Start begins firing the job. Runs inherit ctx; Stop cancels them.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	cronLog := cron.PrintfLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelInfo))
	s.c = cron.New(
		cron.WithLocation(s.loc),
		cron.WithParser(parser()),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	s.c.Schedule(s.sched, cron.FuncJob(func() { s.RunOnce(runCtx) }))
	s.c.Start()

	slog.Info("scheduler started",
		"job", s.name,
		"spec", s.cfg.Spec,
		"tz", s.loc.String(),
		"next", s.Next(time.Now()),
	)
}

// Stop halts the schedule, cancels an in-flight run and waits for it to return
// or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	c, cancel := s.c, s.cancel
	s.c, s.cancel = nil, nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	stopped := c.Stop()
	cancel()

	select {
	case <-stopped.Done():
		slog.Info("scheduler stopped", "job", s.name)
	case <-ctx.Done():
		slog.Warn("scheduler stop timed out", "job", s.name, "error", ctx.Err())
	}
}

// Next returns the next fire time after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.sched.Next(t.In(s.loc))
}

// RunOnce executes the job immediately in the caller's goroutine, applying
// the configured run timeout and logging the outcome.
func (s *Scheduler) RunOnce(ctx context.Context) {
	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}

	start := time.Now()
	slog.Info("scheduled job started", "job", s.name)
	if err := s.job(ctx); err != nil {
		slog.Error("scheduled job failed", "job", s.name, "duration", time.Since(start), "error", err)
		return
	}
	slog.Info("scheduled job finished", "job", s.name, "duration", time.Since(start))
}
