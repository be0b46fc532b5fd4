// Package scheduler runs the periodic holiday refresh.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "matai/internal/log"
)

// cronLogger routes cron's own logging through the app logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...any) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...any) {
	appLog.Error("cron: "+msg, err, kv...)
}

// Scheduler runs one job at start and then on a cron schedule. Runs never
// overlap; a tick that arrives while the job is running is skipped.
type Scheduler struct {
	cron *cron.Cron
	job  cron.Job

	// runs tracks jobs started outside the cron loop.
	runs sync.WaitGroup
}

// New parses a standard five-field spec (or a descriptor such as
// "@hourly") evaluated in loc.
func New(ctx context.Context, spec string, loc *time.Location, job func(context.Context)) (*Scheduler, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parsing refresh schedule %q: %w", spec, err)
	}

	logger := cronLogger{}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
	)

	wrapped := cron.NewChain(
		cron.Recover(logger),
		cron.SkipIfStillRunning(logger),
	).Then(cron.FuncJob(func() {
		start := time.Now()
		job(ctx)
		appLog.Info("scheduled refresh finished", "elapsed", time.Since(start).Round(time.Millisecond).String())
	}))

	c.Schedule(sched, wrapped)
	return &Scheduler{cron: c, job: wrapped}, nil
}

// Start triggers an immediate run in the background and starts the
// schedule.
func (s *Scheduler) Start() {
	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		s.job.Run()
	}()
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		appLog.Info("refresh scheduled", "next", e.Next.Format(time.RFC3339))
	}
}

// RunNow runs the job synchronously unless a run is in progress.
func (s *Scheduler) RunNow() {
	s.runs.Add(1)
	defer s.runs.Done()
	s.job.Run()
}

// Stop halts the schedule and waits for running jobs, including the one
// started by Start, to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	cronDone := s.cron.Stop()
	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.runs.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		appLog.Warn("scheduler stop timed out")
	}
}
