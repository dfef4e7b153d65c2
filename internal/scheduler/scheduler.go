package scheduler

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DefaultSweepSpec evicts idle sessions every ten minutes.
const DefaultSweepSpec = "@every 10m"

// Reloader re-reads knowledge files from disk.
type Reloader interface {
	Reload()
}

// Sweeper evicts expired sessions and returns how many were removed.
type Sweeper interface {
	Sweep() int
}

// Options configures the background jobs. Empty specs disable a job.
type Options struct {
	ReloadSpec string
	SweepSpec  string
}

// Scheduler runs periodic maintenance next to the HTTP server.
type Scheduler struct {
	cron   *cron.Cron
	logger logrus.FieldLogger
	jobs   int
}

// New registers the jobs described by opts. Invalid cron specs are rejected.
func New(reloader Reloader, sweeper Sweeper, opts Options, logger logrus.FieldLogger) (*Scheduler, error) {
	log := logger.WithField("component", "scheduler")
	s := &Scheduler{
		cron:   cron.New(cron.WithChain(cron.Recover(cron.PrintfLogger(log)))),
		logger: log,
	}

	if opts.ReloadSpec != "" && reloader != nil {
		if _, err := s.cron.AddFunc(opts.ReloadSpec, func() { s.reload(reloader) }); err != nil {
			return nil, fmt.Errorf("invalid knowledge reload spec %q: %w", opts.ReloadSpec, err)
		}
		s.jobs++
	}

	if opts.SweepSpec != "" && sweeper != nil {
		if _, err := s.cron.AddFunc(opts.SweepSpec, func() { s.sweep(sweeper) }); err != nil {
			return nil, fmt.Errorf("invalid session sweep spec %q: %w", opts.SweepSpec, err)
		}
		s.jobs++
	}

	return s, nil
}

// Jobs returns how many jobs are registered.
func (s *Scheduler) Jobs() int {
	return s.jobs
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) reload(reloader Reloader) {
	reloader.Reload()
	s.logger.Debug("knowledge reloaded")
}

func (s *Scheduler) sweep(sweeper Sweeper) {
	if removed := sweeper.Sweep(); removed > 0 {
		s.logger.WithField("removed", removed).Info("expired sessions evicted")
	}
}
