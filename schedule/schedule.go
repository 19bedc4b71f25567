// Package schedule runs pipelines on cron schedules for long-lived
// deployments. Schedule entries come from configuration and are re-applied
// when the config file changes on disk.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/robfig/cron/v3"

	"github.com/bcgov/wildsync/pipeline"
)

// Scheduler owns the cron runner. Schedules are applied as a set; applying
// a new set replaces all previous entries.
type Scheduler struct {
	registry *pipeline.Registry
	runner   *pipeline.Runner
	logger   *slog.Logger

	cron    *cron.Cron
	entries []cron.EntryID
}

// New builds a scheduler. Overlapping runs of the same pipeline are
// skipped rather than queued, and panics inside a job are recovered.
func New(registry *pipeline.Registry, runner *pipeline.Runner, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	cronLog := &cronLogger{logger: logger.With("component", "cron")}
	return &Scheduler{
		registry: registry,
		runner:   runner,
		logger:   logger,
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cronLog),
			cron.Recover(cronLog),
		)),
	}
}

// Apply replaces the active schedule with the given pipeline-to-cron-spec
// entries. Unknown pipeline names and invalid specs are rejected before any
// entry is removed.
func (s *Scheduler) Apply(entries map[string]string) error {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	type job struct {
		name string
		spec string
	}
	jobs := make([]job, 0, len(names))
	for _, name := range names {
		if _, err := s.registry.Get(name); err != nil {
			return fmt.Errorf("schedule entry %s: %w", name, err)
		}
		spec := entries[name]
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("schedule entry %s: parse spec %q: %w", name, spec, err)
		}
		jobs = append(jobs, job{name: name, spec: spec})
	}

	for _, id := range s.entries {
		s.cron.Remove(id)
	}
	s.entries = s.entries[:0]

	for _, j := range jobs {
		name := j.name
		id, err := s.cron.AddFunc(j.spec, func() {
			if err := s.runner.Run(context.Background(), name); err != nil {
				s.logger.Error("Scheduled run failed", "pipeline", name, "error", err)
			}
		})
		if err != nil {
			return fmt.Errorf("schedule %s: %w", name, err)
		}
		s.entries = append(s.entries, id)
		s.logger.Info("Scheduled pipeline", "pipeline", name, "spec", j.spec)
	}
	return nil
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop stops scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// EntryCount returns the number of active schedule entries.
func (s *Scheduler) EntryCount() int { return len(s.entries) }

// cronLogger adapts slog to the cron logging interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Info(msg, keysAndValues...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...any) {
	args := append([]any{"error", err}, keysAndValues...)
	l.logger.Error(msg, args...)
}
