// Package pipeline defines the data sync jobs and the registry the CLI and
// scheduler run them through.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bcgov/wildsync/ago"
	"github.com/bcgov/wildsync/chefs"
	"github.com/bcgov/wildsync/config"
	"github.com/bcgov/wildsync/mailer"
	"github.com/bcgov/wildsync/metric"
	"github.com/bcgov/wildsync/ostore"
)

// Pipeline is a single scheduled sync job.
type Pipeline interface {
	// Name is the stable identifier used on the command line and in cron
	// schedule entries.
	Name() string

	// Description is a one-line summary for listings.
	Description() string

	// Run executes the job. A non-nil error marks the run failed.
	Run(ctx context.Context) error
}

// Deps carries the shared clients pipelines operate on. Fields a pipeline
// does not use may be nil.
type Deps struct {
	AGO    *ago.Client
	CHEFS  *chefs.Client
	Store  *ostore.Store
	Mailer mailer.Mailer
	Config *config.Config
	Logger *slog.Logger
}

// Registry holds the available pipelines by name.
type Registry struct {
	mu        sync.RWMutex
	pipelines map[string]Pipeline
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{pipelines: make(map[string]Pipeline)}
}

// Register adds a pipeline. Registering a duplicate name is an error.
func (r *Registry) Register(p Pipeline) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if name == "" {
		return fmt.Errorf("pipeline name cannot be empty")
	}
	if _, exists := r.pipelines[name]; exists {
		return fmt.Errorf("pipeline %s already registered", name)
	}
	r.pipelines[name] = p
	return nil
}

// Get returns the named pipeline.
func (r *Registry) Get(name string) (Pipeline, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.pipelines[name]
	if !ok {
		return nil, fmt.Errorf("unknown pipeline %s", name)
	}
	return p, nil
}

// Names returns the registered pipeline names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.pipelines))
	for name := range r.pipelines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns the registered pipelines in name order.
func (r *Registry) All() []Pipeline {
	names := r.Names()

	r.mu.RLock()
	defer r.mu.RUnlock()

	pipelines := make([]Pipeline, 0, len(names))
	for _, name := range names {
		pipelines = append(pipelines, r.pipelines[name])
	}
	return pipelines
}

// Runner executes pipelines with run IDs, duration logging, and metrics.
type Runner struct {
	registry *Registry
	recorder *metric.Recorder
	pusher   *metric.Pusher
	logger   *slog.Logger
}

// NewRunner wires a runner. Recorder and pusher may be nil to disable
// metrics.
func NewRunner(registry *Registry, recorder *metric.Recorder, pusher *metric.Pusher, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{registry: registry, recorder: recorder, pusher: pusher, logger: logger}
}

// Run executes the named pipeline once.
func (r *Runner) Run(ctx context.Context, name string) error {
	p, err := r.registry.Get(name)
	if err != nil {
		return err
	}

	runID := uuid.New().String()
	logger := r.logger.With("pipeline", name, "run_id", runID)
	logger.Info("Pipeline starting")

	start := time.Now()
	runErr := p.Run(ctx)
	duration := time.Since(start)

	if r.recorder != nil {
		r.recorder.ObserveRun(name, duration, runErr)
		if pushErr := r.pusher.Push(name); pushErr != nil {
			logger.Warn("Metrics push failed", "error", pushErr)
		}
	}

	if runErr != nil {
		logger.Error("Pipeline failed", "duration", duration, "error", runErr)
		return fmt.Errorf("pipeline %s: %w", name, runErr)
	}

	logger.Info("Pipeline complete", "duration", duration)
	return nil
}
