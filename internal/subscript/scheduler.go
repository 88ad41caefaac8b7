// Package subscript runs deferred sub-scripts to completion in waves.
//
// A sub-script launched while wave N runs is queued for a later wave, so
// cascades unfold breadth-first and one Drain call returns only after every
// script it transitively launched has reported back to the coordinator.
package subscript

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/mephi42/gopob/internal/luart"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/mephi42/gopob/internal/subscript"

// ProgressImport is bound in every sub-script runtime.
const ProgressImport = "UpdateProgress"

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Runtime is the part of an embedded runtime a task needs.
type Runtime interface {
	SetGlobalFunction(name string, fn luart.Function) error
	Execute(code, chunkName string, args ...any) ([]any, error)
	Close()
}

// RuntimeFactory creates a fresh, isolated runtime for one task. ctx carries
// the task's span.
type RuntimeFactory func(ctx context.Context) (Runtime, error)

// Coordinator receives sub-script calls and outcomes.
type Coordinator interface {
	// OnSubCall handles a call to a bound import from inside a sub-script.
	OnSubCall(name string, args []any) ([]any, error)
	OnSubFinished(id int64, results []any) error
	OnSubError(id int64, message string) error
}

// Config configures a Scheduler.
type Config struct {
	NewRuntime  RuntimeFactory
	Coordinator Coordinator
	Logger      *log.Logger
	Verbose     bool
}

// Scheduler owns the pending queue and id counter for one engine.
// It is single-threaded.
type Scheduler struct {
	newRuntime  RuntimeFactory
	coordinator Coordinator
	logger      *log.Logger
	verbose     bool
	tracer      trace.Tracer

	nextID   int64
	pending  []*Task
	draining bool
	closed   bool
}

// New creates a scheduler.
func New(cfg Config) (*Scheduler, error) {
	if cfg.NewRuntime == nil {
		return nil, errors.New("runtime factory is required")
	}
	if cfg.Coordinator == nil {
		return nil, errors.New("coordinator is required")
	}
	return &Scheduler{
		newRuntime:  cfg.NewRuntime,
		coordinator: cfg.Coordinator,
		logger:      cfg.Logger,
		verbose:     cfg.Verbose,
		tracer:      otel.Tracer(tracerName),
	}, nil
}

// Launch queues code to run with args in a later wave and returns its id.
// Empty import names are ignored; other names must be identifiers.
func (s *Scheduler) Launch(code string, imports []string, args ...any) (int64, error) {
	if s.closed {
		return 0, errors.New("scheduler is closed")
	}
	names, err := normalizeImports(imports)
	if err != nil {
		return 0, err
	}
	s.nextID++
	task := &Task{
		ID:      s.nextID,
		Code:    code,
		Imports: names,
		Args:    args,
		Status:  StatusPending,
	}
	s.pending = append(s.pending, task)
	s.logf("sub-script %d queued (imports %s)", task.ID, strings.Join(names, ","))
	return task.ID, nil
}

// Pending reports how many tasks wait for the next wave.
func (s *Scheduler) Pending() int {
	return len(s.pending)
}

// DrainOnce runs one wave: the tasks pending when it is called. Tasks they
// launch wait for the next wave. It returns the wave size and the joined
// coordinator errors, which never stop sibling tasks.
func (s *Scheduler) DrainOnce(ctx context.Context) (int, error) {
	if s.draining {
		panic("subscript: reentrant drain")
	}
	s.draining = true
	defer func() { s.draining = false }()

	batch := s.pending
	s.pending = nil
	if len(batch) == 0 {
		return 0, nil
	}

	ctx, span := s.tracer.Start(ctx, "subscript.wave", trace.WithAttributes(attribute.Int("subscript.wave_size", len(batch))))
	defer span.End()
	s.logf("wave start: %d sub-scripts", len(batch))

	var errs []error
	for _, task := range batch {
		if err := s.run(ctx, task); err != nil {
			errs = append(errs, err)
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "coordinator callback failed")
	}
	s.logf("wave done: %d sub-scripts, %d queued", len(batch), len(s.pending))
	return len(batch), err
}

// Drain runs waves until nothing is pending.
func (s *Scheduler) Drain(ctx context.Context) error {
	var errs []error
	for {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		n, err := s.DrainOnce(ctx)
		if err != nil {
			errs = append(errs, err)
		}
		if n == 0 {
			break
		}
	}
	return errors.Join(errs...)
}

// Close discards pending tasks. Later launches fail.
func (s *Scheduler) Close() {
	s.closed = true
	s.pending = nil
}

func (s *Scheduler) run(ctx context.Context, task *Task) error {
	ctx, span := s.tracer.Start(ctx, "subscript.task", trace.WithAttributes(
		attribute.Int64("subscript.id", task.ID),
		attribute.StringSlice("subscript.imports", task.Imports),
	))
	defer span.End()

	task.Status = StatusRunning
	results, err := s.execute(ctx, task)
	if err != nil {
		task.Status = StatusFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logf("sub-script %d failed: %v", task.ID, err)
		if cbErr := s.coordinator.OnSubError(task.ID, err.Error()); cbErr != nil {
			return fmt.Errorf("report sub-script %d error: %w", task.ID, cbErr)
		}
		return nil
	}

	task.Status = StatusCompleted
	s.logf("sub-script %d finished with %d results", task.ID, len(results))
	if cbErr := s.coordinator.OnSubFinished(task.ID, results); cbErr != nil {
		return fmt.Errorf("report sub-script %d result: %w", task.ID, cbErr)
	}
	return nil
}

func (s *Scheduler) execute(ctx context.Context, task *Task) ([]any, error) {
	rt, err := s.newRuntime(ctx)
	if err != nil {
		return nil, fmt.Errorf("create runtime: %w", err)
	}
	defer rt.Close()

	for _, name := range task.bindings() {
		if err := rt.SetGlobalFunction(name, s.trampoline(name)); err != nil {
			return nil, fmt.Errorf("bind %s: %w", name, err)
		}
	}
	return rt.Execute(task.Code, fmt.Sprintf("=subscript#%d", task.ID), task.Args...)
}

func (s *Scheduler) trampoline(name string) luart.Function {
	return func(args []any) ([]any, error) {
		return s.coordinator.OnSubCall(name, args)
	}
}

func (s *Scheduler) logf(format string, args ...any) {
	if !s.verbose || s.logger == nil {
		return
	}
	s.logger.Printf(format, args...)
}

func normalizeImports(imports []string) ([]string, error) {
	seen := map[string]bool{}
	var names []string
	for _, name := range imports {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if !identifierPattern.MatchString(name) {
			return nil, fmt.Errorf("invalid import name %q", name)
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names, nil
}
