package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// StageState tracks a stage through its lifecycle. Stages start Pending
// (built but suspended) and end in exactly one of the three terminal states.
type StageState int

const (
	StagePending StageState = iota
	StageSucceeded
	StageFailed
	// StageCancelled means a dependency did not succeed, so the stage
	// never ran.
	StageCancelled
)

// String returns a human-readable name for the state.
func (s StageState) String() string {
	switch s {
	case StagePending:
		return "pending"
	case StageSucceeded:
		return "succeeded"
	case StageFailed:
		return "failed"
	}
	return "cancelled"
}

// Stage is one unit of work in a pipeline. Its function runs only after
// every dependency has succeeded.
type Stage struct {
	name  string
	deps  []*Stage
	fn    func(ctx context.Context) error
	state StageState
	err   error
}

// State returns the stage's current state.
func (s *Stage) State() StageState { return s.state }

// Err returns the stage's failure, or the dependency failure that cancelled
// it. Nil unless the stage is Failed or Cancelled.
func (s *Stage) Err() error { return s.err }

// Pipeline assembles stages suspended and runs them strictly serially in the
// order they were added. Dependencies must be added before their dependents,
// which makes insertion order a valid execution order.
type Pipeline struct {
	stages []*Stage
	log    *slog.Logger
	ran    bool
}

// NewPipeline returns an empty pipeline logging through log.
func NewPipeline(log *slog.Logger) *Pipeline {
	return &Pipeline{log: log}
}

// Add appends a suspended stage that runs after all of deps succeed. The
// returned stage can be used as a dependency for later stages.
func (p *Pipeline) Add(name string, fn func(ctx context.Context) error, deps ...*Stage) *Stage {
	s := &Stage{name: name, deps: deps, fn: fn}
	p.stages = append(p.stages, s)
	return s
}

// Run resumes the pipeline and executes every stage whose dependencies
// succeeded, one at a time. A stage failure cancels its dependents but does
// not stop independent stages; partial progress stands. Returns the joined
// errors of every failed stage, and nil when all stages succeeded. A
// pipeline runs at most once.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.ran {
		return errors.New("pipeline already ran")
	}
	p.ran = true

	var failed []error
	for _, s := range p.stages {
		if dep := blockedBy(s); dep != nil {
			s.state = StageCancelled
			s.err = fmt.Errorf("dependency %s %s: %w", dep.name, dep.state, dep.err)
			p.log.Debug("stage cancelled", "stage", s.name, "dependency", dep.name)
			continue
		}
		if err := ctx.Err(); err != nil {
			s.state = StageCancelled
			s.err = err
			failed = append(failed, fmt.Errorf("%s: %w", s.name, err))
			continue
		}

		p.log.Debug("stage starting", "stage", s.name)
		if err := s.fn(ctx); err != nil {
			s.state = StageFailed
			s.err = err
			failed = append(failed, fmt.Errorf("%s: %w", s.name, err))
			p.log.Warn("stage failed", "stage", s.name, "error", err)
			continue
		}
		s.state = StageSucceeded
		p.log.Debug("stage succeeded", "stage", s.name)
	}
	return errors.Join(failed...)
}

// blockedBy returns the first dependency that did not succeed, nil when the
// stage is clear to run.
func blockedBy(s *Stage) *Stage {
	for _, dep := range s.deps {
		if dep.state != StageSucceeded {
			return dep
		}
	}
	return nil
}
