// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"

	"github.com/google/uuid"

	"github.com/born-ml/convnet/checkpoint"
	"github.com/born-ml/convnet/config"
	"github.com/born-ml/convnet/dataset"
	"github.com/born-ml/convnet/internal/parallel"
	"github.com/born-ml/convnet/nn"
	"github.com/born-ml/convnet/optim"
	"github.com/born-ml/convnet/summary"
)

// Runner runs sessions with one set of flags.
type Runner struct {
	Flags  config.Flags
	Logger *log.Logger
}

// New creates a runner logging to stderr.
func New(flags config.Flags) *Runner {
	return &Runner{Flags: flags, Logger: log.New(os.Stderr, "", log.LstdFlags)}
}

func (r *Runner) logf(format string, args ...any) {
	if r.Logger != nil {
		r.Logger.Printf(format, args...)
	}
}

// Session is the state shared by the step and after functions of a run.
type Session struct {
	Graph     *nn.Graph
	Saver     *checkpoint.Saver
	Writer    *summary.Writer
	Summary   *summary.Merged
	Optimizer optim.Optimizer
	Name      string
	RunID     string

	runner *Runner
}

// Save writes a checkpoint of the graph (and optimizer) at step and flushes
// the summaries written so far.
func (s *Session) Save(step int) error {
	if _, err := s.Saver.Save(s.Graph.Store(), s.Optimizer, s.runner.checkpointPrefix(s.Name), int64(step)); err != nil {
		return err
	}
	return s.Writer.Flush()
}

// WriteSummaries evaluates the merged summaries and appends them at step.
func (s *Session) WriteSummaries(ctx context.Context, step int) ([]summary.Value, error) {
	values, err := s.Summary.Eval(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.Writer.AddSummary(values, int64(step)); err != nil {
		return nil, err
	}
	return values, nil
}

// StepFunc runs one iteration of a session loop.
type StepFunc func(ctx context.Context, s *Session, step int) error

// AfterFunc runs once when the loop ends, with the number of completed
// steps.
type AfterFunc func(ctx context.Context, s *Session, step int) error

// SessionOptions configures Run.
type SessionOptions struct {
	// Checkpoint, when set, is restored before the first step.
	Checkpoint *checkpoint.State
	// Loop calls the step function until the input runs out. Without it
	// only the after function runs, with step 0.
	Loop bool
	// Optimizer is saved with checkpoints and restored from them.
	Optimizer optim.Optimizer
}

// Run opens a session named name over g.
//
// The step function is called with step = 0, 1, ... until it returns an
// error wrapping dataset.ErrOutOfRange; after then receives the number of
// completed steps. Any other error ends the session. Every input attached
// to g is closed on return.
func (r *Runner) Run(ctx context.Context, g *nn.Graph, name string, step StepFunc, after AfterFunc, opts SessionOptions) (err error) {
	defer func() {
		if cerr := closeInputs(g); cerr != nil && err == nil {
			err = cerr
		}
	}()

	runID := uuid.NewString()
	saver := checkpoint.NewSaver()
	saver.RunID = runID

	writer, err := summary.Open(r.LogDir(name, false), runID)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := writer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if err := writer.AddGraph(g.Store().Describe()); err != nil {
		return err
	}

	r.logf("Session %s (run %s) on %s, %s", name, runID, g.BackendName(), parallel.Describe())

	if opts.Checkpoint != nil {
		info, err := checkpoint.Restore(opts.Checkpoint.ModelCheckpointPath, g.Store(), opts.Optimizer)
		if err != nil {
			return err
		}
		r.logf("Restored %s (step %d)", info.Path, info.Step)
	}

	s := &Session{
		Graph:     g,
		Saver:     saver,
		Writer:    writer,
		Summary:   g.Summaries().Merge(),
		Optimizer: opts.Optimizer,
		Name:      name,
		RunID:     runID,
		runner:    r,
	}

	if !opts.Loop {
		return after(ctx, s, 0)
	}
	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := step(ctx, s, i)
		if errors.Is(err, dataset.ErrOutOfRange) {
			return after(ctx, s, i)
		}
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
}

func closeInputs(g *nn.Graph) error {
	var errs []error
	for _, in := range g.Inputs() {
		if c, ok := in.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

// Evaluator is a node producing one scalar per evaluation.
type Evaluator interface {
	Eval(ctx context.Context) (float64, error)
}

// AvgOp averages op over ceil(numExamples / BatchSize) evaluations.
// numExamples <= 0 uses Flags.EvalExamples.
func (r *Runner) AvgOp(ctx context.Context, op Evaluator, numExamples int) (float64, error) {
	if numExamples <= 0 {
		numExamples = r.Flags.EvalExamples
	}
	numBatches := int(math.Ceil(float64(numExamples) / float64(max(r.Flags.BatchSize, 1))))
	if numBatches < 1 {
		numBatches = 1
	}

	var sum float64
	for i := 0; i < numBatches; i++ {
		v, err := op.Eval(ctx)
		if err != nil {
			return 0, err
		}
		sum += v
	}
	return sum / float64(numBatches), nil
}
