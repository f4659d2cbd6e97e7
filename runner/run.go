// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package runner

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/born-ml/convnet/checkpoint"
	"github.com/born-ml/convnet/dataset"
	"github.com/born-ml/convnet/nn"
	"github.com/born-ml/convnet/optim"
	"github.com/born-ml/convnet/summary"
)

// Training cadence, in steps.
const (
	EvalEvery       = 1000
	CheckpointEvery = 250
	SummaryEvery    = 100
)

// Accuracies holds the accuracy nodes reported during a run. Nil nodes
// are skipped.
type Accuracies struct {
	Train      *nn.Accuracy
	Validation *nn.Accuracy
	Test       *nn.Accuracy
}

// Evaluate logs "{label} accuracy: 93.2%" for every non-nil node,
// averaged over Flags.EvalExamples examples.
func (r *Runner) Evaluate(ctx context.Context, acc Accuracies) error {
	for _, e := range []struct {
		label string
		op    *nn.Accuracy
	}{
		{"Train", acc.Train},
		{"Validation", acc.Validation},
		{"Test", acc.Test},
	} {
		if e.op == nil {
			continue
		}
		avg, err := r.AvgOp(ctx, e.op, r.Flags.EvalExamples)
		if err != nil {
			return fmt.Errorf("%s accuracy: %w", e.label, err)
		}
		r.logf("%s accuracy: %.1f%%", e.label, avg*100)
	}
	return nil
}

// RunTraining minimizes the loss of logits until its input runs out.
//
// Every 1000 steps the train and validation accuracies are reported;
// every 250 steps summaries are written, a checkpoint is saved and the
// cross-entropy logged; every 100 steps summaries are written. When the
// input is exhausted a final checkpoint is saved and all three accuracies
// are reported.
func (r *Runner) RunTraining(ctx context.Context, g *nn.Graph, logits *nn.Logits, acc Accuracies, name string, learningRate float32) error {
	optimizer, err := optim.New(r.Flags.Optimizer, learningRate)
	if err != nil {
		return err
	}
	loss := g.LossOp(logits)
	train := g.TrainOpWith(loss, optimizer)

	step := func(ctx context.Context, s *Session, step int) error {
		if step%EvalEvery == 0 {
			if err := r.Evaluate(ctx, Accuracies{Train: acc.Train, Validation: acc.Validation}); err != nil {
				return err
			}
		}

		if step%CheckpointEvery == 0 {
			values, err := s.WriteSummaries(ctx, step)
			if err != nil {
				return err
			}
			if err := s.Save(step); err != nil {
				return err
			}
			xentropy, _ := summary.Find(values, loss.Tag())
			r.logf("Cross Entropy: %.2g", xentropy)
		}

		if step%SummaryEvery == 0 {
			if _, err := s.WriteSummaries(ctx, step); err != nil {
				return err
			}
		}

		return train.Run(ctx)
	}

	after := func(ctx context.Context, s *Session, step int) error {
		r.logf("Done training for %d steps.", step)
		if err := s.Save(step); err != nil {
			return err
		}
		return r.Evaluate(ctx, acc)
	}

	return r.Run(ctx, g, name, step, after, SessionOptions{Loop: true, Optimizer: optimizer})
}

// RunEval restores the latest checkpoint of name and reports accuracies.
// The session logs under "eval".
func (r *Runner) RunEval(ctx context.Context, g *nn.Graph, acc Accuracies, name string) error {
	state, err := checkpoint.GetCheckpointState(r.CheckpointDir(name, false))
	if err != nil {
		return err
	}
	if state == nil {
		r.logf("No checkpoint for %s, evaluating initial weights", name)
	}
	after := func(ctx context.Context, _ *Session, _ int) error {
		return r.Evaluate(ctx, acc)
	}
	return r.Run(ctx, g, "eval", nil, after, SessionOptions{Checkpoint: state})
}

// RunPrediction writes sigmoid(logits) for every batch of the input to
// {DataDir}/{name}.csv, using the latest checkpoint of name. Row ids are
// step * BatchSize + offset + 1. Returns the number of rows written.
func (r *Runner) RunPrediction(ctx context.Context, g *nn.Graph, logits *nn.Logits, name string) (int, error) {
	state, err := checkpoint.GetCheckpointState(r.CheckpointDir(name, false))
	if err != nil {
		return 0, err
	}
	if state == nil {
		return 0, fmt.Errorf("prediction for %s: %w", name, checkpoint.ErrNoCheckpoint)
	}

	path := r.PredictionFile(name)
	file, err := os.Create(path) //nolint:gosec // path is built from the configured data dir
	if err != nil {
		return 0, fmt.Errorf("failed to create prediction file: %w", err)
	}
	defer file.Close()

	out := csv.NewWriter(file)
	if err := out.Write([]string{"id", "label"}); err != nil {
		return 0, err
	}

	written := 0
	step := func(ctx context.Context, _ *Session, step int) error {
		output, err := logits.Eval(ctx)
		if err != nil {
			return err
		}
		for i, p := range nn.Probabilities(output.Logits) {
			id := step*r.Flags.BatchSize + i + 1
			if err := out.Write([]string{strconv.Itoa(id), strconv.FormatFloat(float64(p), 'f', 2, 32)}); err != nil {
				return err
			}
		}
		out.Flush()
		written += output.Logits.NumElements()
		return out.Error()
	}
	after := func(context.Context, *Session, int) error {
		r.logf("Wrote %d predictions to %s", written, path)
		return nil
	}

	if err := r.Run(ctx, g, name, step, after, SessionOptions{Checkpoint: state, Loop: true}); err != nil {
		return written, err
	}
	out.Flush()
	if err := out.Error(); err != nil {
		return written, err
	}
	return written, file.Close()
}

// Inputs opens the named input for numEpochs epochs (0 = forever).
// Prediction inputs carry no labels.
type Inputs func(name string, numEpochs int, predict bool) (nn.Input, error)

// DatasetInputs serves inputs from ds.
func DatasetInputs(ds *dataset.Dataset) Inputs {
	return func(name string, numEpochs int, predict bool) (nn.Input, error) {
		in, err := ds.Inputs(name, numEpochs, predict)
		if err != nil {
			return nil, err
		}
		return in, nil
	}
}

// RunAll cleans up, trains (or only evaluates) net and writes Kaggle
// predictions.
//
// The graph holds one training logits node over totalEpochs epochs of
// the train input and accuracy nodes over endless train, validation and
// test inputs. Empty validation or test splits are skipped, as is
// prediction when there are no Kaggle images.
func (r *Runner) RunAll(ctx context.Context, net nn.Network, inputs Inputs, totalEpochs int, learningRate float32, name string, doTraining bool) error {
	if err := r.Cleanup(name, doTraining); err != nil {
		return err
	}
	if err := r.Setup(name); err != nil {
		return err
	}

	g := nn.NewGraph(nn.WithSeed(r.Flags.Seed), nn.WithWorkers(r.Flags.Workers))

	trainInput, err := inputs(dataset.Train, totalEpochs, false)
	if err != nil {
		return err
	}
	logits := g.Logits(net, trainInput, true)

	var acc Accuracies
	for _, e := range []struct {
		name string
		dst  **nn.Accuracy
	}{
		{dataset.Train, &acc.Train},
		{dataset.Validation, &acc.Validation},
		{dataset.Test, &acc.Test},
	} {
		input, err := inputs(e.name, 0, false)
		if errors.Is(err, dataset.ErrEmptyInput) {
			r.logf("No %s images, skipping %s accuracy", e.name, e.name)
			continue
		}
		if err != nil {
			return err
		}
		*e.dst = g.AccuracyOp(g.Logits(net, input, false), e.name)
	}

	if doTraining {
		err = r.RunTraining(ctx, g, logits, acc, name, learningRate)
	} else {
		err = r.RunEval(ctx, g, acc, name)
	}
	if err != nil {
		return err
	}

	kaggleInput, err := inputs(dataset.Kaggle, 1, true)
	if errors.Is(err, dataset.ErrEmptyInput) {
		r.logf("No kaggle images, skipping prediction")
		return nil
	}
	if err != nil {
		return err
	}
	_, err = r.RunPrediction(ctx, g, g.Logits(net, kaggleInput, false), name)
	return err
}
