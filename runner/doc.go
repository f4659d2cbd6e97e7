// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package runner drives training, evaluation and prediction sessions.
//
// A session restores the latest checkpoint when asked, opens the run's
// summary store and calls a step function until the input reports
// dataset.ErrOutOfRange. During training, at every step s (before its
// update):
//
//   - s % 1000 == 0: report train and validation accuracy
//   - s % 250 == 0: write summaries, save a checkpoint, log cross-entropy
//   - s % 100 == 0: write summaries
//
// Files live under
//
//	{LogDir}/{name}/events.db
//	{CheckpointDir}/{name}/{name}-{step}
//	{DataDir}/{name}.csv
//
// RunAll ties everything together:
//
//	r := runner.New(flags)
//	err := r.RunAll(ctx, net, runner.DatasetInputs(ds), 10, 0.001, "catsdogs", true)
package runner
