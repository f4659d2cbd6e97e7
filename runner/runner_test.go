// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package runner_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/convnet/checkpoint"
	"github.com/born-ml/convnet/config"
	"github.com/born-ml/convnet/dataset"
	"github.com/born-ml/convnet/nn"
	"github.com/born-ml/convnet/runner"
	"github.com/born-ml/convnet/summary"
	"github.com/born-ml/convnet/tensor"
)

// fakeInput serves copies of one batch; remaining < 0 never runs out.
type fakeInput struct {
	batch     *dataset.Batch
	remaining int
	closed    bool
}

func (f *fakeInput) Next(context.Context) (*dataset.Batch, error) {
	if f.remaining == 0 || f.closed {
		return nil, dataset.ErrOutOfRange
	}
	if f.remaining > 0 {
		f.remaining--
	}
	return f.batch, nil
}

func (f *fakeInput) Close() error {
	f.closed = true
	return nil
}

func newBatch(t *testing.T, n int, predict bool) *dataset.Batch {
	t.Helper()
	images := make([]float32, 0, n*4)
	labels := make([]float32, n)
	ids := make([]int, n)
	for i := 0; i < n; i++ {
		v := float32(1)
		if i%2 == 1 {
			v = -1
		}
		images = append(images, v, v, v, v)
		if v > 0 {
			labels[i] = 1
		}
		ids[i] = i + 1
	}
	x, err := tensor.FromSlice(images, tensor.Shape{n, 2, 2, 1})
	require.NoError(t, err)
	batch := &dataset.Batch{Images: x, IDs: ids}
	if !predict {
		batch.Labels, err = tensor.FromSlice(labels, tensor.Shape{n, 1})
		require.NoError(t, err)
	}
	return batch
}

type linearNet struct{}

func (linearNet) Name() string   { return "linear" }
func (linearNet) String() string { return "fc(1)" }

func (linearNet) Forward(g *nn.Graph, images *tensor.Tensor, _ bool) (*tensor.Tensor, error) {
	flat := g.Flatten(images)
	return g.FCOp(flat, flat.Shape()[1], 1, "fc", nn.WithReLU(false)), nil
}

type evaluatorFunc func(context.Context) (float64, error)

func (f evaluatorFunc) Eval(ctx context.Context) (float64, error) { return f(ctx) }

func newRunner(t *testing.T) (*runner.Runner, *bytes.Buffer) {
	t.Helper()
	root := t.TempDir()
	flags := config.Default()
	flags.LogDir = filepath.Join(root, "logs")
	flags.CheckpointDir = filepath.Join(root, "checkpoints")
	flags.DataDir = filepath.Join(root, "data")
	flags.BatchSize = 4
	flags.EvalExamples = 8
	flags.Workers = 1
	require.NoError(t, os.MkdirAll(flags.DataDir, 0o750))

	var logs bytes.Buffer
	r := runner.New(flags)
	r.Logger = log.New(&logs, "", 0)
	return r, &logs
}

func TestDirs(t *testing.T) {
	r := runner.New(config.Flags{LogDir: "logs", CheckpointDir: "ckpt", DataDir: "data"})
	assert.Equal(t, filepath.Join("logs", "cnn"), r.LogDir("cnn", false))
	assert.Equal(t, filepath.Join("logs", "cnn", "*"), r.LogDir("cnn", true))
	assert.Equal(t, filepath.Join("ckpt", "cnn"), r.CheckpointDir("cnn", false))
	assert.Equal(t, filepath.Join("ckpt", "cnn", "*"), r.CheckpointDir("cnn", true))
	assert.Equal(t, filepath.Join("data", "cnn.csv"), r.PredictionFile("cnn"))
}

func TestCreateIfNeeded(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a", "b")
	require.NoError(t, runner.CreateIfNeeded(path))
	assert.DirExists(t, path)
	require.NoError(t, runner.CreateIfNeeded(path))

	file := filepath.Join(root, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	assert.Error(t, runner.CreateIfNeeded(file))
}

func TestCleanup(t *testing.T) {
	r, _ := newRunner(t)
	require.NoError(t, r.Setup("cnn"))

	logFile := filepath.Join(r.LogDir("cnn", false), "events.db")
	ckptFile := filepath.Join(r.CheckpointDir("cnn", false), "cnn-250")
	subdir := filepath.Join(r.LogDir("cnn", false), "keep")
	for _, p := range []string{logFile, ckptFile, r.PredictionFile("cnn")} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))
	}
	require.NoError(t, os.Mkdir(subdir, 0o750))

	require.NoError(t, r.Cleanup("cnn", false))
	assert.FileExists(t, logFile)
	assert.FileExists(t, ckptFile)
	assert.NoFileExists(t, r.PredictionFile("cnn"))

	require.NoError(t, r.Cleanup("cnn", true))
	assert.NoFileExists(t, logFile)
	assert.NoFileExists(t, ckptFile)
	assert.DirExists(t, subdir)

	require.NoError(t, r.Cleanup("other", true), "missing directories are fine")
}

func TestAvgOp(t *testing.T) {
	r, _ := newRunner(t)
	calls := 0
	op := evaluatorFunc(func(context.Context) (float64, error) {
		calls++
		return float64(calls), nil
	})

	// ceil(10 / 4) = 3 evaluations: (1 + 2 + 3) / 3.
	avg, err := r.AvgOp(context.Background(), op, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.InDelta(t, 2, avg, 1e-9)

	calls = 0
	_, err = r.AvgOp(context.Background(), op, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "EvalExamples = 8")
}

func TestRunTraining(t *testing.T) {
	ctx := context.Background()
	r, logs := newRunner(t)
	require.NoError(t, r.Setup("cnn"))

	g := nn.NewGraph(nn.WithWorkers(1))
	trainInput := &fakeInput{batch: newBatch(t, 4, false), remaining: 10}
	validInput := &fakeInput{batch: newBatch(t, 4, false), remaining: -1}
	logits := g.Logits(linearNet{}, trainInput, true)
	acc := runner.Accuracies{
		Train:      g.AccuracyOp(g.Logits(linearNet{}, &fakeInput{batch: newBatch(t, 4, false), remaining: -1}, false), "train"),
		Validation: g.AccuracyOp(g.Logits(linearNet{}, validInput, false), "validation"),
	}

	require.NoError(t, r.RunTraining(ctx, g, logits, acc, "cnn", 0.01))

	// Step 0 pulls three training batches (two summary writes and the
	// update); steps 1..7 one each.
	assert.Equal(t, int64(8), g.GlobalStep())
	out := logs.String()
	assert.Contains(t, out, "Cross Entropy: ")
	assert.Contains(t, out, "Done training for 8 steps.")
	assert.Equal(t, 2, strings.Count(out, "Train accuracy: "), "step 0 and after training")
	assert.Contains(t, out, "Validation accuracy: ")
	assert.NotContains(t, out, "Test accuracy")

	assert.FileExists(t, filepath.Join(r.CheckpointDir("cnn", false), "cnn-0"))
	assert.FileExists(t, filepath.Join(r.CheckpointDir("cnn", false), "cnn-8"))
	state, err := checkpoint.GetCheckpointState(r.CheckpointDir("cnn", false))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(r.CheckpointDir("cnn", false), "cnn-8"), state.ModelCheckpointPath)

	points, err := summary.ReadScalars(r.LogDir("cnn", false), "xentropy_avg")
	require.NoError(t, err)
	assert.Len(t, points, 2)
	for _, p := range points {
		assert.Equal(t, int64(0), p.Step)
	}

	assert.True(t, trainInput.closed)
	assert.True(t, validInput.closed)
}

func TestRunTraining_Cadence(t *testing.T) {
	ctx := context.Background()
	r, logs := newRunner(t)
	require.NoError(t, r.Setup("cnn"))

	// Steps 0..1000 pull 1001 update batches, 11 summary batches (every
	// 100 steps) and 5 checkpoint summary batches (every 250 steps).
	g := nn.NewGraph(nn.WithWorkers(1))
	trainInput := &fakeInput{batch: newBatch(t, 4, false), remaining: 1001 + 11 + 5}
	logits := g.Logits(linearNet{}, trainInput, true)
	acc := runner.Accuracies{
		Train: g.AccuracyOp(g.Logits(linearNet{}, &fakeInput{batch: newBatch(t, 4, false), remaining: -1}, false), "train"),
	}

	require.NoError(t, r.RunTraining(ctx, g, logits, acc, "cnn", 0.01))
	assert.Equal(t, int64(1001), g.GlobalStep())

	out := logs.String()
	assert.Contains(t, out, "Done training for 1001 steps.")
	assert.Equal(t, 3, strings.Count(out, "Train accuracy: "), "steps 0 and 1000, then after training")
	assert.Equal(t, 5, strings.Count(out, "Cross Entropy: "), "steps 0, 250, 500, 750 and 1000")

	dir := r.CheckpointDir("cnn", false)
	for _, step := range []string{"0", "250", "500", "750", "1000", "1001"} {
		assert.FileExists(t, filepath.Join(dir, "cnn-"+step))
	}
	for _, step := range []string{"100", "200", "300", "999"} {
		assert.NoFileExists(t, filepath.Join(dir, "cnn-"+step))
	}

	points, err := summary.ReadScalars(r.LogDir("cnn", false), "xentropy_avg")
	require.NoError(t, err)
	steps := make([]int64, len(points))
	for i, p := range points {
		steps[i] = p.Step
	}
	// Steps on both cadences are written twice.
	assert.Equal(t, []int64{0, 0, 100, 200, 250, 300, 400, 500, 500, 600, 700, 750, 800, 900, 1000, 1000}, steps)
}

func TestSession_SaveFlushesSummaries(t *testing.T) {
	ctx := context.Background()
	r, _ := newRunner(t)
	require.NoError(t, r.Setup("cnn"))
	logDir := r.LogDir("cnn", false)

	g := nn.NewGraph(nn.WithWorkers(1))
	g.Summaries().Scalar("xentropy_avg", func(context.Context) (float64, error) { return 0.5, nil })

	step := func(ctx context.Context, s *runner.Session, step int) error {
		if step == 1 {
			return dataset.ErrOutOfRange
		}
		_, err := s.WriteSummaries(ctx, step)
		require.NoError(t, err)

		points, err := summary.ReadScalars(logDir, "xentropy_avg")
		require.NoError(t, err)
		assert.Empty(t, points, "buffered until saved")

		require.NoError(t, s.Save(step))
		points, err = summary.ReadScalars(logDir, "xentropy_avg")
		require.NoError(t, err)
		assert.Len(t, points, 1, "visible while the session is open")
		return nil
	}
	after := func(context.Context, *runner.Session, int) error { return nil }

	require.NoError(t, r.Run(ctx, g, "cnn", step, after, runner.SessionOptions{Loop: true}))
}

func trainOnce(t *testing.T, r *runner.Runner, name string) {
	t.Helper()
	g := nn.NewGraph(nn.WithWorkers(1))
	logits := g.Logits(linearNet{}, &fakeInput{batch: newBatch(t, 4, false), remaining: 5}, true)
	require.NoError(t, r.Setup(name))
	require.NoError(t, r.RunTraining(context.Background(), g, logits, runner.Accuracies{}, name, 0.01))
}

func TestRunPrediction(t *testing.T) {
	r, logs := newRunner(t)
	trainOnce(t, r, "cnn")

	g := nn.NewGraph(nn.WithWorkers(1))
	input := &fakeInput{batch: newBatch(t, 4, true), remaining: 2}
	n, err := r.RunPrediction(context.Background(), g, g.Logits(linearNet{}, input, false), "cnn")
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Contains(t, logs.String(), "Wrote 8 predictions to "+r.PredictionFile("cnn"))

	file, err := os.Open(r.PredictionFile("cnn"))
	require.NoError(t, err)
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 9)
	assert.Equal(t, []string{"id", "label"}, rows[0])
	for i, row := range rows[1:] {
		assert.Equal(t, strings.TrimSpace(row[0]), row[0])
		assert.Equal(t, i+1, mustAtoi(t, row[0]))
		assert.Len(t, row[1], 4, "two decimals: %q", row[1])
	}
}

func mustAtoi(t *testing.T, s string) int {
	t.Helper()
	n := 0
	for _, c := range s {
		require.True(t, c >= '0' && c <= '9', s)
		n = n*10 + int(c-'0')
	}
	return n
}

func TestRunPrediction_NoCheckpoint(t *testing.T) {
	r, _ := newRunner(t)
	g := nn.NewGraph()
	input := &fakeInput{batch: newBatch(t, 4, true), remaining: 1}
	_, err := r.RunPrediction(context.Background(), g, g.Logits(linearNet{}, input, false), "cnn")
	assert.ErrorIs(t, err, checkpoint.ErrNoCheckpoint)
}

func TestRunEval(t *testing.T) {
	r, logs := newRunner(t)
	trainOnce(t, r, "cnn")
	logs.Reset()

	g := nn.NewGraph(nn.WithWorkers(1))
	acc := runner.Accuracies{
		Test: g.AccuracyOp(g.Logits(linearNet{}, &fakeInput{batch: newBatch(t, 4, false), remaining: -1}, false), "test"),
	}
	require.NoError(t, r.RunEval(context.Background(), g, acc, "cnn"))

	out := logs.String()
	assert.Contains(t, out, "Restored ")
	assert.Contains(t, out, "Test accuracy: ")
	assert.NotContains(t, out, "Train accuracy")
	assert.DirExists(t, r.LogDir("eval", false))
}

func TestRunAll(t *testing.T) {
	r, logs := newRunner(t)
	opened := map[string]int{}
	inputs := func(name string, numEpochs int, predict bool) (nn.Input, error) {
		opened[name]++
		switch name {
		case dataset.Test:
			return nil, dataset.ErrEmptyInput
		case dataset.Kaggle:
			return &fakeInput{batch: newBatch(t, 3, true), remaining: numEpochs}, nil
		}
		remaining := -1
		if numEpochs > 0 {
			remaining = 2 * numEpochs
		}
		return &fakeInput{batch: newBatch(t, 4, predict), remaining: remaining}, nil
	}

	require.NoError(t, r.RunAll(context.Background(), linearNet{}, inputs, 3, 0.01, "cnn", true))
	assert.Equal(t, map[string]int{"train": 2, "validation": 1, "test": 1, "kaggle": 1}, opened)

	out := logs.String()
	assert.Contains(t, out, "No test images")
	assert.Contains(t, out, "Done training for")
	assert.Contains(t, out, "Wrote 3 predictions")
	assert.FileExists(t, r.PredictionFile("cnn"))

	// Evaluation only: logs and checkpoints survive, predictions are redone.
	require.NoError(t, r.RunAll(context.Background(), linearNet{}, inputs, 3, 0.01, "cnn", false))
	assert.FileExists(t, filepath.Join(r.CheckpointDir("cnn", false), "checkpoint"))
	assert.FileExists(t, r.PredictionFile("cnn"))
}
