// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package summary

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constant(v float64) ScalarFunc {
	return func(context.Context) (float64, error) { return v, nil }
}

func TestRegistry_Merge(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Merge(), "no summaries merge to nil")

	assert.Equal(t, "xentropy_avg", r.Scalar("xentropy_avg", constant(0.69)))
	assert.Equal(t, "train_accuracy", r.Scalar("train_accuracy", constant(0.5)))
	assert.Equal(t, "xentropy_avg_1", r.Scalar("xentropy_avg", constant(0.1)))
	assert.Equal(t, []string{"xentropy_avg", "train_accuracy", "xentropy_avg_1"}, r.Tags())

	merged := r.Merge()
	values, err := merged.Eval(context.Background())
	require.NoError(t, err)
	require.Len(t, values, 3)

	v, ok := Find(values, "train_accuracy")
	assert.True(t, ok)
	assert.Equal(t, 0.5, v)
	_, ok = Find(values, "missing")
	assert.False(t, ok)

	// Later registrations do not change an existing merge.
	r.Scalar("late", constant(1))
	values, err = merged.Eval(context.Background())
	require.NoError(t, err)
	assert.Len(t, values, 3)
}

func TestMerged_EvalError(t *testing.T) {
	r := NewRegistry()
	sentinel := errors.New("queue closed")
	r.Scalar("broken", func(context.Context) (float64, error) { return 0, sentinel })

	_, err := r.Merge().Eval(context.Background())
	assert.ErrorIs(t, err, sentinel)

	var nilMerged *Merged
	values, err := nilMerged.Eval(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, values)
}

func TestWriter_AddSummary(t *testing.T) {
	logDir := filepath.Join(t.TempDir(), "catsdogs")
	w, err := Open(logDir, "run-a")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(logDir, EventsFile))
	assert.Equal(t, "run-a", w.RunID())

	require.NoError(t, w.AddGraph("conv1 -> pool1 -> fc1"))
	require.NoError(t, w.AddSummary([]Value{{Tag: "xentropy_avg", Value: 0.7}, {Tag: "train_accuracy", Value: 0.5}}, 0))
	require.NoError(t, w.AddSummary([]Value{{Tag: "xentropy_avg", Value: 0.4}}, 100))

	points, err := w.Scalars("xentropy_avg")
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, int64(0), points[0].Step)
	assert.InDelta(t, 0.7, points[0].Value, 1e-12)
	assert.Equal(t, int64(100), points[1].Step)
	assert.Equal(t, "run-a", points[1].RunID)
	assert.False(t, points[1].WallTime.IsZero())

	require.NoError(t, w.Close())
	require.NoError(t, w.Close(), "double close is a no-op")
	assert.Error(t, w.AddSummary([]Value{{Tag: "x", Value: 1}}, 1))
}

func TestWriter_CloseFlushes(t *testing.T) {
	logDir := t.TempDir()
	w, err := Open(logDir, "run-a")
	require.NoError(t, err)
	require.NoError(t, w.AddSummary([]Value{{Tag: "validation_accuracy", Value: 0.8}}, 250))
	require.NoError(t, w.Close())

	w2, err := Open(logDir, "run-b")
	require.NoError(t, err)
	require.NoError(t, w2.AddSummary([]Value{{Tag: "validation_accuracy", Value: 0.9}}, 500))
	require.NoError(t, w2.Close())

	points, err := ReadScalars(logDir, "validation_accuracy")
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, "run-a", points[0].RunID)
	assert.Equal(t, "run-b", points[1].RunID)
}

func TestWriter_FlushesWhenQueueFull(t *testing.T) {
	logDir := t.TempDir()
	w, err := Open(logDir, "run-a")
	require.NoError(t, err)
	defer w.Close()
	w.MaxQueue = 3

	require.NoError(t, w.AddSummary([]Value{{Tag: "xentropy_avg", Value: 0.7}, {Tag: "accuracy", Value: 0.5}}, 0))
	points, err := ReadScalars(logDir, "xentropy_avg")
	require.NoError(t, err)
	assert.Empty(t, points, "below MaxQueue values stay buffered")

	require.NoError(t, w.AddSummary([]Value{{Tag: "xentropy_avg", Value: 0.6}}, 100))
	points, err = ReadScalars(logDir, "xentropy_avg")
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, int64(100), points[1].Step)
}

func TestWriter_FlushesAfterInterval(t *testing.T) {
	logDir := t.TempDir()
	w, err := Open(logDir, "run-a")
	require.NoError(t, err)
	defer w.Close()

	clock := time.Unix(1700000000, 0)
	w.now = func() time.Time { return clock }
	w.lastFlush = clock

	require.NoError(t, w.AddSummary([]Value{{Tag: "xentropy_avg", Value: 0.7}}, 0))
	points, err := ReadScalars(logDir, "xentropy_avg")
	require.NoError(t, err)
	assert.Empty(t, points)

	clock = clock.Add(DefaultFlushInterval)
	require.NoError(t, w.AddSummary([]Value{{Tag: "xentropy_avg", Value: 0.5}}, 100))
	points, err = ReadScalars(logDir, "xentropy_avg")
	require.NoError(t, err)
	assert.Len(t, points, 2)
}

func TestReadScalars_NoStore(t *testing.T) {
	_, err := ReadScalars(t.TempDir(), "xentropy_avg")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
