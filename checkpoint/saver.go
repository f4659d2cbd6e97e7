// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package checkpoint saves and restores training state.
//
// Each checkpoint is one file named "{prefix}-{step}" holding every graph
// variable and, when given, the optimizer slots. The directory also holds
// an index file called "checkpoint" that lists the retained checkpoints,
// newest last:
//
//	model_checkpoint_path: catsdogs-1000
//	all_model_checkpoint_paths:
//	    - catsdogs-750
//	    - catsdogs-1000
//
// Example:
//
//	saver := checkpoint.NewSaver()
//	path, err := saver.Save(g.Store(), train.Optimizer(), "checkpoints/catsdogs/catsdogs", step)
//
//	state, err := checkpoint.GetCheckpointState("checkpoints/catsdogs")
//	info, err := checkpoint.Restore(state.ModelCheckpointPath, g.Store(), nil)
package checkpoint

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/born-ml/convnet/internal/serialization"
	"github.com/born-ml/convnet/optim"
	"github.com/born-ml/convnet/tensor"
)

// ErrNoCheckpoint is returned when a directory holds no checkpoint index.
var ErrNoCheckpoint = errors.New("no checkpoint found")

// ModelType is stored in every checkpoint header.
const ModelType = "convnet"

// Variables is the part of a variable store a checkpoint needs.
type Variables interface {
	StateDict() map[string]*tensor.Tensor
	LoadStateDict(state map[string]*tensor.Tensor) error
}

// Saver writes checkpoints and prunes old ones.
type Saver struct {
	// MaxToKeep is the number of recent checkpoints retained (0 keeps all).
	MaxToKeep int
	// KeepEveryNHours additionally preserves one pruned checkpoint per
	// interval of this many hours (0 disables).
	KeepEveryNHours float64
	// RunID is recorded in each checkpoint header.
	RunID string

	now func() time.Time
}

// NewSaver returns a saver keeping the 10 newest checkpoints plus one per
// hour of training.
func NewSaver() *Saver {
	return &Saver{MaxToKeep: 10, KeepEveryNHours: 1, now: time.Now}
}

func (s *Saver) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

// Save writes the checkpoint "{prefix}-{step}", records it in the index
// next to it and prunes checkpoints beyond MaxToKeep. opt may be nil.
// Returns the path written.
func (s *Saver) Save(vars Variables, opt optim.Optimizer, prefix string, step int64) (string, error) {
	path := fmt.Sprintf("%s-%d", prefix, step)

	state := vars.StateDict()
	if opt != nil {
		for name, t := range opt.StateDict() {
			state[name] = t
		}
	}

	header := serialization.Header{
		ModelType:    ModelType,
		CreatedAt:    s.clock().UTC(),
		Step:         step,
		RunID:        s.RunID,
		HasOptimizer: opt != nil,
	}
	if err := writeFile(path, state, header); err != nil {
		return "", err
	}

	if err := s.updateIndex(filepath.Dir(path), filepath.Base(path)); err != nil {
		return "", err
	}
	return path, nil
}

// writeFile writes to a temporary file first so a crash never leaves a
// truncated checkpoint under the final name.
func writeFile(path string, state map[string]*tensor.Tensor, header serialization.Header) (err error) {
	tmp := path + ".tmp"
	file, err := os.Create(tmp) //nolint:gosec // path comes from the run configuration
	if err != nil {
		return fmt.Errorf("failed to create checkpoint: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	w := bufio.NewWriter(file)
	if err := serialization.Write(w, state, header); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := w.Flush(); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close checkpoint: %w", err)
	}
	return os.Rename(tmp, path)
}

func (s *Saver) updateIndex(dir, name string) error {
	idx, err := readIndex(dir)
	if err != nil {
		return err
	}
	now := s.clock()
	if idx == nil {
		idx = &index{LastPreserved: now}
	}
	idx.add(name, now)

	for s.MaxToKeep > 0 && len(idx.AllModelCheckpointPaths) > s.MaxToKeep {
		oldest, stamp := idx.AllModelCheckpointPaths[0], idx.Timestamps[0]
		idx.AllModelCheckpointPaths = idx.AllModelCheckpointPaths[1:]
		idx.Timestamps = idx.Timestamps[1:]

		if s.KeepEveryNHours > 0 && stamp.Sub(idx.LastPreserved).Hours() >= s.KeepEveryNHours {
			idx.LastPreserved = stamp
			continue
		}
		if err := os.Remove(filepath.Join(dir, oldest)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to prune checkpoint: %w", err)
		}
	}
	return writeIndex(dir, idx)
}

// Info describes a restored checkpoint.
type Info struct {
	Path      string
	Step      int64
	RunID     string
	CreatedAt time.Time
}

// Restore loads the checkpoint at path into vars and, when both opt and
// the file carry optimizer state, into opt.
func Restore(path string, vars Variables, opt optim.Optimizer) (*Info, error) {
	file, err := os.Open(path) //nolint:gosec // path comes from the checkpoint index
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint: %w", err)
	}
	defer file.Close()

	state, header, err := serialization.Read(bufio.NewReader(file))
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint %s: %w", path, err)
	}
	if err := vars.LoadStateDict(state); err != nil {
		return nil, fmt.Errorf("failed to restore variables: %w", err)
	}
	if opt != nil && header.HasOptimizer {
		if err := opt.LoadStateDict(state); err != nil {
			return nil, fmt.Errorf("failed to restore optimizer: %w", err)
		}
	}
	return &Info{Path: path, Step: header.Step, RunID: header.RunID, CreatedAt: header.CreatedAt}, nil
}

// RestoreLatest restores the newest checkpoint in dir. Returns
// ErrNoCheckpoint when there is none.
func RestoreLatest(dir string, vars Variables, opt optim.Optimizer) (*Info, error) {
	state, err := GetCheckpointState(dir)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, fmt.Errorf("%s: %w", dir, ErrNoCheckpoint)
	}
	return Restore(state.ModelCheckpointPath, vars, opt)
}
