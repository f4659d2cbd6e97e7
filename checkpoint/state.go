// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package checkpoint

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// IndexFile is the name of the index in a checkpoint directory.
const IndexFile = "checkpoint"

// State lists the checkpoints retained in a directory. Paths include the
// directory.
type State struct {
	ModelCheckpointPath     string
	AllModelCheckpointPaths []string
	Timestamps              []time.Time
}

type index struct {
	ModelCheckpointPath     string      `yaml:"model_checkpoint_path"`
	AllModelCheckpointPaths []string    `yaml:"all_model_checkpoint_paths"`
	Timestamps              []time.Time `yaml:"timestamps"`
	LastPreserved           time.Time   `yaml:"last_preserved"`
}

// add appends name as the newest checkpoint, moving it to the end if it
// is already listed.
func (idx *index) add(name string, at time.Time) {
	if i := slices.Index(idx.AllModelCheckpointPaths, name); i >= 0 {
		idx.AllModelCheckpointPaths = slices.Delete(idx.AllModelCheckpointPaths, i, i+1)
		idx.Timestamps = slices.Delete(idx.Timestamps, i, i+1)
	}
	idx.AllModelCheckpointPaths = append(idx.AllModelCheckpointPaths, name)
	idx.Timestamps = append(idx.Timestamps, at)
	idx.ModelCheckpointPath = name
}

// GetCheckpointState reads the index in dir. It returns nil, nil when the
// directory has no index.
func GetCheckpointState(dir string) (*State, error) {
	idx, err := readIndex(dir)
	if err != nil || idx == nil {
		return nil, err
	}
	if idx.ModelCheckpointPath == "" {
		return nil, nil
	}

	state := &State{
		ModelCheckpointPath: resolve(dir, idx.ModelCheckpointPath),
		Timestamps:          idx.Timestamps,
	}
	for _, p := range idx.AllModelCheckpointPaths {
		state.AllModelCheckpointPaths = append(state.AllModelCheckpointPaths, resolve(dir, p))
	}
	return state, nil
}

func resolve(dir, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}

func readIndex(dir string) (*index, error) {
	data, err := os.ReadFile(filepath.Join(dir, IndexFile)) //nolint:gosec // fixed name inside the run directory
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint index: %w", err)
	}
	var idx index
	if err := yaml.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint index: %w", err)
	}
	if len(idx.Timestamps) != len(idx.AllModelCheckpointPaths) {
		return nil, fmt.Errorf("checkpoint index: %d timestamps for %d paths", len(idx.Timestamps), len(idx.AllModelCheckpointPaths))
	}
	return &idx, nil
}

func writeIndex(dir string, idx *index) error {
	data, err := yaml.Marshal(idx)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint index: %w", err)
	}
	tmp := filepath.Join(dir, IndexFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write checkpoint index: %w", err)
	}
	return os.Rename(tmp, filepath.Join(dir, IndexFile))
}
