// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package runner

import (
	"fmt"
	"os"
	"path/filepath"
)

// LogDir returns {LogDir}/{name}, or the glob matching its files when
// pattern is set.
func (r *Runner) LogDir(name string, pattern bool) string {
	return dir(r.Flags.LogDir, name, pattern)
}

// CheckpointDir returns {CheckpointDir}/{name}, or the glob matching its
// files when pattern is set.
func (r *Runner) CheckpointDir(name string, pattern bool) string {
	return dir(r.Flags.CheckpointDir, name, pattern)
}

// PredictionFile returns {DataDir}/{name}.csv.
func (r *Runner) PredictionFile(name string) string {
	return filepath.Join(r.Flags.DataDir, name+".csv")
}

// checkpointPrefix is the path checkpoints of name are saved under.
func (r *Runner) checkpointPrefix(name string) string {
	return filepath.Join(r.CheckpointDir(name, false), name)
}

func dir(root, name string, pattern bool) string {
	if pattern {
		return filepath.Join(root, name, "*")
	}
	return filepath.Join(root, name)
}

// CreateIfNeeded creates path and its parents. It fails if path exists
// and is not a directory.
func CreateIfNeeded(path string) error {
	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		return nil
	case err == nil:
		return fmt.Errorf("%s exists and is not a directory", path)
	case !os.IsNotExist(err):
		return err
	}
	return os.MkdirAll(path, 0o750)
}

// Cleanup removes the log and checkpoint files of name when training,
// and the prediction file of name in any case. Subdirectories are left
// alone.
func (r *Runner) Cleanup(name string, doTraining bool) error {
	if doTraining {
		for _, pattern := range []string{r.LogDir(name, true), r.CheckpointDir(name, true)} {
			if err := removeFiles(pattern); err != nil {
				return err
			}
		}
	}
	if err := os.Remove(r.PredictionFile(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove prediction file: %w", err)
	}
	return nil
}

func removeFiles(pattern string) error {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return err
	}
	for _, path := range matches {
		info, err := os.Lstat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("cleanup: %w", err)
		}
	}
	return nil
}

// Setup creates the log and checkpoint directories of name.
func (r *Runner) Setup(name string) error {
	for _, path := range []string{r.LogDir(name, false), r.CheckpointDir(name, false)} {
		if err := CreateIfNeeded(path); err != nil {
			return err
		}
	}
	return nil
}
