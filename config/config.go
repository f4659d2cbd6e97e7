// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package config holds the flags shared by every convnet command.
//
// Flags can be loaded from a YAML file:
//
//	batch_size: 64
//	log_dir: /tmp/convnet/logs
//	checkpoint_dir: /tmp/convnet/checkpoints
//	data_dir: /data/catsdogs
//	image_size: 64
//
// Missing keys keep the values from Default.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Flags configures input pipelines, directories and the training loop.
type Flags struct {
	BatchSize          int     `yaml:"batch_size"`
	LogDir             string  `yaml:"log_dir"`
	CheckpointDir      string  `yaml:"checkpoint_dir"`
	DataDir            string  `yaml:"data_dir"`
	ImageSize          int     `yaml:"image_size"`
	Channels           int     `yaml:"channels"`
	ValidationFraction float64 `yaml:"validation_fraction"`
	TestFraction       float64 `yaml:"test_fraction"`
	Seed               int64   `yaml:"seed"`
	QueueCapacity      int     `yaml:"queue_capacity"`
	NumThreads         int     `yaml:"num_threads"`
	EvalExamples       int     `yaml:"eval_examples"` // examples averaged per accuracy report
	Optimizer          string  `yaml:"optimizer"`     // "adam" or "sgd"
	Workers            int     `yaml:"workers"`       // CPU kernel goroutines, 0 = physical cores
}

// Default returns the flags used when no file is given.
func Default() Flags {
	return Flags{
		BatchSize:          50,
		LogDir:             "logs",
		CheckpointDir:      "checkpoints",
		DataDir:            "data",
		ImageSize:          64,
		Channels:           3,
		ValidationFraction: 0.1,
		TestFraction:       0.1,
		Seed:               1,
		QueueCapacity:      512,
		NumThreads:         4,
		EvalExamples:       10000,
		Optimizer:          "adam",
	}
}

// Load reads a YAML file on top of Default and validates the result.
func Load(path string) (Flags, error) {
	flags := Default()
	//nolint:gosec // G304: the config path is supplied by the user
	data, err := os.ReadFile(path)
	if err != nil {
		return Flags{}, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &flags); err != nil {
		return Flags{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := flags.Validate(); err != nil {
		return Flags{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return flags, nil
}

// Save writes flags as YAML.
func (f Flags) Save(path string) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate reports every invalid field.
func (f Flags) Validate() error {
	var errs []error
	if f.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("batch_size must be positive, got %d", f.BatchSize))
	}
	if f.ImageSize <= 0 {
		errs = append(errs, fmt.Errorf("image_size must be positive, got %d", f.ImageSize))
	}
	if f.Channels != 1 && f.Channels != 3 {
		errs = append(errs, fmt.Errorf("channels must be 1 or 3, got %d", f.Channels))
	}
	if f.ValidationFraction < 0 || f.TestFraction < 0 || f.ValidationFraction+f.TestFraction >= 1 {
		errs = append(errs, fmt.Errorf("validation_fraction (%g) and test_fraction (%g) must be non-negative and leave training data",
			f.ValidationFraction, f.TestFraction))
	}
	if f.QueueCapacity <= 0 {
		errs = append(errs, fmt.Errorf("queue_capacity must be positive, got %d", f.QueueCapacity))
	}
	if f.NumThreads <= 0 {
		errs = append(errs, fmt.Errorf("num_threads must be positive, got %d", f.NumThreads))
	}
	if f.EvalExamples <= 0 {
		errs = append(errs, fmt.Errorf("eval_examples must be positive, got %d", f.EvalExamples))
	}
	if f.Optimizer != "adam" && f.Optimizer != "sgd" {
		errs = append(errs, fmt.Errorf("optimizer must be adam or sgd, got %q", f.Optimizer))
	}
	if f.LogDir == "" || f.CheckpointDir == "" || f.DataDir == "" {
		errs = append(errs, errors.New("log_dir, checkpoint_dir and data_dir must be set"))
	}
	return errors.Join(errs...)
}
