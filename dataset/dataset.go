// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package dataset

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/born-ml/convnet/config"
)

// Input names.
const (
	Train      = "train"
	Validation = "validation"
	Test       = "test"
	Kaggle     = "kaggle"
)

// Labels.
const (
	Cat        = 0
	Dog        = 1
	Unlabelled = -1
)

// Errors returned by Inputs.
var (
	ErrUnknownInput = errors.New("unknown input")
	ErrEmptyInput   = errors.New("input has no images")
)

// Example is one image file.
type Example struct {
	Path  string
	ID    int
	Label int // Cat, Dog or Unlabelled
}

// Dataset holds the examples of every input.
type Dataset struct {
	flags  config.Flags
	splits map[string][]Example
}

// Open scans {DataDir}/train and {DataDir}/test and splits the labelled
// images. A missing test folder leaves the kaggle input empty.
func Open(flags config.Flags) (*Dataset, error) {
	labelled, err := Scan(filepath.Join(flags.DataDir, "train"))
	if err != nil {
		return nil, err
	}
	kaggle, err := Scan(filepath.Join(flags.DataDir, "test"))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return New(flags, labelled, kaggle), nil
}

// OpenKaggle scans only {DataDir}/test, for prediction without the
// labelled images. Every labelled split is empty.
func OpenKaggle(flags config.Flags) (*Dataset, error) {
	kaggle, err := Scan(filepath.Join(flags.DataDir, "test"))
	if err != nil {
		return nil, err
	}
	return New(flags, nil, kaggle), nil
}

// New builds a dataset from already scanned examples.
func New(flags config.Flags, labelled, kaggle []Example) *Dataset {
	train, validation, test := Split(labelled, flags.ValidationFraction, flags.TestFraction, flags.Seed)
	return &Dataset{
		flags: flags,
		splits: map[string][]Example{
			Train:      train,
			Validation: validation,
			Test:       test,
			Kaggle:     kaggle,
		},
	}
}

// Examples returns the examples behind the named input.
func (d *Dataset) Examples(name string) []Example {
	return d.splits[name]
}

// Inputs starts a queued input over the named split.
//
// numEpochs == 0 repeats forever. Prediction inputs keep file order and
// carry no labels; all others reshuffle every epoch.
func (d *Dataset) Inputs(name string, numEpochs int, predict bool) (*Input, error) {
	examples, ok := d.splits[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownInput, name)
	}
	if len(examples) == 0 {
		return nil, fmt.Errorf("%q: %w", name, ErrEmptyInput)
	}
	return newInput(name, examples, numEpochs, predict, d.flags), nil
}

// Scan lists the images in dir.
//
// Files named "{cat|dog}.{n}.{ext}" are labelled, "{n}.{ext}" are not.
// Anything else, and any file whose header is not an image, is skipped.
// Results are sorted by label then id.
func Scan(dir string) ([]Example, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	var examples []Example
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		id, label, ok := parseName(entry.Name())
		if !ok {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if _, _, err := Probe(path); err != nil {
			continue
		}
		examples = append(examples, Example{Path: path, ID: id, Label: label})
	}

	sort.Slice(examples, func(i, j int) bool {
		if examples[i].Label != examples[j].Label {
			return examples[i].Label < examples[j].Label
		}
		return examples[i].ID < examples[j].ID
	})
	return examples, nil
}

// parseName extracts the id and label from a Kaggle file name.
func parseName(name string) (id, label int, ok bool) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	parts := strings.Split(stem, ".")

	switch len(parts) {
	case 1:
		label = Unlabelled
	case 2:
		switch parts[0] {
		case "cat":
			label = Cat
		case "dog":
			label = Dog
		default:
			return 0, 0, false
		}
	default:
		return 0, 0, false
	}

	id, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil || id < 0 {
		return 0, 0, false
	}
	return id, label, true
}

// Split shuffles examples with seed and cuts off the test and validation
// sets. The input slice is not modified.
func Split(examples []Example, validationFraction, testFraction float64, seed int64) (train, validation, test []Example) {
	shuffled := append([]Example(nil), examples...)
	//nolint:gosec // deterministic split, not security sensitive
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	n := len(shuffled)
	nTest := int(testFraction * float64(n))
	nValid := int(validationFraction * float64(n))
	if nTest+nValid > n {
		nValid = n - nTest
	}

	test = shuffled[:nTest]
	validation = shuffled[nTest : nTest+nValid]
	train = shuffled[nTest+nValid:]
	return train, validation, test
}
