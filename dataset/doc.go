// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package dataset reads the Kaggle cats-vs-dogs image folders and serves
// them as queued batches.
//
// Expected layout:
//
//	{DataDir}/train/cat.0.jpg
//	{DataDir}/train/dog.0.jpg
//	{DataDir}/test/1.jpg
//
// Labelled images are shuffled with the configured seed and split into
// "train", "validation" and "test"; the unlabelled folder is the "kaggle"
// input. Dogs are labelled 1 and cats 0.
//
// Example:
//
//	ds, err := dataset.Open(flags)
//	input, err := ds.Inputs("train", 10, false)
//	defer input.Close()
//	for {
//	    batch, err := input.Next(ctx)
//	    if errors.Is(err, dataset.ErrOutOfRange) {
//	        break
//	    }
//	}
package dataset
