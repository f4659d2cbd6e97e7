// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn builds convolutional binary classifiers on a Graph.
//
// # Overview
//
// A Graph owns the variable store, the summary registry, the global step
// and the autodiff backend. Layer helpers create their variables in the
// store under "{name}/weights" and "{name}/bias"; asking for an existing
// name returns the stored variable, so calling a Network on several inputs
// shares its weights.
//
// Graph nodes are lazy. Logits pulls a batch from its input and runs the
// network each time it is evaluated; Loss, Accuracy and Train evaluate on
// demand:
//
//	g := nn.NewGraph()
//	logits := g.Logits(net, trainInput, true)
//	loss := g.LossOp(logits)
//	train := g.TrainOp(loss, 0.001)
//	accuracy := g.AccuracyOp(g.Logits(net, validInput, false), "validation")
//
//	for {
//	    if err := train.Run(ctx); errors.Is(err, dataset.ErrOutOfRange) {
//	        break
//	    }
//	}
//
// # Initialization
//
// Weights use uniform unit scaling with factor 1.43, the ReLU variant of
// Xavier initialization: U(-limit, limit) with
// limit = 1.43 * sqrt(3 / fan_in) and fan_in the product of all but the
// last dimension. Biases start at 0.1.
package nn
