// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"math"
	"math/rand"

	"github.com/born-ml/convnet/tensor"
)

// Initialization constants.
const (
	// ReLUFactor scales unit-scaling initialization for ReLU layers
	// (arXiv:1502.01852).
	ReLUFactor = 1.43
	// DefaultBias is the constant bias initial value.
	DefaultBias = 0.1
)

// Initializer creates the initial value of a variable.
type Initializer func(shape tensor.Shape, rng *rand.Rand) *tensor.Tensor

// UniformUnitScaling draws from U(-limit, limit) with
// limit = factor * sqrt(3 / fanIn), where fanIn is the product of every
// dimension but the last.
//
// This keeps the input variance of every layer roughly constant.
func UniformUnitScaling(factor float64) Initializer {
	return func(shape tensor.Shape, rng *rand.Rand) *tensor.Tensor {
		return tensor.Uniform(shape, UnitScalingLimit(shape, factor), rng)
	}
}

// UnitScalingLimit returns the bound used by UniformUnitScaling.
func UnitScalingLimit(shape tensor.Shape, factor float64) float64 {
	fanIn := 1
	for _, d := range shape[:max(len(shape)-1, 0)] {
		fanIn *= d
	}
	return factor * math.Sqrt(3/float64(fanIn))
}

// Constant fills the variable with value.
func Constant(value float32) Initializer {
	return func(shape tensor.Shape, _ *rand.Rand) *tensor.Tensor {
		return tensor.Full(shape, value)
	}
}
