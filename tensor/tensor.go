// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"math/rand"

	"github.com/born-ml/convnet/internal/tensor"
)

// Tensor is a dense, row-major float32 tensor.
type Tensor = tensor.Tensor

// Shape represents the dimensions of a tensor.
type Shape = tensor.Shape

// Backend is the set of kernels a compute device provides.
type Backend = tensor.Backend

// Padding selects SAME or VALID border handling.
type Padding = tensor.Padding

// Padding modes.
const (
	Same  = tensor.Same
	Valid = tensor.Valid
)

// Zeros creates a zero-filled tensor.
func Zeros(shape Shape) *Tensor {
	return tensor.Zeros(shape)
}

// Full creates a tensor filled with value.
func Full(shape Shape, value float32) *Tensor {
	return tensor.Full(shape, value)
}

// Uniform creates a tensor with values drawn from U(-limit, limit).
func Uniform(shape Shape, limit float64, rng *rand.Rand) *Tensor {
	return tensor.Uniform(shape, limit, rng)
}

// FromSlice creates a tensor from a copy of data.
//
// Example:
//
//	labels, err := tensor.FromSlice([]float32{1, 0, 1}, tensor.Shape{3, 1})
func FromSlice(data []float32, shape Shape) (*Tensor, error) {
	return tensor.FromSlice(data, shape)
}

// CounterShape is the shape of a counter tensor.
var CounterShape = tensor.CounterShape

// Counter encodes an integer counter exactly in a float32 tensor.
func Counter(n int64) *Tensor {
	return tensor.Counter(n)
}

// CounterValue decodes a tensor made by Counter.
func CounterValue(t *Tensor) int64 {
	return tensor.CounterValue(t)
}

// ParsePadding parses "SAME" or "VALID".
func ParsePadding(s string) (Padding, error) {
	return tensor.ParsePadding(s)
}
