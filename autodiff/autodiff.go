// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides reverse-mode automatic differentiation.
//
// A Backend wraps a compute backend and records every forward kernel on a
// gradient tape while recording is on. Backward then walks the tape in
// reverse and returns the gradient of every tensor that took part.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	loss := backend.SigmoidCrossEntropy(backend.MatMul(x, w), labels)
//	backend.Tape().StopRecording()
//	grads := backend.Backward(loss)
//	dw := grads[w]
package autodiff

import (
	"github.com/born-ml/convnet/internal/autodiff"
	"github.com/born-ml/convnet/tensor"
)

// Backend is the autodiff-enabled backend.
type Backend[B tensor.Backend] = autodiff.AutodiffBackend[B]

// New creates a new autodiff backend wrapping the given backend.
func New[B tensor.Backend](backend B) *Backend[B] {
	return autodiff.New(backend)
}

// GradientTape records operations for automatic differentiation.
type GradientTape = autodiff.GradientTape

// NewGradientTape creates a new gradient tape.
func NewGradientTape() *GradientTape {
	return autodiff.NewGradientTape()
}
