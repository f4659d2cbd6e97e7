// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim implements the optimizers behind nn.TrainOp.
//
// Optimizers identify parameters by their scoped variable name, so the
// moment estimates survive a checkpoint round trip through StateDict and
// LoadStateDict.
//
// Example usage:
//
//	optimizer := optim.NewAdam(optim.AdamConfig{LR: 0.001})
//
//	backend.Tape().StartRecording()
//	loss := ...
//	grads := backend.Backward(loss)
//	optimizer.Step(store.Params(), grads)
package optim

import (
	"fmt"

	"github.com/born-ml/convnet/tensor"
)

// Param is a named trainable tensor updated in place by an optimizer.
type Param struct {
	Name  string
	Value *tensor.Tensor
}

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Step applies gradient updates to every param that has a gradient.
	// Params missing from grads did not take part in the forward pass and
	// are left untouched.
	Step(params []Param, grads map[*tensor.Tensor]*tensor.Tensor)

	// GetLR returns the current learning rate.
	GetLR() float32

	// SetLR updates the learning rate.
	SetLR(lr float32)

	// StateDict returns the optimizer's slot variables keyed by
	// "{param}/{slot}" plus any global state.
	StateDict() map[string]*tensor.Tensor

	// LoadStateDict restores state produced by StateDict.
	LoadStateDict(state map[string]*tensor.Tensor) error
}

// New creates the optimizer called name ("adam" or "sgd").
func New(name string, lr float32) (Optimizer, error) {
	switch name {
	case "adam", "":
		return NewAdam(AdamConfig{LR: lr}), nil
	case "sgd":
		return NewSGD(SGDConfig{LR: lr}), nil
	default:
		return nil, fmt.Errorf("unknown optimizer %q", name)
	}
}

// slot returns the moment tensor stored under key, creating zeros shaped
// like value on first use.
func slot(slots map[string]*tensor.Tensor, key string, value *tensor.Tensor) *tensor.Tensor {
	s, ok := slots[key]
	if !ok || !s.Shape().Equal(value.Shape()) {
		s = tensor.Zeros(value.Shape())
		slots[key] = s
	}
	return s
}

func copySlots(dst, src map[string]*tensor.Tensor) {
	for name, t := range src {
		dst[name] = t.Clone()
	}
}
