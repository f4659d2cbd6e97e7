// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"strings"

	"github.com/born-ml/convnet/tensor"
)

const sgdVelocity = "Momentum"

// SGD implements Stochastic Gradient Descent optimizer with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * gradient
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
type SGD struct {
	lr         float32
	momentum   float32
	velocities map[string]*tensor.Tensor
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR       float32 // Learning rate (default: 0.01)
	Momentum float32 // Momentum factor (default: 0.0, range: [0, 1))
}

// NewSGD creates a new SGD optimizer.
func NewSGD(config SGDConfig) *SGD {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &SGD{
		lr:         config.LR,
		momentum:   config.Momentum,
		velocities: make(map[string]*tensor.Tensor),
	}
}

// Step performs a single optimization step.
func (s *SGD) Step(params []Param, grads map[*tensor.Tensor]*tensor.Tensor) {
	for _, param := range params {
		grad, ok := grads[param.Value]
		if !ok || grad == nil {
			continue
		}
		paramData, gradData := param.Value.Data(), grad.Data()

		if s.momentum == 0 {
			for i := range paramData {
				paramData[i] -= s.lr * gradData[i]
			}
			continue
		}

		velocity := slot(s.velocities, param.Name, param.Value).Data()
		for i := range paramData {
			velocity[i] = s.momentum*velocity[i] + gradData[i]
			paramData[i] -= s.lr * velocity[i]
		}
	}
}

// GetLR returns the current learning rate.
func (s *SGD) GetLR() float32 {
	return s.lr
}

// SetLR updates the learning rate.
func (s *SGD) SetLR(lr float32) {
	s.lr = lr
}

// StateDict returns copies of the velocities as "{param}/Momentum".
func (s *SGD) StateDict() map[string]*tensor.Tensor {
	state := make(map[string]*tensor.Tensor, len(s.velocities))
	for name, v := range s.velocities {
		state[name+"/"+sgdVelocity] = v.Clone()
	}
	return state
}

// LoadStateDict restores velocities; unrelated keys are ignored.
func (s *SGD) LoadStateDict(state map[string]*tensor.Tensor) error {
	velocities := make(map[string]*tensor.Tensor)
	for key, t := range state {
		if name, ok := strings.CutSuffix(key, "/"+sgdVelocity); ok {
			velocities[name] = t
		}
	}
	s.velocities = make(map[string]*tensor.Tensor, len(velocities))
	copySlots(s.velocities, velocities)
	return nil
}
