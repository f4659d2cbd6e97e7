// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"fmt"
	"math"
	"strings"

	"github.com/born-ml/convnet/tensor"
)

// Slot and state names used in checkpoints.
const (
	adamM        = "Adam"
	adamV        = "Adam_1"
	adamTimestep = "optimizer/adam_timestep"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient       // First moment
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²      // Second moment
//	m_hat = m_t / (1 - beta1^t)                        // Bias correction
//	v_hat = v_t / (1 - beta2^t)                        // Bias correction
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)   // Parameter update
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
type Adam struct {
	lr    float32
	beta1 float32
	beta2 float32
	eps   float32
	t     int                       // Timestep for bias correction
	m     map[string]*tensor.Tensor // First moment estimates
	v     map[string]*tensor.Tensor // Second moment estimates
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR    float32    // Learning rate (default: 0.001)
	Betas [2]float32 // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps   float32    // Term for numerical stability (default: 1e-8)
}

// NewAdam creates a new Adam optimizer.
//
// Zero fields in config take the defaults LR 0.001, Betas [0.9, 0.999]
// and Eps 1e-8.
func NewAdam(config AdamConfig) *Adam {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}

	return &Adam{
		lr:    config.LR,
		beta1: config.Betas[0],
		beta2: config.Betas[1],
		eps:   config.Eps,
		m:     make(map[string]*tensor.Tensor),
		v:     make(map[string]*tensor.Tensor),
	}
}

// Step performs a single optimization step.
//
// The timestep advances once per call even if no param has a gradient.
func (a *Adam) Step(params []Param, grads map[*tensor.Tensor]*tensor.Tensor) {
	a.t++

	biasCorrection1 := float32(1.0 - math.Pow(float64(a.beta1), float64(a.t)))
	biasCorrection2 := float32(1.0 - math.Pow(float64(a.beta2), float64(a.t)))

	for _, param := range params {
		grad, ok := grads[param.Value]
		if !ok || grad == nil {
			continue
		}
		m := slot(a.m, param.Name, param.Value)
		v := slot(a.v, param.Name, param.Value)
		a.updateParameter(param.Value.Data(), grad.Data(), m.Data(), v.Data(), biasCorrection1, biasCorrection2)
	}
}

func (a *Adam) updateParameter(paramData, gradData, mData, vData []float32, biasCorrection1, biasCorrection2 float32) {
	for i := range paramData {
		g := gradData[i]
		mData[i] = a.beta1*mData[i] + (1.0-a.beta1)*g
		vData[i] = a.beta2*vData[i] + (1.0-a.beta2)*g*g

		mHat := mData[i] / biasCorrection1
		vHat := vData[i] / biasCorrection2
		paramData[i] -= a.lr * mHat / (float32(math.Sqrt(float64(vHat))) + a.eps)
	}
}

// GetLR returns the current learning rate.
func (a *Adam) GetLR() float32 {
	return a.lr
}

// SetLR updates the learning rate.
func (a *Adam) SetLR(lr float32) {
	a.lr = lr
}

// GetTimestep returns the current timestep.
func (a *Adam) GetTimestep() int {
	return a.t
}

// StateDict returns copies of the moments as "{param}/Adam" and
// "{param}/Adam_1", plus the timestep.
func (a *Adam) StateDict() map[string]*tensor.Tensor {
	state := make(map[string]*tensor.Tensor, 2*len(a.m)+1)
	for name, m := range a.m {
		state[name+"/"+adamM] = m.Clone()
	}
	for name, v := range a.v {
		state[name+"/"+adamV] = v.Clone()
	}
	state[adamTimestep] = tensor.Counter(int64(a.t))
	return state
}

// LoadStateDict restores moments and timestep. Keys that do not belong to
// Adam are ignored, so a combined model + optimizer state can be passed.
func (a *Adam) LoadStateDict(state map[string]*tensor.Tensor) error {
	m := make(map[string]*tensor.Tensor)
	v := make(map[string]*tensor.Tensor)
	for key, t := range state {
		switch {
		case key == adamTimestep:
			if n := t.NumElements(); n != 1 && n != 2 {
				return fmt.Errorf("adam: %s has shape %v", adamTimestep, t.Shape())
			}
			a.t = int(tensor.CounterValue(t))
		case strings.HasSuffix(key, "/"+adamV):
			v[strings.TrimSuffix(key, "/"+adamV)] = t
		case strings.HasSuffix(key, "/"+adamM):
			m[strings.TrimSuffix(key, "/"+adamM)] = t
		}
	}
	a.m = make(map[string]*tensor.Tensor, len(m))
	a.v = make(map[string]*tensor.Tensor, len(v))
	copySlots(a.m, m)
	copySlots(a.v, v)
	return nil
}
