// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"strings"

	"github.com/born-ml/convnet/tensor"
)

// Scope prefixes variable names, like a variable scope.
type Scope struct {
	name string
}

// Scope opens the variable scope called name.
func (g *Graph) Scope(name string) Scope {
	return Scope{name: name}
}

// Sub opens a nested scope.
func (s Scope) Sub(name string) Scope {
	return Scope{name: s.Join(name)}
}

// Name returns the scope's full name.
func (s Scope) Name() string {
	return s.name
}

// Join returns the full name of variable v in this scope.
func (s Scope) Join(v string) string {
	if s.name == "" {
		return v
	}
	return strings.TrimSuffix(s.name, "/") + "/" + v
}

// WeightVariable returns "{scope}/weights", created with uniform unit
// scaling (factor 1.43) the first time it is requested.
func (g *Graph) WeightVariable(s Scope, shape tensor.Shape) *tensor.Tensor {
	return g.store.GetVariable(s.Join("weights"), shape, UniformUnitScaling(ReLUFactor), true)
}

// ConvWeightVariable returns the kernel of a square convolution with
// shape [size, size, channels[0], channels[1]].
func (g *Graph) ConvWeightVariable(s Scope, size int, channels [2]int) *tensor.Tensor {
	return g.WeightVariable(s, tensor.Shape{size, size, channels[0], channels[1]})
}

// FCWeightVariable returns the [in, out] matrix of a fully connected layer.
func (g *Graph) FCWeightVariable(s Scope, in, out int) *tensor.Tensor {
	return g.WeightVariable(s, tensor.Shape{in, out})
}

// BiasVariable returns "{scope}/bias", filled with value on creation.
func (g *Graph) BiasVariable(s Scope, shape tensor.Shape, value float32) *tensor.Tensor {
	return g.store.GetVariable(s.Join("bias"), shape, Constant(value), true)
}
