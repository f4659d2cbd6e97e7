// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"errors"
	"fmt"

	"github.com/born-ml/convnet/tensor"
)

// ErrBadPoolMode is returned by PoolOp for a mode other than "avg" or "max".
var ErrBadPoolMode = errors.New("bad pool mode")

// Pooling modes accepted by PoolOp.
const (
	PoolAvg = "avg"
	PoolMax = "max"
)

// LayerOption configures ConvOp, PoolOp and FCOp.
type LayerOption func(*layerConfig)

type layerConfig struct {
	padding tensor.Padding
	relu    bool
	mode    string
}

func newLayerConfig(opts []LayerOption) layerConfig {
	cfg := layerConfig{padding: tensor.Same, relu: true, mode: PoolAvg}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithPadding selects SAME (default) or VALID padding.
func WithPadding(p tensor.Padding) LayerOption {
	return func(c *layerConfig) { c.padding = p }
}

// WithReLU turns the trailing ReLU on (default) or off.
func WithReLU(relu bool) LayerOption {
	return func(c *layerConfig) { c.relu = relu }
}

// WithMode selects the pooling mode.
func WithMode(mode string) LayerOption {
	return func(c *layerConfig) { c.mode = mode }
}

// ConvOp adds a square convolution with bias and, unless disabled, ReLU.
//
// Parameters:
//   - x: input [N, H, W, channels[0]]
//   - size: kernel width and height
//   - channels: [in, out]
//   - name: variable scope of "weights" and "bias"
//   - stride: step in both spatial dimensions
//
// Returns [N, H', W', channels[1]].
//
// Example:
//
//	h := g.ConvOp(images, 5, [2]int{3, 32}, "conv1", 1)
//	h = g.ConvOp(h, 3, [2]int{32, 64}, "conv2", 2, nn.WithPadding(tensor.Valid))
func (g *Graph) ConvOp(x *tensor.Tensor, size int, channels [2]int, name string, stride int, opts ...LayerOption) *tensor.Tensor {
	cfg := newLayerConfig(opts)
	s := g.Scope(name)
	weights := g.ConvWeightVariable(s, size, channels)
	bias := g.BiasVariable(s, tensor.Shape{channels[1]}, DefaultBias)

	h := g.backend.AddBias(g.backend.Conv2D(x, weights, stride, cfg.padding), bias)
	if cfg.relu {
		h = g.backend.ReLU(h)
	}
	return h
}

// PoolOp adds square average (default) or max pooling.
//
// Padded cells take no part in either mode. Any mode other than "avg"
// or "max" returns ErrBadPoolMode.
func (g *Graph) PoolOp(x *tensor.Tensor, size, stride int, name string, opts ...LayerOption) (*tensor.Tensor, error) {
	cfg := newLayerConfig(opts)
	switch cfg.mode {
	case PoolAvg:
		return g.backend.AvgPool2D(x, size, stride, cfg.padding), nil
	case PoolMax:
		return g.backend.MaxPool2D(x, size, stride, cfg.padding), nil
	default:
		return nil, fmt.Errorf("%s: %w %q", name, ErrBadPoolMode, cfg.mode)
	}
}

// FCOp adds a fully connected layer x @ weights + bias, followed by ReLU
// unless disabled. x must have shape [N, in].
func (g *Graph) FCOp(x *tensor.Tensor, in, out int, name string, opts ...LayerOption) *tensor.Tensor {
	cfg := newLayerConfig(opts)
	s := g.Scope(name)
	weights := g.FCWeightVariable(s, in, out)
	bias := g.BiasVariable(s, tensor.Shape{out}, DefaultBias)

	h := g.backend.AddBias(g.backend.MatMul(x, weights), bias)
	if cfg.relu {
		h = g.backend.ReLU(h)
	}
	return h
}

// Flatten reshapes [N, ...] to [N, rest].
func (g *Graph) Flatten(x *tensor.Tensor) *tensor.Tensor {
	shape := x.Shape()
	return g.backend.Reshape(x, shape[0], shape.NumElements()/shape[0])
}

// Sigmoid applies the logistic function as a recorded op.
func (g *Graph) Sigmoid(x *tensor.Tensor) *tensor.Tensor {
	return g.backend.Sigmoid(x)
}
