// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package models contains ready-made networks for the cats-vs-dogs task.
package models

import (
	"fmt"
	"sort"

	"github.com/born-ml/convnet/config"
	"github.com/born-ml/convnet/nn"
	"github.com/born-ml/convnet/tensor"
)

// CatsDogs is a three-block convolutional classifier.
//
// Architecture (S = image size, C = channels):
//
//	conv1: 5x5, C -> 32, ReLU          [N, S, S, 32]
//	pool1: max 2x2, stride 2           [N, S/2, S/2, 32]
//	conv2: 5x5, 32 -> 64, ReLU         [N, S/2, S/2, 64]
//	pool2: max 2x2, stride 2           [N, S/4, S/4, 64]
//	conv3: 3x3, 64 -> 128, ReLU        [N, S/4, S/4, 128]
//	pool3: avg 2x2, stride 2           [N, S/8, S/8, 128]
//	fc1:   S/8 * S/8 * 128 -> 256, ReLU
//	fc2:   256 -> 1 (logit of "dog")
//
// Pools use SAME padding, so sizes round up.
type CatsDogs struct {
	ImageSize int
	Channels  int
	Hidden    int
}

// NewCatsDogs creates the network for the configured image size.
func NewCatsDogs(flags config.Flags) *CatsDogs {
	return &CatsDogs{ImageSize: flags.ImageSize, Channels: flags.Channels, Hidden: 256}
}

// Name returns "catsdogs".
func (m *CatsDogs) Name() string {
	return "catsdogs"
}

func (m *CatsDogs) flatSize() int {
	s := m.ImageSize
	for range 3 {
		s = (s + 1) / 2
	}
	return s * s * 128
}

// Forward maps [N, S, S, C] images to [N, 1] logits.
func (m *CatsDogs) Forward(g *nn.Graph, images *tensor.Tensor, _ bool) (*tensor.Tensor, error) {
	if shape := images.Shape(); len(shape) != 4 || shape[1] != m.ImageSize || shape[2] != m.ImageSize || shape[3] != m.Channels {
		return nil, fmt.Errorf("expected [N %d %d %d] images, got %v", m.ImageSize, m.ImageSize, m.Channels, shape)
	}

	h := g.ConvOp(images, 5, [2]int{m.Channels, 32}, "conv1", 1)
	h, err := g.PoolOp(h, 2, 2, "pool1", nn.WithMode(nn.PoolMax))
	if err != nil {
		return nil, err
	}

	h = g.ConvOp(h, 5, [2]int{32, 64}, "conv2", 1)
	if h, err = g.PoolOp(h, 2, 2, "pool2", nn.WithMode(nn.PoolMax)); err != nil {
		return nil, err
	}

	h = g.ConvOp(h, 3, [2]int{64, 128}, "conv3", 1)
	if h, err = g.PoolOp(h, 2, 2, "pool3"); err != nil {
		return nil, err
	}

	h = g.FCOp(g.Flatten(h), m.flatSize(), m.Hidden, "fc1")
	return g.FCOp(h, m.Hidden, 1, "fc2", nn.WithReLU(false)), nil
}

// String returns a string representation of the model architecture.
func (m *CatsDogs) String() string {
	return fmt.Sprintf(`CatsDogs(
  Conv(5x5, %d->32, SAME) ReLU MaxPool(2)
  Conv(5x5, 32->64, SAME) ReLU MaxPool(2)
  Conv(3x3, 64->128, SAME) ReLU AvgPool(2)
  FC(%d->%d) ReLU
  FC(%d->1)
)`, m.Channels, m.flatSize(), m.Hidden, m.Hidden)
}

// Small is a two-block network for small images and quick runs.
//
//	conv1: 3x3, C -> 8, ReLU, max pool 2x2
//	conv2: 3x3, 8 -> 16, ReLU, avg pool 2x2
//	fc1:   -> 32, ReLU
//	fc2:   32 -> 1
type Small struct {
	ImageSize int
	Channels  int
}

// NewSmall creates the small network for the configured image size.
func NewSmall(flags config.Flags) *Small {
	return &Small{ImageSize: flags.ImageSize, Channels: flags.Channels}
}

// Name returns "small".
func (m *Small) Name() string {
	return "small"
}

// Forward maps [N, S, S, C] images to [N, 1] logits.
func (m *Small) Forward(g *nn.Graph, images *tensor.Tensor, _ bool) (*tensor.Tensor, error) {
	h := g.ConvOp(images, 3, [2]int{m.Channels, 8}, "conv1", 1)
	h, err := g.PoolOp(h, 2, 2, "pool1", nn.WithMode(nn.PoolMax))
	if err != nil {
		return nil, err
	}
	h = g.ConvOp(h, 3, [2]int{8, 16}, "conv2", 1)
	if h, err = g.PoolOp(h, 2, 2, "pool2"); err != nil {
		return nil, err
	}
	flat := g.Flatten(h)
	h = g.FCOp(flat, flat.Shape()[1], 32, "fc1")
	return g.FCOp(h, 32, 1, "fc2", nn.WithReLU(false)), nil
}

// String returns a string representation of the model architecture.
func (m *Small) String() string {
	return fmt.Sprintf("Small(Conv(3x3, %d->8) MaxPool(2) Conv(3x3, 8->16) AvgPool(2) FC(32) FC(1))", m.Channels)
}

var registry = map[string]func(config.Flags) nn.Network{
	"catsdogs": func(f config.Flags) nn.Network { return NewCatsDogs(f) },
	"small":    func(f config.Flags) nn.Network { return NewSmall(f) },
}

// New returns the network registered under name.
func New(name string, flags config.Flags) (nn.Network, error) {
	build, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown network %q (available: %v)", name, Names())
	}
	return build(flags), nil
}

// Names lists the registered networks.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
