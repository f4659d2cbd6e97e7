// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/convnet/config"
	"github.com/born-ml/convnet/nn"
	"github.com/born-ml/convnet/tensor"
)

func TestCatsDogs_Forward(t *testing.T) {
	flags := config.Default()
	flags.ImageSize = 10 // 10 -> 5 -> 3 -> 2
	net := NewCatsDogs(flags)
	assert.Equal(t, 2*2*128, net.flatSize())

	g := nn.NewGraph(nn.WithWorkers(1))
	logits, err := net.Forward(g, tensor.Zeros(tensor.Shape{2, 10, 10, 3}), false)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 1}, logits.Shape())

	names := g.Store().Names()
	assert.Contains(t, names, "conv3/weights")
	assert.Contains(t, names, "fc1/weights")
	w, _ := g.Store().Lookup("fc1/weights")
	assert.Equal(t, tensor.Shape{512, 256}, w.Value.Shape())

	// A second call reuses every variable.
	_, err = net.Forward(g, tensor.Zeros(tensor.Shape{1, 10, 10, 3}), true)
	require.NoError(t, err)
	assert.Len(t, g.Store().Names(), len(names))

	_, err = net.Forward(g, tensor.Zeros(tensor.Shape{1, 8, 8, 3}), false)
	assert.Error(t, err)
	assert.Contains(t, net.String(), "FC(512->256)")
}

func TestSmall_Forward(t *testing.T) {
	flags := config.Default()
	flags.ImageSize = 8
	flags.Channels = 1
	g := nn.NewGraph(nn.WithWorkers(1))
	logits, err := NewSmall(flags).Forward(g, tensor.Zeros(tensor.Shape{3, 8, 8, 1}), true)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{3, 1}, logits.Shape())
}

func TestNew(t *testing.T) {
	net, err := New("small", config.Default())
	require.NoError(t, err)
	assert.Equal(t, "small", net.Name())

	_, err = New("resnet", config.Default())
	assert.Error(t, err)
	assert.Equal(t, []string{"catsdogs", "small"}, Names())
}
