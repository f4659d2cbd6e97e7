// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the float32 NHWC tensors used by convnet models.
//
// # Overview
//
// Images enter a network as [batch, height, width, channels] tensors and
// convolution kernels are [k_h, k_w, in, out], the TensorFlow layout.
// Every operation allocates its output, so a tensor produced by a layer
// can be kept and inspected after later layers have run.
//
// # Basic Usage
//
//	x := tensor.Zeros(tensor.Shape{1, 64, 64, 3})
//	x.Set(0.5, 0, 10, 10, 0)
//	flat := x.Reshape(1, -1)
//
// # Padding
//
// Convolution and pooling accept tensor.Same or tensor.Valid:
//
//	SAME:  out = ceil(in / stride), padding split evenly with the extra
//	       cell at the end
//	VALID: out = (in - window) / stride + 1
package tensor
