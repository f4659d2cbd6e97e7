// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go CPU backend used by convnet graphs.
//
// # Overview
//
// The backend implements the kernels a cats-vs-dogs convnet needs:
//   - Conv2D through im2col and one float32 GEMM (gonum blas32)
//   - SAME/VALID max and average pooling with TensorFlow border rules
//   - ReLU, sigmoid and the backward kernels of every forward op
//
// Batch-level loops are split across goroutines; the worker count defaults
// to the number of physical cores.
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/convnet/autodiff"
//	    "github.com/born-ml/convnet/backend/cpu"
//	)
//
//	func main() {
//	    backend := autodiff.New(cpu.New())
//	    _ = backend
//	}
package cpu
