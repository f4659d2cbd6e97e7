// Package cpu implements the CPU backend on top of gonum's float32 BLAS.
package cpu

import (
	"fmt"

	"github.com/born-ml/convnet/internal/parallel"
	"github.com/born-ml/convnet/internal/tensor"
)

// CPUBackend implements tensor operations on CPU.
//
// Batch-level loops (im2col, pooling) are split across goroutines according
// to the parallel configuration; matrix products go through blas32.
type CPUBackend struct {
	par parallel.Config
}

// Compile-time check that CPUBackend implements tensor.Backend.
var _ tensor.Backend = (*CPUBackend)(nil)

// New creates a new CPU backend using the default parallel configuration.
func New() *CPUBackend {
	return &CPUBackend{par: parallel.DefaultConfig()}
}

// NewWithWorkers creates a CPU backend limited to n worker goroutines.
func NewWithWorkers(n int) *CPUBackend {
	return &CPUBackend{par: parallel.DefaultConfig().WithWorkers(n)}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Workers returns the number of worker goroutines used by batch loops.
func (cpu *CPUBackend) Workers() int {
	if !cpu.par.Enabled {
		return 1
	}
	return cpu.par.NumWorkers
}

// Add performs element-wise addition of two tensors with equal shapes.
func (cpu *CPUBackend) Add(a, b *tensor.Tensor) *tensor.Tensor {
	if !a.Shape().Equal(b.Shape()) {
		panic(fmt.Sprintf("add: shape mismatch %v vs %v", a.Shape(), b.Shape()))
	}
	ad, bd := a.Data(), b.Data()
	out := make([]float32, len(ad))
	for i := range ad {
		out[i] = ad[i] + bd[i]
	}
	return tensor.Wrap(out, a.Shape())
}

// AddBias adds bias to x, broadcasting over every dimension but the last.
func (cpu *CPUBackend) AddBias(x, bias *tensor.Tensor) *tensor.Tensor {
	c := x.Shape().Last()
	if bias.NumElements() != c {
		panic(fmt.Sprintf("add_bias: bias has %d elements, input last dimension is %d", bias.NumElements(), c))
	}
	xd, bd := x.Data(), bias.Data()
	out := make([]float32, len(xd))
	for i := range xd {
		out[i] = xd[i] + bd[i%c]
	}
	return tensor.Wrap(out, x.Shape())
}

// BiasGrad reduces grad to the bias shape by summing over leading dimensions.
func (cpu *CPUBackend) BiasGrad(grad *tensor.Tensor) *tensor.Tensor {
	c := grad.Shape().Last()
	gd := grad.Data()
	out := make([]float32, c)
	for i, g := range gd {
		out[i%c] += g
	}
	return tensor.Wrap(out, tensor.Shape{c})
}
