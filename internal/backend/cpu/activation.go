package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/convnet/internal/tensor"
)

// ReLU computes max(0, x) element-wise.
func (cpu *CPUBackend) ReLU(x *tensor.Tensor) *tensor.Tensor {
	xd := x.Data()
	out := make([]float32, len(xd))
	for i, v := range xd {
		if v > 0 {
			out[i] = v
		}
	}
	return tensor.Wrap(out, x.Shape())
}

// ReLUBackward passes grad through where the forward input was positive.
func (cpu *CPUBackend) ReLUBackward(x, grad *tensor.Tensor) *tensor.Tensor {
	checkSameShape("relu backward", x, grad)
	xd, gd := x.Data(), grad.Data()
	out := make([]float32, len(xd))
	for i, v := range xd {
		if v > 0 {
			out[i] = gd[i]
		}
	}
	return tensor.Wrap(out, x.Shape())
}

// Sigmoid computes σ(x) = 1 / (1 + exp(-x)) element-wise.
func (cpu *CPUBackend) Sigmoid(x *tensor.Tensor) *tensor.Tensor {
	xd := x.Data()
	out := make([]float32, len(xd))
	for i, v := range xd {
		out[i] = Sigmoid(v)
	}
	return tensor.Wrap(out, x.Shape())
}

// SigmoidBackward computes grad * y * (1 - y) given the forward output y.
func (cpu *CPUBackend) SigmoidBackward(y, grad *tensor.Tensor) *tensor.Tensor {
	checkSameShape("sigmoid backward", y, grad)
	yd, gd := y.Data(), grad.Data()
	out := make([]float32, len(yd))
	for i, v := range yd {
		out[i] = gd[i] * v * (1 - v)
	}
	return tensor.Wrap(out, y.Shape())
}

// Sigmoid is the scalar logistic function, computed in float64 to keep
// large negative inputs from overflowing exp.
func Sigmoid(v float32) float32 {
	x := float64(v)
	if x >= 0 {
		return float32(1.0 / (1.0 + math.Exp(-x)))
	}
	e := math.Exp(x)
	return float32(e / (1.0 + e))
}

func checkSameShape(op string, a, b *tensor.Tensor) {
	if !a.Shape().Equal(b.Shape()) {
		panic(fmt.Sprintf("%s: shape mismatch %v vs %v", op, a.Shape(), b.Shape()))
	}
}
