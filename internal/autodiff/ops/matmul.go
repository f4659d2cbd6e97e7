package ops

import "github.com/born-ml/convnet/internal/tensor"

// MatMulOp records out = a @ b for 2D operands.
type MatMulOp struct {
	a, b   *tensor.Tensor
	output *tensor.Tensor
}

// NewMatMulOp creates a new MatMulOp.
func NewMatMulOp(a, b, output *tensor.Tensor) *MatMulOp {
	return &MatMulOp{a: a, b: b, output: output}
}

// Backward computes grad @ bᵀ and aᵀ @ grad.
func (op *MatMulOp) Backward(outputGrad *tensor.Tensor, backend tensor.Backend) []*tensor.Tensor {
	gradA := backend.MatMul(outputGrad, op.b, false, true)
	gradB := backend.MatMul(op.a, outputGrad, true, false)
	return []*tensor.Tensor{gradA, gradB}
}

// Inputs returns [a, b].
func (op *MatMulOp) Inputs() []*tensor.Tensor {
	return []*tensor.Tensor{op.a, op.b}
}

// Output returns a @ b.
func (op *MatMulOp) Output() *tensor.Tensor {
	return op.output
}
