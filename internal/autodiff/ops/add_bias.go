package ops

import "github.com/born-ml/convnet/internal/tensor"

// AddBiasOp records out = x + bias, with bias broadcast over the last dimension.
type AddBiasOp struct {
	x, bias *tensor.Tensor
	output  *tensor.Tensor
}

// NewAddBiasOp creates a new AddBiasOp.
func NewAddBiasOp(x, bias, output *tensor.Tensor) *AddBiasOp {
	return &AddBiasOp{x: x, bias: bias, output: output}
}

// Backward passes the gradient through to x and reduces it for bias.
func (op *AddBiasOp) Backward(outputGrad *tensor.Tensor, backend tensor.Backend) []*tensor.Tensor {
	biasGrad := backend.BiasGrad(outputGrad)
	if !biasGrad.Shape().Equal(op.bias.Shape()) {
		biasGrad = biasGrad.Reshape(op.bias.Shape()...)
	}
	return []*tensor.Tensor{outputGrad, biasGrad}
}

// Inputs returns [x, bias].
func (op *AddBiasOp) Inputs() []*tensor.Tensor {
	return []*tensor.Tensor{op.x, op.bias}
}

// Output returns x + bias.
func (op *AddBiasOp) Output() *tensor.Tensor {
	return op.output
}
