package ops

import "github.com/born-ml/convnet/internal/tensor"

// ReshapeOp records a reshape. The forward output shares the input's data.
type ReshapeOp struct {
	input  *tensor.Tensor
	output *tensor.Tensor
}

// NewReshapeOp creates a new ReshapeOp.
func NewReshapeOp(input, output *tensor.Tensor) *ReshapeOp {
	return &ReshapeOp{input: input, output: output}
}

// Backward reshapes the gradient back to the input shape.
func (op *ReshapeOp) Backward(outputGrad *tensor.Tensor, _ tensor.Backend) []*tensor.Tensor {
	return []*tensor.Tensor{outputGrad.Reshape(op.input.Shape()...)}
}

// Inputs returns [input].
func (op *ReshapeOp) Inputs() []*tensor.Tensor {
	return []*tensor.Tensor{op.input}
}

// Output returns the reshaped view.
func (op *ReshapeOp) Output() *tensor.Tensor {
	return op.output
}
