package ops

import "github.com/born-ml/convnet/internal/tensor"

// MaxPool2DOp records a 2D max pooling operation.
//
// The forward pass stores the flat input index of every selected maximum;
// the backward pass routes each output gradient to that single element.
type MaxPool2DOp struct {
	input      *tensor.Tensor
	output     *tensor.Tensor
	maxIndices []int
}

// NewMaxPool2DOp creates a new MaxPool2DOp.
func NewMaxPool2DOp(input, output *tensor.Tensor, maxIndices []int) *MaxPool2DOp {
	return &MaxPool2DOp{input: input, output: output, maxIndices: maxIndices}
}

// Backward routes gradients to the argmax positions.
func (op *MaxPool2DOp) Backward(outputGrad *tensor.Tensor, backend tensor.Backend) []*tensor.Tensor {
	return []*tensor.Tensor{backend.MaxPool2DBackward(op.input, outputGrad, op.maxIndices)}
}

// Inputs returns [input].
func (op *MaxPool2DOp) Inputs() []*tensor.Tensor {
	return []*tensor.Tensor{op.input}
}

// Output returns the pooled tensor.
func (op *MaxPool2DOp) Output() *tensor.Tensor {
	return op.output
}

// AvgPool2DOp records a 2D average pooling operation.
type AvgPool2DOp struct {
	input   *tensor.Tensor
	output  *tensor.Tensor
	size    int
	stride  int
	padding tensor.Padding
}

// NewAvgPool2DOp creates a new AvgPool2DOp.
func NewAvgPool2DOp(input, output *tensor.Tensor, size, stride int, padding tensor.Padding) *AvgPool2DOp {
	return &AvgPool2DOp{input: input, output: output, size: size, stride: stride, padding: padding}
}

// Backward spreads each gradient over the in-bounds cells of its window.
func (op *AvgPool2DOp) Backward(outputGrad *tensor.Tensor, backend tensor.Backend) []*tensor.Tensor {
	return []*tensor.Tensor{backend.AvgPool2DBackward(op.input, outputGrad, op.size, op.stride, op.padding)}
}

// Inputs returns [input].
func (op *AvgPool2DOp) Inputs() []*tensor.Tensor {
	return []*tensor.Tensor{op.input}
}

// Output returns the pooled tensor.
func (op *AvgPool2DOp) Output() *tensor.Tensor {
	return op.output
}
