// Package ops defines the differentiable operations recorded by the gradient tape.
//
// Each operation keeps the tensors it needs for its backward pass:
//   - MatMulOp: d(A@B)/dA = grad@Bᵀ, d(A@B)/dB = Aᵀ@grad
//   - AddBiasOp: bias gradient is the sum over all leading dimensions
//   - Conv2DOp, MaxPool2DOp, AvgPool2DOp: NHWC kernels from the backend
//   - ReLUOp, SigmoidOp: element-wise activations
//   - ReshapeOp: gradient is reshaped back to the input shape
//   - SigmoidCrossEntropyOp: fused sigmoid + binary cross-entropy
package ops

import "github.com/born-ml/convnet/internal/tensor"

// Operation represents a differentiable operation in the computation graph.
// Each operation records its inputs and output during the forward pass,
// and computes input gradients during the backward pass.
type Operation interface {
	// Backward computes gradients for inputs given the output gradient.
	// Returns a slice of gradients corresponding to each input tensor;
	// a nil entry means no gradient flows to that input.
	Backward(outputGrad *tensor.Tensor, backend tensor.Backend) []*tensor.Tensor

	// Inputs returns the input tensors for this operation.
	Inputs() []*tensor.Tensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.Tensor
}
