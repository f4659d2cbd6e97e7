package tensor

// Backend defines the kernels that a compute device must provide.
//
// All image tensors are NHWC ([batch, height, width, channels]) and
// convolution kernels are [k_h, k_w, in_channels, out_channels], matching the
// layout TensorFlow uses for images.
//
// Backward kernels take the forward inputs and the upstream gradient and
// return the gradient with respect to one input.
type Backend interface {
	// Name returns the backend name (e.g. "CPU").
	Name() string

	// Element-wise.
	Add(a, b *Tensor) *Tensor // a + b, same shape.

	// Matrix operations.
	MatMul(a, b *Tensor, transA, transB bool) *Tensor // op(a) @ op(b) for 2D tensors.
	AddBias(x, bias *Tensor) *Tensor                  // x + bias broadcast over the last dimension.
	BiasGrad(grad *Tensor) *Tensor                    // Sum of grad over all but the last dimension.

	// Convolution.
	Conv2D(x, w *Tensor, stride int, pad Padding) *Tensor
	Conv2DInputBackward(x, w, grad *Tensor, stride int, pad Padding) *Tensor
	Conv2DKernelBackward(x, w, grad *Tensor, stride int, pad Padding) *Tensor

	// Pooling. MaxPool2D also returns the flat input index of each maximum.
	MaxPool2D(x *Tensor, size, stride int, pad Padding) (*Tensor, []int)
	MaxPool2DBackward(x, grad *Tensor, maxIndices []int) *Tensor
	AvgPool2D(x *Tensor, size, stride int, pad Padding) *Tensor
	AvgPool2DBackward(x, grad *Tensor, size, stride int, pad Padding) *Tensor

	// Activations. Backward kernels receive the forward input (ReLU) or
	// output (Sigmoid).
	ReLU(x *Tensor) *Tensor
	ReLUBackward(x, grad *Tensor) *Tensor
	Sigmoid(x *Tensor) *Tensor
	SigmoidBackward(y, grad *Tensor) *Tensor
}
