// Package autodiff implements automatic differentiation using the decorator pattern.
//
// AutodiffBackend wraps a tensor.Backend and records every differentiable
// forward operation on a GradientTape. Backward then walks the tape in
// reverse and returns the gradient of every tensor that contributed.
//
// Usage:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	h := backend.ReLU(backend.AddBias(backend.MatMul(x, w), b))
//	loss := backend.SigmoidCrossEntropy(h, labels)
//	backend.Tape().StopRecording()
//	grads := backend.Backward(loss)
//	dw := grads[w]
package autodiff

import (
	"github.com/born-ml/convnet/internal/autodiff/ops"
	"github.com/born-ml/convnet/internal/tensor"
)

// AutodiffBackend wraps a Backend and adds automatic differentiation.
//
// Type parameter B must satisfy the tensor.Backend interface.
type AutodiffBackend[B tensor.Backend] struct {
	inner B             // Wrapped backend
	tape  *GradientTape // Records operations for backpropagation
}

// New creates a new AutodiffBackend wrapping the given backend.
func New[B tensor.Backend](backend B) *AutodiffBackend[B] {
	return &AutodiffBackend[B]{
		inner: backend,
		tape:  NewGradientTape(),
	}
}

// Tape returns the gradient tape for manual control.
func (b *AutodiffBackend[B]) Tape() *GradientTape {
	return b.tape
}

// Inner returns the wrapped backend for direct access.
func (b *AutodiffBackend[B]) Inner() B {
	return b.inner
}

// Name returns the backend name.
func (b *AutodiffBackend[B]) Name() string {
	return "Autodiff(" + b.inner.Name() + ")"
}

// MatMul computes a @ b and records the operation.
func (b *AutodiffBackend[B]) MatMul(x, w *tensor.Tensor) *tensor.Tensor {
	result := b.inner.MatMul(x, w, false, false)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewMatMulOp(x, w, result))
	}
	return result
}

// AddBias adds bias over the last dimension and records the operation.
func (b *AutodiffBackend[B]) AddBias(x, bias *tensor.Tensor) *tensor.Tensor {
	result := b.inner.AddBias(x, bias)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewAddBiasOp(x, bias, result))
	}
	return result
}

// Conv2D performs an NHWC convolution and records the operation.
func (b *AutodiffBackend[B]) Conv2D(x, kernel *tensor.Tensor, stride int, padding tensor.Padding) *tensor.Tensor {
	result := b.inner.Conv2D(x, kernel, stride, padding)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewConv2DOp(x, kernel, result, stride, padding))
	}
	return result
}

// MaxPool2D performs max pooling and records the operation.
func (b *AutodiffBackend[B]) MaxPool2D(x *tensor.Tensor, size, stride int, padding tensor.Padding) *tensor.Tensor {
	result, indices := b.inner.MaxPool2D(x, size, stride, padding)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewMaxPool2DOp(x, result, indices))
	}
	return result
}

// AvgPool2D performs average pooling and records the operation.
func (b *AutodiffBackend[B]) AvgPool2D(x *tensor.Tensor, size, stride int, padding tensor.Padding) *tensor.Tensor {
	result := b.inner.AvgPool2D(x, size, stride, padding)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewAvgPool2DOp(x, result, size, stride, padding))
	}
	return result
}

// ReLU applies max(0, x) and records the operation.
func (b *AutodiffBackend[B]) ReLU(x *tensor.Tensor) *tensor.Tensor {
	result := b.inner.ReLU(x)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewReLUOp(x, result))
	}
	return result
}

// Sigmoid applies the logistic function and records the operation.
func (b *AutodiffBackend[B]) Sigmoid(x *tensor.Tensor) *tensor.Tensor {
	result := b.inner.Sigmoid(x)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewSigmoidOp(x, result))
	}
	return result
}

// Reshape returns a view of x with a new shape and records the operation.
// One dimension may be -1.
func (b *AutodiffBackend[B]) Reshape(x *tensor.Tensor, dims ...int) *tensor.Tensor {
	result := x.Reshape(dims...)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewReshapeOp(x, result))
	}
	return result
}

// SigmoidCrossEntropy computes the mean sigmoid cross-entropy of logits
// against labels and records the operation.
func (b *AutodiffBackend[B]) SigmoidCrossEntropy(logits, labels *tensor.Tensor) *tensor.Tensor {
	result := ops.SigmoidCrossEntropy(logits, labels)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewSigmoidCrossEntropyOp(logits, labels, result))
	}
	return result
}
