package autodiff

import (
	"github.com/born-ml/convnet/internal/tensor"
)

// Backward computes gradients of t with respect to every recorded tensor,
// seeding the output gradient with ones.
//
// Panics if nothing was recorded, which almost always means recording was
// never started.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	loss := backend.SigmoidCrossEntropy(logits, labels)
//	grads := backend.Backward(loss)
//	grad := grads[weights]
func (b *AutodiffBackend[B]) Backward(t *tensor.Tensor) map[*tensor.Tensor]*tensor.Tensor {
	if b.tape.NumOps() == 0 {
		panic("backward: no operations recorded (did you forget to call Tape().StartRecording()?)")
	}
	return b.tape.Backward(t, tensor.Full(t.Shape(), 1), b.inner)
}
