package ops

import (
	"fmt"
	"math"

	"github.com/born-ml/convnet/internal/tensor"
)

// SigmoidCrossEntropyOp represents the mean sigmoid cross-entropy loss.
//
// Forward, per element with logit x and label z:
//
//	loss = max(x, 0) - x*z + log(1 + exp(-|x|))
//
// which equals -z*log(σ(x)) - (1-z)*log(1-σ(x)) without overflowing for
// large |x|. The output is the mean over all elements.
//
// Backward:
//
//	∂L/∂x = (σ(x) - z) / n
//
// Labels receive no gradient.
type SigmoidCrossEntropyOp struct {
	logits *tensor.Tensor
	labels *tensor.Tensor
	output *tensor.Tensor // one-element mean loss
}

// NewSigmoidCrossEntropyOp creates a new SigmoidCrossEntropyOp.
func NewSigmoidCrossEntropyOp(logits, labels, output *tensor.Tensor) *SigmoidCrossEntropyOp {
	return &SigmoidCrossEntropyOp{logits: logits, labels: labels, output: output}
}

// Inputs returns [logits]. Labels are constants.
func (op *SigmoidCrossEntropyOp) Inputs() []*tensor.Tensor {
	return []*tensor.Tensor{op.logits}
}

// Output returns the scalar loss.
func (op *SigmoidCrossEntropyOp) Output() *tensor.Tensor {
	return op.output
}

// Backward computes (σ(x) - z) / n scaled by the incoming scalar gradient.
func (op *SigmoidCrossEntropyOp) Backward(outputGrad *tensor.Tensor, _ tensor.Backend) []*tensor.Tensor {
	scale := float64(outputGrad.Data()[0]) / float64(op.logits.NumElements())
	xd, zd := op.logits.Data(), op.labels.Data()
	grad := make([]float32, len(xd))
	for i, x := range xd {
		grad[i] = float32((sigmoid(float64(x)) - float64(zd[i])) * scale)
	}
	return []*tensor.Tensor{tensor.Wrap(grad, op.logits.Shape())}
}

// SigmoidCrossEntropy computes the mean sigmoid cross-entropy of logits
// against labels of the same size. The result has shape [1].
func SigmoidCrossEntropy(logits, labels *tensor.Tensor) *tensor.Tensor {
	if logits.NumElements() != labels.NumElements() {
		panic(fmt.Sprintf("sigmoid_cross_entropy: logits %v and labels %v differ in size", logits.Shape(), labels.Shape()))
	}
	xd, zd := logits.Data(), labels.Data()
	var sum float64
	for i, v := range xd {
		x, z := float64(v), float64(zd[i])
		sum += math.Max(x, 0) - x*z + math.Log1p(math.Exp(-math.Abs(x)))
	}
	return tensor.Wrap([]float32{float32(sum / float64(len(xd)))}, tensor.Shape{1})
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}
