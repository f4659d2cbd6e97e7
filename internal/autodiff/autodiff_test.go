package autodiff_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/convnet/internal/autodiff"
	"github.com/born-ml/convnet/internal/backend/cpu"
	"github.com/born-ml/convnet/internal/tensor"
)

func newBackend() *autodiff.AutodiffBackend[*cpu.CPUBackend] {
	return autodiff.New(cpu.New())
}

func TestAutodiffBackend_Name(t *testing.T) {
	assert.Equal(t, "Autodiff(CPU)", newBackend().Name())
}

func TestTape_Recording(t *testing.T) {
	tape := newBackend().Tape()

	assert.False(t, tape.IsRecording(), "tape should not record initially")
	tape.StartRecording()
	assert.True(t, tape.IsRecording())
	tape.StopRecording()
	assert.False(t, tape.IsRecording())
}

func TestTape_Clear(t *testing.T) {
	backend := newBackend()
	tape := backend.Tape()
	tape.StartRecording()

	x := tensor.Full(tensor.Shape{2, 3}, 1)
	backend.ReLU(x)
	require.Equal(t, 1, tape.NumOps())

	tape.Clear()
	assert.Equal(t, 0, tape.NumOps())
	assert.True(t, tape.IsRecording(), "Clear keeps the recording state")
}

func TestTape_NotRecording(t *testing.T) {
	backend := newBackend()
	backend.ReLU(tensor.Full(tensor.Shape{2}, 1))
	assert.Equal(t, 0, backend.Tape().NumOps())
	assert.Panics(t, func() { backend.Backward(tensor.Full(tensor.Shape{1}, 1)) })
}

func TestSigmoidCrossEntropy_Value(t *testing.T) {
	backend := newBackend()
	logits := tensor.Zeros(tensor.Shape{4, 1})
	labels, err := tensor.FromSlice([]float32{0, 1, 0, 1}, tensor.Shape{4, 1})
	require.NoError(t, err)

	loss := backend.SigmoidCrossEntropy(logits, labels)
	assert.InDelta(t, math.Ln2, loss.Item(), 1e-6)

	// Large logits must neither overflow nor lose the correct value.
	big, err := tensor.FromSlice([]float32{100, -100}, tensor.Shape{2})
	require.NoError(t, err)
	z, err := tensor.FromSlice([]float32{0, 0}, tensor.Shape{2})
	require.NoError(t, err)
	assert.InDelta(t, 50, backend.SigmoidCrossEntropy(big, z).Item(), 1e-4)
}

func TestBackward_ReLUMask(t *testing.T) {
	backend := newBackend()
	backend.Tape().StartRecording()

	x, err := tensor.FromSlice([]float32{-1, 2, -3, 4}, tensor.Shape{4})
	require.NoError(t, err)
	z := tensor.Zeros(tensor.Shape{4})
	loss := backend.SigmoidCrossEntropy(backend.ReLU(x), z)

	grads := backend.Backward(loss)
	dx := grads[x]
	require.NotNil(t, dx)
	assert.Zero(t, dx.Data()[0])
	assert.Zero(t, dx.Data()[2])
	assert.InDelta(t, cpu.Sigmoid(2)/4, dx.Data()[1], 1e-6)
	assert.InDelta(t, cpu.Sigmoid(4)/4, dx.Data()[3], 1e-6)
}

func TestBackward_Dense(t *testing.T) {
	backend := newBackend()
	rng := rand.New(rand.NewSource(11))
	x := tensor.Uniform(tensor.Shape{4, 3}, 1, rng)
	w := tensor.Uniform(tensor.Shape{3, 1}, 1, rng)
	b := tensor.Full(tensor.Shape{1}, 0.1)
	z, err := tensor.FromSlice([]float32{1, 0, 1, 0}, tensor.Shape{4, 1})
	require.NoError(t, err)

	forward := func() *tensor.Tensor {
		return backend.SigmoidCrossEntropy(backend.AddBias(backend.MatMul(x, w), b), z)
	}

	grads := record(backend, forward)
	checkGrad(t, backend, "w", w, grads[w], forward)
	checkGrad(t, backend, "b", b, grads[b], forward)
	assert.Nil(t, grads[z], "labels receive no gradient")
}

func TestBackward_SharedWeightAccumulates(t *testing.T) {
	backend := newBackend()
	rng := rand.New(rand.NewSource(5))
	x := tensor.Uniform(tensor.Shape{3, 2}, 1, rng)
	w := tensor.Uniform(tensor.Shape{2, 2}, 1, rng)
	z := tensor.Full(tensor.Shape{3, 2}, 1)

	forward := func() *tensor.Tensor {
		return backend.SigmoidCrossEntropy(backend.MatMul(backend.MatMul(x, w), w), z)
	}

	grads := record(backend, forward)
	checkGrad(t, backend, "w", w, grads[w], forward)
}

func TestBackward_ConvNet(t *testing.T) {
	backend := newBackend()
	rng := rand.New(rand.NewSource(21))
	images := tensor.Uniform(tensor.Shape{2, 6, 6, 2}, 1, rng)
	kernel := tensor.Uniform(tensor.Shape{3, 3, 2, 3}, 0.5, rng)
	convBias := tensor.Full(tensor.Shape{3}, 0.1)
	fc := tensor.Uniform(tensor.Shape{3 * 3 * 3, 1}, 0.5, rng)
	fcBias := tensor.Full(tensor.Shape{1}, 0.1)
	z, err := tensor.FromSlice([]float32{1, 0}, tensor.Shape{2, 1})
	require.NoError(t, err)

	forward := func() *tensor.Tensor {
		h := backend.Sigmoid(backend.AddBias(backend.Conv2D(images, kernel, 1, tensor.Same), convBias))
		h = backend.AvgPool2D(h, 2, 2, tensor.Same)
		h = backend.Reshape(h, 2, -1)
		logits := backend.AddBias(backend.MatMul(h, fc), fcBias)
		return backend.SigmoidCrossEntropy(logits, z)
	}

	grads := record(backend, forward)
	checkGrad(t, backend, "kernel", kernel, grads[kernel], forward)
	checkGrad(t, backend, "conv bias", convBias, grads[convBias], forward)
	checkGrad(t, backend, "fc", fc, grads[fc], forward)
	checkGrad(t, backend, "images", images, grads[images], forward)
}

func TestBackward_MaxPoolRoutesToArgmax(t *testing.T) {
	backend := newBackend()
	backend.Tape().StartRecording()

	x, err := tensor.FromSlice([]float32{1, 5, 3, 2}, tensor.Shape{1, 2, 2, 1})
	require.NoError(t, err)
	pooled := backend.MaxPool2D(x, 2, 2, tensor.Valid)
	loss := backend.SigmoidCrossEntropy(pooled, tensor.Zeros(tensor.Shape{1}))

	dx := backend.Backward(loss)[x]
	require.NotNil(t, dx)
	assert.Equal(t, float32(0), dx.Data()[0])
	assert.InDelta(t, cpu.Sigmoid(5), dx.Data()[1], 1e-6)
	assert.Equal(t, float32(0), dx.Data()[2])
	assert.Equal(t, float32(0), dx.Data()[3])
}

// record runs forward on a fresh tape and returns the gradients of its output.
func record(backend *autodiff.AutodiffBackend[*cpu.CPUBackend], forward func() *tensor.Tensor) map[*tensor.Tensor]*tensor.Tensor {
	tape := backend.Tape()
	tape.Clear()
	tape.StartRecording()
	loss := forward()
	tape.StopRecording()
	grads := backend.Backward(loss)
	tape.Clear()
	return grads
}

// checkGrad compares an analytic gradient with central differences.
func checkGrad(
	t *testing.T,
	backend *autodiff.AutodiffBackend[*cpu.CPUBackend],
	name string,
	param, analytic *tensor.Tensor,
	forward func() *tensor.Tensor,
) {
	t.Helper()
	require.NotNil(t, analytic, "no gradient for %s", name)
	require.True(t, analytic.Shape().Equal(param.Shape()), "%s: gradient shape %v, param %v", name, analytic.Shape(), param.Shape())
	require.False(t, backend.Tape().IsRecording())

	const eps = 1e-2
	pd := param.Data()
	for i := range pd {
		orig := pd[i]
		pd[i] = orig + eps
		plus := float64(forward().Item())
		pd[i] = orig - eps
		minus := float64(forward().Item())
		pd[i] = orig
		numeric := (plus - minus) / (2 * eps)
		assert.InDelta(t, numeric, analytic.Data()[i], 2e-3, "%s[%d]", name, i)
	}
}
