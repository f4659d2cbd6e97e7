package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/convnet/internal/tensor"
)

// poolGeometry holds the dimensions of one NHWC pooling window sweep.
type poolGeometry struct {
	n, h, w, c      int
	size, stride    int
	hOut, wOut      int
	padTop, padLeft int
}

func newPoolGeometry(x *tensor.Tensor, size, stride int, pad tensor.Padding) poolGeometry {
	xs := x.Shape()
	if len(xs) != 4 {
		panic(fmt.Sprintf("pool2d: expected 4D input [N,H,W,C], got %v", xs))
	}
	if size <= 0 {
		panic(fmt.Sprintf("pool2d: invalid window size %d", size))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("pool2d: invalid stride %d", stride))
	}
	g := poolGeometry{n: xs[0], h: xs[1], w: xs[2], c: xs[3], size: size, stride: stride}
	g.hOut, g.padTop = pad.Window(g.h, size, stride)
	g.wOut, g.padLeft = pad.Window(g.w, size, stride)
	if g.hOut <= 0 || g.wOut <= 0 {
		panic(fmt.Sprintf("pool2d: window %d (stride %d, %s) does not fit input %v", size, stride, pad, xs))
	}
	return g
}

// window returns the in-bounds input rows [h0, h1) and columns [w0, w1)
// covered by output cell (oh, ow). Padded cells are excluded.
func (g poolGeometry) window(oh, ow int) (h0, h1, w0, w1 int) {
	h0 = oh*g.stride - g.padTop
	w0 = ow*g.stride - g.padLeft
	h1 = min(h0+g.size, g.h)
	w1 = min(w0+g.size, g.w)
	return max(h0, 0), h1, max(w0, 0), w1
}

func (g poolGeometry) outShape() tensor.Shape {
	return tensor.Shape{g.n, g.hOut, g.wOut, g.c}
}

// MaxPool2D performs 2D max pooling over NHWC input.
//
// Padded cells never win, which matches TensorFlow's SAME max pooling.
// The second return value holds, for every output element, the flat index
// of the selected input element; MaxPool2DBackward routes gradients with it.
//
// Example (2x2 pool, stride=2, one channel):
//
//	Input: [[1,2,3,4],    Output: [[6,8],
//	        [5,6,7,8],             [14,16]]
//	        [9,10,11,12],
//	        [13,14,15,16]]
func (cpu *CPUBackend) MaxPool2D(x *tensor.Tensor, size, stride int, pad tensor.Padding) (*tensor.Tensor, []int) {
	g := newPoolGeometry(x, size, stride, pad)
	xd := x.Data()
	out := make([]float32, g.n*g.hOut*g.wOut*g.c)
	indices := make([]int, len(out))

	cpu.forBatch(g.n, func(n int) {
		for oh := 0; oh < g.hOut; oh++ {
			for ow := 0; ow < g.wOut; ow++ {
				h0, h1, w0, w1 := g.window(oh, ow)
				base := ((n*g.hOut+oh)*g.wOut + ow) * g.c
				for c := 0; c < g.c; c++ {
					best := float32(math.Inf(-1))
					bestIdx := -1
					for ih := h0; ih < h1; ih++ {
						for iw := w0; iw < w1; iw++ {
							idx := ((n*g.h+ih)*g.w+iw)*g.c + c
							if bestIdx < 0 || xd[idx] > best {
								best = xd[idx]
								bestIdx = idx
							}
						}
					}
					out[base+c] = best
					indices[base+c] = bestIdx
				}
			}
		}
	})

	return tensor.Wrap(out, g.outShape()), indices
}

// MaxPool2DBackward routes each output gradient to the input element that
// produced the maximum.
func (cpu *CPUBackend) MaxPool2DBackward(x, grad *tensor.Tensor, maxIndices []int) *tensor.Tensor {
	gd := grad.Data()
	if len(gd) != len(maxIndices) {
		panic(fmt.Sprintf("maxpool2d backward: %d gradients for %d indices", len(gd), len(maxIndices)))
	}
	dx := make([]float32, x.NumElements())
	for i, idx := range maxIndices {
		if idx >= 0 {
			dx[idx] += gd[i]
		}
	}
	return tensor.Wrap(dx, x.Shape())
}

// AvgPool2D performs 2D average pooling over NHWC input.
//
// Each output is the mean of the in-bounds cells of its window, so padded
// cells are neither summed nor counted (TensorFlow SAME semantics).
func (cpu *CPUBackend) AvgPool2D(x *tensor.Tensor, size, stride int, pad tensor.Padding) *tensor.Tensor {
	g := newPoolGeometry(x, size, stride, pad)
	xd := x.Data()
	out := make([]float32, g.n*g.hOut*g.wOut*g.c)

	cpu.forBatch(g.n, func(n int) {
		for oh := 0; oh < g.hOut; oh++ {
			for ow := 0; ow < g.wOut; ow++ {
				h0, h1, w0, w1 := g.window(oh, ow)
				count := float32((h1 - h0) * (w1 - w0))
				base := ((n*g.hOut+oh)*g.wOut + ow) * g.c
				for ih := h0; ih < h1; ih++ {
					for iw := w0; iw < w1; iw++ {
						src := ((n*g.h+ih)*g.w + iw) * g.c
						for c := 0; c < g.c; c++ {
							out[base+c] += xd[src+c]
						}
					}
				}
				for c := 0; c < g.c; c++ {
					out[base+c] /= count
				}
			}
		}
	})

	return tensor.Wrap(out, g.outShape())
}

// AvgPool2DBackward spreads each output gradient evenly over the in-bounds
// cells of its window.
func (cpu *CPUBackend) AvgPool2DBackward(x, grad *tensor.Tensor, size, stride int, pad tensor.Padding) *tensor.Tensor {
	g := newPoolGeometry(x, size, stride, pad)
	if !grad.Shape().Equal(g.outShape()) {
		panic(fmt.Sprintf("avgpool2d backward: gradient shape %v, expected %v", grad.Shape(), g.outShape()))
	}
	gd := grad.Data()
	dx := make([]float32, x.NumElements())

	cpu.forBatch(g.n, func(n int) {
		for oh := 0; oh < g.hOut; oh++ {
			for ow := 0; ow < g.wOut; ow++ {
				h0, h1, w0, w1 := g.window(oh, ow)
				count := float32((h1 - h0) * (w1 - w0))
				base := ((n*g.hOut+oh)*g.wOut + ow) * g.c
				for ih := h0; ih < h1; ih++ {
					for iw := w0; iw < w1; iw++ {
						dst := ((n*g.h+ih)*g.w + iw) * g.c
						for c := 0; c < g.c; c++ {
							dx[dst+c] += gd[base+c] / count
						}
					}
				}
			}
		}
	})

	return tensor.Wrap(dx, x.Shape())
}
