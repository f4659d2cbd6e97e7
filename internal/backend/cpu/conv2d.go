package cpu

import (
	"fmt"

	"github.com/born-ml/convnet/internal/tensor"
)

// convGeometry holds the dimensions of one NHWC convolution.
type convGeometry struct {
	n, h, w, c      int // input
	kh, kw, out     int // kernel
	hOut, wOut      int // output
	padTop, padLeft int
	stride          int
	rows, cols      int // im2col matrix [rows, cols]
}

func newConvGeometry(x, w *tensor.Tensor, stride int, pad tensor.Padding) convGeometry {
	xs, ws := x.Shape(), w.Shape()
	if len(xs) != 4 {
		panic(fmt.Sprintf("conv2d: input must be 4D [N,H,W,C], got %v", xs))
	}
	if len(ws) != 4 {
		panic(fmt.Sprintf("conv2d: kernel must be 4D [K_h,K_w,C_in,C_out], got %v", ws))
	}
	if xs[3] != ws[2] {
		panic(fmt.Sprintf("conv2d: input channels %d != kernel channels %d", xs[3], ws[2]))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("conv2d: invalid stride %d", stride))
	}

	g := convGeometry{
		n: xs[0], h: xs[1], w: xs[2], c: xs[3],
		kh: ws[0], kw: ws[1], out: ws[3],
		stride: stride,
	}
	g.hOut, g.padTop = pad.Window(g.h, g.kh, stride)
	g.wOut, g.padLeft = pad.Window(g.w, g.kw, stride)
	if g.hOut <= 0 || g.wOut <= 0 {
		panic(fmt.Sprintf("conv2d: invalid output dimensions %dx%d for input %v, kernel %v, %s", g.hOut, g.wOut, xs, ws, pad))
	}
	g.rows = g.n * g.hOut * g.wOut
	g.cols = g.kh * g.kw * g.c
	return g
}

// Conv2D performs 2D convolution using the im2col algorithm.
//
// Input shape:  [batch, height, width, in_channels]
// Kernel shape: [k_h, k_w, in_channels, out_channels]
// Output shape: [batch, out_h, out_w, out_channels]
//
// Algorithm:
//  1. Im2col: gather every receptive field into a row of a
//     [N*H_out*W_out, K_h*K_w*C_in] matrix (zeros for padded cells)
//  2. The kernel is already a [K_h*K_w*C_in, C_out] matrix in row-major order
//  3. One GEMM yields [N*H_out*W_out, C_out], which is the NHWC output
//
// Reference: "High Performance Convolutional Neural Networks for Document Processing"
// (Chellapilla et al., 2006).
func (cpu *CPUBackend) Conv2D(x, w *tensor.Tensor, stride int, pad tensor.Padding) *tensor.Tensor {
	g := newConvGeometry(x, w, stride, pad)

	col := make([]float32, g.rows*g.cols)
	cpu.im2col(col, x.Data(), g)

	out := make([]float32, g.rows*g.out)
	gemm(col, g.rows, g.cols, false, w.Data(), g.cols, g.out, false, out, g.rows, g.out)

	return tensor.Wrap(out, tensor.Shape{g.n, g.hOut, g.wOut, g.out})
}

// im2col fills col ([rows, cols]) from the NHWC input.
// Column order within a row is (kh, kw, c), matching the kernel layout.
func (cpu *CPUBackend) im2col(col, x []float32, g convGeometry) {
	cpu.forBatch(g.n, func(n int) {
		for oh := 0; oh < g.hOut; oh++ {
			for ow := 0; ow < g.wOut; ow++ {
				row := ((n*g.hOut+oh)*g.wOut + ow) * g.cols
				for kh := 0; kh < g.kh; kh++ {
					ih := oh*g.stride - g.padTop + kh
					for kw := 0; kw < g.kw; kw++ {
						iw := ow*g.stride - g.padLeft + kw
						dst := col[row+(kh*g.kw+kw)*g.c : row+(kh*g.kw+kw+1)*g.c]
						if ih < 0 || ih >= g.h || iw < 0 || iw >= g.w {
							continue // padded cell stays zero
						}
						src := ((n*g.h+ih)*g.w + iw) * g.c
						copy(dst, x[src:src+g.c])
					}
				}
			}
		}
	})
}

// col2im scatters col back into an NHWC gradient buffer, accumulating
// overlapping receptive fields.
func (cpu *CPUBackend) col2im(dx, col []float32, g convGeometry) {
	// Each goroutine owns one batch element, so the += never races.
	cpu.forBatch(g.n, func(n int) {
		for oh := 0; oh < g.hOut; oh++ {
			for ow := 0; ow < g.wOut; ow++ {
				row := ((n*g.hOut+oh)*g.wOut + ow) * g.cols
				for kh := 0; kh < g.kh; kh++ {
					ih := oh*g.stride - g.padTop + kh
					if ih < 0 || ih >= g.h {
						continue
					}
					for kw := 0; kw < g.kw; kw++ {
						iw := ow*g.stride - g.padLeft + kw
						if iw < 0 || iw >= g.w {
							continue
						}
						src := row + (kh*g.kw+kw)*g.c
						dst := ((n*g.h+ih)*g.w + iw) * g.c
						for c := 0; c < g.c; c++ {
							dx[dst+c] += col[src+c]
						}
					}
				}
			}
		}
	})
}
