package cpu

import (
	"fmt"

	"github.com/born-ml/convnet/internal/parallel"
	"github.com/born-ml/convnet/internal/tensor"
)

// Conv2DInputBackward computes ∂L/∂input for Conv2D.
//
// With col = im2col(input) and output = col @ kernel:
//
//	∂L/∂col   = grad @ kernelᵀ          [N*H_out*W_out, K_h*K_w*C_in]
//	∂L/∂input = col2im(∂L/∂col)         [N, H, W, C_in]
func (cpu *CPUBackend) Conv2DInputBackward(x, w, grad *tensor.Tensor, stride int, pad tensor.Padding) *tensor.Tensor {
	g := newConvGeometry(x, w, stride, pad)
	checkConvGrad(grad, g)

	dcol := make([]float32, g.rows*g.cols)
	gemm(grad.Data(), g.rows, g.out, false, w.Data(), g.cols, g.out, true, dcol, g.rows, g.cols)

	dx := make([]float32, x.NumElements())
	cpu.col2im(dx, dcol, g)
	return tensor.Wrap(dx, x.Shape())
}

// Conv2DKernelBackward computes ∂L/∂kernel for Conv2D.
//
//	∂L/∂kernel = colᵀ @ grad            [K_h*K_w*C_in, C_out]
func (cpu *CPUBackend) Conv2DKernelBackward(x, w, grad *tensor.Tensor, stride int, pad tensor.Padding) *tensor.Tensor {
	g := newConvGeometry(x, w, stride, pad)
	checkConvGrad(grad, g)

	col := make([]float32, g.rows*g.cols)
	cpu.im2col(col, x.Data(), g)

	dw := make([]float32, g.cols*g.out)
	gemm(col, g.rows, g.cols, true, grad.Data(), g.rows, g.out, false, dw, g.cols, g.out)
	return tensor.Wrap(dw, w.Shape())
}

func checkConvGrad(grad *tensor.Tensor, g convGeometry) {
	want := tensor.Shape{g.n, g.hOut, g.wOut, g.out}
	if !grad.Shape().Equal(want) {
		panic(fmt.Sprintf("conv2d backward: gradient shape %v, expected %v", grad.Shape(), want))
	}
}

// forBatch runs f for every batch index using the backend's worker pool.
func (cpu *CPUBackend) forBatch(n int, f func(n int)) {
	parallel.For(n, f, cpu.par)
}
