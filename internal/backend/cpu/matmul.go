package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/born-ml/convnet/internal/tensor"
)

// MatMul computes op(a) @ op(b) for 2D tensors, where op transposes its
// argument when the matching flag is set.
//
// Shapes (without transposition):
//
//	a: [m, k], b: [k, n] -> [m, n]
func (cpu *CPUBackend) MatMul(a, b *tensor.Tensor, transA, transB bool) *tensor.Tensor {
	as, bs := a.Shape(), b.Shape()
	if len(as) != 2 || len(bs) != 2 {
		panic(fmt.Sprintf("matmul: expected 2D operands, got %v and %v", as, bs))
	}

	m, k := as[0], as[1]
	if transA {
		m, k = k, m
	}
	kb, n := bs[0], bs[1]
	if transB {
		kb, n = n, kb
	}
	if k != kb {
		panic(fmt.Sprintf("matmul: inner dimensions differ: %v (trans=%v) @ %v (trans=%v)", as, transA, bs, transB))
	}

	out := make([]float32, m*n)
	gemm(a.Data(), as[0], as[1], transA, b.Data(), bs[0], bs[1], transB, out, m, n)
	return tensor.Wrap(out, tensor.Shape{m, n})
}

// gemm writes op(a) @ op(b) into c ([m, n], row-major, overwritten).
func gemm(a []float32, ar, ac int, transA bool, b []float32, br, bc int, transB bool, c []float32, m, n int) {
	ta, tb := blas.NoTrans, blas.NoTrans
	if transA {
		ta = blas.Trans
	}
	if transB {
		tb = blas.Trans
	}
	blas32.Gemm(ta, tb, 1,
		blas32.General{Rows: ar, Cols: ac, Stride: ac, Data: a},
		blas32.General{Rows: br, Cols: bc, Stride: bc, Data: b},
		0,
		blas32.General{Rows: m, Cols: n, Stride: n, Data: c},
	)
}
