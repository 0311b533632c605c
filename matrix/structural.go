package matrix

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Observability builds the observability matrix [C; C*A; ...; C*A^(n-1)]
// of the pair (A, C) where A is n x n and C is p x n.
// It returns error if the matrix dimensions do not match.
func Observability(a, c mat.Matrix) (*mat.Dense, error) {
	n, cols := a.Dims()
	if n != cols {
		return nil, fmt.Errorf("state matrix is not square: [%d x %d]", n, cols)
	}

	p, cn := c.Dims()
	if cn != n {
		return nil, fmt.Errorf("output matrix dimension mismatch: [%d x %d] vs %d states", p, cn, n)
	}

	obs := mat.NewDense(n*p, n, nil)

	row := mat.DenseCopyOf(c)
	for i := 0; i < n; i++ {
		obs.Slice(i*p, (i+1)*p, 0, n).(*mat.Dense).Copy(row)
		next := new(mat.Dense)
		next.Mul(row, a)
		row = next
	}

	return obs, nil
}

// Controllability builds the controllability matrix [B, A*B, ..., A^(n-1)*B]
// of the pair (A, B) where A is n x n and B is n x m.
// It returns error if the matrix dimensions do not match.
func Controllability(a, b mat.Matrix) (*mat.Dense, error) {
	n, cols := a.Dims()
	if n != cols {
		return nil, fmt.Errorf("state matrix is not square: [%d x %d]", n, cols)
	}

	bn, m := b.Dims()
	if bn != n {
		return nil, fmt.Errorf("input matrix dimension mismatch: [%d x %d] vs %d states", bn, m, n)
	}

	ctrb := mat.NewDense(n, n*m, nil)

	col := mat.DenseCopyOf(b)
	for i := 0; i < n; i++ {
		ctrb.Slice(0, n, i*m, (i+1)*m).(*mat.Dense).Copy(col)
		next := new(mat.Dense)
		next.Mul(a, col)
		col = next
	}

	return ctrb, nil
}
