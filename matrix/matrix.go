package matrix

import (
	"gonum.org/v1/gonum/mat"
)

const eps = 2.220446049250313e-16

// RowSums returns a slice containing m row sums.
// It panics if m is nil.
func RowSums(m mat.Matrix) []float64 {
	rows, cols := m.Dims()
	sum := make([]float64, rows)

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			sum[i] += m.At(i, j)
		}
	}

	return sum
}

// ColSums returns a slice containing m column sums.
// It panics if m is nil.
func ColSums(m mat.Matrix) []float64 {
	rows, cols := m.Dims()
	sum := make([]float64, cols)

	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			sum[j] += m.At(i, j)
		}
	}

	return sum
}

// Rank returns the rank of m computed from its singular values.
// Singular values smaller than tol are considered zero; if tol is
// non-positive the default max(rows,cols)*eps*sigmaMax is used.
// It returns -1 if the SVD factorization fails.
func Rank(m mat.Matrix, tol float64) int {
	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDNone); !ok {
		return -1
	}

	vals := svd.Values(nil)
	if len(vals) == 0 {
		return 0
	}

	if tol <= 0 {
		rows, cols := m.Dims()
		dim := rows
		if cols > dim {
			dim = cols
		}
		tol = float64(dim) * vals[0] * eps
	}

	rank := 0
	for _, v := range vals {
		if v > tol {
			rank++
		}
	}

	return rank
}
