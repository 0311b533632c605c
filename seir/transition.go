package seir

import (
	"fmt"
	"math"

	"github.com/epictl/epictl"
	"gonum.org/v1/gonum/mat"
)

// Expand expands a flat list of transition probabilities into a full square
// transition matrix. The list holds the lower triangle of the matrix,
// including the diagonal, in row-major order; everything above the diagonal
// is zero since sub-stage progression is one-directional.
// It returns error if the list length is not a triangular number.
func Expand(p []float64) (*mat.Dense, error) {
	n, err := triangularDim(len(p))
	if err != nil {
		return nil, err
	}

	m := mat.NewDense(n, n, nil)

	idx := 0
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			m.Set(i, j, p[idx])
			idx++
		}
	}

	return m, nil
}

// Flatten is the inverse of Expand: it returns the lower triangle of m,
// including the diagonal, in row-major order.
// It returns error if m is not square.
func Flatten(m *mat.Dense) ([]float64, error) {
	rows, cols := m.Dims()
	if rows != cols {
		return nil, fmt.Errorf("matrix is not square: [%d x %d]", rows, cols)
	}

	p := make([]float64, 0, rows*(rows+1)/2)
	for i := 0; i < rows; i++ {
		for j := 0; j <= i; j++ {
			p = append(p, m.At(i, j))
		}
	}

	return p, nil
}

// triangularDim returns n such that k == n*(n+1)/2.
func triangularDim(k int) (int, error) {
	if k <= 0 {
		return 0, &epictl.ConfigError{Reason: "empty transition probability list"}
	}

	n := int((-1 + math.Sqrt(float64(1+8*k))) / 2)
	if n*(n+1)/2 != k {
		return 0, &epictl.ConfigError{Reason: fmt.Sprintf("%d transition probabilities do not fill a lower triangle", k)}
	}

	return n, nil
}
