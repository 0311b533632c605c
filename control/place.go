// Package control implements pole-placement design of the integral-augmented
// state feedback controller that drives the estimated prevalence to target.
package control

import (
	"fmt"

	"github.com/epictl/epictl"
	"github.com/epictl/epictl/matrix"
	gomatrix "github.com/milosgajdos/matrix"
	"gonum.org/v1/gonum/mat"
)

// Place computes the state feedback gain k such that the closed-loop matrix
// A - b*k has its eigenvalues at the requested pole locations. It uses
// Ackermann's formula, so it applies to single-input systems and real poles
// only; len(poles) must equal the state dimension.
// It returns epictl.DesignError if the pair (A, b) is not controllable for
// the requested placement.
func Place(a, b *mat.Dense, poles []float64) (*mat.VecDense, error) {
	n, cols := a.Dims()
	if n != cols {
		return nil, &epictl.DesignError{Reason: fmt.Sprintf("state matrix is not square: [%d x %d]", n, cols)}
	}

	if bn, bm := b.Dims(); bn != n || bm != 1 {
		return nil, &epictl.DesignError{Reason: fmt.Sprintf("input matrix must be [%d x 1], got [%d x %d]", n, bn, bm)}
	}

	if len(poles) != n {
		return nil, &epictl.DesignError{Reason: fmt.Sprintf("%d poles requested for %d states", len(poles), n)}
	}

	ctrb, err := matrix.Controllability(a, b)
	if err != nil {
		return nil, &epictl.DesignError{Reason: err.Error()}
	}

	if rank := matrix.Rank(ctrb, 0); rank != n {
		return nil, &epictl.DesignError{Reason: fmt.Sprintf("system not controllable: controllability rank %d < %d", rank, n)}
	}

	// desired characteristic polynomial evaluated at A:
	// phi(A) = (A - p_1*I) * ... * (A - p_n*I)
	phi, err := gomatrix.NewDenseValIdentity(n, 1.0)
	if err != nil {
		return nil, &epictl.DesignError{Reason: err.Error()}
	}
	for _, p := range poles {
		shift := mat.DenseCopyOf(a)
		for i := 0; i < n; i++ {
			shift.Set(i, i, shift.At(i, i)-p)
		}
		next := new(mat.Dense)
		next.Mul(phi, shift)
		phi = next
	}

	// Ackermann: k = e_n' * inv(Ctrb) * phi(A), computed by solving
	// Ctrb' * y = e_n instead of forming the inverse
	en := mat.NewVecDense(n, nil)
	en.SetVec(n-1, 1)

	y := mat.NewVecDense(n, nil)
	if err := y.SolveVec(ctrb.T(), en); err != nil {
		return nil, &epictl.DesignError{Reason: fmt.Sprintf("controllability matrix is singular: %v", err)}
	}

	k := mat.NewVecDense(n, nil)
	k.MulVec(phi.T(), y)

	return k, nil
}
