package estimate

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Compartments is an estimate of the exposed/infectious sub-compartment
// populations. The estimated vector is ordered [E_1..E_nE, I_1..I_nI].
type Compartments struct {
	// val is estimated sub-state value
	val *mat.VecDense
	// cov is estimated covariance
	cov *mat.SymDense
	// nE is the number of exposed sub-stages
	nE int
}

// NewCompartments returns a compartment estimate of val with covariance cov,
// where the first nE entries of val are the exposed sub-stages and the rest
// are infectious sub-stages.
// It returns error if dimensions do not match or nE is out of range.
func NewCompartments(val mat.Vector, cov mat.Symmetric, nE int) (*Compartments, error) {
	rv, _ := val.Dims()
	rc := cov.SymmetricDim()

	if rv != rc {
		return nil, fmt.Errorf("invalid dimensions, val: %d, cov: %d x %d", rv, rc, rc)
	}

	if nE < 0 || nE > rv {
		return nil, fmt.Errorf("invalid exposed stage count: %d", nE)
	}

	v := &mat.VecDense{}
	v.CloneFromVec(val)

	c := mat.NewSymDense(cov.SymmetricDim(), nil)
	c.CopySym(cov)

	return &Compartments{
		val: v,
		cov: c,
		nE:  nE,
	}, nil
}

// Val returns estimated value
func (c *Compartments) Val() mat.Vector {
	v := &mat.VecDense{}
	v.CloneFromVec(c.val)

	return v
}

// Cov returns covariance estimate
func (c *Compartments) Cov() mat.Symmetric {
	cov := mat.NewSymDense(c.cov.SymmetricDim(), nil)
	cov.CopySym(c.cov)

	return cov
}

// Exposed returns the estimated per-stage exposed populations.
// Values may go slightly negative under noise; callers clamp before
// using them multiplicatively.
func (c *Compartments) Exposed() []float64 {
	out := make([]float64, c.nE)
	for i := range out {
		out[i] = c.val.AtVec(i)
	}

	return out
}

// Infectious returns the estimated per-stage infectious populations.
func (c *Compartments) Infectious() []float64 {
	out := make([]float64, c.val.Len()-c.nE)
	for i := range out {
		out[i] = c.val.AtVec(c.nE + i)
	}

	return out
}
