// Package kalman implements the recursive state estimator that reconstructs
// the hidden per-stage exposed/infectious populations of a SEIR model from
// noisy aggregate observations and the applied control input.
package kalman

import (
	"fmt"

	"github.com/epictl/epictl"
	"github.com/epictl/epictl/estimate"
	"github.com/epictl/epictl/seir"
	"github.com/milosgajdos/matrix"
	"gonum.org/v1/gonum/mat"
)

// ObservationMode selects which aggregate measurements the filter consumes.
type ObservationMode int

const (
	// Split corrects against the exposed and infectious totals separately
	Split ObservationMode = iota
	// Aggregate corrects against the single exposed+infectious total
	Aggregate
)

// Default noise variances used when no explicit noise is configured.
// They are sized for sub-populations in the hundreds to thousands.
const (
	defaultProcessVar     = 1.0
	defaultMeasurementVar = 10.0
)

// Config holds the estimator construction options.
type Config struct {
	// InitialExposed seeds the estimate: the whole count is placed in the
	// first exposed sub-stage with a diagonal prior covariance scaled off
	// the count itself.
	InitialExposed float64
	// Init overrides the InitialExposed seeding with an explicit initial
	// sub-state and covariance.
	Init epictl.InitCond
	// Mode selects the observation structure; default is Split.
	Mode ObservationMode
	// ProcessNoise is the state transition noise. When nil a small
	// diagonal default is used; noise.None disables the term.
	ProcessNoise epictl.Noise
	// MeasurementNoise is the observation noise. When nil a diagonal
	// default is used; noise.None disables the term.
	MeasurementNoise epictl.Noise
}

// Filter is a Kalman-style estimator over the E/I sub-state of a SEIR model.
// It mutates only its own state and performs no I/O; one simulation run owns
// exactly one Filter.
type Filter struct {
	// nE, nI are sub-stage counts of the shared model
	nE int
	nI int
	// a, b are the sub-state transition and control matrices
	a *mat.Dense
	b *mat.Dense
	// h is the measurement matrix for the configured mode
	h *mat.Dense
	// q is the process noise covariance, r the measurement noise covariance
	q *mat.SymDense
	r *mat.SymDense
	// x is the current state estimate
	x *mat.VecDense
	// p is the current estimate covariance
	p *mat.SymDense
	// k is the most recent Kalman gain
	k *mat.Dense
}

// New creates a new estimator for the given model, seeded from the initial
// observed exposed population or from cfg.Init when set.
// It returns error if cfg is malformed or a configured noise dimension does
// not match the observation mode.
func New(model *seir.Model, cfg Config) (*Filter, error) {
	if model == nil {
		return nil, &epictl.ConfigError{Reason: "missing state-space model"}
	}

	if cfg.InitialExposed < 0 {
		return nil, &epictl.ConfigError{Reason: fmt.Sprintf("negative initial exposed population: %f", cfg.InitialExposed)}
	}

	nE, nI := model.Dims()
	sub := nE + nI

	h, err := measurementMatrix(model, cfg.Mode)
	if err != nil {
		return nil, err
	}
	ny, _ := h.Dims()

	q, err := noiseCov("process", cfg.ProcessNoise, sub, defaultProcessVar)
	if err != nil {
		return nil, err
	}

	r, err := noiseCov("measurement", cfg.MeasurementNoise, ny, defaultMeasurementVar)
	if err != nil {
		return nil, err
	}

	x := mat.NewVecDense(sub, nil)
	p := mat.NewSymDense(sub, nil)

	if cfg.Init != nil {
		if cfg.Init.State().Len() != sub || cfg.Init.Cov().SymmetricDim() != sub {
			return nil, &epictl.ConfigError{Reason: fmt.Sprintf("initial condition dimension does not match sub-state dimension %d", sub)}
		}
		x.CopyVec(cfg.Init.State())
		p.CopySym(cfg.Init.Cov())
	} else {
		// seed the whole count in the first exposed stage; the prior
		// variance scales with the seed so a larger outbreak starts
		// less certain
		x.SetVec(0, cfg.InitialExposed)

		priorVar := cfg.InitialExposed
		if priorVar < 1 {
			priorVar = 1
		}
		for i := 0; i < sub; i++ {
			p.SetSym(i, i, priorVar)
		}
	}

	return &Filter{
		nE: nE,
		nI: nI,
		a:  model.SubStateMatrix(),
		b:  model.SubControlMatrix(),
		h:  h,
		q:  q,
		r:  r,
		x:  x,
		p:  p,
		k:  mat.NewDense(sub, ny, nil),
	}, nil
}

// Update advances the estimate one step: it predicts the sub-state through
// the model dynamics under control input u, then corrects the prediction
// against the observed exposed and infectious totals.
// A negative u would mean negative new exposures and is clipped to zero.
// It returns error if the innovation covariance cannot be inverted.
func (f *Filter) Update(eObs, iObs, u float64) (epictl.Estimate, error) {
	if u < 0 {
		u = 0
	}

	sub := f.nE + f.nI

	// predict: x = A*x + B*u, P = A*P*A' + Q
	xNext := mat.NewVecDense(sub, nil)
	xNext.MulVec(f.a, f.x)
	xNext.AddScaledVec(xNext, u, f.b.ColView(0))

	cov := new(mat.Dense)
	cov.Mul(f.a, f.p)
	cov.Mul(cov, f.a.T())
	cov.Add(cov, f.q)

	pNext := mat.NewSymDense(sub, nil)
	symmetrize(pNext, cov)

	// correct against the measurement for the configured mode
	z := f.measurement(eObs, iObs)
	ny := z.Len()

	yPred := mat.NewVecDense(ny, nil)
	yPred.MulVec(f.h, xNext)

	pxy := new(mat.Dense)
	pxy.Mul(pNext, f.h.T())

	pyy := new(mat.Dense)
	pyy.Mul(f.h, pxy)
	pyy.Add(pyy, f.r)

	pyyInv := new(mat.Dense)
	if err := pyyInv.Inverse(pyy); err != nil {
		return nil, fmt.Errorf("failed to invert innovation covariance: %v", err)
	}

	gain := new(mat.Dense)
	gain.Mul(pxy, pyyInv)

	inn := mat.NewVecDense(ny, nil)
	inn.SubVec(z, yPred)

	corr := mat.NewVecDense(sub, nil)
	corr.MulVec(gain, inn)
	xNext.AddVec(xNext, corr)

	// Joseph form keeps the covariance symmetric positive semi-definite
	// even when the gain is slightly off from round-off
	eye, err := matrix.NewDenseValIdentity(sub, 1.0)
	if err != nil {
		return nil, err
	}
	a := new(mat.Dense)
	a.Mul(gain, f.h)
	a.Sub(eye, a)

	ap := new(mat.Dense)
	ap.Mul(a, pNext)
	apa := new(mat.Dense)
	apa.Mul(ap, a.T())

	kr := new(mat.Dense)
	kr.Mul(gain, f.r)
	krk := new(mat.Dense)
	krk.Mul(kr, gain.T())
	apa.Add(apa, krk)

	f.x.CopyVec(xNext)
	symmetrize(f.p, apa)
	f.k.CloneFrom(gain)

	return estimate.NewCompartments(f.x, f.p, f.nE)
}

// Exposed returns the estimated per-stage exposed populations.
func (f *Filter) Exposed() []float64 {
	out := make([]float64, f.nE)
	for i := range out {
		out[i] = f.x.AtVec(i)
	}

	return out
}

// Infectious returns the estimated per-stage infectious populations.
func (f *Filter) Infectious() []float64 {
	out := make([]float64, f.nI)
	for i := range out {
		out[i] = f.x.AtVec(f.nE + i)
	}

	return out
}

// SubState returns a copy of the full estimated E/I sub-state vector.
func (f *Filter) SubState() mat.Vector {
	return mat.VecDenseCopyOf(f.x)
}

// Cov returns a copy of the estimate covariance.
func (f *Filter) Cov() mat.Symmetric {
	cov := mat.NewSymDense(f.p.SymmetricDim(), nil)
	cov.CopySym(f.p)

	return cov
}

// Gain returns the most recent Kalman gain.
func (f *Filter) Gain() mat.Matrix {
	gain := &mat.Dense{}
	gain.CloneFrom(f.k)

	return gain
}

// measurement assembles the observation vector for the configured mode.
func (f *Filter) measurement(eObs, iObs float64) *mat.VecDense {
	if f.h.RawMatrix().Rows == 1 {
		return mat.NewVecDense(1, []float64{eObs + iObs})
	}

	return mat.NewVecDense(2, []float64{eObs, iObs})
}

// measurementMatrix builds the mode's observation matrix over the E/I
// sub-state: Split sums the exposed and infectious stages on separate rows,
// Aggregate uses the model's single prevalence row.
func measurementMatrix(model *seir.Model, mode ObservationMode) (*mat.Dense, error) {
	nE, nI := model.Dims()
	sub := nE + nI

	switch mode {
	case Split:
		h := mat.NewDense(2, sub, nil)
		for j := 0; j < nE; j++ {
			h.Set(0, j, 1)
		}
		for j := nE; j < sub; j++ {
			h.Set(1, j, 1)
		}
		return h, nil
	case Aggregate:
		return model.SubOutputMatrix(), nil
	default:
		return nil, &epictl.ConfigError{Reason: fmt.Sprintf("unknown observation mode: %d", mode)}
	}
}

// noiseCov resolves a configured noise into the covariance the filter adds
// each step. Nil noise yields a diagonal default, noise.None (zero size
// covariance) disables the term, and any other noise must match size.
func noiseCov(name string, n epictl.Noise, size int, defaultVar float64) (*mat.SymDense, error) {
	cov := mat.NewSymDense(size, nil)

	if n == nil {
		for i := 0; i < size; i++ {
			cov.SetSym(i, i, defaultVar)
		}
		return cov, nil
	}

	dim := n.Cov().SymmetricDim()
	if dim == 0 {
		return cov, nil
	}
	if dim != size {
		return nil, &epictl.ConfigError{Reason: fmt.Sprintf("%s noise dimension %d != %d", name, dim, size)}
	}
	cov.CopySym(n.Cov())

	return cov, nil
}

// symmetrize copies the symmetric part of src into dst.
func symmetrize(dst *mat.SymDense, src mat.Matrix) {
	n := dst.SymmetricDim()
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			dst.SetSym(i, j, 0.5*(src.At(i, j)+src.At(j, i)))
		}
	}
}
