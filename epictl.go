package epictl

import "gonum.org/v1/gonum/mat"

// Estimator reconstructs the hidden exposed/infectious sub-compartment
// populations from noisy aggregate observations and the applied control input.
type Estimator interface {
	// Update advances the estimate one day given the observed exposed and
	// infectious totals and the control input applied on the previous step
	Update(eObs, iObs, u float64) (Estimate, error)
	// Exposed returns the estimated per-stage exposed sub-populations
	Exposed() []float64
	// Infectious returns the estimated per-stage infectious sub-populations
	Infectious() []float64
	// SubState returns the estimated exposed/infectious sub-state vector
	SubState() mat.Vector
}

// Controller computes the scalar control signal for the next step
type Controller interface {
	// GetControl returns the control signal for the augmented
	// (sub-state, integral-error) vector
	GetControl(x mat.Vector) (float64, error)
}

// Estimate is a state estimate
type Estimate interface {
	// Val returns estimate value
	Val() mat.Vector
	// Cov returns estimate covariance
	Cov() mat.Symmetric
}

// InitCond is initial state condition of the estimator
type InitCond interface {
	// State returns initial state
	State() mat.Vector
	// Cov returns initial state covariance
	Cov() mat.Symmetric
}

// Noise is dynamical system noise
type Noise interface {
	// Mean returns noise mean
	Mean() []float64
	// Cov returns covariance matrix of the noise
	Cov() mat.Symmetric
	// Sample returns a sample of the noise
	Sample() mat.Vector
	// Reset resets the noise
	Reset()
}
