package seir

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// InfectivityPolicy maps estimated per-stage infectious populations to the
// effective infectious pressure used by the rate conversion. Individuals
// early in the infectious period shed more, so the leading stages are
// counted with extra weight before the exponent is applied.
type InfectivityPolicy struct {
	// EarlyStages is the number of leading infectious stages that receive
	// extra weight
	EarlyStages int
	// EarlyWeight is the additional weight applied to the early stages;
	// 1 means early stages count twice
	EarlyWeight float64
	// Exponent is applied to the weighted sum
	Exponent float64
}

// DefaultInfectivityPolicy returns the historical weighting: the first
// three infectious stages counted a second time, no exponent shaping.
func DefaultInfectivityPolicy() InfectivityPolicy {
	return InfectivityPolicy{
		EarlyStages: 3,
		EarlyWeight: 1,
		Exponent:    1,
	}
}

// Effective returns the effective infectious population for the given
// per-stage estimates. The result may be non-positive when the estimates
// are negative under noise; callers must treat that as a degenerate input.
func (p InfectivityPolicy) Effective(ihat []float64) float64 {
	xi := floats.Sum(ihat)

	early := p.EarlyStages
	if early > len(ihat) {
		early = len(ihat)
	}
	if early > 0 {
		xi += p.EarlyWeight * floats.Sum(ihat[:early])
	}

	if xi > 0 && p.Exponent != 1 {
		xi = math.Pow(xi, p.Exponent)
	}

	return xi
}
