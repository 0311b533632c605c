// Package sim provides a discrete-time SEIR host simulator implementing the
// control loop's adapter boundary, for tests and examples, together with a
// trajectory plotting helper.
package sim

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/epictl/epictl"
	"github.com/epictl/epictl/loop"
	"github.com/epictl/epictl/seir"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// HostConfig holds the host simulator construction options.
type HostConfig struct {
	// Population is the total simulated population
	Population float64
	// InitialExposed seeds the outbreak in the first exposed stage
	InitialExposed float64
	// Beta is the baseline global transmission-rate parameter
	Beta float64
	// Layers maps contact-layer identifiers to their baseline
	// transmission-rate parameters
	Layers map[string]float64
	// Infectivity weights the true infectious stages when computing the
	// force of infection; the zero value selects the default policy
	Infectivity seir.InfectivityPolicy
	// Noisy draws Poisson-distributed observed counts around the true
	// values instead of reporting them exactly
	Noisy bool
	// Seed seeds the observation noise stream
	Seed uint64
}

// Host is a linear SEIR truth simulator with per-layer transmission rates.
// It implements loop.SimAdapter: the control loop reads its daily counts
// and overrides its layer rates in place.
type Host struct {
	model  *seir.Model
	cfg    HostConfig
	policy seir.InfectivityPolicy

	// x is the true compartment state [S, E_1.., I_1.., R]
	x *mat.VecDense
	// beta is the current global transmission-rate parameter
	beta float64
	// rates are the current per-layer transmission-rate parameters
	rates map[string]float64
	// newInfections is the number of exposures produced by the last step
	newInfections float64

	src rand.Source
}

// NewHost creates the host simulator seeded with cfg.InitialExposed cases.
// It returns error if cfg is malformed.
func NewHost(model *seir.Model, cfg HostConfig) (*Host, error) {
	if model == nil {
		return nil, &epictl.ConfigError{Reason: "missing state-space model"}
	}
	if cfg.Population <= 0 {
		return nil, &epictl.ConfigError{Reason: fmt.Sprintf("non-positive population: %f", cfg.Population)}
	}
	if cfg.InitialExposed < 0 || cfg.InitialExposed > cfg.Population {
		return nil, &epictl.ConfigError{Reason: fmt.Sprintf("initial exposed %f outside population %f", cfg.InitialExposed, cfg.Population)}
	}
	if cfg.Beta <= 0 {
		return nil, &epictl.ConfigError{Reason: fmt.Sprintf("non-positive transmission rate: %f", cfg.Beta)}
	}
	if len(cfg.Layers) == 0 {
		return nil, &epictl.ConfigError{Reason: "no contact layers"}
	}

	policy := cfg.Infectivity
	if policy == (seir.InfectivityPolicy{}) {
		policy = seir.DefaultInfectivityPolicy()
	}

	x := mat.NewVecDense(model.StateDim(), nil)
	x.SetVec(0, cfg.Population-cfg.InitialExposed)
	x.SetVec(1, cfg.InitialExposed)

	rates := make(map[string]float64, len(cfg.Layers))
	for k, v := range cfg.Layers {
		rates[k] = v
	}

	return &Host{
		model:  model,
		cfg:    cfg,
		policy: policy,
		x:      x,
		beta:   cfg.Beta,
		rates:  rates,
		src:    rand.NewSource(cfg.Seed),
	}, nil
}

// Step advances the truth one day: the summed layer rates drive new
// exposures proportional to S*I_eff/N, which the compartment dynamics then
// propagate forward.
func (h *Host) Step() {
	nE, nI := h.model.Dims()

	s := h.x.AtVec(0)
	iStages := make([]float64, nI)
	for i := range iStages {
		iStages[i] = h.x.AtVec(1 + nE + i)
	}
	xi := h.policy.Effective(iStages)

	var betaSum float64
	for _, v := range h.rates {
		betaSum += v
	}

	u := 0.0
	if xi > 0 {
		u = betaSum * s * xi / h.cfg.Population
	}
	if u < 0 {
		u = 0
	}
	if u > s {
		u = s
	}

	next, err := h.model.Step(h.x, u)
	if err != nil {
		// state and model dims are fixed at construction
		panic(err)
	}
	h.x.CopyVec(next)
	h.newInfections = u
}

// ReadDailyObservations implements loop.SimAdapter.
func (h *Host) ReadDailyObservations() (loop.Observations, error) {
	nE, nI := h.model.Dims()

	var eTot, iTot float64
	for i := 0; i < nE; i++ {
		eTot += h.x.AtVec(1 + i)
	}
	for i := 0; i < nI; i++ {
		iTot += h.x.AtVec(1 + nE + i)
	}

	s := h.x.AtVec(0)
	newInf := h.newInfections

	if h.cfg.Noisy {
		eTot = h.sample(eTot)
		iTot = h.sample(iTot)
		newInf = h.sample(newInf)
	}

	rates := make(map[string]float64, len(h.rates))
	for k, v := range h.rates {
		rates[k] = v
	}

	return loop.Observations{
		Susceptible:   s,
		Infectious:    iTot,
		ExposedTotal:  eTot + iTot,
		NewInfections: newInf,
		Population:    h.cfg.Population,
		Beta:          h.beta,
		LayerRates:    rates,
	}, nil
}

// ApplyRateOverride implements loop.SimAdapter.
// It returns error if an unknown layer identifier is supplied.
func (h *Host) ApplyRateOverride(rates map[string]float64) error {
	for k := range rates {
		if _, ok := h.cfg.Layers[k]; !ok {
			return fmt.Errorf("unknown contact layer: %q", k)
		}
	}

	for k, v := range rates {
		h.rates[k] = v
		if base := h.cfg.Layers[k]; base > 0 {
			h.beta = h.cfg.Beta * v / base
		}
	}

	return nil
}

// State returns a copy of the true compartment state.
func (h *Host) State() mat.Vector {
	return mat.VecDenseCopyOf(h.x)
}

// Prevalence returns the true exposed+infectious total.
func (h *Host) Prevalence() float64 {
	var tot float64
	for i := 1; i < h.x.Len()-1; i++ {
		tot += h.x.AtVec(i)
	}

	return tot
}

// sample draws a Poisson-distributed count around the true value.
func (h *Host) sample(mean float64) float64 {
	if mean <= 0 {
		return 0
	}

	p := distuv.Poisson{Lambda: mean, Src: h.src}

	return p.Rand()
}
