// Package loop runs the closed-loop prevalence controller against a host
// epidemic simulator, one simulated day at a time.
package loop

import (
	"fmt"
	"log/slog"

	"github.com/epictl/epictl"
	"github.com/epictl/epictl/seir"
	"gonum.org/v1/gonum/mat"
)

// defaultRateDivisor normalizes the aggregate control law back to a
// per-contact-layer rate; it matches the historical layer count.
const defaultRateDivisor = 18

// Config holds the orchestrator construction options.
type Config struct {
	// Target is the prevalence (exposed+infectious) trajectory value the
	// controller tracks
	Target float64
	// StartDay is the first simulated day the controller is consulted;
	// before it the loop runs open-loop warm-up
	StartDay int
	// RateDivisor converts the aggregate requested rate to a per-layer
	// rate; 0 selects the default of 18
	RateDivisor float64
	// Infectivity weights the estimated infectious stages when computing
	// the effective infectious population; the zero value selects the
	// default early-stage up-weighting
	Infectivity seir.InfectivityPolicy
	// Logger receives soft-fault diagnostics; nil disables logging
	Logger *slog.Logger
}

// Diagnostics counts the soft faults the loop recovered from.
type Diagnostics struct {
	// DegenerateEstimates counts days the effective infectious estimate
	// was non-positive and the baseline rate was applied instead
	DegenerateEstimates int
	// ClampedControls counts days the controller asked for a negative
	// control signal and it was clamped to zero
	ClampedControls int
}

// Loop orchestrates the estimator and controller against a host simulator.
// Step must be called exactly once per simulated day in increasing day
// order; the loop is single-owner mutable state scoped to one run.
type Loop struct {
	adapter SimAdapter
	est     epictl.Estimator
	ctrl    epictl.Controller
	cfg     Config

	// beta0 and layer0 are the pre-control baseline rates captured at
	// construction
	beta0  float64
	layer0 map[string]float64

	// integralErr accumulates observed-minus-target prevalence since the
	// controller activated
	integralErr float64
	// requested records the control input requested each day
	requested []float64
	lastDay   int
	diag      Diagnostics
}

// New creates the control loop. It reads the host once to capture the
// pre-control baseline transmission rates; the estimator and controller
// must be freshly constructed for this run.
// It returns error if cfg is malformed or the baseline read fails.
func New(adapter SimAdapter, est epictl.Estimator, ctrl epictl.Controller, cfg Config) (*Loop, error) {
	if adapter == nil {
		return nil, &epictl.ConfigError{Reason: "missing simulation adapter"}
	}
	if est == nil {
		return nil, &epictl.ConfigError{Reason: "missing estimator"}
	}
	if ctrl == nil {
		return nil, &epictl.ConfigError{Reason: "missing controller"}
	}
	if cfg.Target < 0 {
		return nil, &epictl.ConfigError{Reason: fmt.Sprintf("negative target prevalence: %f", cfg.Target)}
	}
	if cfg.StartDay < 0 {
		return nil, &epictl.ConfigError{Reason: fmt.Sprintf("negative controller start day: %d", cfg.StartDay)}
	}
	if cfg.RateDivisor < 0 {
		return nil, &epictl.ConfigError{Reason: fmt.Sprintf("negative rate divisor: %f", cfg.RateDivisor)}
	}
	if cfg.RateDivisor == 0 {
		cfg.RateDivisor = defaultRateDivisor
	}
	if cfg.Infectivity == (seir.InfectivityPolicy{}) {
		cfg.Infectivity = seir.DefaultInfectivityPolicy()
	}

	obs, err := adapter.ReadDailyObservations()
	if err != nil {
		return nil, fmt.Errorf("failed to read baseline observations: %w", err)
	}
	if obs.Beta <= 0 {
		return nil, &epictl.ConfigError{Reason: fmt.Sprintf("non-positive baseline transmission rate: %f", obs.Beta)}
	}

	layer0 := make(map[string]float64, len(obs.LayerRates))
	for k, v := range obs.LayerRates {
		layer0[k] = v
	}

	return &Loop{
		adapter: adapter,
		est:     est,
		ctrl:    ctrl,
		cfg:     cfg,
		beta0:   obs.Beta,
		layer0:  layer0,
		lastDay: -1,
	}, nil
}

// Step runs one simulated day. During warm-up, or when the observed
// susceptible or infectious count is zero, the controller is bypassed and
// the estimator tracks the host's own new-infection count. Otherwise the
// controller output is clamped to non-negative, fed to the estimator and
// converted into a transmission-rate override for the host.
// The estimator is updated exactly once per day in either regime.
func (l *Loop) Step(t int) error {
	if t <= l.lastDay {
		return fmt.Errorf("day %d stepped out of order (last was %d)", t, l.lastDay)
	}
	l.lastDay = t

	obs, err := l.adapter.ReadDailyObservations()
	if err != nil {
		return fmt.Errorf("failed to read observations for day %d: %w", t, err)
	}
	if obs.Population <= 0 {
		return fmt.Errorf("non-positive population on day %d: %f", t, obs.Population)
	}

	y := obs.ExposedTotal
	e := y - obs.Infectious
	i := obs.Infectious

	if t < l.cfg.StartDay || obs.Susceptible*i == 0 {
		// warm-up: keep the estimate synchronized with ground truth
		// using the infections the host actually produced
		if _, err := l.est.Update(e, i, obs.NewInfections); err != nil {
			return fmt.Errorf("estimator update failed on day %d: %w", t, err)
		}
		l.requested = append(l.requested, obs.NewInfections)
		return nil
	}

	xAug := augment(l.est.SubState(), l.integralErr)
	u, err := l.ctrl.GetControl(xAug)
	if err != nil {
		return fmt.Errorf("controller failed on day %d: %w", t, err)
	}
	if u < 0 {
		l.diag.ClampedControls++
		if l.cfg.Logger != nil {
			l.cfg.Logger.Warn("negative control signal clamped to zero", "day", t, "control", u)
		}
		u = 0
	}

	if _, err := l.est.Update(e, i, u); err != nil {
		return fmt.Errorf("estimator update failed on day %d: %w", t, err)
	}

	newBeta := l.rateFor(t, u, obs)

	rates := make(map[string]float64, len(l.layer0))
	for k, v := range l.layer0 {
		// scale every layer by the same multiplier so relative layer
		// weighting is preserved
		rates[k] = v * newBeta / l.beta0
	}
	if err := l.adapter.ApplyRateOverride(rates); err != nil {
		return fmt.Errorf("failed to apply rate override on day %d: %w", t, err)
	}

	l.requested = append(l.requested, u)
	l.integralErr += y - l.cfg.Target

	return nil
}

// rateFor converts the requested control signal into an aggregate
// transmission rate. A non-positive effective infectious estimate cannot
// support the division and falls back to the pre-control baseline.
func (l *Loop) rateFor(t int, u float64, obs Observations) float64 {
	xi := l.cfg.Infectivity.Effective(l.est.Infectious())
	if xi <= 0 {
		l.diag.DegenerateEstimates++
		if l.cfg.Logger != nil {
			l.cfg.Logger.Warn("estimated infectious population is non-positive, applying baseline rate", "day", t, "estimate", xi)
		}
		return l.beta0
	}

	siByN := obs.Susceptible * xi / obs.Population
	newBeta := u / siByN
	if newBeta < 0 {
		newBeta = 0
	}

	return newBeta / l.cfg.RateDivisor
}

// IntegralError returns the accumulated observed-minus-target prevalence.
func (l *Loop) IntegralError() float64 {
	return l.integralErr
}

// Requested returns the control input requested each stepped day.
func (l *Loop) Requested() []float64 {
	out := make([]float64, len(l.requested))
	copy(out, l.requested)

	return out
}

// Diag returns the soft-fault counters.
func (l *Loop) Diag() Diagnostics {
	return l.diag
}

// augment stacks the integral error under the estimated sub-state.
func augment(x mat.Vector, integralErr float64) *mat.VecDense {
	out := mat.NewVecDense(x.Len()+1, nil)
	for i := 0; i < x.Len(); i++ {
		out.SetVec(i, x.AtVec(i))
	}
	out.SetVec(x.Len(), integralErr)

	return out
}
