// Package config loads and validates run configuration for the prevalence
// control loop. Every recognized option has a documented default; malformed
// configuration is rejected eagerly at load time, never mid-run.
package config

import (
	"fmt"
	"math"
	"os"

	"github.com/epictl/epictl"
	"github.com/epictl/epictl/control"
	"github.com/epictl/epictl/kalman"
	"github.com/epictl/epictl/loop"
	"github.com/epictl/epictl/seir"
	"gopkg.in/yaml.v3"
)

const (
	DefaultSteps       = 200
	DefaultDt          = 1.0
	DefaultTarget      = 500.0
	DefaultPole        = 0.7
	DefaultStartDay    = 5
	DefaultRateDivisor = 18.0
)

// Config is the full construction-time configuration of a controlled run.
type Config struct {
	// Steps is the number of simulated days
	Steps int `yaml:"steps"`
	// Dt is the step size in days
	Dt float64 `yaml:"dt"`
	// EI holds the lower triangle of the exposed stage-transition matrix
	// in row-major order
	EI []float64 `yaml:"ei"`
	// IR holds the lower triangle of the infectious stage-transition
	// matrix in row-major order
	IR []float64 `yaml:"ir"`
	// ObservationMode is "split" (exposed and infectious totals measured
	// separately) or "aggregate" (single prevalence total)
	ObservationMode string `yaml:"observation_mode"`
	// Target is the prevalence trajectory value to track
	Target float64 `yaml:"target"`
	// Poles are the desired closed-loop pole locations; a single value is
	// applied to every augmented pole
	Poles []float64 `yaml:"poles"`
	// StartDay is the first day the controller is active
	StartDay int `yaml:"start_day"`
	// RateDivisor normalizes the aggregate control law to a per-layer rate
	RateDivisor float64 `yaml:"rate_divisor"`
	// Infectivity configures the early-infectious up-weighting
	Infectivity InfectivityConfig `yaml:"infectivity"`
	// Seed seeds every random source constructed for the run
	Seed uint64 `yaml:"seed"`
}

// InfectivityConfig mirrors seir.InfectivityPolicy.
type InfectivityConfig struct {
	EarlyStages int     `yaml:"early_stages"`
	EarlyWeight float64 `yaml:"early_weight"`
	Exponent    float64 `yaml:"exponent"`
}

// Default returns the default configuration: a 3-stage exposed and 3-stage
// infectious progression with the historical weighting and divisor.
func Default() *Config {
	policy := seir.DefaultInfectivityPolicy()

	return &Config{
		Steps:           DefaultSteps,
		Dt:              DefaultDt,
		EI:              []float64{0.4, 0.6, 0.4, 0.0, 0.6, 0.4},
		IR:              []float64{0.5, 0.5, 0.5, 0.0, 0.5, 0.5},
		ObservationMode: "split",
		Target:          DefaultTarget,
		Poles:           []float64{DefaultPole},
		StartDay:        DefaultStartDay,
		RateDivisor:     DefaultRateDivisor,
		Infectivity: InfectivityConfig{
			EarlyStages: policy.EarlyStages,
			EarlyWeight: policy.EarlyWeight,
			Exponent:    policy.Exponent,
		},
	}
}

// Load reads the YAML file at path over the defaults and validates the
// result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks every option eagerly.
func (c *Config) Validate() error {
	if c.Steps <= 0 {
		return &epictl.ConfigError{Reason: fmt.Sprintf("non-positive step count: %d", c.Steps)}
	}
	if c.Dt <= 0 {
		return &epictl.ConfigError{Reason: fmt.Sprintf("non-positive step size: %f", c.Dt)}
	}
	if _, err := seir.Expand(c.EI); err != nil {
		return err
	}
	if _, err := seir.Expand(c.IR); err != nil {
		return err
	}
	if c.ObservationMode != "split" && c.ObservationMode != "aggregate" {
		return &epictl.ConfigError{Reason: fmt.Sprintf("unknown observation mode: %q", c.ObservationMode)}
	}
	if c.Target < 0 {
		return &epictl.ConfigError{Reason: fmt.Sprintf("negative target prevalence: %f", c.Target)}
	}
	if len(c.Poles) == 0 {
		return &epictl.ConfigError{Reason: "no pole locations"}
	}
	for _, p := range c.Poles {
		if math.Abs(p) >= 1 {
			return &epictl.ConfigError{Reason: fmt.Sprintf("pole %f is not inside the unit disk", p)}
		}
	}
	if c.StartDay < 0 {
		return &epictl.ConfigError{Reason: fmt.Sprintf("negative controller start day: %d", c.StartDay)}
	}
	if c.RateDivisor <= 0 {
		return &epictl.ConfigError{Reason: fmt.Sprintf("non-positive rate divisor: %f", c.RateDivisor)}
	}

	return nil
}

// Model assembles the SEIR state-space model the configuration describes.
func (c *Config) Model() (*seir.Model, error) {
	ei, err := seir.Expand(c.EI)
	if err != nil {
		return nil, err
	}

	ir, err := seir.Expand(c.IR)
	if err != nil {
		return nil, err
	}

	return seir.New(seir.Config{
		Steps:      c.Steps,
		Dt:         c.Dt,
		EI:         ei,
		IR:         ir,
		WithOutput: true,
	})
}

// Mode returns the estimator observation mode.
func (c *Config) Mode() kalman.ObservationMode {
	if c.ObservationMode == "aggregate" {
		return kalman.Aggregate
	}

	return kalman.Split
}

// ControllerConfig returns the controller construction options.
func (c *Config) ControllerConfig() control.Config {
	return control.Config{Poles: c.Poles}
}

// LoopConfig returns the orchestrator construction options.
func (c *Config) LoopConfig() loop.Config {
	return loop.Config{
		Target:      c.Target,
		StartDay:    c.StartDay,
		RateDivisor: c.RateDivisor,
		Infectivity: seir.InfectivityPolicy{
			EarlyStages: c.Infectivity.EarlyStages,
			EarlyWeight: c.Infectivity.EarlyWeight,
			Exponent:    c.Infectivity.Exponent,
		},
	}
}
