package epictl

import "fmt"

// ConfigError is returned when construction-time configuration is malformed:
// a transition-probability list whose length is not a triangular number,
// non-positive step parameters, probabilities outside [0,1].
// It is fatal and never raised after construction succeeds.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}

// ModelError is returned when an assembled state-space model is unusable,
// notably when the exposed/infectious subsystem fails the observability check.
// A model that returns it must not be used.
type ModelError struct {
	Reason string
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("invalid model: %s", e.Reason)
}

// DesignError is returned when the requested closed-loop poles cannot be
// placed on the augmented system, i.e. the augmented controllability matrix
// is singular or the pole set has the wrong size.
type DesignError struct {
	Reason string
}

func (e *DesignError) Error() string {
	return fmt.Sprintf("controller design failed: %s", e.Reason)
}
