package loop

// Observations are the aggregate counts the host simulator exposes for one
// simulated day.
type Observations struct {
	// Susceptible is the observed susceptible count
	Susceptible float64
	// Infectious is the observed infectious count
	Infectious float64
	// ExposedTotal is the observed currently exposed-or-infectious count;
	// the exposed-only count is ExposedTotal - Infectious
	ExposedTotal float64
	// NewInfections is the observed new-infection count for the previous day
	NewInfections float64
	// Population is the total scaled population
	Population float64
	// Beta is the current global transmission-rate parameter
	Beta float64
	// LayerRates maps contact-layer identifiers to their current
	// transmission-rate parameters
	LayerRates map[string]float64
}

// SimAdapter is the boundary between the control loop and a host epidemic
// simulator. A concrete adapter is implemented per host; the loop depends
// only on this interface and never on host internals.
type SimAdapter interface {
	// ReadDailyObservations returns the host's aggregate counts for the
	// current simulated day
	ReadDailyObservations() (Observations, error)
	// ApplyRateOverride replaces the host's per-layer transmission-rate
	// parameters for the current day
	ApplyRateOverride(rates map[string]float64) error
}
