package seir

import (
	"fmt"

	"github.com/epictl/epictl"
	"github.com/epictl/epictl/matrix"
	"gonum.org/v1/gonum/mat"
)

const probTol = 1e-9

// Config holds the construction-time parameters of the SEIR state-space
// model. Every recognized option is listed here; zero values are rejected
// eagerly by New.
type Config struct {
	// Steps is the number of simulated days the model will be run for
	Steps int
	// Dt is the step size in days
	Dt float64
	// EI is the exposed sub-stage transition matrix: lower-triangular,
	// entries in [0,1], column sums at most 1. Leftover column mass flows
	// into the first infectious stage.
	EI *mat.Dense
	// IR is the infectious sub-stage transition matrix, governed like EI;
	// leftover column mass flows into the removed compartment.
	IR *mat.Dense
	// WithOutput requests the aggregate prevalence observation row C.
	WithOutput bool
}

// Model is a linear state-space compartmental model of disease progression.
// The state vector is ordered [S, E_1..E_nE, I_1..I_nI, R]:
//
//	x[n+1] = A*x[n] + B*u[n]
//	y[n] = C*x[n]
//
// where the scalar control u is the number of new exposures per step: it
// depletes S and injects into the first exposed stage. The model is built
// once per run and holds no per-step mutable state.
type Model struct {
	steps int
	dt    float64
	ei    *mat.Dense
	ir    *mat.Dense
	nE    int
	nI    int
	a     *mat.Dense
	b     *mat.Dense
	c     *mat.Dense
}

// New assembles the SEIR state-space model from cfg and returns it.
// It returns epictl.ConfigError if cfg is malformed and epictl.ModelError
// if the exposed/infectious subsystem of the assembled model is not
// observable from the aggregate prevalence signal. An unobservable model
// cannot in principle support the estimator and must not be used.
func New(cfg Config) (*Model, error) {
	if cfg.Steps <= 0 {
		return nil, &epictl.ConfigError{Reason: fmt.Sprintf("non-positive step count: %d", cfg.Steps)}
	}

	if cfg.Dt <= 0 {
		return nil, &epictl.ConfigError{Reason: fmt.Sprintf("non-positive step size: %f", cfg.Dt)}
	}

	nE, err := checkStageMatrix("EI", cfg.EI)
	if err != nil {
		return nil, err
	}

	nI, err := checkStageMatrix("IR", cfg.IR)
	if err != nil {
		return nil, err
	}

	m := &Model{
		steps: cfg.Steps,
		dt:    cfg.Dt,
		ei:    mat.DenseCopyOf(cfg.EI),
		ir:    mat.DenseCopyOf(cfg.IR),
		nE:    nE,
		nI:    nI,
	}
	m.build(cfg.WithOutput)

	if err := m.checkObservability(); err != nil {
		return nil, err
	}

	return m, nil
}

// build assembles A, B and optionally C as block matrices:
//
//	A = | 1  0        0        0 |
//	    | 0  EI       0        0 |
//	    | 0  belowEI  IR       0 |
//	    | 0  0        belowIR  1 |
//
// belowEI places the leftover column mass of EI into the first infectious
// stage; belowIR places the leftover column mass of IR into R. Every column
// of A sums to 1: compartment mass only moves forward or stays.
func (m *Model) build(withOutput bool) {
	n := m.StateDim()

	a := mat.NewDense(n, n, nil)
	a.Set(0, 0, 1)
	a.Slice(1, 1+m.nE, 1, 1+m.nE).(*mat.Dense).Copy(m.ei)
	a.Slice(1+m.nE, 1+m.nE+m.nI, 1+m.nE, 1+m.nE+m.nI).(*mat.Dense).Copy(m.ir)

	for j, sum := range matrix.ColSums(m.ei) {
		a.Set(1+m.nE, 1+j, 1-sum)
	}
	for j, sum := range matrix.ColSums(m.ir) {
		a.Set(n-1, 1+m.nE+j, 1-sum)
	}
	a.Set(n-1, n-1, 1)

	b := mat.NewDense(n, 1, nil)
	b.Set(0, 0, -1)
	b.Set(1, 0, 1)

	m.a = a
	m.b = b

	if withOutput {
		c := mat.NewDense(1, n, nil)
		for j := 1; j < n-1; j++ {
			c.Set(0, j, 1)
		}
		m.c = c
	}
}

// checkObservability verifies that the exposed/infectious sub-block of A is
// observable from the aggregate prevalence row. The full system is never
// observable (S and R are invisible to the output), so the gate is applied
// to the subsystem the estimator actually reconstructs.
func (m *Model) checkObservability() error {
	obs, err := matrix.Observability(m.SubStateMatrix(), m.SubOutputMatrix())
	if err != nil {
		return &epictl.ModelError{Reason: err.Error()}
	}

	sub := m.nE + m.nI
	if rank := matrix.Rank(obs, 0); rank != sub {
		return &epictl.ModelError{Reason: fmt.Sprintf("E/I subsystem not observable: rank %d < %d", rank, sub)}
	}

	return nil
}

// TODO: add a controllability check of the E/I subsystem. The control loop
// does not depend on it, but a gate here would catch unreachable stage
// configurations at construction rather than at controller design time.

// Dims returns the number of exposed and infectious sub-stages.
func (m *Model) Dims() (nE, nI int) {
	return m.nE, m.nI
}

// StateDim returns the full state dimension 2+nE+nI.
func (m *Model) StateDim() int {
	return 2 + m.nE + m.nI
}

// Steps returns the configured run length in steps.
func (m *Model) Steps() int {
	return m.steps
}

// Dt returns the configured step size.
func (m *Model) Dt() float64 {
	return m.dt
}

// StateMatrix returns a copy of the state transition matrix A.
func (m *Model) StateMatrix() *mat.Dense {
	return mat.DenseCopyOf(m.a)
}

// ControlMatrix returns a copy of the control input matrix B.
func (m *Model) ControlMatrix() *mat.Dense {
	return mat.DenseCopyOf(m.b)
}

// OutputMatrix returns a copy of the aggregate observation row C, or nil
// if the model was built without an output definition.
func (m *Model) OutputMatrix() *mat.Dense {
	if m.c == nil {
		return nil
	}
	return mat.DenseCopyOf(m.c)
}

// SubStateMatrix returns the E/I sub-block of A: the dynamics of the hidden
// sub-state the estimator reconstructs.
func (m *Model) SubStateMatrix() *mat.Dense {
	sub := m.nE + m.nI
	return mat.DenseCopyOf(m.a.Slice(1, 1+sub, 1, 1+sub))
}

// SubControlMatrix returns the control matrix of the E/I subsystem: the
// control input injects new exposures into the first exposed stage.
func (m *Model) SubControlMatrix() *mat.Dense {
	sub := m.nE + m.nI
	b := mat.NewDense(sub, 1, nil)
	b.Set(0, 0, 1)

	return b
}

// SubOutputMatrix returns the aggregate prevalence row of the E/I
// subsystem: every sub-stage contributes equally to the observed total.
func (m *Model) SubOutputMatrix() *mat.Dense {
	sub := m.nE + m.nI
	c := mat.NewDense(1, sub, nil)
	for j := 0; j < sub; j++ {
		c.Set(0, j, 1)
	}

	return c
}

// Step propagates state x one step forward under control input u and
// returns the next state. The estimator keeps its own copy of the sub-state
// dynamics; Step serves direct forward simulation of the full system.
func (m *Model) Step(x mat.Vector, u float64) (mat.Vector, error) {
	if x.Len() != m.StateDim() {
		return nil, fmt.Errorf("invalid state vector length: %d", x.Len())
	}

	next := mat.NewVecDense(m.StateDim(), nil)
	next.MulVec(m.a, x)
	next.AddScaledVec(next, u, m.b.ColView(0))

	return next, nil
}

// checkStageMatrix validates a sub-stage transition matrix: square,
// entries in [0,1], column sums at most 1.
func checkStageMatrix(name string, m *mat.Dense) (int, error) {
	if m == nil {
		return 0, &epictl.ConfigError{Reason: fmt.Sprintf("missing %s transition matrix", name)}
	}

	rows, cols := m.Dims()
	if rows != cols || rows == 0 {
		return 0, &epictl.ConfigError{Reason: fmt.Sprintf("%s transition matrix is not square: [%d x %d]", name, rows, cols)}
	}

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if v := m.At(i, j); v < 0 || v > 1 {
				return 0, &epictl.ConfigError{Reason: fmt.Sprintf("%s[%d,%d] = %f is not a probability", name, i, j, v)}
			}
		}
	}

	for j, sum := range matrix.ColSums(m) {
		if sum > 1+probTol {
			return 0, &epictl.ConfigError{Reason: fmt.Sprintf("%s column %d sums to %f > 1", name, j, sum)}
		}
	}

	return rows, nil
}
