package control

import (
	"fmt"

	"github.com/epictl/epictl"
	"github.com/epictl/epictl/seir"
	"gonum.org/v1/gonum/mat"
)

// Config holds the controller construction options.
type Config struct {
	// Poles are the desired closed-loop pole locations of the augmented
	// (sub-state, integral-error) system. A single value is applied to
	// every augmented pole; otherwise exactly nE+nI+1 values are required.
	// Discrete-time stability needs every |pole| < 1.
	Poles []float64
}

// Controller is a pole-placement state feedback controller over the
// augmented state [E_1..E_nE, I_1..I_nI, integral error]. The integral
// state accumulates the deviation of observed prevalence from target and
// removes steady-state tracking error.
type Controller struct {
	// k is the feedback gain over the augmented state
	k *mat.VecDense
}

// New designs a controller for the given model. The augmented system
// extends the E/I sub-block of the model with an integrator driven by the
// aggregate prevalence output:
//
//	Aaug = | Asub  0 |    Baug = | Bsub |
//	       | c     1 |           | 0    |
//
// It returns epictl.DesignError if the requested poles cannot be placed.
func New(model *seir.Model, cfg Config) (*Controller, error) {
	if model == nil {
		return nil, &epictl.ConfigError{Reason: "missing state-space model"}
	}

	nE, nI := model.Dims()
	sub := nE + nI
	aug := sub + 1

	poles := cfg.Poles
	switch len(poles) {
	case 1:
		p := poles[0]
		poles = make([]float64, aug)
		for i := range poles {
			poles[i] = p
		}
	case aug:
	default:
		return nil, &epictl.DesignError{Reason: fmt.Sprintf("need 1 or %d pole locations, got %d", aug, len(poles))}
	}

	aSub := model.SubStateMatrix()
	bSub := model.SubControlMatrix()
	c := model.SubOutputMatrix()

	aAug := mat.NewDense(aug, aug, nil)
	aAug.Slice(0, sub, 0, sub).(*mat.Dense).Copy(aSub)
	for j := 0; j < sub; j++ {
		aAug.Set(sub, j, c.At(0, j))
	}
	aAug.Set(sub, sub, 1)

	bAug := mat.NewDense(aug, 1, nil)
	bAug.Slice(0, sub, 0, 1).(*mat.Dense).Copy(bSub)

	k, err := Place(aAug, bAug, poles)
	if err != nil {
		return nil, err
	}

	return &Controller{k: k}, nil
}

// GetControl returns the control signal u = -k*x for the augmented state x.
// The result is not clamped: negative new-exposure requests are for the
// caller to reject.
func (c *Controller) GetControl(x mat.Vector) (float64, error) {
	if x.Len() != c.k.Len() {
		return 0, fmt.Errorf("invalid augmented state length: %d != %d", x.Len(), c.k.Len())
	}

	return -mat.Dot(c.k, x), nil
}

// Gain returns a copy of the feedback gain.
func (c *Controller) Gain() mat.Vector {
	return mat.VecDenseCopyOf(c.k)
}
