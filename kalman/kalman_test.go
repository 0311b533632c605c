package kalman

import (
	"math"
	"os"
	"testing"

	"github.com/epictl/epictl"
	"github.com/epictl/epictl/estimate"
	"github.com/epictl/epictl/noise"
	"github.com/epictl/epictl/seir"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

var model *seir.Model

func stageChain(n int, stay float64) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for j := 0; j < n; j++ {
		m.Set(j, j, stay)
		if j+1 < n {
			m.Set(j+1, j, 1-stay)
		}
	}
	return m
}

func setup() {
	var err error
	model, err = seir.New(seir.Config{
		Steps:      200,
		Dt:         1,
		EI:         stageChain(3, 0.4),
		IR:         stageChain(3, 0.5),
		WithOutput: true,
	})
	if err != nil {
		panic(err)
	}
}

func TestMain(m *testing.M) {
	setup()
	os.Exit(m.Run())
}

func TestNew(t *testing.T) {
	assert := assert.New(t)

	f, err := New(model, Config{InitialExposed: 1000})
	assert.NotNil(f)
	assert.NoError(err)

	assert.EqualValues([]float64{1000, 0, 0}, f.Exposed())
	assert.EqualValues([]float64{0, 0, 0}, f.Infectious())
	assert.Equal(6, f.SubState().Len())
	assert.Equal(6, f.Cov().SymmetricDim())

	var cerr *epictl.ConfigError

	f, err = New(nil, Config{InitialExposed: 10})
	assert.Nil(f)
	assert.ErrorAs(err, &cerr)

	f, err = New(model, Config{InitialExposed: -10})
	assert.Nil(f)
	assert.ErrorAs(err, &cerr)

	f, err = New(model, Config{Mode: ObservationMode(42)})
	assert.Nil(f)
	assert.ErrorAs(err, &cerr)
}

func TestNewWithInitCond(t *testing.T) {
	assert := assert.New(t)

	state := mat.NewVecDense(6, []float64{400, 300, 200, 100, 50, 25})
	cov := mat.NewSymDense(6, nil)
	for i := 0; i < 6; i++ {
		cov.SetSym(i, i, 50)
	}

	f, err := New(model, Config{Init: estimate.NewInitCond(state, cov)})
	assert.NotNil(f)
	assert.NoError(err)

	assert.EqualValues([]float64{400, 300, 200}, f.Exposed())
	assert.EqualValues([]float64{100, 50, 25}, f.Infectious())
	assert.Equal(50.0, f.Cov().At(0, 0))

	// the explicit condition must match the sub-state dimension
	var cerr *epictl.ConfigError
	short := estimate.NewInitCond(mat.NewVecDense(3, nil), mat.NewSymDense(3, nil))
	f, err = New(model, Config{Init: short})
	assert.Nil(f)
	assert.ErrorAs(err, &cerr)
}

func TestNoiseConfig(t *testing.T) {
	assert := assert.New(t)

	// None disables the noise terms but the filter still corrects
	none, err := noise.NewNone()
	assert.NoError(err)

	f, err := New(model, Config{
		InitialExposed:   1000,
		ProcessNoise:     none,
		MeasurementNoise: none,
	})
	assert.NotNil(f)
	assert.NoError(err)

	est, err := f.Update(900, 100, 50)
	assert.NotNil(est)
	assert.NoError(err)

	// mismatched noise dimensions are rejected
	var cerr *epictl.ConfigError
	wrong, err := noise.NewZero(4)
	assert.NoError(err)

	f, err = New(model, Config{InitialExposed: 1000, ProcessNoise: wrong})
	assert.Nil(f)
	assert.ErrorAs(err, &cerr)

	f, err = New(model, Config{InitialExposed: 1000, MeasurementNoise: wrong})
	assert.Nil(f)
	assert.ErrorAs(err, &cerr)
}

func TestUpdate(t *testing.T) {
	assert := assert.New(t)

	f, err := New(model, Config{InitialExposed: 1000})
	assert.NoError(err)

	est, err := f.Update(900, 100, 50)
	assert.NotNil(est)
	assert.NoError(err)

	assert.Equal(6, est.Val().Len())
	assert.Len(f.Exposed(), 3)
	assert.Len(f.Infectious(), 3)

	// negative control input is clipped, not propagated
	_, err = f.Update(900, 100, -1e9)
	assert.NoError(err)
	for _, v := range f.Exposed() {
		assert.False(math.IsNaN(v))
	}
}

func TestConvergesToTruth(t *testing.T) {
	assert := assert.New(t)

	// truth starts at 500 exposed, estimator is seeded at twice that
	truth := mat.NewVecDense(6, nil)
	truth.SetVec(0, 500)

	f, err := New(model, Config{InitialExposed: 1000})
	assert.NoError(err)

	a := model.SubStateMatrix()
	b := model.SubControlMatrix()
	u := 50.0

	for k := 0; k < 60; k++ {
		next := mat.NewVecDense(6, nil)
		next.MulVec(a, truth)
		next.AddScaledVec(next, u, b.ColView(0))
		truth.CopyVec(next)

		eTot := truth.AtVec(0) + truth.AtVec(1) + truth.AtVec(2)
		iTot := truth.AtVec(3) + truth.AtVec(4) + truth.AtVec(5)

		_, err := f.Update(eTot, iTot, u)
		assert.NoError(err)
	}

	for i := 0; i < 6; i++ {
		assert.InDelta(truth.AtVec(i), f.SubState().AtVec(i), 5.0, "state %d", i)
	}
}

func TestCovarianceStaysSymmetricPSD(t *testing.T) {
	assert := assert.New(t)

	f, err := New(model, Config{InitialExposed: 1000})
	assert.NoError(err)

	for k := 0; k < 50; k++ {
		_, err := f.Update(800, 150, 20)
		assert.NoError(err)

		cov := f.Cov()
		n := cov.SymmetricDim()
		for i := 0; i < n; i++ {
			assert.True(cov.At(i, i) >= 0, "negative variance at %d", i)
			for j := 0; j < n; j++ {
				assert.InDelta(cov.At(i, j), cov.At(j, i), 1e-9)
			}
		}

		var chol mat.Cholesky
		shifted := mat.NewSymDense(n, nil)
		shifted.CopySym(cov)
		for i := 0; i < n; i++ {
			shifted.SetSym(i, i, shifted.At(i, i)+1e-6)
		}
		assert.True(chol.Factorize(shifted), "covariance lost positive semi-definiteness")
	}
}

func TestBoundedDrift(t *testing.T) {
	assert := assert.New(t)

	f, err := New(model, Config{InitialExposed: 1000})
	assert.NoError(err)

	bound := 10.0 * (1000 + 500 + 300)

	for k := 0; k < 100; k++ {
		_, err := f.Update(500, 300, 10)
		assert.NoError(err)

		for i := 0; i < 6; i++ {
			assert.True(math.Abs(f.SubState().AtVec(i)) < bound, "estimate %d diverged at step %d", i, k)
		}
	}
}

func TestAggregateMode(t *testing.T) {
	assert := assert.New(t)

	f, err := New(model, Config{InitialExposed: 500, Mode: Aggregate})
	assert.NoError(err)

	est, err := f.Update(400, 100, 0)
	assert.NotNil(est)
	assert.NoError(err)

	gain := f.Gain()
	_, cols := gain.Dims()
	assert.Equal(1, cols)
}
