package seir

import (
	"testing"

	"github.com/epictl/epictl"
	"github.com/epictl/epictl/matrix"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

// stageChain returns an n-stage progression matrix where each stage retains
// stay mass and passes 1-stay to the next stage each step.
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

func testConfig() Config {
	return Config{
		Steps:      200,
		Dt:         1,
		EI:         stageChain(3, 0.4),
		IR:         stageChain(3, 0.5),
		WithOutput: true,
	}
}

func TestNew(t *testing.T) {
	assert := assert.New(t)

	m, err := New(testConfig())
	assert.NotNil(m)
	assert.NoError(err)

	nE, nI := m.Dims()
	assert.Equal(3, nE)
	assert.Equal(3, nI)
	assert.Equal(8, m.StateDim())

	b := m.ControlMatrix()
	assert.Equal(-1.0, b.At(0, 0))
	assert.Equal(1.0, b.At(1, 0))
	for i := 2; i < 8; i++ {
		assert.Equal(0.0, b.At(i, 0))
	}

	c := m.OutputMatrix()
	assert.NotNil(c)
	assert.Equal(0.0, c.At(0, 0))
	assert.Equal(0.0, c.At(0, 7))
	for j := 1; j < 7; j++ {
		assert.Equal(1.0, c.At(0, j))
	}

	cfg := testConfig()
	cfg.WithOutput = false
	m, err = New(cfg)
	assert.NoError(err)
	assert.Nil(m.OutputMatrix())
}

func TestNewInvalidConfig(t *testing.T) {
	assert := assert.New(t)

	var cerr *epictl.ConfigError

	cfg := testConfig()
	cfg.Steps = 0
	_, err := New(cfg)
	assert.ErrorAs(err, &cerr)

	cfg = testConfig()
	cfg.Dt = -1
	_, err = New(cfg)
	assert.ErrorAs(err, &cerr)

	cfg = testConfig()
	cfg.EI = nil
	_, err = New(cfg)
	assert.ErrorAs(err, &cerr)

	cfg = testConfig()
	cfg.IR = mat.NewDense(2, 3, nil)
	_, err = New(cfg)
	assert.ErrorAs(err, &cerr)

	// entry outside [0,1]
	cfg = testConfig()
	cfg.EI.Set(0, 0, 1.5)
	_, err = New(cfg)
	assert.ErrorAs(err, &cerr)

	// column mass above 1
	cfg = testConfig()
	cfg.IR.Set(0, 0, 0.9)
	cfg.IR.Set(1, 0, 0.9)
	_, err = New(cfg)
	assert.ErrorAs(err, &cerr)
}

func TestMassConservation(t *testing.T) {
	assert := assert.New(t)

	m, err := New(testConfig())
	assert.NoError(err)

	for j, sum := range matrix.ColSums(m.StateMatrix()) {
		assert.InDelta(1.0, sum, 1e-12, "column %d", j)
	}

	// leftover mass of the terminal E column lands in the first I stage
	a := m.StateMatrix()
	assert.InDelta(0.6, a.At(4, 3), 1e-12)
	// leftover mass of the terminal I column lands in R
	assert.InDelta(0.5, a.At(7, 6), 1e-12)
}

func TestObservabilityGate(t *testing.T) {
	assert := assert.New(t)

	// chained stages are observable from the aggregate signal
	_, err := New(testConfig())
	assert.NoError(err)

	// two parallel identical exposed stages are indistinguishable from
	// their sum: construction must fail loudly
	cfg := testConfig()
	cfg.EI = mat.NewDense(2, 2, []float64{
		0.5, 0.0,
		0.0, 0.5,
	})
	cfg.IR = mat.NewDense(1, 1, []float64{0.5})
	m, err := New(cfg)
	assert.Nil(m)
	assert.Error(err)

	var merr *epictl.ModelError
	assert.ErrorAs(err, &merr)
}

func TestStep(t *testing.T) {
	assert := assert.New(t)

	m, err := New(testConfig())
	assert.NoError(err)

	x := mat.NewVecDense(8, nil)
	x.SetVec(0, 1000)

	next, err := m.Step(x, 10)
	assert.NoError(err)
	assert.InDelta(990, next.AtVec(0), 1e-12)
	assert.InDelta(10, next.AtVec(1), 1e-12)

	// total mass is conserved
	assert.InDelta(mat.Sum(x), mat.Sum(next), 1e-9)

	_, err = m.Step(mat.NewVecDense(3, nil), 0)
	assert.Error(err)
}

func TestInfectivityPolicy(t *testing.T) {
	assert := assert.New(t)

	p := DefaultInfectivityPolicy()

	// first three stages counted twice
	xi := p.Effective([]float64{10, 10, 10, 10})
	assert.InDelta(70, xi, 1e-12)

	// fewer stages than the early window
	xi = p.Effective([]float64{10, 10})
	assert.InDelta(40, xi, 1e-12)

	p.Exponent = 2
	xi = p.Effective([]float64{1, 1})
	assert.InDelta(16, xi, 1e-12)

	// negative estimates pass through unshaped for the caller to detect
	p = DefaultInfectivityPolicy()
	xi = p.Effective([]float64{-5, 0, 0})
	assert.InDelta(-10, xi, 1e-12)
}
