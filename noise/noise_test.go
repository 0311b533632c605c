package noise

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestGaussian(t *testing.T) {
	assert := assert.New(t)

	mean := []float64{2, 3}
	cov := mat.NewSymDense(2, []float64{1, 0.1, 0.1, 1})

	g, err := NewGaussian(mean, cov, 42)
	assert.NotNil(g)
	assert.NoError(err)

	gCov := g.Cov()
	assert.Equal(cov.SymmetricDim(), gCov.SymmetricDim())
	assert.True(mat.EqualApprox(cov, gCov, 1e-12))
	assert.EqualValues(mean, g.Mean())

	sample := g.Sample()
	assert.Equal(len(mean), sample.Len())

	// same seed must produce the same stream after Reset
	first := mat.VecDenseCopyOf(g.Sample())
	g.Reset()
	g.Sample()
	second := g.Sample()
	assert.True(mat.EqualApprox(first, second, 1e-12))

	// non positive definite covariance
	bad := mat.NewSymDense(2, []float64{1, 2, 2, 1})
	g, err = NewGaussian(mean, bad, 42)
	assert.Nil(g)
	assert.Error(err)
}

func TestZero(t *testing.T) {
	assert := assert.New(t)

	z, err := NewZero(3)
	assert.NotNil(z)
	assert.NoError(err)

	sample := z.Sample()
	assert.Equal(3, sample.Len())
	for i := 0; i < sample.Len(); i++ {
		assert.Equal(0.0, sample.AtVec(i))
	}
	assert.Equal(3, z.Cov().SymmetricDim())
	assert.EqualValues([]float64{0, 0, 0}, z.Mean())

	z, err = NewZero(-3)
	assert.Nil(z)
	assert.Error(err)
}

func TestNone(t *testing.T) {
	assert := assert.New(t)

	n, err := NewNone()
	assert.NotNil(n)
	assert.NoError(err)

	assert.Equal(0, n.Sample().Len())
	assert.Equal(0, n.Cov().SymmetricDim())
	assert.Nil(n.Mean())
}
