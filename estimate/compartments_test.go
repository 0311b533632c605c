package estimate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestNewCompartments(t *testing.T) {
	assert := assert.New(t)

	val := mat.NewVecDense(4, []float64{10, 5, 3, 1})
	cov := mat.NewSymDense(4, nil)

	c, err := NewCompartments(val, cov, 2)
	assert.NotNil(c)
	assert.NoError(err)

	assert.EqualValues([]float64{10, 5}, c.Exposed())
	assert.EqualValues([]float64{3, 1}, c.Infectious())
	assert.True(mat.EqualApprox(val, c.Val(), 1e-12))
	assert.Equal(4, c.Cov().SymmetricDim())

	// returned value is a copy
	v := c.Val()
	v.(*mat.VecDense).SetVec(0, -100)
	assert.Equal(10.0, c.Exposed()[0])

	// dimension mismatch
	c, err = NewCompartments(val, mat.NewSymDense(3, nil), 2)
	assert.Nil(c)
	assert.Error(err)

	// invalid stage count
	c, err = NewCompartments(val, cov, 5)
	assert.Nil(c)
	assert.Error(err)
}
