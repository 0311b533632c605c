package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestRowColSums(t *testing.T) {
	assert := assert.New(t)

	data := []float64{1.2, 3.4, 4.5, 6.7, 8.9, 10.0}
	rowSums := []float64{4.6, 11.2, 18.9}
	colSums := []float64{14.6, 20.1}
	delta := 0.001

	m := mat.NewDense(3, 2, data)
	assert.NotNil(m)

	resRows := RowSums(m)
	assert.InDeltaSlice(rowSums, resRows, delta)

	resCols := ColSums(m)
	assert.InDeltaSlice(colSums, resCols, delta)
}

func TestRank(t *testing.T) {
	assert := assert.New(t)

	full := mat.NewDense(2, 2, []float64{1.0, 0.0, 0.0, 2.0})
	assert.Equal(2, Rank(full, 0))

	deficient := mat.NewDense(2, 2, []float64{1.0, 2.0, 2.0, 4.0})
	assert.Equal(1, Rank(deficient, 0))

	zero := mat.NewDense(3, 3, nil)
	assert.Equal(0, Rank(zero, 0))
}

func TestObservability(t *testing.T) {
	assert := assert.New(t)

	a := mat.NewDense(2, 2, []float64{1.0, 1.0, 0.0, 1.0})
	c := mat.NewDense(1, 2, []float64{1.0, 0.0})

	obs, err := Observability(a, c)
	assert.NoError(err)
	want := mat.NewDense(2, 2, []float64{1.0, 0.0, 1.0, 1.0})
	assert.True(mat.EqualApprox(want, obs, 1e-12))
	assert.Equal(2, Rank(obs, 0))

	// unobservable pair: output blind to the second state
	c = mat.NewDense(1, 2, []float64{0.0, 0.0})
	obs, err = Observability(a, c)
	assert.NoError(err)
	assert.Equal(0, Rank(obs, 0))

	// dimension mismatch
	_, err = Observability(a, mat.NewDense(1, 3, nil))
	assert.Error(err)
	_, err = Observability(mat.NewDense(2, 3, nil), c)
	assert.Error(err)
}

func TestControllability(t *testing.T) {
	assert := assert.New(t)

	a := mat.NewDense(2, 2, []float64{1.0, 1.0, 0.0, 1.0})
	b := mat.NewDense(2, 1, []float64{0.0, 1.0})

	ctrb, err := Controllability(a, b)
	assert.NoError(err)
	want := mat.NewDense(2, 2, []float64{0.0, 1.0, 1.0, 1.0})
	assert.True(mat.EqualApprox(want, ctrb, 1e-12))
	assert.Equal(2, Rank(ctrb, 0))

	// uncontrollable pair: no input authority at all
	ctrb, err = Controllability(a, mat.NewDense(2, 1, nil))
	assert.NoError(err)
	assert.Equal(0, Rank(ctrb, 0))

	// dimension mismatch
	_, err = Controllability(a, mat.NewDense(3, 1, nil))
	assert.Error(err)
}
