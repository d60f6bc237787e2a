package annotation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func xSeries() []float64 {
	x := make([]float64, 101)
	for i := range x {
		x[i] = float64(i)
	}
	return x
}

func TestAddRegionNumbering(t *testing.T) {
	e := NewEditor(xSeries())
	for i := 1; i <= 3; i++ {
		r := e.AddRegion(0, 10)
		assert.Equal(t, i, r.EventNum)
		assert.True(t, r.Recorded)
	}
}

func TestRemoveThenAddReusesNumber(t *testing.T) {
	e := NewEditor(xSeries())
	e.AddRegion(0, 10)
	second := e.AddRegion(10, 20)
	e.AddRegion(20, 30)

	require.True(t, e.Remove(second))
	nums := []int{}
	for _, r := range e.Regions() {
		nums = append(nums, r.EventNum)
	}
	assert.Equal(t, []int{1, 3}, nums, "survivors keep their numbers")

	added := e.AddRegion(30, 40)
	assert.Equal(t, 3, added.EventNum, "numbering follows the current count, not a high-water mark")
}

func TestSetMinimumSwapBehaviour(t *testing.T) {
	e := NewEditor(xSeries())
	r := e.AddRegion(0, 50)

	r.SetMinimum(60)
	low, high := r.Edges()
	assert.Equal(t, 50.0, low, "old maximum becomes the new minimum")
	assert.Equal(t, 60.0, high)
}

func TestSetMaximumSwapBehaviour(t *testing.T) {
	e := NewEditor(xSeries())
	r := e.AddRegion(20, 80)

	r.SetMaximum(10)
	low, high := r.Edges()
	assert.Equal(t, 10.0, low)
	assert.Equal(t, 20.0, high, "old minimum becomes the new maximum")
}

func TestEdgesClampedToBounds(t *testing.T) {
	e := NewEditor(xSeries())
	r := e.AddRegion(0, 50)

	r.SetEdges(-20, 150)
	low, high := r.Edges()
	assert.Equal(t, 0.0, low)
	assert.Equal(t, 100.0, high)
}

func TestAddUniform(t *testing.T) {
	e := NewEditor(xSeries())
	require.NoError(t, e.AddUniform(4))
	require.Equal(t, 4, e.Count())

	for i, r := range e.Regions() {
		low, high := r.Edges()
		assert.Equal(t, float64(i)*25, low)
		assert.Equal(t, float64(i+1)*25, high)
		assert.Equal(t, i+1, r.EventNum)
	}
}

func TestAddUniformEmptyPlot(t *testing.T) {
	e := NewEditor(nil)
	assert.ErrorIs(t, e.AddUniform(3), ErrEmptyPlot)
}

func TestRemoveUnknownRegion(t *testing.T) {
	e := NewEditor(xSeries())
	e.AddRegion(0, 10)
	assert.False(t, e.Remove(&Region{}))
	assert.Equal(t, 1, e.Count())
}

func TestRemoveAll(t *testing.T) {
	e := NewEditor(xSeries())
	e.AddRegion(0, 10)
	e.AddRegion(10, 20)
	e.RemoveAll()
	assert.Zero(t, e.Count())

	r := e.AddRegion(0, 5)
	assert.Equal(t, 1, r.EventNum, "numbering restarts after a full clear")
}
