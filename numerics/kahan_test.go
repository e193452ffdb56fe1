package numerics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func naiveSum(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum
}

func TestKahanSumEmpty(t *testing.T) {
	var k KahanSum
	assert.Equal(t, 0.0, k.Value())
	assert.Equal(t, 0.0, Sum(nil))
}

func TestKahanSumBeatsNaiveSummation(t *testing.T) {
	values := make([]float64, 1000000)
	for i := range values {
		values[i] = 0.1
	}

	kahanErr := math.Abs(Sum(values) - 100000)
	naiveErr := math.Abs(naiveSum(values) - 100000)

	assert.InDelta(t, 100000.0, Sum(values), 1e-9)
	assert.Greater(t, naiveErr, 1e-8)
	assert.Less(t, kahanErr, naiveErr)
}

func TestKahanSumRecoversSmallTerms(t *testing.T) {
	// 1 followed by many terms below half an ulp of 1: naive summation drops all of them
	var k KahanSum
	k.Add(1)
	for i := 0; i < 10000; i++ {
		k.Add(1e-17)
	}
	assert.InDelta(t, 1+1e-13, k.Value(), 1e-15)
	assert.Greater(t, k.Value(), 1.0)
}

func TestKahanSumReset(t *testing.T) {
	var k KahanSum
	k.Add(3)
	k.Add(4)
	assert.Equal(t, 7.0, k.Value())

	k.Reset()
	assert.Equal(t, 0.0, k.Value())
	k.Add(2)
	assert.Equal(t, 2.0, k.Value())
}

func TestKahanSumPropagatesNonFinite(t *testing.T) {
	var k KahanSum
	k.Add(1)
	k.Add(math.NaN())
	assert.True(t, math.IsNaN(k.Value()))

	k.Reset()
	k.Add(1)
	k.Add(math.Inf(1))
	assert.True(t, math.IsInf(k.Value(), 1))
	k.Add(1)
	k.Add(2.5)
	assert.True(t, math.IsInf(k.Value(), 1), "finite terms after an overflow keep the sum infinite")

	k.Reset()
	k.Add(math.MaxFloat64)
	k.Add(math.MaxFloat64)
	k.Add(-1)
	assert.True(t, math.IsInf(k.Value(), 1))

	k.Reset()
	k.Add(math.Inf(-1))
	k.Add(3)
	assert.True(t, math.IsInf(k.Value(), -1))
	k.Add(math.Inf(1))
	assert.True(t, math.IsNaN(k.Value()))
}

func TestSumPropagatesNonFinite(t *testing.T) {
	assert.True(t, math.IsInf(Sum([]float64{1, math.Inf(1), 1}), 1))
	assert.True(t, math.IsInf(Sum([]float64{-2, math.Inf(-1)}), -1))
	assert.True(t, math.IsNaN(Sum([]float64{math.Inf(1), math.Inf(-1)})))
	assert.True(t, math.IsNaN(Sum([]float64{1, math.NaN(), 2})))
	assert.Equal(t, 6.0, Sum([]float64{1, 2, 3}))
}
