package numerics

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// KahanSum accumulates float64 values with Kahan compensated summation.
// The zero value is an empty accumulator ready to use.
type KahanSum struct {
	sum          float64
	compensation float64 // low-order bits lost by the running sum
}

// Reset clears the running sum and compensation term
func (k *KahanSum) Reset() {
	k.sum = 0
	k.compensation = 0
}

// Add adds value to the running sum. Once the sum is infinite the compensation
// is dropped, so an infinity propagates unless a NaN or opposite infinity follows.
func (k *KahanSum) Add(value float64) {
	y := value - k.compensation
	t := k.sum + y
	if math.IsInf(t, 0) {
		k.compensation = 0
		k.sum = t
		return
	}
	k.compensation = (t - k.sum) - y
	k.sum = t
}

// Value returns the compensated sum of everything added since the last Reset
func (k *KahanSum) Value() float64 {
	return k.sum
}

// Sum returns the compensated sum of values. floats.SumCompensated turns a
// lone infinity into NaN through its correction term, so a NaN result is
// recomputed with the plain sum, which follows IEEE 754 for infinities.
func Sum(values []float64) float64 {
	s := floats.SumCompensated(values)
	if math.IsNaN(s) {
		return floats.Sum(values)
	}
	return s
}
