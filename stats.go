package singan

import (
	"fmt"
	"math"

	"github.com/unixpickle/anyvec"
	"gonum.org/v1/gonum/stat"
)

// Stats computes the mean and (unbiased) variance of the
// components of a vector.
func Stats(v anyvec.Vector) (mean, variance float64) {
	return stat.MeanVariance(VectorFloats(v), nil)
}

// RMSE computes the root mean squared difference between
// two vectors of the same length.
func RMSE(actual, desired anyvec.Vector) float64 {
	diff := actual.Copy()
	diff.Sub(desired)
	anyvec.Pow(diff, diff.Creator().MakeNumeric(2))
	return math.Sqrt(NumericFloat(anyvec.Sum(diff)) / float64(diff.Len()))
}

// Finite checks that x is neither NaN nor infinite.
func Finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// VectorFloats copies the components of a vector into a
// []float64.
func VectorFloats(v anyvec.Vector) []float64 {
	switch data := v.Data().(type) {
	case []float64:
		return data
	case []float32:
		res := make([]float64, len(data))
		for i, x := range data {
			res[i] = float64(x)
		}
		return res
	default:
		panic(fmt.Sprintf("unsupported numeric list: %T", data))
	}
}

// NumericFloat converts a numeric to a float64.
func NumericFloat(n anyvec.Numeric) float64 {
	switch n := n.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	default:
		panic(fmt.Sprintf("unsupported numeric: %T", n))
	}
}

// FloatsVector creates a vector from a []float64.
func FloatsVector(c anyvec.Creator, data []float64) anyvec.Vector {
	return c.MakeVectorData(c.MakeNumericList(data))
}
