package singan

import (
	"math"
	"testing"

	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestStats(t *testing.T) {
	mean, variance := Stats(anyvec32.MakeVectorData([]float32{1, 2, 3, 4}))
	if math.Abs(mean-2.5) > 1e-6 {
		t.Errorf("bad mean: %f", mean)
	}
	if math.Abs(variance-5.0/3) > 1e-6 {
		t.Errorf("bad variance: %f", variance)
	}
}

func TestRMSE(t *testing.T) {
	a := anyvec64.MakeVectorData([]float64{1, 2, 3, 4})
	b := anyvec64.MakeVectorData([]float64{1, 0, 3, 0})
	actual := RMSE(a, b)
	expected := math.Sqrt(20.0 / 4)
	if math.Abs(actual-expected) > 1e-9 {
		t.Errorf("expected %f but got %f", expected, actual)
	}
	if a.Data().([]float64)[1] != 2 {
		t.Error("input was modified")
	}
}

func TestFinite(t *testing.T) {
	if !Finite(3) || Finite(math.NaN()) || Finite(math.Inf(-1)) {
		t.Error("unexpected result")
	}
}
