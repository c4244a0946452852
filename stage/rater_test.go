package stage

import (
	"math"
	"testing"
)

func TestStepRater(t *testing.T) {
	r := &StepRater{Base: 5e-4, Every: 100, Factor: 0.1}
	cases := map[int]float64{
		0:   5e-4,
		99:  5e-4,
		100: 5e-5,
		250: 5e-6,
	}
	for iter, expected := range cases {
		if actual := r.Rate(iter); math.Abs(actual-expected) > 1e-12 {
			t.Errorf("iteration %d: expected %g but got %g", iter, expected, actual)
		}
	}
}

func TestConstRater(t *testing.T) {
	if ConstRater(0.3).Rate(1000) != 0.3 {
		t.Error("unexpected rate")
	}
}
