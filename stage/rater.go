package stage

import "math"

// A Rater determines the learning rate given the number
// of iterations completed within the current stage.
type Rater interface {
	Rate(iter int) float64
}

// A ConstRater is a Rater which always returns the same
// constant learning rate.
type ConstRater float64

// Rate returns float64(c).
func (c ConstRater) Rate(iter int) float64 {
	return float64(c)
}

// StepRater multiplies a base learning rate by Factor
// after every Every iterations.
type StepRater struct {
	Base   float64
	Every  int
	Factor float64
}

// Rate returns the decayed learning rate.
func (s *StepRater) Rate(iter int) float64 {
	if s.Every <= 0 {
		return s.Base
	}
	return s.Base * math.Pow(s.Factor, float64(iter/s.Every))
}
