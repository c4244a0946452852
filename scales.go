package singan

import (
	"fmt"
	"math"
)

// ScaleFactor is the ratio between consecutive scales.
const ScaleFactor = 4.0 / 3

// A Schedule lists the square image sizes of every scale
// in a pyramid, from coarsest to finest.
type Schedule struct {
	Min      int
	Max      int
	NumScale int
	Sizes    []int
}

// NewSchedule computes the geometric size schedule from
// min to max using ScaleFactor.
//
// Sizes are strictly increasing.
// If rounding would produce the same size twice, the
// later size is bumped up by one.
func NewSchedule(min, max int) (*Schedule, error) {
	if min < 1 {
		return nil, fmt.Errorf("%w: minimum image size %d must be positive",
			ErrConfiguration, min)
	}
	if min >= max {
		return nil, fmt.Errorf("%w: minimum image size %d must be below maximum %d",
			ErrConfiguration, min, max)
	}
	num := int(math.Round(math.Log(float64(max)/float64(min)) / math.Log(ScaleFactor)))
	sizes := make([]int, num+1)
	for i := range sizes {
		sizes[i] = int(math.Round(float64(min) * math.Pow(ScaleFactor, float64(i))))
		if i > 0 && sizes[i] <= sizes[i-1] {
			sizes[i] = sizes[i-1] + 1
		}
	}
	return &Schedule{
		Min:      min,
		Max:      max,
		NumScale: num,
		Sizes:    sizes,
	}, nil
}

// Size returns the image size at the given scale.
func (s *Schedule) Size(scale int) int {
	return s.Sizes[scale]
}

// Final returns the size of the finest scale.
func (s *Schedule) Final() int {
	return s.Sizes[s.NumScale]
}
