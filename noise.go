package singan

import (
	"math/rand"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet/anyconv"
	"github.com/unixpickle/anyvec"
)

// NoisePadding is the width of the zero border around
// every noise map.
// Each Block shrinks its input by the same amount on every
// side, so a padded map of size+2*NoisePadding produces an
// output of the original size.
const NoisePadding = 5

// PaddedSize returns the side length of a padded map.
func PaddedSize(size int) int {
	return size + 2*NoisePadding
}

// A NoiseList stores one padded noise map per scale,
// starting at the coarsest scale.
type NoiseList []anyvec.Vector

// An Amplituder reports the noise amplitude to use when
// sampling at a given scale.
type Amplituder interface {
	At(scale int) float64
}

// ConstAmplitude is an Amplituder which uses the same
// amplitude at every scale.
type ConstAmplitude float64

// At returns float64(c).
func (c ConstAmplitude) At(scale int) float64 {
	return float64(c)
}

// AmplitudeFunc is an Amplituder backed by a function.
type AmplitudeFunc func(scale int) float64

// At returns f(scale).
func (f AmplitudeFunc) At(scale int) float64 {
	return f(scale)
}

// GaussianNoise creates a padded noise map whose inner
// values are drawn from N(0, amp^2).
//
// If rng is nil, the global source is used.
func GaussianNoise(c anyvec.Creator, rng *rand.Rand, size, depth, batch int,
	amp float64) anyvec.Vector {
	v := c.MakeVector(size * size * depth * batch)
	if amp != 0 {
		anyvec.Rand(v, anyvec.Normal, rng)
		v.Scale(c.MakeNumeric(amp))
	}
	return PadTensor(v, size, depth, batch)
}

// ZeroNoise creates an all-zero padded noise map.
func ZeroNoise(c anyvec.Creator, size, depth, batch int) anyvec.Vector {
	padded := PaddedSize(size)
	return c.MakeVector(padded * padded * depth * batch)
}

// ReconstructionNoise creates the noise list used by the
// reconstruction pathway: a fixed map at scale 0, derived
// from seed, and zeros at every other scale.
//
// The list covers every scale of the schedule.
func ReconstructionNoise(c anyvec.Creator, s *Schedule, depth, batch int,
	seed int64) NoiseList {
	rng := rand.New(rand.NewSource(seed))
	res := NoiseList{GaussianNoise(c, rng, s.Size(0), depth, batch, 1)}
	for i := 1; i <= s.NumScale; i++ {
		res = append(res, ZeroNoise(c, s.Size(i), depth, batch))
	}
	return res
}

// SampleNoise draws noise for the first numScales scales,
// scaling the map at each scale by its amplitude.
func SampleNoise(c anyvec.Creator, s *Schedule, numScales int, amps Amplituder,
	depth, batch int, rng *rand.Rand) NoiseList {
	var res NoiseList
	for i := 0; i < numScales; i++ {
		res = append(res, GaussianNoise(c, rng, s.Size(i), depth, batch, amps.At(i)))
	}
	return res
}

// PadTensor adds a zero border of NoisePadding to a batch
// of square tensors.
func PadTensor(v anyvec.Vector, size, depth, batch int) anyvec.Vector {
	return paddingLayer(size, depth).Apply(anydiff.NewConst(v), batch).Output()
}

func paddingLayer(size, depth int) *anyconv.Padding {
	return &anyconv.Padding{
		InputWidth:    size,
		InputHeight:   size,
		InputDepth:    depth,
		PaddingTop:    NoisePadding,
		PaddingRight:  NoisePadding,
		PaddingBottom: NoisePadding,
		PaddingLeft:   NoisePadding,
	}
}
