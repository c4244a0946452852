package superres

import (
	"fmt"
	"math/rand"

	"github.com/tantelu/CSinGAN"
	"github.com/tantelu/CSinGAN/artifact"
	"github.com/unixpickle/anyvec"
)

// DefaultSamples is the default number of unconditional
// samples.
const DefaultSamples = 30

// A Sampler draws unconditional samples from a generator.
type Sampler struct {
	Generator *singan.Generator

	// Amplitudes scales the noise at every scale.
	Amplitudes singan.Amplituder

	// Count defaults to DefaultSamples when it is 0.
	Count int

	// Exporter, if non-nil, receives every sample as
	// gaussian_{k}, counting from 1.
	Exporter *artifact.Exporter

	// Rand is used to draw noise.
	// If it is nil, the global source is used.
	Rand *rand.Rand
}

// Run draws the samples and returns the finest output of
// each one.
func (s *Sampler) Run() ([]anyvec.Vector, error) {
	g := s.Generator
	if !g.Evaluating() {
		return nil, fmt.Errorf("sample: %w: generator is not frozen", singan.ErrConfiguration)
	}
	cur := g.CurrentScale()
	count := s.Count
	if count == 0 {
		count = DefaultSamples
	}
	var res []anyvec.Vector
	for k := 1; k <= count; k++ {
		noise := singan.SampleNoise(g.Creator, g.Schedule, cur+1, s.Amplitudes, g.Depth, 1,
			s.Rand)
		outs, err := g.Forward(noise, 1)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", k, err)
		}
		img := outs[cur].Output()
		res = append(res, img)
		err = exportBatch(s.Exporter, fmt.Sprintf("gaussian_%d", k), g.Schedule.Size(cur),
			g.Depth, 1, img)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}
