// Package superres produces images from a trained
// generator, either by refining an upsampled input or by
// sampling from noise.
package superres

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/tantelu/CSinGAN"
	"github.com/tantelu/CSinGAN/artifact"
	"github.com/unixpickle/anyvec"
)

// Default refinement settings.
const (
	DefaultIterations = 10
	DefaultNoise      = 0.04
	DefaultUpscale    = 2
)

// Stats summarizes one refined image.
type Stats struct {
	Iter     int
	Mean     float64
	Variance float64
}

// A Result holds the output of every refinement
// iteration.
type Result struct {
	Size   int
	Images []anyvec.Vector
	Stats  []Stats
}

// A Refiner repeatedly perturbs an image and refines it
// with the finest scale of a generator.
type Refiner struct {
	Generator *singan.Generator

	// Iterations, Noise and Upscale default to
	// DefaultIterations, DefaultNoise and DefaultUpscale
	// when they are 0.
	Iterations int
	Noise      float64
	Upscale    float64

	// Exporter, if non-nil, receives the upsampled input
	// and every refined image.
	Exporter *artifact.Exporter

	// Rand is used to draw noise.
	// If it is nil, the global source is used.
	Rand *rand.Rand
}

// OutputSize returns the side length of refined images.
func (r *Refiner) OutputSize() int {
	return int(math.Round(float64(r.Generator.Schedule.Final()) * r.upscale()))
}

// Run upsamples a batch of images to OutputSize and then
// runs the refinement iterations, each one starting from
// the output of the previous one.
//
// The generator must be frozen, since batch statistics of
// an upscaled image differ from those seen in training.
func (r *Refiner) Run(input anyvec.Vector, inSize, batch int) (*Result, error) {
	g := r.Generator
	final := g.Schedule.NumScale
	if g.CurrentScale() != final {
		return nil, fmt.Errorf("refine: %w: generator has %d of %d scales",
			singan.ErrShapeMismatch, g.CurrentScale()+1, final+1)
	}
	if input.Len() != inSize*inSize*g.Depth*batch {
		return nil, fmt.Errorf("refine: %w: input has length %d, expected %d",
			singan.ErrShapeMismatch, input.Len(), inSize*inSize*g.Depth*batch)
	}
	if !g.Evaluating() {
		return nil, fmt.Errorf("refine: %w: generator is not frozen", singan.ErrConfiguration)
	}
	size := r.OutputSize()
	x := singan.Upsample(input, inSize, size, g.Depth, batch)
	if err := r.export(fmt.Sprintf("Final_stage_Input_%d", final), size, batch, x); err != nil {
		return nil, err
	}

	res := &Result{Size: size}
	for i := 0; i < r.iterations(); i++ {
		noise := g.Creator.MakeVector(x.Len())
		anyvec.Rand(noise, anyvec.Normal, r.Rand)
		noise.Scale(g.Creator.MakeNumeric(r.noise()))
		noise.Add(x)
		outs, err := g.SuperResolution(noise, size, final, batch)
		if err != nil {
			return nil, fmt.Errorf("refine: %w", err)
		}
		x = outs[len(outs)-1]
		mean, variance := singan.Stats(x)
		res.Images = append(res.Images, x)
		res.Stats = append(res.Stats, Stats{Iter: i, Mean: mean, Variance: variance})
		if err := r.export(fmt.Sprintf("output-epol%d", i), size, batch, x); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (r *Refiner) export(base string, size, batch int, v anyvec.Vector) error {
	return exportBatch(r.Exporter, base, size, r.Generator.Depth, batch, v)
}

func (r *Refiner) iterations() int {
	if r.Iterations == 0 {
		return DefaultIterations
	}
	return r.Iterations
}

func (r *Refiner) noise() float64 {
	if r.Noise == 0 {
		return DefaultNoise
	}
	return r.Noise
}

func (r *Refiner) upscale() float64 {
	if r.Upscale == 0 {
		return DefaultUpscale
	}
	return r.Upscale
}

// exportBatch exports every image of a batch, adding an
// index suffix when there is more than one.
func exportBatch(e *artifact.Exporter, base string, size, depth, batch int,
	v anyvec.Vector) error {
	if e == nil {
		return nil
	}
	for i := 0; i < batch; i++ {
		name := base
		if batch > 1 {
			name = fmt.Sprintf("%s_%d", base, i)
		}
		if err := e.Export(name, size, depth, artifact.BatchItem(v, i, batch)); err != nil {
			return err
		}
	}
	return nil
}
