// Package calib measures per-scale noise amplitudes from
// the reconstruction error of a generator.
package calib

import (
	"fmt"

	"github.com/tantelu/CSinGAN"
	"github.com/unixpickle/anyvec"
)

// amplitudeDivisor converts a reconstruction RMSE into a
// noise amplitude.
const amplitudeDivisor = 100

// Amplitudes holds the reconstruction RMSE of every frozen
// scale of a generator.
type Amplitudes struct {
	RMSE []float64
}

// Calibrate runs the reconstruction pathway of g and
// measures the RMSE at every frozen scale, i.e. every
// scale below g.CurrentScale().
func Calibrate(g *singan.Generator, recNoise singan.NoiseList, reals []anyvec.Vector,
	batch int) (*Amplitudes, error) {
	cur := g.CurrentScale()
	if len(reals) < cur {
		return nil, fmt.Errorf("calibrate: %w: %d images for %d scales",
			singan.ErrShapeMismatch, len(reals), cur)
	}
	outs, err := g.Forward(recNoise, batch)
	if err != nil {
		return nil, fmt.Errorf("calibrate: %w", err)
	}
	res := &Amplitudes{}
	for i := 0; i < cur; i++ {
		if outs[i].Output().Len() != reals[i].Len() {
			return nil, fmt.Errorf("calibrate: %w: image %d has length %d, expected %d",
				singan.ErrShapeMismatch, i, reals[i].Len(), outs[i].Output().Len())
		}
		res.RMSE = append(res.RMSE, singan.RMSE(outs[i].Output(), reals[i]))
	}
	return res, nil
}

// Len returns the number of measured scales.
func (a *Amplitudes) Len() int {
	return len(a.RMSE)
}

// Vector returns the sampling amplitude of every measured
// scale.
//
// The first amplitude is always 1 and the others are the
// scaled RMSE values.
// When there is more than one entry, the last one is 0.
func (a *Amplitudes) Vector() Vector {
	if len(a.RMSE) == 0 {
		return nil
	}
	res := make(Vector, len(a.RMSE))
	res[0] = 1
	for i := 1; i < len(res); i++ {
		res[i] = a.RMSE[i] / amplitudeDivisor
	}
	if len(res) > 1 {
		res[len(res)-1] = 0
	}
	return res
}

// At returns the sampling amplitude of a scale.
// Scales beyond the measured ones are not perturbed.
func (a *Amplitudes) At(scale int) float64 {
	if scale == 0 {
		return 1
	}
	return a.Vector().At(scale)
}

// Training returns the amplitudes used while training the
// scale after the measured ones.
//
// Measured scales use their scaled RMSE, without the final
// entry being zeroed, and the trainable scale reuses the
// amplitude of the last measured scale.
func (a *Amplitudes) Training() singan.Amplituder {
	return singan.AmplitudeFunc(func(scale int) float64 {
		if scale == 0 || len(a.RMSE) == 0 {
			return 1
		}
		if scale >= len(a.RMSE) {
			scale = len(a.RMSE) - 1
			if scale == 0 {
				return a.RMSE[0] / amplitudeDivisor
			}
		}
		return a.RMSE[scale] / amplitudeDivisor
	})
}

// Vector is a list of per-scale amplitudes, as stored in
// an amplitude log.
type Vector []float64

// At returns v[scale], or 0 if scale is out of range.
func (v Vector) At(scale int) float64 {
	if scale < 0 || scale >= len(v) {
		return 0
	}
	return v[scale]
}
