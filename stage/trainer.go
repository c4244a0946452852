package stage

import (
	"fmt"
	"math/rand"

	"github.com/tantelu/CSinGAN"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// Status describes one training iteration.
type Status struct {
	Stage int
	Iter  int

	DiscCost float64
	GenAdv   float64
	GenRec   float64

	LearningRate float64
}

// A Trainer trains the current scale of a Controller.
type Trainer struct {
	Controller *Controller

	// Reals holds the training image at every scale of the
	// schedule, packed as a batch.
	Reals []anyvec.Vector

	// RecNoise is the fixed reconstruction noise list.
	RecNoise singan.NoiseList

	// Amplitudes scales the sampling noise at each scale.
	Amplitudes singan.Amplituder

	Batch      int
	Iterations int
	Rater      Rater

	// RecWeight scales the reconstruction cost in the
	// generator step.
	RecWeight float64

	// Syncer, if non-nil, averages gradients across
	// replicas before every step.
	Syncer GradSyncer

	// Rand is used to draw sampling noise.
	// If it is nil, the global source is used.
	Rand *rand.Rand

	// StatusFunc, if non-nil, is called after every
	// iteration.
	StatusFunc func(s *Status)
}

// TrainStage runs the full iteration budget for the
// current stage.
//
// Each iteration performs a discriminator step on real
// images versus detached fakes, followed by a generator
// step on the adversarial cost plus the weighted
// reconstruction cost.
func (t *Trainer) TrainStage() error {
	cur := t.Controller.Stage()
	if len(t.Reals) <= cur || len(t.RecNoise) <= cur {
		return fmt.Errorf("train stage %d: %w: missing images or reconstruction noise",
			cur, singan.ErrShapeMismatch)
	}
	for iter := 0; iter < t.Iterations; iter++ {
		status, err := t.step(cur, iter)
		if err != nil {
			return fmt.Errorf("train stage %d: iteration %d: %w", cur, iter, err)
		}
		if t.StatusFunc != nil {
			t.StatusFunc(status)
		}
	}
	return nil
}

func (t *Trainer) step(cur, iter int) (*Status, error) {
	g := t.Controller.Generator
	d := t.Controller.Discriminator
	status := &Status{Stage: cur, Iter: iter, LearningRate: t.Rater.Rate(iter)}

	noise := singan.SampleNoise(g.Creator, g.Schedule, cur+1, t.Amplitudes, g.Depth,
		t.Batch, t.Rand)
	outs, err := g.Forward(noise, t.Batch)
	if err != nil {
		return nil, err
	}
	fake := outs[cur]
	real := anydiff.NewConst(t.Reals[cur])

	realScores, err := d.Apply(real, t.Batch)
	if err != nil {
		return nil, err
	}
	fakeScores, err := d.Apply(anydiff.NewConst(fake.Output()), t.Batch)
	if err != nil {
		return nil, err
	}
	discCost := singan.DiscriminatorCost(realScores, fakeScores)
	status.DiscCost = singan.CostValue(discCost)
	if !singan.Finite(status.DiscCost) {
		return nil, fmt.Errorf("%w: discriminator cost %f", singan.ErrTrainingDiverged,
			status.DiscCost)
	}
	if err := t.minimize(discCost, t.Controller.DiscOpt, status.LearningRate); err != nil {
		return nil, err
	}

	fakeScores, err = d.Apply(fake, t.Batch)
	if err != nil {
		return nil, err
	}
	adv := singan.GeneratorCost(fakeScores)
	recOuts, err := g.Forward(t.RecNoise, t.Batch)
	if err != nil {
		return nil, err
	}
	rec := singan.ReconstructionCost(recOuts[cur], t.Reals[cur])
	status.GenAdv = singan.CostValue(adv)
	status.GenRec = singan.CostValue(rec)
	weight := rec.Output().Creator().MakeNumeric(t.RecWeight)
	genCost := anydiff.Add(adv, anydiff.Scale(rec, weight))
	if total := singan.CostValue(genCost); !singan.Finite(total) {
		return nil, fmt.Errorf("%w: generator cost %f", singan.ErrTrainingDiverged, total)
	}
	if err := t.minimize(genCost, t.Controller.GenOpt, status.LearningRate); err != nil {
		return nil, err
	}
	return status, nil
}

func (t *Trainer) minimize(cost anydiff.Res, opt *Adam, lr float64) error {
	grad := anydiff.NewGrad(opt.Params...)
	c := cost.Output().Creator()
	upstream := c.MakeVector(1)
	upstream.AddScalar(c.MakeNumeric(1))
	cost.Propagate(upstream, grad)
	if t.Syncer != nil {
		if err := t.Syncer.AverageGrad(opt.Params, grad); err != nil {
			return err
		}
	}
	opt.Step(grad, lr)
	return nil
}
