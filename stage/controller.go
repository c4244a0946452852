// Package stage grows a generator/discriminator pair one
// scale at a time and trains the newest scale.
package stage

import (
	"fmt"

	"github.com/tantelu/CSinGAN"
	"github.com/tantelu/CSinGAN/checkpoint"
)

// Options configures a Controller.
type Options struct {
	Beta1 float64
	Beta2 float64

	// Syncer, if non-nil, is used to verify that every
	// replica grows the same pyramids.
	Syncer GradSyncer
}

// A Controller tracks the training stage of a generator
// and a discriminator.
//
// At stage k, both pyramids hold k+1 Blocks and only the
// Blocks at scale k are trained.
type Controller struct {
	Generator     *singan.Generator
	Discriminator *singan.Discriminator
	Options       Options

	// Optimizers for the trainable Blocks of the current
	// stage.
	GenOpt  *Adam
	DiscOpt *Adam

	stage int
}

// NewController creates a Controller at stage 0.
//
// The pyramids must be empty; they are grown to hold the
// first scale.
func NewController(g *singan.Generator, d *singan.Discriminator,
	opts Options) (*Controller, error) {
	if g.CurrentScale() != -1 || d.CurrentScale() != -1 {
		return nil, fmt.Errorf("create controller: %w: pyramids must be empty",
			singan.ErrConfiguration)
	}
	if g.Schedule.NumScale != d.Schedule.NumScale {
		return nil, fmt.Errorf("create controller: %w: schedules differ",
			singan.ErrConfiguration)
	}
	c := &Controller{
		Generator:     g,
		Discriminator: d,
		Options:       opts,
	}
	if err := c.grow(); err != nil {
		return nil, err
	}
	return c, nil
}

// Stage returns the current stage.
func (c *Controller) Stage() int {
	return c.stage
}

// FinalStage returns the index of the last stage.
func (c *Controller) FinalStage() int {
	return c.Generator.Schedule.NumScale
}

// Done checks if the Controller is at the final stage.
func (c *Controller) Done() bool {
	return c.stage == c.FinalStage()
}

// Advance freezes the current scale and moves on to the
// next one, with fresh optimizers.
func (c *Controller) Advance() error {
	if c.Done() {
		return fmt.Errorf("advance: %w: already at final stage %d", singan.ErrConfiguration,
			c.stage)
	}
	if err := c.grow(); err != nil {
		return err
	}
	c.stage++
	return nil
}

// RestoreToStage replays Advance until the Controller
// reaches the given stage.
func (c *Controller) RestoreToStage(stage int) error {
	if stage > c.FinalStage() || stage < c.stage {
		return fmt.Errorf("restore: %w: cannot move from stage %d to stage %d of %d",
			singan.ErrCheckpointCorrupt, c.stage, stage, c.FinalStage())
	}
	for c.stage < stage {
		if err := c.Advance(); err != nil {
			return err
		}
	}
	return nil
}

// Restore moves to the stage of a checkpoint and loads its
// weights and optimizer states.
//
// The checkpoint is loaded into fresh pyramids grown to
// its stage, which replace Generator, Discriminator and
// the optimizers only if every part loads.
// A failed Restore leaves the Controller untouched, so it
// can restore a different checkpoint or keep training.
func (c *Controller) Restore(r *checkpoint.Record) error {
	if r.Stage < 0 || r.Stage > c.FinalStage() {
		return fmt.Errorf("restore: %w: stage %d out of range [0, %d]",
			singan.ErrCheckpointCorrupt, r.Stage, c.FinalStage())
	}
	g, d := c.Generator, c.Discriminator
	fresh, err := NewController(
		singan.NewGenerator(g.Creator, g.Schedule, g.Depth, g.Hidden, g.Seed),
		singan.NewDiscriminator(d.Creator, d.Schedule, d.Depth, d.Hidden, d.Seed),
		c.Options,
	)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	if err := fresh.RestoreToStage(r.Stage); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	parts := []struct {
		name  string
		state binaryState
		data  []byte
	}{
		{"generator", weightState{fresh.Generator}, r.Generator},
		{"discriminator", weightState{fresh.Discriminator}, r.Discriminator},
		{"generator optimizer", fresh.GenOpt, r.GeneratorOpt},
		{"discriminator optimizer", fresh.DiscOpt, r.DiscriminatorOpt},
	}
	for _, p := range parts {
		if err := p.state.UnmarshalBinary(p.data); err != nil {
			return fmt.Errorf("restore: %w: %s: %v", singan.ErrCheckpointCorrupt, p.name, err)
		}
	}
	c.Generator = fresh.Generator
	c.Discriminator = fresh.Discriminator
	c.GenOpt = fresh.GenOpt
	c.DiscOpt = fresh.DiscOpt
	c.stage = fresh.stage
	return nil
}

// Snapshot creates a checkpoint of the current state.
func (c *Controller) Snapshot(imageID int) (*checkpoint.Record, error) {
	r := &checkpoint.Record{Stage: c.stage, ImageID: imageID}
	var err error
	if r.Generator, err = c.Generator.MarshalWeights(); err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	if r.Discriminator, err = c.Discriminator.MarshalWeights(); err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	if r.GeneratorOpt, err = c.GenOpt.MarshalBinary(); err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	if r.DiscriminatorOpt, err = c.DiscOpt.MarshalBinary(); err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return r, nil
}

func (c *Controller) grow() error {
	if err := c.Generator.Progress(); err != nil {
		return fmt.Errorf("grow generator: %w", err)
	}
	if err := c.Discriminator.Progress(); err != nil {
		return fmt.Errorf("grow discriminator: %w", err)
	}
	c.GenOpt = NewAdam(c.Generator.Trainable(), c.Options.Beta1, c.Options.Beta2)
	c.DiscOpt = NewAdam(c.Discriminator.Trainable(), c.Options.Beta1, c.Options.Beta2)
	if c.Options.Syncer != nil {
		sig := append(c.Generator.Signature(), c.Discriminator.Signature()...)
		if err := c.Options.Syncer.ShapeBarrier(sig); err != nil {
			return fmt.Errorf("grow: %w", err)
		}
	}
	return nil
}

type binaryState interface {
	MarshalBinary() ([]byte, error)
	UnmarshalBinary(data []byte) error
}

type weightHolder interface {
	MarshalWeights() ([]byte, error)
	UnmarshalWeights(data []byte) error
}

type weightState struct {
	holder weightHolder
}

func (w weightState) MarshalBinary() ([]byte, error) {
	return w.holder.MarshalWeights()
}

func (w weightState) UnmarshalBinary(data []byte) error {
	return w.holder.UnmarshalWeights(data)
}
