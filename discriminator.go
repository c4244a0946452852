package singan

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// discriminatorSeedOffset separates the discriminator's
// initialization stream from the generator's.
const discriminatorSeedOffset = 1 << 32

// A Discriminator is a pyramid of patch discriminators,
// one per scale.
// Only the Block of the current scale is ever applied.
type Discriminator struct {
	Creator  anyvec.Creator
	Schedule *Schedule
	Depth    int
	Hidden   int
	Seed     int64

	pyramid
}

// NewDiscriminator creates an empty Discriminator.
func NewDiscriminator(c anyvec.Creator, s *Schedule, depth, hidden int,
	seed int64) *Discriminator {
	return &Discriminator{
		Creator:  c,
		Schedule: s,
		Depth:    depth,
		Hidden:   hidden,
		Seed:     seed,
	}
}

// Progress adds a Block for the next scale and makes it
// the only trainable Block.
func (d *Discriminator) Progress() error {
	return d.progress(d.Creator, d.Schedule, d.Depth, d.Hidden, 1, nil,
		d.Seed+discriminatorSeedOffset)
}

// Apply scores a batch of images at the current scale.
// The result is a map of per-patch scores with the same
// side length as the images.
func (d *Discriminator) Apply(img anydiff.Res, batch int) (anydiff.Res, error) {
	cur := d.CurrentScale()
	if cur < 0 {
		return nil, fmt.Errorf("discriminate: %w: empty pyramid", ErrShapeMismatch)
	}
	size := d.Schedule.Size(cur)
	if expected := size * size * d.Depth * batch; img.Output().Len() != expected {
		return nil, fmt.Errorf("discriminate: %w: image has length %d, expected %d",
			ErrShapeMismatch, img.Output().Len(), expected)
	}
	padded := d.padding(size, d.Depth).Apply(img, batch)
	return d.blocks[cur].Apply(padded, PaddedSize(size), batch), nil
}
