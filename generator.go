package singan

import (
	"fmt"
	"math"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var g Generator
	serializer.RegisterTypedDeserializer(g.SerializerType(), DeserializeGenerator)
}

// A Generator is a pyramid of generator Blocks, one per
// scale, which turns a list of noise maps into images.
//
// A Generator is not safe for concurrent use.
type Generator struct {
	Creator  anyvec.Creator
	Schedule *Schedule

	// Depth is the number of image channels.
	Depth int

	// Hidden is the width of the Blocks at the first four
	// scales.
	Hidden int

	// Seed determines the initial weights of every scale.
	Seed int64

	pyramid
}

// NewGenerator creates an empty Generator.
func NewGenerator(c anyvec.Creator, s *Schedule, depth, hidden int, seed int64) *Generator {
	return &Generator{
		Creator:  c,
		Schedule: s,
		Depth:    depth,
		Hidden:   hidden,
		Seed:     seed,
	}
}

// DeserializeGenerator deserializes a Generator.
//
// The Creator is taken from the stored weights.
func DeserializeGenerator(d []byte) (*Generator, error) {
	var min, max, depth, hidden, seed, count serializer.Int
	var weights, eval []byte
	err := serializer.DeserializeAny(d, &min, &max, &depth, &hidden, &seed, &count, &weights,
		&eval)
	if err != nil {
		return nil, essentials.AddCtx("deserialize Generator", err)
	}
	sched, err := NewSchedule(int(min), int(max))
	if err != nil {
		return nil, fmt.Errorf("deserialize Generator: %w", err)
	}
	slice, err := serializer.DeserializeSlice(weights)
	if err != nil {
		return nil, essentials.AddCtx("deserialize Generator", err)
	}
	var c anyvec.Creator
	for _, obj := range slice {
		if s, ok := obj.(*anyvecsave.S); ok {
			c = s.Vector.Creator()
			break
		}
	}
	if c == nil {
		return nil, fmt.Errorf("deserialize Generator: %w: no weights", ErrShapeMismatch)
	}
	g := NewGenerator(c, sched, int(depth), int(hidden), int64(seed))
	for i := 0; i < int(count); i++ {
		if err := g.Progress(); err != nil {
			return nil, fmt.Errorf("deserialize Generator: %w", err)
		}
	}
	if err := g.UnmarshalWeights(weights); err != nil {
		return nil, fmt.Errorf("deserialize Generator: %w", err)
	}
	if err := g.unmarshalEval(eval); err != nil {
		return nil, fmt.Errorf("deserialize Generator: %w", err)
	}
	return g, nil
}

// Progress adds a Block for the next scale and makes it
// the only trainable Block.
//
// When the new Block has the same width as the previous
// one, it starts from a copy of the previous weights.
func (g *Generator) Progress() error {
	return g.progress(g.Creator, g.Schedule, g.Depth, g.Hidden, g.Depth, anynet.Tanh, g.Seed)
}

// Forward runs the generator on a noise list and returns
// the output at every scale up to CurrentScale.
//
// Outputs of frozen scales are constants, so gradients
// only reach the trainable Blocks.
func (g *Generator) Forward(noise NoiseList, batch int) ([]anydiff.Res, error) {
	if err := g.checkNoise(noise, batch); err != nil {
		return nil, fmt.Errorf("forward: %w", err)
	}
	cur := g.CurrentScale()
	var outs []anydiff.Res
	var prev anydiff.Res
	for i := 0; i <= cur; i++ {
		size := g.Schedule.Size(i)
		z := anydiff.NewConst(noise[i])
		var out anydiff.Res
		if i == 0 {
			out = g.blocks[0].Apply(z, PaddedSize(size), batch)
		} else {
			prevSize := g.Schedule.Size(i - 1)
			up := g.resizer(prevSize, size, g.Depth).Apply(prev, batch)
			out = g.refine(i, up, z, size, batch)
		}
		if g.Frozen(i) {
			out = anydiff.NewConst(out.Output())
		}
		outs = append(outs, out)
		prev = out
	}
	return outs, nil
}

// Freeze puts every Block in evaluation mode.
//
// The normalization statistics of each scale are measured
// on the pathway driven by noise, normally the
// reconstruction noise of the training image.
// A frozen Generator has no trainable Blocks.
func (g *Generator) Freeze(noise NoiseList, batch int) error {
	if err := g.checkNoise(noise, batch); err != nil {
		return fmt.Errorf("freeze: %w", err)
	}
	var prev anyvec.Vector
	for i := 0; i <= g.CurrentScale(); i++ {
		size := g.Schedule.Size(i)
		var up, in anydiff.Res
		z := anydiff.NewConst(noise[i])
		if i == 0 {
			in = z
		} else {
			up = g.resizer(g.Schedule.Size(i-1), size, g.Depth).Apply(anydiff.NewConst(prev),
				batch)
			in = anydiff.Add(g.padding(size, g.Depth).Apply(up, batch), z)
		}
		block := g.blocks[i]
		block.Freeze(in, PaddedSize(size), batch)
		out := block.Apply(in, PaddedSize(size), batch)
		if up != nil {
			out = anydiff.Add(up, out)
		}
		prev = out.Output()
	}
	g.trainableFrom = len(g.blocks)
	return nil
}

// Evaluating checks if every Block is in evaluation mode.
func (g *Generator) Evaluating() bool {
	if len(g.blocks) == 0 {
		return false
	}
	for _, b := range g.blocks {
		if !b.Evaluating() {
			return false
		}
	}
	return true
}

// SuperResolution treats in as the output of scale
// fromScale and refines it with every Block from fromScale
// to CurrentScale, upsampling between scales by the ratio
// of the schedule sizes.
//
// No noise is injected and no gradients are tracked.
// The result holds one output per applied Block.
func (g *Generator) SuperResolution(in anyvec.Vector, inSize, fromScale,
	batch int) ([]anyvec.Vector, error) {
	cur := g.CurrentScale()
	if fromScale < 0 || fromScale > cur {
		return nil, fmt.Errorf("super-resolution: %w: scale %d out of range [0, %d]",
			ErrShapeMismatch, fromScale, cur)
	}
	if expected := inSize * inSize * g.Depth * batch; in.Len() != expected {
		return nil, fmt.Errorf("super-resolution: %w: input has length %d, expected %d",
			ErrShapeMismatch, in.Len(), expected)
	}
	var outs []anyvec.Vector
	x := in
	size := inSize
	for i := fromScale; i <= cur; i++ {
		if i > fromScale {
			ratio := float64(g.Schedule.Size(i)) / float64(g.Schedule.Size(i-1))
			next := int(math.Round(float64(size) * ratio))
			x = g.resizer(size, next, g.Depth).Apply(anydiff.NewConst(x), batch).Output()
			size = next
		}
		x = g.refine(i, anydiff.NewConst(x), nil, size, batch).Output()
		outs = append(outs, x)
	}
	return outs, nil
}

// SerializerType returns the unique ID used to serialize
// a Generator with the serializer package.
func (g *Generator) SerializerType() string {
	return "github.com/tantelu/CSinGAN.Generator"
}

// Serialize serializes the Generator along with all of
// its weights.
func (g *Generator) Serialize() ([]byte, error) {
	weights, err := g.MarshalWeights()
	if err != nil {
		return nil, err
	}
	eval, err := g.marshalEval()
	if err != nil {
		return nil, err
	}
	return serializer.SerializeAny(
		serializer.Int(g.Schedule.Min),
		serializer.Int(g.Schedule.Max),
		serializer.Int(g.Depth),
		serializer.Int(g.Hidden),
		serializer.Int(g.Seed),
		serializer.Int(len(g.blocks)),
		weights,
		eval,
	)
}

func (g *Generator) checkNoise(noise NoiseList, batch int) error {
	cur := g.CurrentScale()
	if cur < 0 {
		return fmt.Errorf("%w: empty pyramid", ErrShapeMismatch)
	}
	if len(noise) < cur+1 {
		return fmt.Errorf("%w: %d noise maps for %d scales", ErrShapeMismatch, len(noise), cur+1)
	}
	for i := 0; i <= cur; i++ {
		padded := PaddedSize(g.Schedule.Size(i))
		if expected := padded * padded * g.Depth * batch; noise[i].Len() != expected {
			return fmt.Errorf("%w: noise map %d has length %d, expected %d",
				ErrShapeMismatch, i, noise[i].Len(), expected)
		}
	}
	return nil
}

// marshalEval encodes the evaluation transforms of every
// Block, or none if the Generator is not frozen.
func (g *Generator) marshalEval() ([]byte, error) {
	if !g.Evaluating() {
		return serializer.SerializeSlice([]serializer.Serializer{serializer.Int(0)})
	}
	var affines []serializer.Serializer
	for _, b := range g.blocks {
		for _, a := range b.Eval {
			affines = append(affines, a)
		}
	}
	slice := append([]serializer.Serializer{serializer.Int(len(affines))}, affines...)
	return serializer.SerializeSlice(slice)
}

func (g *Generator) unmarshalEval(d []byte) error {
	slice, err := serializer.DeserializeSlice(d)
	if err != nil {
		return essentials.AddCtx("unmarshal evaluation transforms", err)
	}
	if len(slice) == 0 {
		return fmt.Errorf("%w: empty evaluation transforms", ErrShapeMismatch)
	}
	if count, ok := slice[0].(serializer.Int); !ok || int(count) != len(slice)-1 {
		return fmt.Errorf("%w: bad evaluation transform header", ErrShapeMismatch)
	}
	if len(slice) == 1 {
		return nil
	}
	var affines []*anynet.Affine
	for _, obj := range slice[1:] {
		a, ok := obj.(*anynet.Affine)
		if !ok {
			return fmt.Errorf("unmarshal evaluation transforms: unexpected entry %T", obj)
		}
		affines = append(affines, a)
	}
	perBlock := blockLayers - 1
	if len(affines) != perBlock*len(g.blocks) {
		return fmt.Errorf("%w: %d evaluation transforms for %d scales", ErrShapeMismatch,
			len(affines), len(g.blocks))
	}
	for i, b := range g.blocks {
		if err := b.SetEval(affines[i*perBlock : (i+1)*perBlock]); err != nil {
			return err
		}
	}
	g.trainableFrom = len(g.blocks)
	return nil
}

// refine computes up + block(pad(up) + noise).
// If noise is nil, no noise is added.
func (g *Generator) refine(scale int, up, noise anydiff.Res, size, batch int) anydiff.Res {
	return anydiff.Pool(up, func(up anydiff.Res) anydiff.Res {
		in := g.padding(size, g.Depth).Apply(up, batch)
		if noise != nil {
			in = anydiff.Add(in, noise)
		}
		return anydiff.Add(up, g.blocks[scale].Apply(in, PaddedSize(size), batch))
	})
}
