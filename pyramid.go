package singan

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anynet/anyconv"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

// widthDoubling is the number of scales between doublings
// of the hidden width.
const widthDoubling = 4

// pyramid is an append-only list of Blocks with a cursor
// marking the first trainable Block.
type pyramid struct {
	blocks        []*Block
	trainableFrom int

	cacheLock sync.Mutex
	paddings  map[[2]int]*anyconv.Padding
	resizers  map[[3]int]*anyconv.Resize
}

// CurrentScale returns the index of the newest Block, or
// -1 if the pyramid is empty.
func (p *pyramid) CurrentScale() int {
	return len(p.blocks) - 1
}

// Block returns the Block at the given scale.
func (p *pyramid) Block(scale int) *Block {
	return p.blocks[scale]
}

// Frozen checks if the Block at a scale is excluded from
// training.
func (p *pyramid) Frozen(scale int) bool {
	return scale < p.trainableFrom
}

// Trainable returns the parameters of the trainable
// Blocks.
func (p *pyramid) Trainable() []*anydiff.Var {
	var res []*anydiff.Var
	for _, b := range p.blocks[p.trainableFrom:] {
		res = append(res, b.Parameters()...)
	}
	return res
}

// Parameters returns the parameters of every Block, from
// the coarsest scale to the finest.
func (p *pyramid) Parameters() []*anydiff.Var {
	var res []*anydiff.Var
	for _, b := range p.blocks {
		res = append(res, b.Parameters()...)
	}
	return res
}

// Signature summarizes the shape of the pyramid as the
// number of Blocks, the number of parameters, and the
// total number of parameter components.
func (p *pyramid) Signature() []int {
	params := p.Parameters()
	var total int
	for _, v := range params {
		total += v.Vector.Len()
	}
	return []int{len(p.blocks), len(params), total}
}

// MarshalWeights encodes every parameter of the pyramid.
func (p *pyramid) MarshalWeights() ([]byte, error) {
	slice := []serializer.Serializer{serializer.Int(len(p.blocks))}
	for _, v := range p.Parameters() {
		slice = append(slice, &anyvecsave.S{Vector: v.Vector})
	}
	return serializer.SerializeSlice(slice)
}

// UnmarshalWeights loads weights produced by
// MarshalWeights on a pyramid of the same shape.
//
// Every vector is validated before any parameter is
// modified, so a failed call leaves the pyramid intact.
func (p *pyramid) UnmarshalWeights(d []byte) error {
	slice, err := serializer.DeserializeSlice(d)
	if err != nil {
		return essentials.AddCtx("unmarshal weights", err)
	}
	if len(slice) == 0 {
		return fmt.Errorf("unmarshal weights: %w: empty weight list", ErrShapeMismatch)
	}
	count, ok := slice[0].(serializer.Int)
	if !ok {
		return fmt.Errorf("unmarshal weights: unexpected header %T", slice[0])
	}
	if int(count) != len(p.blocks) {
		return fmt.Errorf("unmarshal weights: %w: %d scales stored, %d in pyramid",
			ErrShapeMismatch, count, len(p.blocks))
	}
	params := p.Parameters()
	if len(slice)-1 != len(params) {
		return fmt.Errorf("unmarshal weights: %w: %d vectors stored, %d expected",
			ErrShapeMismatch, len(slice)-1, len(params))
	}
	data := make([]anyvec.NumericList, len(params))
	for i, obj := range slice[1:] {
		s, ok := obj.(*anyvecsave.S)
		if !ok {
			return fmt.Errorf("unmarshal weights: unexpected entry %T", obj)
		}
		if s.Vector.Len() != params[i].Vector.Len() {
			return fmt.Errorf("unmarshal weights: %w: vector %d has length %d, expected %d",
				ErrShapeMismatch, i, s.Vector.Len(), params[i].Vector.Len())
		}
		c := params[i].Vector.Creator()
		data[i] = c.MakeNumericList(VectorFloats(s.Vector))
	}
	for i, v := range params {
		v.Vector.SetData(data[i])
	}
	return nil
}

func (p *pyramid) progress(c anyvec.Creator, s *Schedule, inDepth, hidden, outDepth int,
	out anynet.Layer, seed int64) error {
	scale := p.CurrentScale() + 1
	if scale > s.NumScale {
		return fmt.Errorf("%w: pyramid already holds all %d scales", ErrConfiguration,
			s.NumScale+1)
	}
	width := hidden << uint(scale/widthDoubling)
	rng := rand.New(rand.NewSource(seed + int64(scale)))
	b := NewBlock(c, inDepth, width, outDepth, out, rng)
	if scale > 0 {
		if prev := p.blocks[scale-1]; prev.SameShape(b) {
			b.CopyFrom(prev)
		}
	}
	p.blocks = append(p.blocks, b)
	p.trainableFrom = scale
	return nil
}

func (p *pyramid) padding(size, depth int) *anyconv.Padding {
	p.cacheLock.Lock()
	defer p.cacheLock.Unlock()
	key := [2]int{size, depth}
	if l, ok := p.paddings[key]; ok {
		return l
	}
	if p.paddings == nil {
		p.paddings = map[[2]int]*anyconv.Padding{}
	}
	l := paddingLayer(size, depth)
	p.paddings[key] = l
	return l
}

func (p *pyramid) resizer(from, to, depth int) *anyconv.Resize {
	p.cacheLock.Lock()
	defer p.cacheLock.Unlock()
	key := [3]int{from, to, depth}
	if l, ok := p.resizers[key]; ok {
		return l
	}
	if p.resizers == nil {
		p.resizers = map[[3]int]*anyconv.Resize{}
	}
	l := resizeLayer(from, to, depth)
	p.resizers[key] = l
	return l
}

func resizeLayer(from, to, depth int) *anyconv.Resize {
	return &anyconv.Resize{
		Depth:        depth,
		InputWidth:   from,
		InputHeight:  from,
		OutputWidth:  to,
		OutputHeight: to,
	}
}

// Upsample resizes a batch of square tensors with bilinear
// interpolation.
func Upsample(v anyvec.Vector, from, to, depth, batch int) anyvec.Vector {
	if from == to {
		return v.Copy()
	}
	return resizeLayer(from, to, depth).Apply(anydiff.NewConst(v), batch).Output()
}

// RealPyramid resizes a batch of square images to every
// size of a schedule.
func RealPyramid(img anyvec.Vector, size, depth, batch int, s *Schedule) []anyvec.Vector {
	res := make([]anyvec.Vector, len(s.Sizes))
	for i, target := range s.Sizes {
		res[i] = Upsample(img, size, target, depth, batch)
	}
	return res
}
