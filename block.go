package singan

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anynet/anyconv"
	"github.com/unixpickle/anyvec"
)

const (
	blockLayers = 5
	filterSize  = 3
	leakySlope  = 0.2

	// bnStabilizer matches anyconv's default BatchNorm
	// stabilizer.
	bnStabilizer = 1e-3
)

// BlockShrink is the number of pixels a Block removes from
// the side length of its input.
const BlockShrink = blockLayers * (filterSize - 1)

// A Block is the convolutional network of a single scale.
//
// Block parameters do not depend on the image size, so the
// same Block can be realized for inputs of any size above
// BlockShrink.
type Block struct {
	InDepth  int
	Hidden   int
	OutDepth int

	// Output is applied after the last convolution.
	// If it is nil, the raw convolution output is used.
	Output anynet.Layer

	Filters []*anydiff.Var
	Biases  []*anydiff.Var
	Norms   []*anyconv.BatchNorm

	// Eval, if non-nil, holds one Affine per BatchNorm.
	// Realized Nets use them in place of the BatchNorms,
	// so outputs do not depend on batch statistics.
	Eval []*anynet.Affine

	netLock sync.Mutex
	nets    map[int]anynet.Net
}

// NewBlock creates a randomly initialized Block.
//
// The filters are drawn from rng, so a Block is a pure
// function of its dimensions and the state of rng.
func NewBlock(c anyvec.Creator, inDepth, hidden, outDepth int, out anynet.Layer,
	rng *rand.Rand) *Block {
	b := &Block{
		InDepth:  inDepth,
		Hidden:   hidden,
		OutDepth: outDepth,
		Output:   out,
	}
	for i := 0; i < blockLayers; i++ {
		in, outCount := b.layerDepths(i)
		fanIn := filterSize * filterSize * in
		filters := c.MakeVector(fanIn * outCount)
		anyvec.Rand(filters, anyvec.Normal, rng)
		filters.Scale(c.MakeNumeric(1 / math.Sqrt(float64(fanIn))))
		b.Filters = append(b.Filters, anydiff.NewVar(filters))
		b.Biases = append(b.Biases, anydiff.NewVar(c.MakeVector(outCount)))
		if i < blockLayers-1 {
			b.Norms = append(b.Norms, anyconv.NewBatchNorm(c, outCount))
		}
	}
	return b
}

// OutSize returns the side length of the Block's output
// for an input of side inSize.
func (b *Block) OutSize(inSize int) int {
	return inSize - BlockShrink
}

// Apply runs the Block on a batch of square tensors.
func (b *Block) Apply(in anydiff.Res, inSize, batch int) anydiff.Res {
	if inSize <= BlockShrink {
		panic("block input is too small")
	}
	return b.Net(inSize).Apply(in, batch)
}

// Net realizes the Block for a given input size.
//
// Nets are cached and share the Block's parameters, so
// updating the parameters updates every realized Net.
func (b *Block) Net(inSize int) anynet.Net {
	b.netLock.Lock()
	defer b.netLock.Unlock()
	if net, ok := b.nets[inSize]; ok {
		return net
	}
	net := b.build(inSize, b.Eval)
	if b.nets == nil {
		b.nets = map[int]anynet.Net{}
	}
	b.nets[inSize] = net
	return net
}

// Freeze switches the Block to evaluation mode.
//
// Every BatchNorm is replaced by the Affine transform it
// computes on the given batch, measured layer by layer.
// Afterwards the Block maps each input the same way no
// matter which batch it is in.
func (b *Block) Freeze(in anydiff.Res, inSize, batch int) {
	var affines []*anynet.Affine
	x := anydiff.NewConst(in.Output())
	for _, layer := range b.build(inSize, nil) {
		if bn, ok := layer.(*anyconv.BatchNorm); ok {
			a := affineFromMoments(bn, x.Output())
			affines = append(affines, a)
			layer = a
		}
		x = anydiff.NewConst(layer.Apply(x, batch).Output())
	}
	b.netLock.Lock()
	defer b.netLock.Unlock()
	b.Eval = affines
	b.nets = nil
}

// Evaluating checks if the Block is in evaluation mode.
func (b *Block) Evaluating() bool {
	return b.Eval != nil
}

// SetEval puts the Block in evaluation mode with the
// given transforms, one per BatchNorm.
func (b *Block) SetEval(affines []*anynet.Affine) error {
	if len(affines) != len(b.Norms) {
		return fmt.Errorf("%w: %d evaluation transforms for %d norms", ErrShapeMismatch,
			len(affines), len(b.Norms))
	}
	for i, a := range affines {
		n := b.Norms[i].InputCount
		if a.Scalers.Vector.Len() != n || a.Biases.Vector.Len() != n {
			return fmt.Errorf("%w: evaluation transform %d does not have %d channels",
				ErrShapeMismatch, i, n)
		}
	}
	b.netLock.Lock()
	defer b.netLock.Unlock()
	b.Eval = affines
	b.nets = nil
	return nil
}

// Parameters returns the Block's parameters.
//
// For every convolution, the filters come first, then the
// biases, then the scalers and biases of the following
// BatchNorm (if there is one).
func (b *Block) Parameters() []*anydiff.Var {
	var res []*anydiff.Var
	for i := range b.Filters {
		res = append(res, b.Filters[i], b.Biases[i])
		if i < len(b.Norms) {
			res = append(res, b.Norms[i].Parameters()...)
		}
	}
	return res
}

// CopyFrom copies the parameters of another Block with
// the same dimensions into b.
func (b *Block) CopyFrom(other *Block) {
	src := other.Parameters()
	for i, p := range b.Parameters() {
		p.Vector.Set(src[i].Vector)
	}
}

// SameShape checks if two Blocks have parameters of the
// same dimensions.
func (b *Block) SameShape(other *Block) bool {
	return b.InDepth == other.InDepth && b.Hidden == other.Hidden &&
		b.OutDepth == other.OutDepth
}

// build realizes the Block for an input size.
// If eval is nil, the BatchNorms are used.
func (b *Block) build(inSize int, eval []*anynet.Affine) anynet.Net {
	var net anynet.Net
	size := inSize
	for i := 0; i < blockLayers; i++ {
		in, out := b.layerDepths(i)
		conv := anyconv.Conv{
			FilterCount:  out,
			FilterWidth:  filterSize,
			FilterHeight: filterSize,
			StrideX:      1,
			StrideY:      1,
			InputWidth:   size,
			InputHeight:  size,
			InputDepth:   in,
			Filters:      b.Filters[i],
			Biases:       b.Biases[i],
		}
		conv.Conver = anyconv.CurrentConverMaker()(conv)
		net = append(net, &conv)
		size = conv.OutputWidth()
		if i < blockLayers-1 {
			var norm anynet.Layer = b.Norms[i]
			if eval != nil {
				norm = eval[i]
			}
			net = append(net, norm, LeakyReLU(leakySlope))
		}
	}
	if b.Output != nil {
		net = append(net, b.Output)
	}
	return net
}

// affineFromMoments computes the transform a BatchNorm
// applies to a batch with the given outputs.
func affineFromMoments(bn *anyconv.BatchNorm, v anyvec.Vector) *anynet.Affine {
	c := v.Creator()
	count := bn.InputCount
	normalizer := c.MakeNumeric(float64(count) / float64(v.Len()))

	mean := anyvec.SumRows(v, count)
	mean.Scale(normalizer)
	sq := v.Copy()
	sq.Mul(v)
	variance := anyvec.SumRows(sq, count)
	variance.Scale(normalizer)
	meanSq := mean.Copy()
	meanSq.Mul(mean)
	variance.Sub(meanSq)

	stab := bn.Stabilizer
	if stab == 0 {
		stab = bnStabilizer
	}
	variance.AddScalar(c.MakeNumeric(stab))
	anyvec.Pow(variance, c.MakeNumeric(0.5))

	scaler := bn.Scalers.Vector.Copy()
	scaler.Div(variance)
	bias := bn.Biases.Vector.Copy()
	mean.Mul(scaler)
	bias.Sub(mean)
	return &anynet.Affine{
		Scalers: anydiff.NewVar(scaler),
		Biases:  anydiff.NewVar(bias),
	}
}

func (b *Block) layerDepths(i int) (in, out int) {
	in, out = b.Hidden, b.Hidden
	if i == 0 {
		in = b.InDepth
	}
	if i == blockLayers-1 {
		out = b.OutDepth
	}
	return
}
