package singan

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var l LeakyReLU
	serializer.RegisterTypedDeserializer(l.SerializerType(), DeserializeLeakyReLU)
}

// LeakyReLU is a rectifier which scales negative inputs by
// the given slope instead of zeroing them.
type LeakyReLU float64

// DeserializeLeakyReLU deserializes a LeakyReLU.
func DeserializeLeakyReLU(d []byte) (LeakyReLU, error) {
	var slope serializer.Float64
	if err := serializer.DeserializeAny(d, &slope); err != nil {
		return 0, essentials.AddCtx("deserialize LeakyReLU", err)
	}
	return LeakyReLU(slope), nil
}

// Apply applies the activation function.
func (l LeakyReLU) Apply(in anydiff.Res, n int) anydiff.Res {
	return anydiff.Pool(in, func(in anydiff.Res) anydiff.Res {
		pos := anydiff.ClipPos(in)
		return anydiff.Pool(pos, func(pos anydiff.Res) anydiff.Res {
			neg := anydiff.Sub(in, pos)
			slope := in.Output().Creator().MakeNumeric(float64(l))
			return anydiff.Add(pos, anydiff.Scale(neg, slope))
		})
	})
}

// SerializerType returns the unique ID used to serialize
// a LeakyReLU with the serializer package.
func (l LeakyReLU) SerializerType() string {
	return "github.com/tantelu/CSinGAN.LeakyReLU"
}

// Serialize serializes the activation.
func (l LeakyReLU) Serialize() ([]byte, error) {
	return serializer.SerializeAny(serializer.Float64(l))
}
