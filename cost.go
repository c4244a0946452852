package singan

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// DiscriminatorCost computes the least-squares GAN cost
// for a discriminator, which pushes the scores of real
// patches towards 1 and those of fake patches towards 0.
//
// The fake scores should come from a detached generator
// output.
func DiscriminatorCost(real, fake anydiff.Res) anydiff.Res {
	return anydiff.Add(meanSquareTo(real, 1), meanSquareTo(fake, 0))
}

// GeneratorCost computes the least-squares GAN cost for a
// generator, which pushes the scores of its outputs
// towards 1.
func GeneratorCost(fake anydiff.Res) anydiff.Res {
	return meanSquareTo(fake, 1)
}

// ReconstructionCost computes the mean squared error
// between an output and a desired image.
func ReconstructionCost(actual anydiff.Res, desired anyvec.Vector) anydiff.Res {
	return mean(anydiff.Square(anydiff.Sub(actual, anydiff.NewConst(desired))))
}

// CostValue returns the scalar value of a cost.
func CostValue(cost anydiff.Res) float64 {
	return NumericFloat(anyvec.Sum(cost.Output()))
}

func meanSquareTo(x anydiff.Res, target float64) anydiff.Res {
	diff := x
	if target != 0 {
		diff = anydiff.AddScalar(x, x.Output().Creator().MakeNumeric(-target))
	}
	return mean(anydiff.Square(diff))
}

func mean(x anydiff.Res) anydiff.Res {
	scaler := x.Output().Creator().MakeNumeric(1 / float64(x.Output().Len()))
	return anydiff.Scale(anydiff.Sum(x), scaler)
}
