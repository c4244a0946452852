package singan

import (
	"math"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anydifftest"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/anyvec/anyvec64"
	"github.com/unixpickle/serializer"
)

func TestLeakyReLUOutput(t *testing.T) {
	in := anydiff.NewConst(anyvec32.MakeVectorData([]float32{-2, -0.5, 0, 1, 3}))
	actual := LeakyReLU(0.2).Apply(in, 1).Output().Data().([]float32)
	expected := []float32{-0.4, -0.1, 0, 1, 3}
	for i, x := range expected {
		if math.Abs(float64(actual[i]-x)) > 1e-5 {
			t.Fatalf("expected %v but got %v", expected, actual)
		}
	}
}

func TestLeakyReLUProp(t *testing.T) {
	inVar := anydiff.NewVar(anyvec64.MakeVectorData([]float64{-2, -0.5, 0.3, 1, 3, -1.7}))
	checker := &anydifftest.ResChecker{
		F: func() anydiff.Res {
			return LeakyReLU(0.2).Apply(inVar, 2)
		},
		V: []*anydiff.Var{inVar},
	}
	checker.FullCheck(t)
}

func TestLeakyReLUSerialize(t *testing.T) {
	data, err := serializer.SerializeAny(LeakyReLU(0.3))
	if err != nil {
		t.Fatal(err)
	}
	var l LeakyReLU
	if err := serializer.DeserializeAny(data, &l); err != nil {
		t.Fatal(err)
	}
	if l != 0.3 {
		t.Errorf("expected 0.3 but got %v", l)
	}
}
