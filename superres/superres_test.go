package superres

import (
	"context"
	"errors"
	"io/ioutil"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/tantelu/CSinGAN"
	"github.com/tantelu/CSinGAN/artifact"
	"github.com/tantelu/CSinGAN/calib"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec32"
)

func trainedShapeGenerator(t *testing.T) *singan.Generator {
	s, err := singan.NewSchedule(12, 21)
	if err != nil {
		t.Fatal(err)
	}
	g := singan.NewGenerator(anyvec32.CurrentCreator(), s, 3, 4, 21)
	for i := 0; i <= s.NumScale; i++ {
		if err := g.Progress(); err != nil {
			t.Fatal(err)
		}
	}
	if err := g.Freeze(singan.ReconstructionNoise(g.Creator, s, 3, 1, 5), 1); err != nil {
		t.Fatal(err)
	}
	return g
}

func testExporter(t *testing.T, formats artifact.Format) *artifact.Exporter {
	dir, err := ioutil.TempDir("", "superres_test")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	e, err := artifact.NewExporter(context.Background(), dir, formats, 4)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestRefiner(t *testing.T) {
	g := trainedShapeGenerator(t)
	e := testExporter(t, artifact.PNG)
	r := &Refiner{Generator: g, Exporter: e, Rand: rand.New(rand.NewSource(1))}
	if r.OutputSize() != 42 {
		t.Fatalf("unexpected output size: %d", r.OutputSize())
	}
	input := g.Creator.MakeVector(21 * 21 * 3)
	anyvec.Rand(input, anyvec.Uniform, rand.New(rand.NewSource(2)))
	res, err := r.Run(input, 21, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Wait(); err != nil {
		t.Fatal(err)
	}
	if len(res.Images) != DefaultIterations || len(res.Stats) != DefaultIterations {
		t.Fatalf("expected %d images but got %d", DefaultIterations, len(res.Images))
	}
	for i, img := range res.Images {
		if img.Len() != 42*42*3 {
			t.Errorf("image %d: bad length %d", i, img.Len())
		}
		if !singan.Finite(res.Stats[i].Mean) || !singan.Finite(res.Stats[i].Variance) {
			t.Errorf("image %d: non-finite stats", i)
		}
	}
	for i := 0; i < DefaultIterations; i++ {
		name := filepath.Join(e.Dir, "output-epol"+string(rune('0'+i))+".png")
		if _, err := os.Stat(name); err != nil {
			t.Errorf("missing artifact: %v", err)
		}
	}
	if _, err := os.Stat(filepath.Join(e.Dir, "Final_stage_Input_2.png")); err != nil {
		t.Errorf("missing input artifact: %v", err)
	}
}

func TestRefinerErrors(t *testing.T) {
	g := trainedShapeGenerator(t)
	r := &Refiner{Generator: g, Iterations: 1}
	if _, err := r.Run(g.Creator.MakeVector(10), 21, 1); !errors.Is(err,
		singan.ErrShapeMismatch) {
		t.Errorf("expected shape mismatch but got %v", err)
	}
	partial := singan.NewGenerator(g.Creator, g.Schedule, 3, 4, 1)
	if err := partial.Progress(); err != nil {
		t.Fatal(err)
	}
	r.Generator = partial
	if _, err := r.Run(g.Creator.MakeVector(21*21*3), 21, 1); !errors.Is(err,
		singan.ErrShapeMismatch) {
		t.Errorf("expected shape mismatch but got %v", err)
	}

	unfrozen := singan.NewGenerator(g.Creator, g.Schedule, 3, 4, 1)
	for i := 0; i <= g.Schedule.NumScale; i++ {
		if err := unfrozen.Progress(); err != nil {
			t.Fatal(err)
		}
	}
	r.Generator = unfrozen
	if _, err := r.Run(g.Creator.MakeVector(21*21*3), 21, 1); !errors.Is(err,
		singan.ErrConfiguration) {
		t.Errorf("expected configuration error but got %v", err)
	}
	s := &Sampler{Generator: unfrozen, Amplitudes: calib.Vector{1, 0.01, 0}, Count: 1}
	if _, err := s.Run(); !errors.Is(err, singan.ErrConfiguration) {
		t.Errorf("expected configuration error but got %v", err)
	}
}

func TestRefinerVariance(t *testing.T) {
	g := trainedShapeGenerator(t)

	// With a zero residual the finest scale is the identity,
	// so each iteration only adds the injected noise.
	last := g.Block(g.CurrentScale())
	n := len(last.Filters) - 1
	last.Filters[n].Vector.Scale(g.Creator.MakeNumeric(0))
	last.Biases[n].Vector.Scale(g.Creator.MakeNumeric(0))

	const noise = 0.04
	r := &Refiner{Generator: g, Noise: noise, Rand: rand.New(rand.NewSource(7))}
	input := g.Creator.MakeVector(21 * 21 * 3)
	anyvec.Rand(input, anyvec.Uniform, rand.New(rand.NewSource(8)))
	res, err := r.Run(input, 21, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Stats) != DefaultIterations {
		t.Fatalf("expected %d stats but got %d", DefaultIterations, len(res.Stats))
	}

	// The added variance is noise^2; allow for sampling error.
	tol := 4 * noise * noise
	for i := 1; i < len(res.Stats); i++ {
		prev, cur := res.Stats[i-1], res.Stats[i]
		if cur.Variance > prev.Variance+tol {
			t.Errorf("iteration %d: variance grew from %f to %f", i, prev.Variance,
				cur.Variance)
		}
		if math.Abs(cur.Mean-prev.Mean) > 0.01 {
			t.Errorf("iteration %d: mean drifted from %f to %f", i, prev.Mean, cur.Mean)
		}
	}
}

func TestSampler(t *testing.T) {
	g := trainedShapeGenerator(t)
	e := testExporter(t, artifact.GSLIB)
	s := &Sampler{
		Generator:  g,
		Amplitudes: calib.Vector{1, 0.01, 0},
		Count:      3,
		Exporter:   e,
		Rand:       rand.New(rand.NewSource(3)),
	}
	samples, err := s.Run()
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Wait(); err != nil {
		t.Fatal(err)
	}
	if len(samples) != 3 {
		t.Fatalf("expected 3 samples but got %d", len(samples))
	}
	for k := 1; k <= 3; k++ {
		name := filepath.Join(e.Dir, "gaussian_"+string(rune('0'+k))+".gslib")
		if _, err := os.Stat(name); err != nil {
			t.Errorf("missing sample: %v", err)
		}
	}
}
