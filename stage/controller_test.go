package stage

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"

	"github.com/tantelu/CSinGAN"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec32"
)

func testController(t *testing.T, opts Options) *Controller {
	s, err := singan.NewSchedule(12, 21)
	if err != nil {
		t.Fatal(err)
	}
	c := anyvec32.CurrentCreator()
	g := singan.NewGenerator(c, s, 3, 4, 17)
	d := singan.NewDiscriminator(c, s, 3, 4, 17)
	ctrl, err := NewController(g, d, opts)
	if err != nil {
		t.Fatal(err)
	}
	return ctrl
}

func testTrainer(ctrl *Controller, iters int) *Trainer {
	g := ctrl.Generator
	img := g.Creator.MakeVector(30 * 30 * g.Depth)
	anyvec.Rand(img, anyvec.Uniform, rand.New(rand.NewSource(4)))
	return &Trainer{
		Controller: ctrl,
		Reals:      singan.RealPyramid(img, 30, g.Depth, 1, g.Schedule),
		RecNoise:   singan.ReconstructionNoise(g.Creator, g.Schedule, g.Depth, 1, 3),
		Amplitudes: singan.ConstAmplitude(1),
		Batch:      1,
		Iterations: iters,
		Rater:      ConstRater(5e-4),
		RecWeight:  10,
		Rand:       rand.New(rand.NewSource(5)),
	}
}

func TestControllerAdvance(t *testing.T) {
	ctrl := testController(t, Options{Beta1: 0.5, Beta2: 0.999})
	if ctrl.Stage() != 0 || ctrl.Generator.CurrentScale() != 0 ||
		ctrl.Discriminator.CurrentScale() != 0 {
		t.Fatal("controller should start at stage 0")
	}
	for !ctrl.Done() {
		prev := ctrl.Stage()
		if err := ctrl.Advance(); err != nil {
			t.Fatal(err)
		}
		if ctrl.Stage() != prev+1 || ctrl.Generator.CurrentScale() != prev+1 ||
			ctrl.Discriminator.CurrentScale() != prev+1 {
			t.Fatalf("bad state after advancing from %d", prev)
		}
		if len(ctrl.GenOpt.Params) != len(ctrl.Generator.Trainable()) {
			t.Fatal("optimizer is not scoped to the newest block")
		}
	}
	if err := ctrl.Advance(); !errors.Is(err, singan.ErrConfiguration) {
		t.Errorf("expected configuration error but got %v", err)
	}
}

func TestControllerRestoreToStage(t *testing.T) {
	ctrl := testController(t, Options{Beta1: 0.5, Beta2: 0.999})
	if err := ctrl.Advance(); err != nil {
		t.Fatal(err)
	}
	if err := ctrl.Advance(); err != nil {
		t.Fatal(err)
	}
	replayed := testController(t, Options{Beta1: 0.5, Beta2: 0.999})
	if err := replayed.RestoreToStage(2); err != nil {
		t.Fatal(err)
	}
	w1, _ := ctrl.Generator.MarshalWeights()
	w2, _ := replayed.Generator.MarshalWeights()
	if !bytes.Equal(w1, w2) {
		t.Error("replayed generator differs")
	}
	if err := replayed.RestoreToStage(1); !errors.Is(err, singan.ErrCheckpointCorrupt) {
		t.Errorf("backwards: expected corrupt checkpoint but got %v", err)
	}
	if err := replayed.RestoreToStage(3); !errors.Is(err, singan.ErrCheckpointCorrupt) {
		t.Errorf("beyond final: expected corrupt checkpoint but got %v", err)
	}
}

func TestControllerSnapshotRestore(t *testing.T) {
	ctrl := testController(t, Options{Beta1: 0.5, Beta2: 0.999})
	if err := testTrainer(ctrl, 2).TrainStage(); err != nil {
		t.Fatal(err)
	}
	if err := ctrl.Advance(); err != nil {
		t.Fatal(err)
	}
	if err := testTrainer(ctrl, 1).TrainStage(); err != nil {
		t.Fatal(err)
	}
	rec, err := ctrl.Snapshot(7)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Stage != 1 || rec.ImageID != 7 {
		t.Fatalf("bad record header: %d %d", rec.Stage, rec.ImageID)
	}

	restored := testController(t, Options{Beta1: 0.5, Beta2: 0.999})
	if err := restored.Restore(rec); err != nil {
		t.Fatal(err)
	}
	rec2, err := restored.Snapshot(7)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(rec.Generator, rec2.Generator) ||
		!bytes.Equal(rec.Discriminator, rec2.Discriminator) ||
		!bytes.Equal(rec.GeneratorOpt, rec2.GeneratorOpt) ||
		!bytes.Equal(rec.DiscriminatorOpt, rec2.DiscriminatorOpt) {
		t.Error("restored state differs")
	}
}

func TestControllerRestoreAtomic(t *testing.T) {
	ctrl := testController(t, Options{Beta1: 0.5, Beta2: 0.999})
	for i := 0; i < 2; i++ {
		if err := ctrl.Advance(); err != nil {
			t.Fatal(err)
		}
	}
	if err := testTrainer(ctrl, 1).TrainStage(); err != nil {
		t.Fatal(err)
	}
	rec, err := ctrl.Snapshot(0)
	if err != nil {
		t.Fatal(err)
	}
	rec.DiscriminatorOpt = []byte("garbage")

	restored := testController(t, Options{Beta1: 0.5, Beta2: 0.999})
	g, d := restored.Generator, restored.Discriminator
	before, err := restored.Snapshot(0)
	if err != nil {
		t.Fatal(err)
	}
	if err := restored.Restore(rec); !errors.Is(err, singan.ErrCheckpointCorrupt) {
		t.Fatalf("expected corrupt checkpoint but got %v", err)
	}
	if restored.Stage() != 0 || restored.Generator.CurrentScale() != 0 ||
		restored.Discriminator.CurrentScale() != 0 {
		t.Fatalf("failed restore moved the controller to stage %d", restored.Stage())
	}
	if restored.Generator != g || restored.Discriminator != d {
		t.Error("failed restore replaced the pyramids")
	}
	after, err := restored.Snapshot(0)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before.Generator, after.Generator) ||
		!bytes.Equal(before.Discriminator, after.Discriminator) ||
		!bytes.Equal(before.GeneratorOpt, after.GeneratorOpt) ||
		!bytes.Equal(before.DiscriminatorOpt, after.DiscriminatorOpt) {
		t.Error("failed restore modified the state")
	}
}

func TestControllerRestoreEarlierStage(t *testing.T) {
	ctrl := testController(t, Options{Beta1: 0.5, Beta2: 0.999})
	if err := testTrainer(ctrl, 1).TrainStage(); err != nil {
		t.Fatal(err)
	}
	rec, err := ctrl.Snapshot(3)
	if err != nil {
		t.Fatal(err)
	}
	if err := ctrl.Advance(); err != nil {
		t.Fatal(err)
	}
	if err := ctrl.Restore(rec); err != nil {
		t.Fatal(err)
	}
	if ctrl.Stage() != 0 || ctrl.Generator.CurrentScale() != 0 {
		t.Fatalf("expected stage 0 but got %d", ctrl.Stage())
	}
	rec2, err := ctrl.Snapshot(3)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(rec.Generator, rec2.Generator) ||
		!bytes.Equal(rec.DiscriminatorOpt, rec2.DiscriminatorOpt) {
		t.Error("restored state differs")
	}

	rec.Stage = ctrl.FinalStage() + 1
	if err := ctrl.Restore(rec); !errors.Is(err, singan.ErrCheckpointCorrupt) {
		t.Errorf("beyond final: expected corrupt checkpoint but got %v", err)
	}
}

type recordingSyncer struct {
	signatures [][]int
	averaged   int
}

func (r *recordingSyncer) AverageGrad(vars []*anydiff.Var, g anydiff.Grad) error {
	r.averaged++
	return nil
}

func (r *recordingSyncer) ShapeBarrier(sig []int) error {
	r.signatures = append(r.signatures, append([]int{}, sig...))
	return nil
}

func TestControllerShapeBarrier(t *testing.T) {
	syncer := &recordingSyncer{}
	ctrl := testController(t, Options{Beta1: 0.5, Beta2: 0.999, Syncer: syncer})
	if err := ctrl.Advance(); err != nil {
		t.Fatal(err)
	}
	if len(syncer.signatures) != 2 {
		t.Fatalf("expected 2 barriers but got %d", len(syncer.signatures))
	}
	if syncer.signatures[1][0] != 2 || syncer.signatures[1][3] != 2 {
		t.Errorf("unexpected signature: %v", syncer.signatures[1])
	}
}
