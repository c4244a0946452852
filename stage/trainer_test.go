package stage

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/tantelu/CSinGAN"
)

func TestTrainerStage(t *testing.T) {
	ctrl := testController(t, Options{Beta1: 0.5, Beta2: 0.999})
	if err := ctrl.Advance(); err != nil {
		t.Fatal(err)
	}
	frozen, _ := ctrl.Generator.Block(0).Filters[0].Vector.Copy().Data().([]float32)
	before, _ := ctrl.Generator.MarshalWeights()

	syncer := &recordingSyncer{}
	trainer := testTrainer(ctrl, 3)
	trainer.Syncer = syncer
	var statuses []*Status
	trainer.StatusFunc = func(s *Status) {
		statuses = append(statuses, s)
	}
	if err := trainer.TrainStage(); err != nil {
		t.Fatal(err)
	}
	if len(statuses) != 3 {
		t.Fatalf("expected 3 statuses but got %d", len(statuses))
	}
	for i, s := range statuses {
		if s.Stage != 1 || s.Iter != i {
			t.Errorf("bad status header: %+v", s)
		}
		if !singan.Finite(s.DiscCost) || !singan.Finite(s.GenAdv) || !singan.Finite(s.GenRec) {
			t.Errorf("non-finite costs: %+v", s)
		}
	}
	if syncer.averaged != 6 {
		t.Errorf("expected 6 averaged gradients but got %d", syncer.averaged)
	}
	after, _ := ctrl.Generator.MarshalWeights()
	if bytes.Equal(before, after) {
		t.Error("training did not change the generator")
	}
	newFrozen := ctrl.Generator.Block(0).Filters[0].Vector.Data().([]float32)
	for i, x := range frozen {
		if newFrozen[i] != x {
			t.Fatal("frozen block was modified")
		}
	}
}

func TestTrainerDiverged(t *testing.T) {
	ctrl := testController(t, Options{Beta1: 0.5, Beta2: 0.999})
	trainer := testTrainer(ctrl, 1)
	trainer.Reals[0].AddScalar(float32(math.NaN()))
	if err := trainer.TrainStage(); !errors.Is(err, singan.ErrTrainingDiverged) {
		t.Errorf("expected divergence but got %v", err)
	}
}

func TestTrainerLearningRateReset(t *testing.T) {
	ctrl := testController(t, Options{Beta1: 0.5, Beta2: 0.999})
	rater := &StepRater{Base: 1e-3, Every: 2, Factor: 0.1}
	expected := []float64{1e-3, 1e-3, 1e-4, 1e-4, 1e-5}
	for stageIdx := 0; stageIdx < 2; stageIdx++ {
		if stageIdx > 0 {
			if err := ctrl.Advance(); err != nil {
				t.Fatal(err)
			}
		}
		trainer := testTrainer(ctrl, len(expected))
		trainer.Rater = rater
		var rates []float64
		trainer.StatusFunc = func(s *Status) {
			rates = append(rates, s.LearningRate)
		}
		if err := trainer.TrainStage(); err != nil {
			t.Fatal(err)
		}
		for i, x := range expected {
			if math.Abs(rates[i]-x) > 1e-12 {
				t.Fatalf("stage %d: expected rates %v but got %v", stageIdx, expected, rates)
			}
		}
	}
}
