package main

import (
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/tantelu/CSinGAN"
	"github.com/tantelu/CSinGAN/artifact"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/serializer"
	"gopkg.in/yaml.v3"
)

func tempDir(t *testing.T) string {
	dir, err := ioutil.TempDir("", "singan_cmd")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func TestLoadConfig(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	dir := tempDir(t)
	path := filepath.Join(dir, "run.yaml")
	data := []byte("img_size_min: 20\nimg_size_max: 60\nimg_ch: 1\nmodel_name: test\n")
	if err := ioutil.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ImgSizeMin != 20 || cfg.ImgSizeMax != 60 || cfg.Channels != 1 {
		t.Errorf("unexpected sizes: %+v", cfg)
	}
	if cfg.ModelName != "test" {
		t.Errorf("unexpected model name %q", cfg.ModelName)
	}
	def := singan.DefaultConfig()
	if cfg.TotalIter != def.TotalIter || cfg.LearningRate != def.LearningRate {
		t.Error("defaults were not applied")
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	dir := tempDir(t)
	path := filepath.Join(dir, "run.yaml")
	if err := ioutil.WriteFile(path, []byte("img_ch: 2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(path); !errors.Is(err, singan.ErrConfiguration) {
		t.Errorf("expected configuration error but got %v", err)
	}
}

func TestConfigSnapshot(t *testing.T) {
	dir := tempDir(t)
	cfg := singan.DefaultConfig()
	cfg.Seed = 1234
	if err := writeConfigSnapshot(filepath.Join(dir, "logs"), &cfg); err != nil {
		t.Fatal(err)
	}
	data, err := ioutil.ReadFile(filepath.Join(dir, "logs", ConfigSnapshotName))
	if err != nil {
		t.Fatal(err)
	}
	var actual singan.Config
	if err := yaml.Unmarshal(data, &actual); err != nil {
		t.Fatal(err)
	}
	if actual != cfg {
		t.Errorf("expected %+v but got %+v", cfg, actual)
	}
}

func TestRunDirs(t *testing.T) {
	cfg := singan.DefaultConfig()
	logDir, resDir := runDirs(&cfg)
	if logDir != filepath.Join(cfg.LogRoot, cfg.ModelName) ||
		resDir != filepath.Join(cfg.ResRoot, cfg.ModelName) {
		t.Errorf("unexpected dirs %s %s", logDir, resDir)
	}
	cfg.LoadModel = "old"
	logDir, _ = runDirs(&cfg)
	if logDir != filepath.Join(cfg.LogRoot, "old") {
		t.Errorf("unexpected resumed dir %s", logDir)
	}
}

func TestLoadModel(t *testing.T) {
	dir := tempDir(t)
	if _, err := loadModel(dir); !errors.Is(err, singan.ErrCheckpointNotFound) {
		t.Fatalf("expected missing model error but got %v", err)
	}

	sched, err := singan.NewSchedule(12, 21)
	if err != nil {
		t.Fatal(err)
	}
	g := singan.NewGenerator(anyvec32.CurrentCreator(), sched, 1, 4, 3)
	for i := 0; i <= sched.NumScale; i++ {
		if err := g.Progress(); err != nil {
			t.Fatal(err)
		}
	}
	save := func() {
		data, err := serializer.SerializeAny(g)
		if err != nil {
			t.Fatal(err)
		}
		if err := ioutil.WriteFile(filepath.Join(dir, ModelFileName), data, 0644); err != nil {
			t.Fatal(err)
		}
	}

	save()
	if _, err := loadModel(dir); !errors.Is(err, singan.ErrCheckpointCorrupt) {
		t.Fatalf("expected unfrozen model to be rejected but got %v", err)
	}

	if err := g.Freeze(singan.ReconstructionNoise(g.Creator, sched, 1, 1, 4), 1); err != nil {
		t.Fatal(err)
	}
	save()
	loaded, err := loadModel(dir)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.CurrentScale() != sched.NumScale || loaded.Depth != 1 {
		t.Errorf("unexpected model: scale %d depth %d", loaded.CurrentScale(), loaded.Depth)
	}
	if !loaded.Evaluating() {
		t.Error("loaded model should be frozen")
	}
}

func TestInterruptChan(t *testing.T) {
	stop := interruptChan()
	select {
	case <-stop:
		t.Fatal("closed before any signal")
	default:
	}
	if err := syscall.Kill(os.Getpid(), syscall.SIGINT); err != nil {
		t.Fatal(err)
	}
	select {
	case <-stop:
	case <-time.After(5 * time.Second):
		t.Fatal("not closed after SIGINT")
	}
}

func TestStageSeed(t *testing.T) {
	seen := map[int64]bool{}
	for rank := 0; rank < 3; rank++ {
		for s := 0; s < 9; s++ {
			seed := stageSeed(5, rank, s)
			if seen[seed] {
				t.Fatalf("duplicate seed for rank %d stage %d", rank, s)
			}
			seen[seed] = true
		}
	}
}

func TestExportFormats(t *testing.T) {
	cfg := singan.DefaultConfig()
	if exportFormats(&cfg) != artifact.PNG {
		t.Error("expected PNG only")
	}
	cfg.GSLIB = true
	if exportFormats(&cfg) != artifact.PNG|artifact.GSLIB {
		t.Error("expected PNG and GSLIB")
	}
}
