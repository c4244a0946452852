package main

import (
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/tantelu/CSinGAN"
	"github.com/tantelu/CSinGAN/artifact"
	"github.com/tantelu/CSinGAN/calib"
	"github.com/tantelu/CSinGAN/checkpoint"
	"github.com/tantelu/CSinGAN/superres"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func runSample(cfg *singan.Config, log *logrus.Logger) (err error) {
	logDir, resDir := runDirs(cfg)
	g, err := loadModel(logDir)
	if err != nil {
		return err
	}
	amps, err := calib.ReadLog(filepath.Join(logDir, calib.LogName))
	if err != nil {
		return err
	}
	log.WithField("amplitudes", []float64(amps)).Debug("loaded amplitudes")

	exporter, err := artifact.NewExporter(context.Background(), resDir,
		artifact.PNG|artifact.GSLIB, exportWorkers)
	if err != nil {
		return err
	}
	sampler := &superres.Sampler{
		Generator:  g,
		Amplitudes: amps,
		Count:      cfg.NumSamples,
		Exporter:   exporter,
		Rand:       rand.New(rand.NewSource(cfg.Seed)),
	}
	samples, err := sampler.Run()
	if waitErr := exporter.Wait(); err == nil {
		err = waitErr
	}
	if err != nil {
		return err
	}
	for i, x := range samples {
		mean, variance := singan.Stats(x)
		log.WithFields(logrus.Fields{
			"sample":   i + 1,
			"mean":     mean,
			"variance": variance,
		}).Info("sampled")
	}
	return nil
}

func runSuperRes(cfg *singan.Config, log *logrus.Logger) (err error) {
	logDir, resDir := runDirs(cfg)
	g, err := loadModel(logDir)
	if err != nil {
		return err
	}

	imageID := cfg.ImageIndex
	if store, err := checkpoint.NewStore(logDir); err == nil {
		if rec, err := store.LoadLatest(); err == nil {
			imageID = rec.ImageID
		}
	}
	dataset, err := artifact.OpenDataset(cfg.DataDir, cfg.ImgSizeMax, g.Depth)
	if err != nil {
		return err
	}
	imageID, err = dataset.Pick(imageID, rand.New(rand.NewSource(cfg.Seed)))
	if err != nil {
		return err
	}
	img, err := dataset.Image(g.Creator, imageID)
	if err != nil {
		return err
	}
	input := singan.Upsample(img, cfg.ImgSizeMax, g.Schedule.Final(), g.Depth, 1)
	log.WithFields(logrus.Fields{
		"image": dataset.Name(imageID),
		"index": imageID,
	}).Info("super-resolving")

	exporter, err := artifact.NewExporter(context.Background(), resDir, exportFormats(cfg),
		exportWorkers)
	if err != nil {
		return err
	}
	refiner := &superres.Refiner{
		Generator:  g,
		Iterations: cfg.SRIterations,
		Noise:      cfg.SRNoise,
		Upscale:    cfg.SRUpscale,
		Exporter:   exporter,
		Rand:       rand.New(rand.NewSource(cfg.Seed)),
	}
	res, err := refiner.Run(input, g.Schedule.Final(), 1)
	if waitErr := exporter.Wait(); err == nil {
		err = waitErr
	}
	if err != nil {
		return err
	}
	logRefinement(log, res)
	return nil
}

// loadModel reads the frozen generator saved at the end
// of training.
func loadModel(dir string) (*singan.Generator, error) {
	path := filepath.Join(dir, ModelFileName)
	data, err := ioutil.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load model: %w: %s", singan.ErrCheckpointNotFound, path)
		}
		return nil, essentials.AddCtx("load model", err)
	}
	var g *singan.Generator
	if err := serializer.DeserializeAny(data, &g); err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	if !g.Evaluating() {
		return nil, fmt.Errorf("load model: %w: generator is not frozen",
			singan.ErrCheckpointCorrupt)
	}
	return g, nil
}
