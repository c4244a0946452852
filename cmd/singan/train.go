package main

import (
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/tantelu/CSinGAN"
	"github.com/tantelu/CSinGAN/artifact"
	"github.com/tantelu/CSinGAN/calib"
	"github.com/tantelu/CSinGAN/checkpoint"
	"github.com/tantelu/CSinGAN/dist"
	"github.com/tantelu/CSinGAN/stage"
	"github.com/tantelu/CSinGAN/superres"
	"github.com/tantelu/CSinGAN/trainlog"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

// ModelFileName is the name of the serialized generator
// written once every stage is trained.
const ModelFileName = "gen.model"

const (
	statusEvery   = 100
	exportWorkers = 4
)

// session holds the state shared by every stage of a
// training run.
type session struct {
	Config *singan.Config
	Log    *logrus.Logger

	LogDir string
	Store  *checkpoint.Store

	Controller *stage.Controller
	Reals      []anyvec.Vector
	RecNoise   singan.NoiseList
	ImageID    int

	Syncer   *dist.MPISyncer
	Exporter *artifact.Exporter
	History  *trainlog.History

	// historyErr is the first error from writing History.
	historyErr error
}

func runTrain(cfg *singan.Config, log *logrus.Logger) (err error) {
	logDir, resDir := runDirs(cfg)
	sched, err := cfg.Schedule()
	if err != nil {
		return err
	}
	c := anyvec32.CurrentCreator()

	s := &session{Config: cfg, Log: log, LogDir: logDir}
	if cfg.MPI {
		s.Syncer, err = dist.NewMPISyncer()
		if err != nil {
			return err
		}
		defer s.Syncer.Close()
		log.WithFields(logrus.Fields{
			"rank": s.Syncer.Rank(),
			"size": s.Syncer.Size(),
		}).Info("joined MPI job")
	}
	if s.leader() {
		if err := writeConfigSnapshot(logDir, cfg); err != nil {
			return err
		}
	}

	s.Store, err = checkpoint.NewStore(logDir)
	if err != nil {
		return err
	}
	rec, err := s.Store.LoadLatest()
	if err != nil {
		if !errors.Is(err, singan.ErrCheckpointNotFound) {
			return err
		}
		log.Info("no checkpoint found, starting from the coarsest scale")
		rec = nil
	}

	dataset, err := artifact.OpenDataset(cfg.DataDir, cfg.ImgSizeMax, cfg.Channels)
	if err != nil {
		return err
	}
	imageID := cfg.ImageIndex
	if rec != nil {
		imageID = rec.ImageID
	}
	s.ImageID, err = dataset.Pick(imageID, rand.New(rand.NewSource(cfg.Seed)))
	if err != nil {
		return err
	}
	img, err := dataset.Image(c, s.ImageID)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"image": dataset.Name(s.ImageID),
		"index": s.ImageID,
		"sizes": sched.Sizes,
	}).Info("loaded training image")

	img = artifact.Tile(img, cfg.BatchSize)
	s.Reals = singan.RealPyramid(img, cfg.ImgSizeMax, cfg.Channels, cfg.BatchSize, sched)
	s.RecNoise = singan.ReconstructionNoise(c, sched, cfg.Channels, cfg.BatchSize, cfg.Seed)

	g := singan.NewGenerator(c, sched, cfg.Channels, cfg.Hidden, cfg.Seed)
	d := singan.NewDiscriminator(c, sched, cfg.Channels, cfg.Hidden, cfg.Seed)
	opts := stage.Options{Beta1: cfg.Beta1, Beta2: cfg.Beta2}
	if s.Syncer != nil {
		opts.Syncer = s.Syncer
	}
	s.Controller, err = stage.NewController(g, d, opts)
	if err != nil {
		return err
	}
	if rec != nil {
		if err := s.Controller.Restore(rec); err != nil {
			return err
		}
		log.WithField("stage", s.Controller.Stage()).Info("resumed from checkpoint")
	}

	s.Exporter, err = artifact.NewExporter(context.Background(), resDir, exportFormats(cfg),
		exportWorkers)
	if err != nil {
		return err
	}
	defer func() {
		if waitErr := s.Exporter.Wait(); err == nil {
			err = waitErr
		}
	}()

	modelPath := filepath.Join(logDir, ModelFileName)
	model := s.Controller.Generator
	if _, statErr := os.Stat(modelPath); statErr == nil && s.Controller.Done() {
		log.WithField("path", modelPath).Info("model already trained")
		if model, err = loadModel(logDir); err != nil {
			return err
		}
	} else {
		historyFile, err := openHistory(logDir)
		if err != nil {
			return err
		}
		defer historyFile.Close()
		info, err := historyFile.Stat()
		if err != nil {
			return essentials.AddCtx("open training log", err)
		}
		s.History = trainlog.NewHistory(historyFile)
		s.History.WroteHeader = info.Size() > 0

		finished, err := s.trainStages(modelPath)
		if err != nil || !finished {
			return err
		}
	}

	if !s.leader() {
		return nil
	}
	return s.refine(model)
}

func (s *session) leader() bool {
	return s.Syncer == nil || s.Syncer.Rank() == 0
}

func (s *session) rank() int {
	if s.Syncer == nil {
		return 0
	}
	return s.Syncer.Rank()
}

// trainStages trains the remaining stages and reports
// whether the final stage was reached.
// Training stops early, after a checkpoint, when the
// process is interrupted.
func (s *session) trainStages(modelPath string) (bool, error) {
	cfg := s.Config
	ctrl := s.Controller
	g := ctrl.Generator
	stop := interruptChan()

	for {
		cur := ctrl.Stage()
		amps, err := calib.Calibrate(g, s.RecNoise, s.Reals, cfg.BatchSize)
		if err != nil {
			return false, err
		}
		log := s.Log.WithFields(logrus.Fields{
			"stage": cur,
			"size":  g.Schedule.Size(cur),
		})
		log.Info("training stage")

		trainer := &stage.Trainer{
			Controller: ctrl,
			Reals:      s.Reals,
			RecNoise:   s.RecNoise,
			Amplitudes: amps.Training(),
			Batch:      cfg.BatchSize,
			Iterations: cfg.TotalIter,
			Rater: &stage.StepRater{
				Base:   cfg.LearningRate,
				Every:  cfg.DecayLR,
				Factor: cfg.DecayFactor,
			},
			RecWeight:  cfg.RecWeight,
			Rand:       rand.New(rand.NewSource(stageSeed(cfg.Seed, s.rank(), cur))),
			StatusFunc: s.logStatus,
		}
		if s.Syncer != nil {
			trainer.Syncer = s.Syncer
		}
		if err := trainer.TrainStage(); err != nil {
			return false, err
		}
		if s.historyErr != nil {
			return false, s.historyErr
		}
		disc, adv, rec := s.History.StageMeans(cur)
		log.WithFields(logrus.Fields{
			"d_cost": disc,
			"g_adv":  adv,
			"g_rec":  rec,
		}).Info("stage complete")

		if s.leader() {
			if err := s.exportReconstruction(cur); err != nil {
				return false, err
			}
		}

		if ctrl.Done() {
			return true, s.finish(modelPath)
		}
		if err := ctrl.Advance(); err != nil {
			return false, err
		}
		if s.leader() {
			if err := s.checkpoint(); err != nil {
				return false, err
			}
		}
		select {
		case <-stop:
			s.Log.WithField("stage", ctrl.Stage()).Warn("interrupted, resume with --load-model")
			return false, nil
		default:
		}
	}
}

func (s *session) logStatus(st *stage.Status) {
	if err := s.History.Record(st); err != nil && s.historyErr == nil {
		s.historyErr = err
	}
	entry := s.Log.WithFields(logrus.Fields{
		"stage":  st.Stage,
		"iter":   st.Iter,
		"d_cost": st.DiscCost,
		"g_adv":  st.GenAdv,
		"g_rec":  st.GenRec,
		"lr":     st.LearningRate,
	})
	if st.Iter%statusEvery == 0 || st.Iter == s.Config.TotalIter-1 {
		entry.Info("step")
	} else {
		entry.Debug("step")
	}
}

// exportReconstruction exports the reconstruction of the
// real image at the given scale.
func (s *session) exportReconstruction(cur int) error {
	g := s.Controller.Generator
	outs, err := g.Forward(s.RecNoise, s.Config.BatchSize)
	if err != nil {
		return err
	}
	img := artifact.BatchItem(outs[cur].Output(), 0, s.Config.BatchSize)
	return s.Exporter.Export(fmt.Sprintf("REC_%d", cur), g.Schedule.Size(cur), g.Depth, img)
}

// checkpoint calibrates the frozen scales, writes the
// amplitude log and saves a checkpoint of the current
// stage.
func (s *session) checkpoint() error {
	if err := s.writeAmplitudes(); err != nil {
		return err
	}
	rec, err := s.Controller.Snapshot(s.ImageID)
	if err != nil {
		return err
	}
	path, err := s.Store.Save(rec)
	if err != nil {
		return err
	}
	s.Log.WithFields(logrus.Fields{
		"stage": rec.Stage,
		"path":  path,
	}).Info("saved checkpoint")
	return nil
}

func (s *session) writeAmplitudes() error {
	g := s.Controller.Generator
	amps, err := calib.Calibrate(g, s.RecNoise, s.Reals, s.Config.BatchSize)
	if err != nil {
		return err
	}
	s.Log.WithField("rmse", amps.RMSE).Debug("calibrated amplitudes")
	return calib.WriteLog(filepath.Join(s.LogDir, calib.LogName), amps.Vector())
}

// finish saves the final checkpoint and then freezes the
// generator and saves it as the model.
func (s *session) finish(modelPath string) error {
	if !s.leader() {
		return nil
	}
	if err := s.checkpoint(); err != nil {
		return err
	}
	g := s.Controller.Generator
	if err := g.Freeze(s.RecNoise, s.Config.BatchSize); err != nil {
		return err
	}
	s.Log.Debug("froze normalization statistics")
	data, err := serializer.SerializeAny(g)
	if err != nil {
		return essentials.AddCtx("save model", err)
	}
	if err := ioutil.WriteFile(modelPath, data, 0644); err != nil {
		return essentials.AddCtx("save model", err)
	}
	s.Log.WithField("path", modelPath).Info("saved model")
	return nil
}

// refine super-resolves the finest real image with a
// frozen generator.
func (s *session) refine(g *singan.Generator) error {
	cfg := s.Config
	refiner := &superres.Refiner{
		Generator:  g,
		Iterations: cfg.SRIterations,
		Noise:      cfg.SRNoise,
		Upscale:    cfg.SRUpscale,
		Exporter:   s.Exporter,
		Rand:       rand.New(rand.NewSource(cfg.Seed)),
	}
	res, err := refiner.Run(s.Reals[g.Schedule.NumScale], g.Schedule.Final(), cfg.BatchSize)
	if err != nil {
		return err
	}
	logRefinement(s.Log, res)
	return nil
}

func logRefinement(log *logrus.Logger, res *superres.Result) {
	for _, st := range res.Stats {
		log.WithFields(logrus.Fields{
			"iter":     st.Iter,
			"size":     res.Size,
			"mean":     st.Mean,
			"variance": st.Variance,
		}).Info("refined")
	}
}

// interruptChan returns a channel that is closed once the
// process receives SIGINT or SIGTERM.
func interruptChan() <-chan struct{} {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	res := make(chan struct{})
	go func() {
		<-sigs
		signal.Stop(sigs)
		close(res)
	}()
	return res
}

func openHistory(dir string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, essentials.AddCtx("open training log", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, trainlog.FileName),
		os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, essentials.AddCtx("open training log", err)
	}
	return f, nil
}

func exportFormats(cfg *singan.Config) artifact.Format {
	if cfg.GSLIB {
		return artifact.PNG | artifact.GSLIB
	}
	return artifact.PNG
}

// stageSeed derives a distinct noise seed for every rank
// and stage.
func stageSeed(seed int64, rank, stageIdx int) int64 {
	return seed + int64(rank)<<32 + int64(stageIdx)*7919
}
