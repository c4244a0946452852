package main

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/tantelu/CSinGAN"
	"github.com/unixpickle/essentials"
	"gopkg.in/yaml.v3"
)

// ConfigSnapshotName is the name of the resolved
// configuration written to a run's log directory.
const ConfigSnapshotName = "config.yaml"

func setup() (*singan.Config, *logrus.Logger, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, newLogger(cfg.LogLevel), nil
}

func loadConfig(path string) (*singan.Config, error) {
	setDefaults(singan.DefaultConfig())
	viper.SetEnvPrefix("SINGAN")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if path != "" {
		viper.SetConfigFile(path)
		viper.SetConfigType("yaml")
		if err := viper.ReadInConfig(); err != nil {
			return nil, essentials.AddCtx("read config", err)
		}
	}
	var cfg singan.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, essentials.AddCtx("decode config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(d singan.Config) {
	viper.SetDefault("data_dir", d.DataDir)
	viper.SetDefault("img_to_use", d.ImageIndex)
	viper.SetDefault("model_name", d.ModelName)
	viper.SetDefault("log_root", d.LogRoot)
	viper.SetDefault("res_root", d.ResRoot)
	viper.SetDefault("load_model", d.LoadModel)
	viper.SetDefault("img_size_min", d.ImgSizeMin)
	viper.SetDefault("img_size_max", d.ImgSizeMax)
	viper.SetDefault("img_ch", d.Channels)
	viper.SetDefault("hidden", d.Hidden)
	viper.SetDefault("batch_size", d.BatchSize)
	viper.SetDefault("gantype", d.GANType)
	viper.SetDefault("total_iter", d.TotalIter)
	viper.SetDefault("decay_lr", d.DecayLR)
	viper.SetDefault("decay_factor", d.DecayFactor)
	viper.SetDefault("lr", d.LearningRate)
	viper.SetDefault("beta1", d.Beta1)
	viper.SetDefault("beta2", d.Beta2)
	viper.SetDefault("rec_weight", d.RecWeight)
	viper.SetDefault("seed", d.Seed)
	viper.SetDefault("sr_iterations", d.SRIterations)
	viper.SetDefault("sr_noise", d.SRNoise)
	viper.SetDefault("sr_upscale", d.SRUpscale)
	viper.SetDefault("num_samples", d.NumSamples)
	viper.SetDefault("gslib", d.GSLIB)
	viper.SetDefault("mpi", d.MPI)
	viper.SetDefault("log_level", d.LogLevel)
}

func writeConfigSnapshot(dir string, cfg *singan.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return essentials.AddCtx("write config snapshot", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return essentials.AddCtx("write config snapshot", err)
	}
	path := filepath.Join(dir, ConfigSnapshotName)
	if err := ioutil.WriteFile(path, data, 0644); err != nil {
		return essentials.AddCtx("write config snapshot", err)
	}
	return nil
}

func newLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	switch strings.ToLower(level) {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "warn":
		logger.SetLevel(logrus.WarnLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}

// runDirs returns the log and result directories of a run.
// A run being resumed keeps using its own directories.
func runDirs(cfg *singan.Config) (logDir, resDir string) {
	name := cfg.ModelName
	if cfg.LoadModel != "" {
		name = cfg.LoadModel
	}
	return filepath.Join(cfg.LogRoot, name), filepath.Join(cfg.ResRoot, name)
}
