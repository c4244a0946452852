package singan

import "fmt"

// Config holds every setting for training and inference.
//
// The mapstructure tags are used when the configuration is
// loaded through viper, and the yaml tags when a resolved
// configuration is written next to a run's logs.
type Config struct {
	// DataDir is a directory of training images.
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`

	// ImageIndex selects the training image in DataDir.
	// If it is negative, an image is picked at random.
	ImageIndex int `mapstructure:"img_to_use" yaml:"img_to_use"`

	// ModelName names the run; logs and results go into
	// sub-directories with this name.
	ModelName string `mapstructure:"model_name" yaml:"model_name"`
	LogRoot   string `mapstructure:"log_root" yaml:"log_root"`
	ResRoot   string `mapstructure:"res_root" yaml:"res_root"`

	// LoadModel, if non-empty, names a previous run to
	// resume from its latest checkpoint.
	LoadModel string `mapstructure:"load_model" yaml:"load_model"`

	ImgSizeMin int `mapstructure:"img_size_min" yaml:"img_size_min"`
	ImgSizeMax int `mapstructure:"img_size_max" yaml:"img_size_max"`
	Channels   int `mapstructure:"img_ch" yaml:"img_ch"`
	Hidden     int `mapstructure:"hidden" yaml:"hidden"`
	BatchSize  int `mapstructure:"batch_size" yaml:"batch_size"`

	// GANType selects the adversarial cost.
	// Only "lsgan" is supported: "wgangp" and "zerogp" need
	// gradient penalties, which anydiff cannot differentiate.
	GANType string `mapstructure:"gantype" yaml:"gantype"`

	// TotalIter is the iteration budget of every stage.
	TotalIter int `mapstructure:"total_iter" yaml:"total_iter"`

	// DecayLR is the number of iterations between learning
	// rate reductions within a stage.
	DecayLR     int     `mapstructure:"decay_lr" yaml:"decay_lr"`
	DecayFactor float64 `mapstructure:"decay_factor" yaml:"decay_factor"`

	LearningRate float64 `mapstructure:"lr" yaml:"lr"`
	Beta1        float64 `mapstructure:"beta1" yaml:"beta1"`
	Beta2        float64 `mapstructure:"beta2" yaml:"beta2"`

	// RecWeight scales the reconstruction cost relative to
	// the adversarial cost in each generator step.
	RecWeight float64 `mapstructure:"rec_weight" yaml:"rec_weight"`

	// Seed determines the reconstruction noise and the
	// initial weights of every scale.
	Seed int64 `mapstructure:"seed" yaml:"seed"`

	SRIterations int     `mapstructure:"sr_iterations" yaml:"sr_iterations"`
	SRNoise      float64 `mapstructure:"sr_noise" yaml:"sr_noise"`
	SRUpscale    float64 `mapstructure:"sr_upscale" yaml:"sr_upscale"`
	NumSamples   int     `mapstructure:"num_samples" yaml:"num_samples"`

	// GSLIB enables GSLIB exports alongside PNG files.
	GSLIB bool `mapstructure:"gslib" yaml:"gslib"`

	// MPI enables data-parallel training across processes.
	MPI bool `mapstructure:"mpi" yaml:"mpi"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

// DefaultConfig returns the default settings.
func DefaultConfig() Config {
	return Config{
		DataDir:      "../data/",
		ImageIndex:   -1,
		ModelName:    "SinGAN",
		LogRoot:      "./logs",
		ResRoot:      "./results",
		ImgSizeMin:   25,
		ImgSizeMax:   250,
		Channels:     3,
		Hidden:       32,
		BatchSize:    1,
		GANType:      "lsgan",
		TotalIter:    500,
		DecayLR:      500,
		DecayFactor:  0.1,
		LearningRate: 5e-4,
		Beta1:        0.5,
		Beta2:        0.999,
		RecWeight:    10,
		SRIterations: 10,
		SRNoise:      0.04,
		SRUpscale:    2,
		NumSamples:   30,
		LogLevel:     "info",
	}
}

// Validate checks the configuration for settings that
// would make training or inference impossible.
func (c *Config) Validate() error {
	if c.ImgSizeMin < 1 || c.ImgSizeMin >= c.ImgSizeMax {
		return fmt.Errorf("%w: image size bounds [%d, %d]", ErrConfiguration,
			c.ImgSizeMin, c.ImgSizeMax)
	}
	if c.Channels != 1 && c.Channels != 3 {
		return fmt.Errorf("%w: unsupported channel count %d", ErrConfiguration, c.Channels)
	}
	if c.Hidden < 1 || c.BatchSize < 1 || c.TotalIter < 1 || c.DecayLR < 1 {
		return fmt.Errorf("%w: hidden, batch_size, total_iter and decay_lr must be positive",
			ErrConfiguration)
	}
	if c.GANType != "lsgan" {
		return fmt.Errorf("%w: unsupported gantype %q", ErrConfiguration, c.GANType)
	}
	if c.LearningRate <= 0 || c.DecayFactor <= 0 || c.DecayFactor > 1 {
		return fmt.Errorf("%w: invalid learning rate settings", ErrConfiguration)
	}
	if c.SRIterations < 0 || c.SRUpscale <= 0 {
		return fmt.Errorf("%w: invalid super-resolution settings", ErrConfiguration)
	}
	return nil
}

// Schedule builds the scale schedule described by the
// image size bounds.
func (c *Config) Schedule() (*Schedule, error) {
	return NewSchedule(c.ImgSizeMin, c.ImgSizeMax)
}
