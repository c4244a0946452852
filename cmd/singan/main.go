// Command singan trains a multi-scale generator on a
// single image and produces samples and super-resolved
// images from it.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "singan",
	Short: "Single-image multi-scale GAN",
	Long: "Train a pyramid of generators on one image, then draw samples " +
		"or super-resolve the image with the trained pyramid.",
	SilenceUsage: true,
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train every scale, resuming from the latest checkpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		return runTrain(cfg, log)
	},
}

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Draw unconditional samples from a trained model",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		return runSample(cfg, log)
	},
}

var superresCmd = &cobra.Command{
	Use:   "superres",
	Short: "Super-resolve the training image with a trained model",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		return runSuperRes(cfg, log)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "YAML configuration file")
	flags.String("data-dir", "", "directory of training images")
	flags.String("model-name", "", "name of the run")
	flags.String("load-model", "", "name of a run to resume or load")
	flags.Int("img-to-use", 0, "index of the training image (negative for random)")
	flags.Int("total-iter", 0, "iterations per stage")
	flags.Int64("seed", 0, "random seed")
	flags.String("log-level", "", "debug, info, warn or error")
	flags.Bool("mpi", false, "train data-parallel with MPI")
	flags.Bool("gslib", false, "write GSLIB files next to PNG outputs")

	bindings := map[string]string{
		"data_dir":   "data-dir",
		"model_name": "model-name",
		"load_model": "load-model",
		"img_to_use": "img-to-use",
		"total_iter": "total-iter",
		"seed":       "seed",
		"log_level":  "log-level",
		"mpi":        "mpi",
		"gslib":      "gslib",
	}
	for key, flag := range bindings {
		viper.BindPFlag(key, flags.Lookup(flag))
	}

	rootCmd.AddCommand(trainCmd, sampleCmd, superresCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
