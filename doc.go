// Package singan trains a pyramid of convolutional
// generators and discriminators on a single image.
//
// Scales are trained from coarsest to finest.
// Each scale refines the upsampled output of the scale
// below it with a residual Block, driven by noise whose
// amplitude is calibrated from the reconstruction error of
// the frozen scales.
//
// Sub-packages provide the stage controller and optimizer
// (stage), amplitude calibration (calib), checkpoints
// (checkpoint), image I/O (artifact), super-resolution and
// sampling (superres), training logs (trainlog), and MPI
// data-parallel training (dist).
package singan
