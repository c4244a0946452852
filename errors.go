package singan

import "errors"

// These errors classify failures across the module.
// Callers should match them with errors.Is, since most
// errors carry extra context.
var (
	// ErrConfiguration indicates invalid settings, such as
	// image size bounds that cannot form a schedule.
	ErrConfiguration = errors.New("configuration error")

	// ErrShapeMismatch indicates that a noise list, image,
	// or set of weights does not fit the pyramid.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrCheckpointNotFound indicates a missing checkpoint
	// file or an empty checkpoint index.
	ErrCheckpointNotFound = errors.New("checkpoint not found")

	// ErrCheckpointCorrupt indicates a checkpoint that could
	// not be decoded or that names an impossible stage.
	ErrCheckpointCorrupt = errors.New("checkpoint corrupt")

	// ErrTrainingDiverged indicates a non-finite cost.
	ErrTrainingDiverged = errors.New("training diverged")
)
