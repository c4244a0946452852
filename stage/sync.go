package stage

import "github.com/unixpickle/anydiff"

// A GradSyncer combines gradients across data-parallel
// replicas.
type GradSyncer interface {
	// AverageGrad replaces every gradient in g with its
	// mean across replicas.
	// The vars list fixes the order in which gradients are
	// exchanged.
	AverageGrad(vars []*anydiff.Var, g anydiff.Grad) error

	// ShapeBarrier blocks until every replica reports a
	// signature, and fails if the signatures differ.
	ShapeBarrier(signature []int) error
}
