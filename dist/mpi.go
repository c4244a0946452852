// Package dist averages gradients across data-parallel
// training processes with MPI.
package dist

import (
	"fmt"

	"github.com/emer/empi/mpi"
	"github.com/tantelu/CSinGAN"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/essentials"
)

// MPISyncer implements stage.GradSyncer over every MPI
// process.
type MPISyncer struct {
	Comm *mpi.Comm

	sum []float64
}

// NewMPISyncer initializes MPI and creates a syncer for
// all processes.
func NewMPISyncer() (*MPISyncer, error) {
	mpi.Init()
	comm, err := mpi.NewComm(nil)
	if err != nil {
		mpi.Finalize()
		return nil, essentials.AddCtx("init MPI", err)
	}
	mpi.Printf("MPI running on %d procs\n", mpi.WorldSize())
	return &MPISyncer{Comm: comm}, nil
}

// Rank returns the index of this process.
func (m *MPISyncer) Rank() int {
	return mpi.WorldRank()
}

// Size returns the number of processes.
func (m *MPISyncer) Size() int {
	return mpi.WorldSize()
}

// Close finalizes MPI.
func (m *MPISyncer) Close() {
	mpi.Finalize()
}

// AverageGrad replaces every gradient with its mean across
// processes.
func (m *MPISyncer) AverageGrad(vars []*anydiff.Var, g anydiff.Grad) error {
	flat, err := flattenGrad(vars, g)
	if err != nil {
		return err
	}
	if len(m.sum) != len(flat) {
		m.sum = make([]float64, len(flat))
	}
	if err := m.Comm.AllReduceF64(mpi.OpSum, m.sum, flat); err != nil {
		return essentials.AddCtx("average gradient", err)
	}
	scale := 1 / float64(m.Size())
	for i := range m.sum {
		m.sum[i] *= scale
	}
	unflattenGrad(vars, g, m.sum)
	return nil
}

// ShapeBarrier checks that every process reports the same
// signature.
//
// The signatures are compared through the sums of their
// entries and of their squared entries, which agree with
// n times the local values only when all n signatures are
// equal.
func (m *MPISyncer) ShapeBarrier(signature []int) error {
	local := signatureMoments(signature)
	total := make([]float64, len(local))
	if err := m.Comm.AllReduceF64(mpi.OpSum, total, local); err != nil {
		return essentials.AddCtx("shape barrier", err)
	}
	return checkMoments(total, m.Size())
}

func flattenGrad(vars []*anydiff.Var, g anydiff.Grad) ([]float64, error) {
	var res []float64
	for _, v := range vars {
		vec, ok := g[v]
		if !ok {
			return nil, fmt.Errorf("flatten gradient: %w: missing variable", singan.ErrShapeMismatch)
		}
		res = append(res, singan.VectorFloats(vec)...)
	}
	return res, nil
}

func unflattenGrad(vars []*anydiff.Var, g anydiff.Grad, flat []float64) {
	for _, v := range vars {
		vec := g[v]
		n := vec.Len()
		vec.SetData(vec.Creator().MakeNumericList(flat[:n]))
		flat = flat[n:]
	}
}

func signatureMoments(signature []int) []float64 {
	res := make([]float64, 2*len(signature))
	for i, x := range signature {
		res[2*i] = float64(x)
		res[2*i+1] = float64(x) * float64(x)
	}
	return res
}

func checkMoments(total []float64, n int) error {
	for i := 0; i < len(total); i += 2 {
		sum, sqSum := total[i], total[i+1]
		if float64(n)*sqSum != sum*sum {
			return fmt.Errorf("shape barrier: %w: signature entry %d differs between processes",
				singan.ErrShapeMismatch, i/2)
		}
	}
	return nil
}
