package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/tantelu/CSinGAN"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec64"
	"github.com/unixpickle/essentials"
	"golang.org/x/sync/errgroup"
)

// Format is a set of output file formats.
type Format int

const (
	PNG Format = 1 << iota
	GSLIB
)

// An Exporter writes images to a directory in the
// background.
type Exporter struct {
	Dir     string
	Formats Format

	group *errgroup.Group
	ctx   context.Context
}

// NewExporter creates an Exporter which runs at most
// workers writes at once.
func NewExporter(ctx context.Context, dir string, formats Format, workers int) (*Exporter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, essentials.AddCtx("create exporter", err)
	}
	group, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		group.SetLimit(workers)
	}
	return &Exporter{Dir: dir, Formats: formats, group: group, ctx: ctx}, nil
}

// Export schedules a square tensor to be written under a
// base name, once per configured format.
//
// The tensor is copied before Export returns, so the
// caller may reuse it.
func (e *Exporter) Export(base string, size, depth int, v anyvec.Vector) error {
	data := append([]float64{}, singan.VectorFloats(v)...)
	if len(data) != size*size*depth {
		return fmt.Errorf("export %s: %w: tensor has length %d, expected %d", base,
			singan.ErrShapeMismatch, len(data), size*size*depth)
	}
	e.group.Go(func() error {
		if err := e.ctx.Err(); err != nil {
			return err
		}
		if e.Formats&PNG != 0 {
			if err := e.writePNG(base, size, depth, data); err != nil {
				return err
			}
		}
		if e.Formats&GSLIB != 0 {
			if err := e.writeGSLIB(base, size, depth, data); err != nil {
				return err
			}
		}
		return nil
	})
	return nil
}

// Wait waits for every scheduled write and returns the
// first error encountered.
func (e *Exporter) Wait() error {
	return e.group.Wait()
}

func (e *Exporter) writePNG(base string, size, depth int, data []float64) error {
	img, err := TensorToImage(size, depth, singan.FloatsVector(anyvec64.CurrentCreator(), data))
	if err != nil {
		return err
	}
	path := filepath.Join(e.Dir, base+".png")
	if err := imgio.Save(path, img, imgio.PNGEncoder()); err != nil {
		return essentials.AddCtx("export "+path, err)
	}
	return nil
}

func (e *Exporter) writeGSLIB(base string, size, depth int, data []float64) error {
	path := filepath.Join(e.Dir, base+".gslib")
	f, err := os.Create(path)
	if err != nil {
		return essentials.AddCtx("export "+path, err)
	}
	if err := WriteGSLIB(f, base, size, depth, data); err != nil {
		f.Close()
		return essentials.AddCtx("export "+path, err)
	}
	return f.Close()
}
