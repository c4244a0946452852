// Package trainlog records per-iteration training costs
// in a table and streams them as tab-separated values.
package trainlog

import (
	"io"

	"github.com/unixpickle/essentials"

	"github.com/emer/etable/etable"
	"github.com/emer/etable/etensor"
	"github.com/tantelu/CSinGAN/stage"
)

// FileName is the conventional name of a history file.
const FileName = "train_log.tsv"

// A History accumulates training statuses.
type History struct {
	Table *etable.Table

	// Writer, if non-nil, receives a header and then one
	// row per recorded status.
	Writer io.Writer

	// WroteHeader is set once the header has been written.
	// Set it beforehand when appending to an existing file.
	WroteHeader bool
}

// NewHistory creates an empty History.
func NewHistory(w io.Writer) *History {
	dt := &etable.Table{}
	dt.SetMetaData("name", "TrainLog")
	dt.SetMetaData("desc", "Costs of every training iteration")
	dt.SetMetaData("precision", "6")
	sch := etable.Schema{
		{"Stage", etensor.INT64, nil, nil},
		{"Iter", etensor.INT64, nil, nil},
		{"DCost", etensor.FLOAT64, nil, nil},
		{"GAdv", etensor.FLOAT64, nil, nil},
		{"GRec", etensor.FLOAT64, nil, nil},
		{"LR", etensor.FLOAT64, nil, nil},
	}
	dt.SetFromSchema(sch, 0)
	return &History{Table: dt, Writer: w}
}

// Record appends a status to the table and writes it to
// the Writer.
//
// The status is kept in the table even if writing fails.
func (h *History) Record(s *stage.Status) error {
	dt := h.Table
	row := dt.Rows
	dt.SetNumRows(row + 1)
	dt.SetCellFloat("Stage", row, float64(s.Stage))
	dt.SetCellFloat("Iter", row, float64(s.Iter))
	dt.SetCellFloat("DCost", row, s.DiscCost)
	dt.SetCellFloat("GAdv", row, s.GenAdv)
	dt.SetCellFloat("GRec", row, s.GenRec)
	dt.SetCellFloat("LR", row, s.LearningRate)

	if h.Writer == nil {
		return nil
	}
	w := &errWriter{Writer: h.Writer}
	if !h.WroteHeader {
		if _, err := dt.WriteCSVHeaders(w, etable.Tab); err != nil || w.Err != nil {
			return essentials.AddCtx("write history header", firstErr(err, w.Err))
		}
		h.WroteHeader = true
	}
	if err := dt.WriteCSVRow(w, row, etable.Tab); err != nil || w.Err != nil {
		return essentials.AddCtx("write history row", firstErr(err, w.Err))
	}
	return nil
}

// Len returns the number of recorded statuses.
func (h *History) Len() int {
	return h.Table.Rows
}

// StageMeans averages the costs recorded for a stage.
// It returns zeros if the stage has no records.
func (h *History) StageMeans(stageIdx int) (disc, adv, rec float64) {
	var n int
	for row := 0; row < h.Table.Rows; row++ {
		if int(h.Table.CellFloat("Stage", row)) != stageIdx {
			continue
		}
		disc += h.Table.CellFloat("DCost", row)
		adv += h.Table.CellFloat("GAdv", row)
		rec += h.Table.CellFloat("GRec", row)
		n++
	}
	if n == 0 {
		return 0, 0, 0
	}
	return disc / float64(n), adv / float64(n), rec / float64(n)
}

// errWriter remembers the first error of the underlying
// Writer, since the CSV writers flush without reporting.
type errWriter struct {
	Writer io.Writer
	Err    error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.Err != nil {
		return 0, e.Err
	}
	n, err := e.Writer.Write(p)
	if err != nil {
		e.Err = err
	}
	return n, err
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
