package trainlog

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/tantelu/CSinGAN/stage"
)

func TestHistory(t *testing.T) {
	var buf bytes.Buffer
	h := NewHistory(&buf)
	statuses := []*stage.Status{
		{Stage: 0, Iter: 0, DiscCost: 1, GenAdv: 2, GenRec: 3, LearningRate: 5e-4},
		{Stage: 0, Iter: 1, DiscCost: 3, GenAdv: 4, GenRec: 5, LearningRate: 5e-4},
		{Stage: 1, Iter: 0, DiscCost: 7, GenAdv: 7, GenRec: 7, LearningRate: 5e-4},
	}
	for _, s := range statuses {
		if err := h.Record(s); err != nil {
			t.Fatal(err)
		}
	}
	if h.Len() != 3 {
		t.Fatalf("expected 3 rows but got %d", h.Len())
	}
	disc, adv, rec := h.StageMeans(0)
	if math.Abs(disc-2) > 1e-9 || math.Abs(adv-3) > 1e-9 || math.Abs(rec-4) > 1e-9 {
		t.Errorf("unexpected means: %f %f %f", disc, adv, rec)
	}
	if d, a, r := h.StageMeans(5); d != 0 || a != 0 || r != 0 {
		t.Error("expected zero means for an empty stage")
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected a header and 3 rows but got %d lines", len(lines))
	}
	if !strings.Contains(lines[0], "DCost") || !strings.Contains(lines[0], "\t") {
		t.Errorf("unexpected header: %q", lines[0])
	}
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestHistoryWriteError(t *testing.T) {
	h := NewHistory(failingWriter{})
	status := &stage.Status{Stage: 0, Iter: 0, DiscCost: 1, GenAdv: 2, GenRec: 3}
	if err := h.Record(status); err == nil {
		t.Fatal("expected header write error")
	}
	if h.WroteHeader {
		t.Error("header marked as written")
	}
	if h.Len() != 1 {
		t.Errorf("expected the status to be kept, got %d rows", h.Len())
	}

	h.WroteHeader = true
	if err := h.Record(status); err == nil {
		t.Error("expected row write error")
	}
}
