package worldtest

import (
	"path/filepath"
	"testing"

	"blockmarch.dev/internal/persistence/snapshot"
	world "blockmarch.dev/internal/sim/world"
)

func TestSnapshotRoundTrip_DemoLayoutResumesIdentically(t *testing.T) {
	h := NewLayoutHarness(t, RepoTuning, DemoLayout)
	h.StepN(37)

	tick, snap := h.Snapshot()
	path := filepath.Join(t.TempDir(), snapshot.FileName(tick))
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := snapshot.ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	w2, err := world.New(smallConfig(2, 2))
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	if err := w2.ImportSnapshot(got); err != nil {
		t.Fatalf("import: %v", err)
	}
	h2 := NewHarnessWithWorld(t, w2)
	if h2.W.ID() != "demo" || h2.W.CurrentTick() != h.W.CurrentTick() {
		t.Fatalf("resumed id=%q tick=%d", h2.W.ID(), h2.W.CurrentTick())
	}

	for i := 0; i < 60; i++ {
		d1 := h.StepN(1)
		d2 := h2.StepN(1)
		if d1 != d2 {
			t.Fatalf("tick %d after resume: digests diverged", i)
		}
	}
	if h.W.Totals() != h2.W.Totals() {
		t.Fatalf("totals: %+v vs %+v", h.W.Totals(), h2.W.Totals())
	}
}
