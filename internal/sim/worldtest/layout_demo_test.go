package worldtest

import (
	"testing"
)

func TestDemoLayout_NoCollisionsAndBlocksAccountedFor(t *testing.T) {
	h := NewLayoutHarness(t, RepoTuning, DemoLayout)
	welcome := h.Join("S1")
	if welcome.Width != 16 || welcome.Height != 8 || welcome.WorldID != "demo" {
		t.Fatalf("welcome: %+v", welcome)
	}

	for i := 0; i < 200; i++ {
		h.StepN(1)
		h.CheckFrameInvariants("S1")
	}
	tot := h.W.Totals()
	if tot.Spawned == 0 || tot.Consumed+tot.Killed == 0 {
		t.Fatalf("no block finished its run: %+v", tot)
	}
	if live := uint64(len(h.W.Blocks())); live+tot.Consumed+tot.Killed+tot.Collected != tot.Spawned {
		t.Fatalf("block accounting: live=%d totals=%+v", live, tot)
	}
}
