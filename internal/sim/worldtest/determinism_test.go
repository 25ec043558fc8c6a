package worldtest

import (
	"testing"

	"blockmarch.dev/internal/protocol"
	"blockmarch.dev/internal/sim/grid"
	"blockmarch.dev/internal/sim/structure"
	world "blockmarch.dev/internal/sim/world"
)

func TestDeterminism_DemoLayoutSameDigest(t *testing.T) {
	h1 := NewLayoutHarness(t, RepoTuning, DemoLayout)
	h2 := NewLayoutHarness(t, RepoTuning, DemoLayout)

	for i := 0; i < 150; i++ {
		var cmds1, cmds2 []world.Command
		if i == 20 {
			// Close the gap in the wall line mid-run.
			place := world.Command{
				Op:        protocol.OpPlace,
				Pos:       grid.Point{X: 5, Y: 5},
				Structure: structure.Spec{Kind: structure.KindWall},
			}
			cmds1 = []world.Command{place}
			cmds2 = []world.Command{place}
		}
		h1.Step(cmds1...)
		h2.Step(cmds2...)
		if d1, d2 := h1.W.StateDigest(), h2.W.StateDigest(); d1 != d2 {
			t.Fatalf("tick %d: digests diverged", i)
		}
	}
	if h1.W.Totals().Spawned == 0 {
		t.Fatalf("demo layout never spawned")
	}
}
