package main

import (
	"path/filepath"
	"strings"
	"testing"

	persistlog "blockmarch.dev/internal/persistence/log"
	"blockmarch.dev/internal/persistence/snapshot"
	"blockmarch.dev/internal/protocol"
	"blockmarch.dev/internal/sim/grid"
	"blockmarch.dev/internal/sim/structure"
	"blockmarch.dev/internal/sim/tuning"
	"blockmarch.dev/internal/sim/world"
)

func newWorld(t *testing.T, withGoal bool) *world.World {
	t.Helper()
	tune := tuning.Defaults()
	tune.Width, tune.Height = 6, 3
	w, err := world.New(world.ConfigFromTuning("replay", tune))
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	if withGoal {
		if err := w.LoadStructure(structure.Spec{Kind: structure.KindGoal, Pos: grid.Point{X: 5, Y: 1}}); err != nil {
			t.Fatalf("goal: %v", err)
		}
	}
	return w
}

// record runs a short session with commands and returns the events dir.
func record(t *testing.T, w *world.World, ticks int) string {
	t.Helper()
	worldDir := t.TempDir()
	tl := persistlog.NewTickLogger(worldDir)
	w.SetTickLogger(tl)
	for i := 0; i < ticks; i++ {
		var cmds []world.Command
		switch i {
		case 0:
			cmds = []world.Command{{ID: "c1", Op: protocol.OpSpawn, Pos: grid.Point{X: 0, Y: 1}}}
		case 2:
			cmds = []world.Command{
				{ID: "c2", Op: protocol.OpPlace, Pos: grid.Point{X: 3, Y: 1}, Structure: structure.Spec{Kind: structure.KindWall}},
				{ID: "c3", Op: protocol.OpSpawn, Pos: grid.Point{X: 0, Y: 0}, Kind: "runner"},
			}
		case 4:
			// Fails the same way on replay.
			cmds = []world.Command{{ID: "c4", Op: protocol.OpDelete, Pos: grid.Point{X: 1, Y: 2}}}
		}
		w.StepOnce(cmds)
	}
	if err := tl.Close(); err != nil {
		t.Fatalf("close tick log: %v", err)
	}
	return filepath.Join(worldDir, "events")
}

func TestReplay_MatchesRecordedDigests(t *testing.T) {
	dir := record(t, newWorld(t, true), 12)
	files, err := listEventFiles(dir)
	if err != nil || len(files) == 0 {
		t.Fatalf("listEventFiles: %v %v", files, err)
	}

	checked, err := replayFiles(newWorld(t, true), files, 0, 0)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if checked != 12 {
		t.Fatalf("checked=%d", checked)
	}

	checked, err = replayFiles(newWorld(t, true), files, 3, 7)
	if err != nil {
		t.Fatalf("bounded replay: %v", err)
	}
	if checked != 5 {
		t.Fatalf("bounded checked=%d", checked)
	}
}

func TestReplay_DetectsDivergence(t *testing.T) {
	dir := record(t, newWorld(t, true), 6)
	files, _ := listEventFiles(dir)
	_, err := replayFiles(newWorld(t, false), files, 0, 0)
	if err == nil || !strings.Contains(err.Error(), "digest mismatch") {
		t.Fatalf("expected digest mismatch, got %v", err)
	}
}

func TestReplay_FromSnapshot(t *testing.T) {
	w := newWorld(t, true)
	dir := record(t, w, 10)

	// Snapshot of the last recorded tick, then record more into a fresh dir.
	path := filepath.Join(t.TempDir(), snapshot.FileName(9))
	if err := snapshot.WriteSnapshot(path, w.ExportSnapshot(9)); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}
	more := record(t, w, 8)

	resumed, err := fromSnapshot(path)
	if err != nil {
		t.Fatalf("fromSnapshot: %v", err)
	}
	if resumed.CurrentTick() != 10 {
		t.Fatalf("resumed tick=%d", resumed.CurrentTick())
	}
	// Older ticks in the first dir are skipped.
	oldFiles, _ := listEventFiles(dir)
	newFiles, _ := listEventFiles(more)
	checked, err := replayFiles(resumed, append(oldFiles, newFiles...), 0, 0)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if checked != 8 {
		t.Fatalf("checked=%d", checked)
	}
}
