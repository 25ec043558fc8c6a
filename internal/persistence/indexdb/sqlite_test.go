package indexdb

import (
	"context"
	"path/filepath"
	"testing"

	"blockmarch.dev/internal/persistence/snapshot"
	"blockmarch.dev/internal/sim/grid"
	"blockmarch.dev/internal/sim/structure"
	"blockmarch.dev/internal/sim/tuning"
	"blockmarch.dev/internal/sim/world"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqTick, tick: world.TickLogEntry{Tick: 1}}

	_ = s.WriteTick(world.TickLogEntry{Tick: 2})
	_ = s.WriteAudit(world.AuditEntry{Tick: 2})
	s.RecordSnapshot("/tmp/2.snap.zst", snapshot.SnapshotV1{})

	st := s.Stats()
	if st.DropTickTotal != 1 || st.DropAuditTotal != 1 || st.DropSnapshotTotal != 1 {
		t.Fatalf("drops: %+v", st)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_IndexesWorldRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "world.sqlite")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := idx.UpsertMeta("W1", "unit", tuning.Defaults()); err != nil {
		t.Fatalf("UpsertMeta: %v", err)
	}

	cfg := world.ConfigFromTuning("W1", tuning.Defaults())
	cfg.Width, cfg.Height = 3, 1
	w, err := world.New(cfg)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	w.SetTickLogger(idx)
	w.SetAuditLogger(idx)
	if err := w.LoadStructure(structure.Spec{Kind: structure.KindGoal, Pos: grid.Point{X: 2, Y: 0}}); err != nil {
		t.Fatalf("goal: %v", err)
	}
	id, err := w.AddBlock(grid.Point{X: 0, Y: 0}, "")
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	var digests []string
	for i := 0; i < 3; i++ {
		_, d := w.StepOnce(nil)
		digests = append(digests, d)
	}
	idx.RecordSnapshot("/data/2.snap.zst", w.ExportSnapshot(2))

	// Close drains the queue; reopen to query what was committed.
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	idx, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()
	ctx := context.Background()

	for i, want := range digests {
		got, err := idx.TickDigest(ctx, uint64(i))
		if err != nil || got != want {
			t.Fatalf("tick %d digest=%q err=%v", i, got, err)
		}
	}
	hist, err := idx.BlockHistory(ctx, uint32(id))
	if err != nil {
		t.Fatalf("BlockHistory: %v", err)
	}
	if len(hist) != 2 || hist[0].Action != "BLOCK_SPAWNED" || hist[1].Action != "BLOCK_CONSUMED" {
		t.Fatalf("history: %+v", hist)
	}
	tick, snapPath, err := idx.LatestSnapshot(ctx)
	if err != nil || tick != 2 || snapPath != "/data/2.snap.zst" {
		t.Fatalf("latest snapshot: %d %q %v", tick, snapPath, err)
	}
	if v, err := idx.Meta(ctx, "world_id"); err != nil || v != "W1" {
		t.Fatalf("meta world_id=%q err=%v", v, err)
	}
	if v, _ := idx.Meta(ctx, "tuning_digest"); len(v) != 64 {
		t.Fatalf("tuning digest=%q", v)
	}
}
