package main

import (
	"bytes"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"blockmarch.dev/internal/persistence/indexdb"
	persistlog "blockmarch.dev/internal/persistence/log"
	"blockmarch.dev/internal/sim/grid"
	"blockmarch.dev/internal/sim/structure"
	"blockmarch.dev/internal/sim/tuning"
	"blockmarch.dev/internal/sim/world"
)

// runWorld steps a 3x1 world where one block walks into a goal, writing both
// the zstd audit log and the sqlite index under worldDir.
func runWorld(t *testing.T, worldDir string) {
	t.Helper()
	idx, err := indexdb.OpenSQLite(filepath.Join(worldDir, "index", "world.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := idx.UpsertMeta("W1", "unit", tuning.Defaults()); err != nil {
		t.Fatalf("UpsertMeta: %v", err)
	}
	audit := persistlog.NewAuditLogger(worldDir)

	cfg := world.ConfigFromTuning("W1", tuning.Defaults())
	cfg.Width, cfg.Height = 3, 1
	w, err := world.New(cfg)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	w.SetTickLogger(idx)
	w.SetAuditLogger(multiAudit{audit, idx})
	if err := w.LoadStructure(structure.Spec{Kind: structure.KindGoal, Pos: grid.Point{X: 2, Y: 0}}); err != nil {
		t.Fatalf("goal: %v", err)
	}
	if _, err := w.AddBlock(grid.Point{X: 0, Y: 0}, ""); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	for i := 0; i < 4; i++ {
		w.StepOnce(nil)
	}
	idx.RecordSnapshot("/data/3.snap.zst", w.ExportSnapshot(3))
	if err := audit.Close(); err != nil {
		t.Fatalf("close audit: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close index: %v", err)
	}
}

type multiAudit []world.AuditLogger

func (m multiAudit) WriteAudit(e world.AuditEntry) error {
	for _, l := range m {
		_ = l.WriteAudit(e)
	}
	return nil
}

func TestReadAudit_Filters(t *testing.T) {
	dir := t.TempDir()
	runWorld(t, dir)

	all, err := readAudit(dir, auditFilter{})
	if err != nil {
		t.Fatalf("readAudit: %v", err)
	}
	if len(all) < 3 {
		t.Fatalf("expected placement, spawn and consume entries, got %+v", all)
	}

	consumed, err := readAudit(dir, auditFilter{Action: "BLOCK_CONSUMED"})
	if err != nil || len(consumed) != 1 || consumed[0].Pos != [2]int{2, 0} {
		t.Fatalf("consumed=%+v err=%v", consumed, err)
	}

	west, err := readAudit(dir, auditFilter{Rect: &[2][2]int{{0, 0}, {0, 0}}})
	if err != nil {
		t.Fatalf("readAudit: %v", err)
	}
	for _, e := range west {
		if e.Pos != [2]int{0, 0} {
			t.Fatalf("rect filter leaked %+v", e)
		}
	}
	if len(west) == 0 {
		t.Fatalf("spawn at (0,0) missing")
	}

	late, _ := readAudit(dir, auditFilter{SinceTick: 100})
	if len(late) != 0 {
		t.Fatalf("since_tick filter leaked %+v", late)
	}
}

func TestRunDBQuery(t *testing.T) {
	dir := t.TempDir()
	runWorld(t, dir)
	db, err := sql.Open("sqlite", filepath.Join(dir, "index", "world.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	var buf bytes.Buffer
	if err := runDBQuery(&buf, db, "ticks", dbQuery{FromTick: 1, Limit: 2}); err != nil {
		t.Fatalf("ticks: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], `"tick":1`) {
		t.Fatalf("ticks output:\n%s", buf.String())
	}

	buf.Reset()
	if err := runDBQuery(&buf, db, "block", dbQuery{BlockID: 1}); err != nil {
		t.Fatalf("block: %v", err)
	}
	if !strings.Contains(buf.String(), "BLOCK_SPAWNED") || !strings.Contains(buf.String(), "BLOCK_CONSUMED") {
		t.Fatalf("block output:\n%s", buf.String())
	}

	buf.Reset()
	if err := runDBQuery(&buf, db, "tile", dbQuery{Pos: &[2]int{2, 0}}); err != nil {
		t.Fatalf("tile: %v", err)
	}
	if !strings.Contains(buf.String(), "BLOCK_CONSUMED") {
		t.Fatalf("tile output:\n%s", buf.String())
	}

	buf.Reset()
	if err := runDBQuery(&buf, db, "meta", dbQuery{}); err != nil {
		t.Fatalf("meta: %v", err)
	}
	if !strings.Contains(buf.String(), `"world_id":"W1"`) || strings.Contains(buf.String(), "tuning_json") {
		t.Fatalf("meta output:\n%s", buf.String())
	}

	buf.Reset()
	if err := runDBQuery(&buf, db, "snapshots", dbQuery{}); err != nil {
		t.Fatalf("snapshots: %v", err)
	}
	if !strings.Contains(buf.String(), `"tick":3`) {
		t.Fatalf("snapshots output:\n%s", buf.String())
	}

	if err := runDBQuery(&buf, db, "block", dbQuery{}); err == nil {
		t.Fatalf("block without id should fail")
	}
	if err := runDBQuery(&buf, db, "bogus", dbQuery{}); err == nil {
		t.Fatalf("unknown query should fail")
	}
}

func TestParseRect(t *testing.T) {
	lo, hi, err := parseRect("5,1:2,4")
	if err != nil || lo != [2]int{2, 1} || hi != [2]int{5, 4} {
		t.Fatalf("parseRect: %v %v %v", lo, hi, err)
	}
	if _, _, err := parseRect("1,2"); err == nil {
		t.Fatalf("expected error")
	}
}
