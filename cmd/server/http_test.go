package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"blockmarch.dev/internal/persistence/snapshot"
	"blockmarch.dev/internal/sim/grid"
	"blockmarch.dev/internal/sim/structure"
	"blockmarch.dev/internal/sim/tuning"
	"blockmarch.dev/internal/sim/world"
)

func newTestWorld(t *testing.T) *world.World {
	t.Helper()
	tune := tuning.Defaults()
	tune.Width, tune.Height = 4, 1
	w, err := world.New(world.ConfigFromTuning("test", tune))
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	if err := w.PlaceStructure(structure.Spec{Kind: structure.KindGoal, Pos: grid.Point{X: 3, Y: 0}}); err != nil {
		t.Fatalf("place goal: %v", err)
	}
	if _, err := w.AddBlock(grid.Point{X: 0, Y: 0}, ""); err != nil {
		t.Fatalf("add block: %v", err)
	}
	w.StepOnce(nil)
	return w
}

func TestMetricsEndpoint(t *testing.T) {
	w := newTestWorld(t)
	mux := newMux(w, nil, log.New(io.Discard, "", 0), muxOptions{})

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		"# TYPE blockmarch_world_tick gauge",
		`blockmarch_world_blocks{world="test"} 1`,
		`blockmarch_world_structures{world="test"} 1`,
		`blockmarch_blocks_spawned_total{world="test"} 1`,
		`blockmarch_world_queue_depth{world="test",queue="commands"} 0`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, "blockmarch_index_") {
		t.Fatalf("index metrics without an index")
	}
}

func TestAdminEndpoints_LoopbackOnly(t *testing.T) {
	w := newTestWorld(t)
	mux := newMux(w, nil, log.New(io.Discard, "", 0), muxOptions{EnableAdmin: true})

	req := httptest.NewRequest(http.MethodGet, "/admin/v1/state", nil)
	req.RemoteAddr = "203.0.113.9:5555"
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("remote state status=%d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/v1/state", nil)
	req.RemoteAddr = "127.0.0.1:5555"
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("state status=%d", rr.Code)
	}
	var state struct {
		WorldID string   `json:"world_id"`
		Width   int      `json:"width"`
		Kinds   []string `json:"agent_kinds"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if state.WorldID != "test" || state.Width != 4 || len(state.Kinds) == 0 {
		t.Fatalf("state=%+v", state)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/v1/snapshot", nil)
	req.RemoteAddr = "127.0.0.1:5555"
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET snapshot status=%d", rr.Code)
	}
}

func TestAdminSnapshot_WithRunningWorld(t *testing.T) {
	w := newTestWorld(t)
	sink := make(chan snapshot.SnapshotV1, 1)
	w.SetSnapshotSink(sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	mux := newMux(w, nil, log.New(io.Discard, "", 0), muxOptions{EnableAdmin: true})
	req := httptest.NewRequest(http.MethodPost, "/admin/v1/snapshot", nil)
	req.RemoteAddr = "[::1]:5555"
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("snapshot status=%d body=%s", rr.Code, rr.Body.String())
	}
	var body struct {
		OK       bool                  `json:"ok"`
		Snapshot world.SnapshotReceipt `json:"snapshot"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.OK || body.Snapshot.Structures != 1 || body.Snapshot.Blocks != 1 {
		t.Fatalf("receipt: %s", rr.Body.String())
	}
	select {
	case snap := <-sink:
		if snap.Header.WorldID != "test" || snap.Header.Tick != body.Snapshot.Tick {
			t.Fatalf("snapshot header=%+v", snap.Header)
		}
	default:
		t.Fatalf("snapshot not delivered to sink")
	}
}

func TestAdminDisabled(t *testing.T) {
	w := newTestWorld(t)
	mux := newMux(w, nil, log.New(io.Discard, "", 0), muxOptions{})
	req := httptest.NewRequest(http.MethodGet, "/admin/v1/state", nil)
	req.RemoteAddr = "127.0.0.1:1"
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:80": true,
		"[::1]:80":     true,
		"::1":          true,
		"10.0.0.1:80":  false,
		"garbage":      false,
	}
	for in, want := range cases {
		if got := isLoopbackRemote(in); got != want {
			t.Fatalf("isLoopbackRemote(%q)=%v want %v", in, got, want)
		}
	}
}

func TestEnvBool(t *testing.T) {
	t.Setenv("BM_TEST_FLAG", "true")
	if !envBool("BM_TEST_FLAG", false) {
		t.Fatalf("expected true")
	}
	t.Setenv("BM_TEST_FLAG", "nope")
	if envBool("BM_TEST_FLAG", false) {
		t.Fatalf("unparsable value should fall back to default")
	}
	t.Setenv("DEPLOY_ENV", "production")
	if defaultEnableAdminHTTP() {
		t.Fatalf("admin must default off in production")
	}
}
