package worldtest

import (
	"encoding/json"
	"fmt"
	"testing"

	"blockmarch.dev/internal/persistence/snapshot"
	"blockmarch.dev/internal/protocol"
	"blockmarch.dev/internal/sim/grid"
	"blockmarch.dev/internal/sim/layout"
	"blockmarch.dev/internal/sim/tuning"
	world "blockmarch.dev/internal/sim/world"
)

const (
	RepoTuning = "../../../configs/tuning.yaml"
	DemoLayout = "../../../configs/layouts/demo.json"
)

// Harness is a small black-box test helper for driving a world via exported APIs:
// - Join() registers a session whose Out channel carries FRAME JSON
// - Step() applies commands via StepOnce() and decodes the resulting frames
// - Snapshot() exports the state of the last simulated tick
//
// It intentionally avoids touching world internals so tests can live outside the world package.
type Harness struct {
	T *testing.T
	W *world.World

	sessions map[string]*session
	nextCmd  int
}

type session struct {
	Out       chan []byte
	lastFrame protocol.FrameMsg
	frames    int
}

func NewHarness(t *testing.T, cfg world.WorldConfig) *Harness {
	t.Helper()
	w, err := world.New(cfg)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	return NewHarnessWithWorld(t, w)
}

// NewHarnessWithWorld is like NewHarness, but uses an already-constructed world instance.
func NewHarnessWithWorld(t *testing.T, w *world.World) *Harness {
	t.Helper()
	if w == nil {
		t.Fatalf("NewHarnessWithWorld: nil world")
	}
	return &Harness{T: t, W: w, sessions: map[string]*session{}}
}

// NewLayoutHarness builds a world from a tuning file and a layout, sized to
// the layout.
func NewLayoutHarness(t *testing.T, tuningPath, layoutPath string) *Harness {
	t.Helper()
	tu, err := tuning.Load(tuningPath)
	if err != nil {
		t.Fatalf("tuning: %v", err)
	}
	l, err := layout.Load(layoutPath)
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	cfg := world.ConfigFromTuning(l.Name, tu)
	cfg.Width, cfg.Height = l.Width, l.Height
	h := NewHarness(t, cfg)
	if err := l.Apply(h.W); err != nil {
		t.Fatalf("apply layout: %v", err)
	}
	return h
}

func (h *Harness) Join(sessionID string) protocol.WelcomeMsg {
	h.T.Helper()
	out := make(chan []byte, 16)
	resp := make(chan world.JoinResponse, 1)
	h.W.DebugJoin(world.JoinRequest{SessionID: sessionID, Out: out, Resp: resp})
	jr := <-resp
	if jr.Welcome.SessionID != sessionID {
		h.T.Fatalf("join returned session %q", jr.Welcome.SessionID)
	}
	h.sessions[sessionID] = &session{Out: out}
	return jr.Welcome
}

// Leave unregisters the session from the world but keeps its channel so
// tests can assert nothing more arrives.
func (h *Harness) Leave(sessionID string) {
	h.W.DebugLeave(sessionID)
}

func (h *Harness) LastFrame(sessionID string) protocol.FrameMsg {
	h.T.Helper()
	s := h.sessions[sessionID]
	if s == nil {
		h.T.Fatalf("unknown session id: %q", sessionID)
	}
	return s.lastFrame
}

// FrameCount is the number of frames a session has received.
func (h *Harness) FrameCount(sessionID string) int {
	if s := h.sessions[sessionID]; s != nil {
		return s.frames
	}
	return 0
}

// Step runs one tick with cmds and returns their results in order. Command
// ids and response channels are filled in when missing.
func (h *Harness) Step(cmds ...world.Command) []world.CommandResult {
	h.T.Helper()
	resps := make([]chan world.CommandResult, len(cmds))
	for i := range cmds {
		if cmds[i].ID == "" {
			h.nextCmd++
			cmds[i].ID = fmt.Sprintf("C%d", h.nextCmd)
		}
		resps[i] = make(chan world.CommandResult, 1)
		cmds[i].Resp = resps[i]
	}
	_, _ = h.W.StepOnce(cmds)
	h.drainAllFrames()
	out := make([]world.CommandResult, len(cmds))
	for i, ch := range resps {
		out[i] = <-ch
	}
	return out
}

// StepN runs n ticks without commands and returns the last digest.
func (h *Harness) StepN(n int) string {
	h.T.Helper()
	var digest string
	for i := 0; i < n; i++ {
		_, digest = h.W.StepOnce(nil)
		h.drainAllFrames()
	}
	return digest
}

func (h *Harness) Snapshot() (tick uint64, snap snapshot.SnapshotV1) {
	h.T.Helper()
	// Export at currentTick-1; importing restores currentTick.
	cur := h.W.CurrentTick()
	if cur == 0 {
		return 0, h.W.ExportSnapshot(0)
	}
	tick = cur - 1
	return tick, h.W.ExportSnapshot(tick)
}

// CheckFrameInvariants fails if two blocks in the session's last frame share
// a tile or a block stands on an impassable structure.
func (h *Harness) CheckFrameInvariants(sessionID string) {
	h.T.Helper()
	f := h.LastFrame(sessionID)
	seen := map[grid.Point]uint32{}
	for _, b := range f.Blocks {
		p := grid.PointFromArray(b.Pos)
		if other, ok := seen[p]; ok {
			h.T.Fatalf("tick %d: blocks %d and %d share %v", f.Tick, other, b.ID, p)
		}
		seen[p] = b.ID
		if grid.Manhattan(p, grid.PointFromArray(b.Prev)) > 1 {
			h.T.Fatalf("tick %d: block %d jumped %v -> %v", f.Tick, b.ID, b.Prev, b.Pos)
		}
		if info, ok := h.W.TileAt(p); !ok || !info.Passable {
			h.T.Fatalf("tick %d: block %d on impassable tile %v", f.Tick, b.ID, p)
		}
	}
}

func (h *Harness) drainAllFrames() {
	h.T.Helper()
	for id, s := range h.sessions {
		for {
			select {
			case b := <-s.Out:
				var f protocol.FrameMsg
				if err := json.Unmarshal(b, &f); err != nil {
					h.T.Fatalf("unmarshal frame for %s: %v", id, err)
				}
				s.lastFrame = f
				s.frames++
				continue
			default:
			}
			break
		}
	}
}
