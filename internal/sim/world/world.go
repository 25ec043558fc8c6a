package world

import (
	"fmt"
	"log"
	"sort"
	"sync/atomic"

	"blockmarch.dev/internal/persistence/snapshot"
	"blockmarch.dev/internal/protocol"
	"blockmarch.dev/internal/sim/grid"
	"blockmarch.dev/internal/sim/movement"
	"blockmarch.dev/internal/sim/pathfind"
	"blockmarch.dev/internal/sim/structure"
	"blockmarch.dev/internal/sim/tuning"
)

type JoinRequest struct {
	SessionID string
	Out       chan []byte
	Resp      chan JoinResponse
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
}

// Command is a placement, removal, spawn or damage request applied at the
// start of the next tick.
type Command struct {
	ID        string
	SessionID string
	Op        string
	Pos       grid.Point
	Structure structure.Spec
	Kind      string
	Amount    int

	// Resp, if set, receives exactly one result. It should be buffered.
	Resp chan CommandResult
}

type CommandResult struct {
	Ref     string
	Tick    uint64
	BlockID grid.BlockID
	Err     error
}

// World is a single-threaded authoritative simulation.
// All state must be accessed only from the goroutine that calls Tick (the
// world loop in Run, or a caller driving Tick directly).
type World struct {
	cfg    WorldConfig
	models map[string]pathfind.CostModel
	logger *log.Logger

	tick atomic.Uint64

	graph      *grid.Graph
	structures map[grid.Point]structure.Structure
	blocks     map[grid.BlockID]*movement.Block
	nextBlock  grid.BlockID
	resolver   movement.Resolver

	changedThisTick bool
	totals          Totals
	ev              tickEvents

	clients map[string]*clientState

	cmds  chan Command
	join  chan JoinRequest
	leave chan string
	admin chan snapshotRequest
	stop  chan struct{}

	// Optional loggers (may be nil). Implemented in internal/persistence/*.
	tickLogger  TickLogger
	auditLogger AuditLogger

	// Optional snapshot sink (may be nil). Snapshot writing should be off-thread.
	snapshotSink chan<- snapshot.SnapshotV1

	metrics atomic.Value
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type TickLogEntry struct {
	Tick     uint64            `json:"tick"`
	Commands []RecordedCommand `json:"commands,omitempty"`
	Changed  bool              `json:"changed,omitempty"`
	Repaths  int               `json:"repaths,omitempty"`
	Moved    int               `json:"moved"`
	Spawned  []uint32          `json:"spawned,omitempty"`
	Consumed []uint32          `json:"consumed,omitempty"`
	Removed  []uint32          `json:"removed,omitempty"`
	Digest   string            `json:"digest"`
}

type RecordedCommand struct {
	ID        string          `json:"id,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Op        string          `json:"op"`
	Pos       [2]int          `json:"pos"`
	Structure *structure.Spec `json:"structure,omitempty"`
	Kind      string          `json:"kind,omitempty"`
	Amount    int             `json:"amount,omitempty"`
	Code      string          `json:"code,omitempty"`
}

type AuditEntry struct {
	Tick    uint64 `json:"tick"`
	Actor   string `json:"actor"`
	Action  string `json:"action"` // e.g. "STRUCTURE_PLACED"
	Pos     [2]int `json:"pos"`
	Kind    string `json:"kind,omitempty"`
	BlockID uint32 `json:"block_id,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Totals are lifetime counters, carried in snapshots.
type Totals struct {
	Spawned   uint64 `json:"spawned"`
	Consumed  uint64 `json:"consumed"`
	Killed    uint64 `json:"killed"`
	Collected uint64 `json:"collected"`
}

type tickEvents struct {
	actor    string
	repaths  int
	spawned  []uint32
	consumed []uint32
	removed  []uint32
	stats    movement.Stats
}

type clientState struct {
	Out       chan []byte
	needsFull bool
}

func New(cfg WorldConfig) (*World, error) {
	if cfg.TickRateHz <= 0 {
		return nil, fmt.Errorf("world: tick rate must be positive")
	}
	if err := cfg.tuning().Validate(); err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}
	models, err := cfg.tuning().Models()
	if err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}
	g, err := grid.New(cfg.Width, cfg.Height)
	if err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}
	w := &World{
		cfg:        cfg,
		models:     models,
		graph:      g,
		structures: map[grid.Point]structure.Structure{},
		blocks:     map[grid.BlockID]*movement.Block{},
		nextBlock:  1,
		resolver:   movement.Resolver{Passes: cfg.ResolutionPasses},
		clients:    map[string]*clientState{},
		cmds:       make(chan Command, 1024),
		join:       make(chan JoinRequest, 64),
		leave:      make(chan string, 64),
		admin:      make(chan snapshotRequest, 8),
		stop:       make(chan struct{}),
	}
	w.ev.actor = "WORLD"
	w.metrics.Store(WorldMetrics{})
	return w, nil
}

func (w *World) SetLogger(l *log.Logger)                       { w.logger = l }
func (w *World) SetTickLogger(l TickLogger)                    { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger)                  { w.auditLogger = l }
func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }

func (w *World) Commands() chan<- Command { return w.cmds }
func (w *World) Join() chan<- JoinRequest { return w.join }
func (w *World) Leave() chan<- string     { return w.leave }
func (w *World) CurrentTick() uint64      { return w.tick.Load() }
func (w *World) Config() WorldConfig      { return w.cfg }
func (w *World) Width() int               { return w.cfg.Width }
func (w *World) Height() int              { return w.cfg.Height }
func (w *World) ChangedThisTick() bool    { return w.changedThisTick }
func (w *World) Totals() Totals           { return w.totals }

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

func (w *World) TickRateHz() int {
	if w == nil {
		return 0
	}
	return w.cfg.TickRateHz
}

// AgentKinds lists configured block kinds sorted by name.
func (w *World) AgentKinds() []string {
	return w.cfg.tuning().KindNames()
}

func (w *World) logf(format string, args ...any) {
	if w.logger != nil {
		w.logger.Printf(format, args...)
	}
}

func (w *World) audit(action string, p grid.Point, kind string, id grid.BlockID, reason string) {
	if w.auditLogger == nil {
		return
	}
	_ = w.auditLogger.WriteAudit(AuditEntry{
		Tick:    w.tick.Load(),
		Actor:   w.ev.actor,
		Action:  action,
		Pos:     p.ToArray(),
		Kind:    kind,
		BlockID: uint32(id),
		Reason:  reason,
	})
}

func (w *World) sortedBlocks() []*movement.Block {
	out := make([]*movement.Block, 0, len(w.blocks))
	for _, b := range w.blocks {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (w *World) sortedStructures() []structure.Structure {
	out := make([]structure.Structure, 0, len(w.structures))
	for _, s := range w.structures {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pos().Less(out[j].Pos()) })
	return out
}

func (w *World) goalPositions() []grid.Point {
	var out []grid.Point
	for p, s := range w.structures {
		if s.Kind() == structure.KindGoal {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

func (w *World) searchOptions() pathfind.Options {
	return pathfind.Options{MaxDistance: w.cfg.MaxPathDistance, MaxTries: w.cfg.MaxPathTries}
}

func (w *World) modelFor(kind string) pathfind.CostModel {
	if m, ok := w.models[kind]; ok {
		return m
	}
	return pathfind.Standard
}

// kindOrDefault resolves an empty kind to the default and rejects unknown ones.
func (w *World) kindOrDefault(kind string) (string, tuning.AgentKind, error) {
	if kind == "" {
		kind = w.cfg.DefaultAgentKind
	}
	k, ok := w.cfg.AgentKinds[kind]
	if !ok {
		return "", tuning.AgentKind{}, fmt.Errorf("%w: %q", ErrUnknownAgentKind, kind)
	}
	return kind, k, nil
}
