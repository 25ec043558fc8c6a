package world

import (
	"errors"
	"fmt"
	"time"

	"blockmarch.dev/internal/protocol"
	"blockmarch.dev/internal/sim/structure"
)

// Tick advances the world by one step with no queued commands and returns the
// tick that was simulated.
func (w *World) Tick() uint64 {
	tick := w.tick.Load()
	w.step(nil)
	return tick
}

// StepOnce advances the world by a single tick using the same ordering semantics as the server.
// It is primarily intended for deterministic replays/tests.
func (w *World) StepOnce(cmds []Command) (tick uint64, digest string) {
	tick = w.tick.Load()
	digest = w.step(cmds)
	return tick, digest
}

func (w *World) step(cmds []Command) string {
	start := time.Now()
	nowTick := w.tick.Load()
	w.ev = tickEvents{actor: "WORLD"}

	recorded := w.applyCommands(nowTick, cmds)
	env := structureEnv{w: w}
	structures := w.sortedStructures()

	// Early: goals take blocks that arrived last tick.
	for _, s := range structures {
		s.OnTickEarly(env)
	}

	for _, b := range w.blocks {
		b.ResetTick()
	}

	// Repath everyone after a structural change, otherwise only stale blocks.
	changed := w.graph.Changed()
	for _, b := range w.sortedBlocks() {
		if changed || b.Stale {
			w.repath(b)
		}
	}
	w.changedThisTick = changed
	w.graph.ClearChanged()

	for _, s := range structures {
		if w.structures[s.Pos()] == s {
			s.OnTick(env)
		}
	}

	w.ev.stats = w.resolver.Resolve(w.graph, w.sortedBlocks())

	for _, s := range structures {
		if w.structures[s.Pos()] == s {
			s.OnTickLate(env)
		}
	}

	w.collectOrphans()

	digest := w.stateDigest(nowTick)
	if w.tickLogger != nil {
		_ = w.tickLogger.WriteTick(TickLogEntry{
			Tick:     nowTick,
			Commands: recorded,
			Changed:  changed,
			Repaths:  w.ev.repaths,
			Moved:    w.ev.stats.Moved,
			Spawned:  w.ev.spawned,
			Consumed: w.ev.consumed,
			Removed:  w.ev.removed,
			Digest:   digest,
		})
	}
	if w.snapshotSink != nil && w.cfg.SnapshotEveryTicks > 0 && nowTick > 0 && nowTick%uint64(w.cfg.SnapshotEveryTicks) == 0 {
		select {
		case w.snapshotSink <- w.ExportSnapshot(nowTick):
		default:
			w.logf("snapshot sink full; skipped tick %d", nowTick)
		}
	}
	w.broadcastFrames(nowTick)
	w.updateMetrics(nowTick, time.Since(start))

	w.tick.Add(1)
	return digest
}

// collectOrphans drops blocks whose tile has stopped pointing back at them for
// longer than the grace period.
func (w *World) collectOrphans() {
	for _, b := range w.sortedBlocks() {
		t, ok := w.graph.At(b.Pos)
		if ok && t.Block() == b.ID {
			b.Orphan = 0
			continue
		}
		b.Orphan++
		if b.Orphan <= w.cfg.OrphanGraceTicks {
			continue
		}
		w.totals.Collected++
		w.logf("block %d orphaned at %v for %d ticks; collected", b.ID, b.Pos, b.Orphan)
		w.dropBlock(b, "BLOCK_COLLECTED", "orphan")
	}
}

func (w *World) applyCommands(nowTick uint64, cmds []Command) []RecordedCommand {
	if len(cmds) == 0 {
		return nil
	}
	out := make([]RecordedCommand, 0, len(cmds))
	for _, c := range cmds {
		w.ev.actor = c.SessionID
		if w.ev.actor == "" {
			w.ev.actor = "CMD"
		}
		res := w.applyCommand(c)
		res.Ref = c.ID
		res.Tick = nowTick
		if c.Resp != nil {
			select {
			case c.Resp <- res:
			default:
				// Client timed out; don't block the sim loop.
			}
		}
		rec := RecordedCommand{
			ID:        c.ID,
			SessionID: c.SessionID,
			Op:        c.Op,
			Pos:       c.Pos.ToArray(),
			Kind:      c.Kind,
			Amount:    c.Amount,
			Code:      ErrorCode(res.Err),
		}
		if c.Op == protocol.OpPlace {
			spec := c.Structure
			rec.Structure = &spec
		}
		out = append(out, rec)
	}
	w.ev.actor = "WORLD"
	return out
}

func (w *World) applyCommand(c Command) CommandResult {
	switch c.Op {
	case protocol.OpPlace:
		spec := c.Structure
		spec.Pos = c.Pos
		return CommandResult{Err: w.PlaceStructure(spec)}
	case protocol.OpDelete:
		return CommandResult{Err: w.DeleteStructure(c.Pos)}
	case protocol.OpSpawn:
		id, err := w.AddBlock(c.Pos, c.Kind)
		return CommandResult{BlockID: id, Err: err}
	case protocol.OpDamage:
		if c.Amount <= 0 {
			return CommandResult{Err: errors.New("damage amount must be positive")}
		}
		_, err := w.DamageStructure(c.Pos, c.Amount)
		return CommandResult{Err: err}
	}
	return CommandResult{Err: fmt.Errorf("%w: %q", ErrUnknownOp, c.Op)}
}

// CommandFromProtocol converts a wire command.
func CommandFromProtocol(sessionID string, m protocol.CmdMsg) (Command, error) {
	if !protocol.IsKnownOp(m.Op) {
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownOp, m.Op)
	}
	c := Command{
		ID:        m.ID,
		SessionID: sessionID,
		Op:        m.Op,
		Kind:      m.Kind,
		Amount:    m.Amount,
	}
	c.Pos.X, c.Pos.Y = m.Pos[0], m.Pos[1]
	if m.Op == protocol.OpPlace {
		if m.Structure == nil {
			return Command{}, errors.New("PLACE requires structure")
		}
		kind, err := structure.ParseKind(m.Structure.Kind)
		if err != nil {
			return Command{}, err
		}
		s := m.Structure
		c.Structure = structure.Spec{
			Kind:          kind,
			Pos:           c.Pos,
			Rotation:      s.Rotation,
			Cost:          s.Cost,
			Impassable:    s.Impassable,
			ExitBlocked:   s.ExitBlocked,
			Life:          s.Life,
			Removable:     s.Removable,
			BuildOver:     s.BuildOver,
			SpawnKind:     s.SpawnKind,
			SpawnInterval: s.SpawnInterval,
			SpawnCount:    s.SpawnCount,
			Range:         s.Range,
			Power:         s.Power,
			Reload:        s.Reload,
		}
	}
	return c, nil
}
