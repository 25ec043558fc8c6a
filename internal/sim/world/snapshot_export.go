package world

import (
	"fmt"

	"blockmarch.dev/internal/persistence/snapshot"
	"blockmarch.dev/internal/sim/grid"
	"blockmarch.dev/internal/sim/movement"
	"blockmarch.dev/internal/sim/pathfind"
	"blockmarch.dev/internal/sim/structure"
	"blockmarch.dev/internal/sim/tuning"
)

// StateDigest hashes the current state as of the last completed tick.
func (w *World) StateDigest() string {
	t := w.tick.Load()
	if t > 0 {
		t--
	}
	return w.stateDigest(t)
}

// ExportSnapshot captures the state after nowTick has been simulated.
func (w *World) ExportSnapshot(nowTick uint64) snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: w.cfg.ID,
			Tick:    nowTick,
		},
		Width:              w.cfg.Width,
		Height:             w.cfg.Height,
		TickRate:           w.cfg.TickRateHz,
		MaxPathDistance:    w.cfg.MaxPathDistance,
		MaxPathTries:       w.cfg.MaxPathTries,
		ResolutionPasses:   w.cfg.ResolutionPasses,
		OrphanGraceTicks:   w.cfg.OrphanGraceTicks,
		SnapshotEveryTicks: w.cfg.SnapshotEveryTicks,
		DefaultAgentKind:   w.cfg.DefaultAgentKind,
		Changed:            w.graph.Changed(),
		Counters: snapshot.CountersV1{
			NextBlock: uint32(w.nextBlock),
			Spawned:   w.totals.Spawned,
			Consumed:  w.totals.Consumed,
			Killed:    w.totals.Killed,
			Collected: w.totals.Collected,
		},
	}
	for _, name := range w.cfg.tuning().KindNames() {
		k := w.cfg.AgentKinds[name]
		snap.AgentKinds = append(snap.AgentKinds, snapshot.AgentKindV1{Name: name, CostModel: k.CostModel, Life: k.Life})
	}
	for _, s := range w.sortedStructures() {
		snap.Structures = append(snap.Structures, structureToV1(s))
	}
	for _, b := range w.sortedBlocks() {
		snap.Blocks = append(snap.Blocks, blockToV1(b))
	}
	return snap
}

func structureToV1(s structure.Structure) snapshot.StructureV1 {
	spec := s.Spec()
	return snapshot.StructureV1{
		Kind:          string(spec.Kind),
		Pos:           spec.Pos.ToArray(),
		Rotation:      spec.Rotation,
		Cost:          spec.Cost,
		Impassable:    spec.Impassable,
		ExitBlocked:   spec.ExitBlocked,
		Life:          spec.Life,
		Removable:     s.Removable(),
		BuildOver:     spec.BuildOver,
		SpawnKind:     spec.SpawnKind,
		SpawnInterval: spec.SpawnInterval,
		SpawnCount:    spec.SpawnCount,
		SpawnCooldown: spec.SpawnCooldown,
		Range:         spec.Range,
		Power:         spec.Power,
		Reload:        spec.Reload,
		ReloadCounter: spec.ReloadCounter,
		Consumed:      spec.Consumed,
	}
}

func structureFromV1(v snapshot.StructureV1) structure.Spec {
	removable := v.Removable
	return structure.Spec{
		Kind:          structure.Kind(v.Kind),
		Pos:           grid.PointFromArray(v.Pos),
		Rotation:      v.Rotation,
		Cost:          v.Cost,
		Impassable:    v.Impassable,
		ExitBlocked:   v.ExitBlocked,
		Life:          v.Life,
		Removable:     &removable,
		BuildOver:     v.BuildOver,
		SpawnKind:     v.SpawnKind,
		SpawnInterval: v.SpawnInterval,
		SpawnCount:    v.SpawnCount,
		SpawnCooldown: v.SpawnCooldown,
		Range:         v.Range,
		Power:         v.Power,
		Reload:        v.Reload,
		ReloadCounter: v.ReloadCounter,
		Consumed:      v.Consumed,
	}
}

func blockToV1(b *movement.Block) snapshot.BlockV1 {
	v := snapshot.BlockV1{
		ID:                uint32(b.ID),
		Kind:              b.Kind,
		Pos:               b.Pos.ToArray(),
		Prev:              b.Prev.ToArray(),
		Life:              b.Life,
		PathCode:          b.Path.Code.String(),
		PathDistance:      b.Path.Distance,
		PathStructureCost: b.Path.StructureCost,
		PathCrowFlies:     b.Path.CrowFlies,
		PathSteps:         b.Path.Steps,
		PathTurns:         b.Path.Turns,
		Stale:             b.Stale,
		Orphan:            b.Orphan,
	}
	for _, p := range b.Path.Tiles {
		v.Path = append(v.Path, p.ToArray())
	}
	return v
}

func blockFromV1(v snapshot.BlockV1) (*movement.Block, error) {
	code, err := pathfind.ParseCode(v.PathCode)
	if err != nil {
		return nil, fmt.Errorf("block %d: %w", v.ID, err)
	}
	b := &movement.Block{
		ID:   grid.BlockID(v.ID),
		Kind: v.Kind,
		Pos:  grid.PointFromArray(v.Pos),
		Prev: grid.PointFromArray(v.Prev),
		Life: v.Life,
		Path: pathfind.Path{
			Code:          code,
			Distance:      v.PathDistance,
			StructureCost: v.PathStructureCost,
			CrowFlies:     v.PathCrowFlies,
			Steps:         v.PathSteps,
			Turns:         v.PathTurns,
		},
		Stale:  v.Stale,
		Orphan: v.Orphan,
	}
	for _, p := range v.Path {
		b.Path.Tiles = append(b.Path.Tiles, grid.PointFromArray(p))
	}
	return b, nil
}

// ImportSnapshot replaces the world state with snap. The world must not be
// running. The next tick simulated is snap.Header.Tick+1.
func (w *World) ImportSnapshot(snap snapshot.SnapshotV1) error {
	if snap.Header.Version != snapshot.Version {
		return fmt.Errorf("import snapshot: unsupported version %d", snap.Header.Version)
	}
	cfg := w.cfg
	if snap.Header.WorldID != "" {
		cfg.ID = snap.Header.WorldID
	}
	cfg.Width = snap.Width
	cfg.Height = snap.Height
	if snap.TickRate > 0 {
		cfg.TickRateHz = snap.TickRate
	}
	cfg.MaxPathDistance = snap.MaxPathDistance
	cfg.MaxPathTries = snap.MaxPathTries
	cfg.ResolutionPasses = snap.ResolutionPasses
	cfg.OrphanGraceTicks = snap.OrphanGraceTicks
	cfg.SnapshotEveryTicks = snap.SnapshotEveryTicks
	cfg.DefaultAgentKind = snap.DefaultAgentKind
	cfg.AgentKinds = make(map[string]tuning.AgentKind, len(snap.AgentKinds))
	for _, k := range snap.AgentKinds {
		cfg.AgentKinds[k.Name] = tuning.AgentKind{CostModel: k.CostModel, Life: k.Life}
	}

	fresh, err := New(cfg)
	if err != nil {
		return fmt.Errorf("import snapshot: %w", err)
	}
	for _, v := range snap.Structures {
		if err := fresh.LoadStructure(structureFromV1(v)); err != nil {
			return fmt.Errorf("import snapshot: %w", err)
		}
	}
	for _, v := range snap.Blocks {
		b, err := blockFromV1(v)
		if err != nil {
			return fmt.Errorf("import snapshot: %w", err)
		}
		if b.ID == grid.NoBlock || fresh.blocks[b.ID] != nil {
			return fmt.Errorf("import snapshot: duplicate or zero block id %d", b.ID)
		}
		if _, ok := cfg.AgentKinds[b.Kind]; !ok {
			return fmt.Errorf("import snapshot: block %d: %w %q", b.ID, ErrUnknownAgentKind, b.Kind)
		}
		fresh.blocks[b.ID] = b
		// An orphaned block keeps its position but does not claim the tile.
		if b.Orphan == 0 {
			t, ok := fresh.graph.At(b.Pos)
			switch {
			case !ok:
				return fmt.Errorf("import snapshot: block %d at %v: %w", b.ID, b.Pos, ErrOutOfBounds)
			case t.Occupied():
				return fmt.Errorf("import snapshot: block %d at %v: %w", b.ID, b.Pos, ErrTileOccupied)
			case !t.Passable():
				return fmt.Errorf("import snapshot: block %d at %v: %w", b.ID, b.Pos, ErrImpassable)
			}
			if err := fresh.graph.SetBlock(b.Pos, b.ID); err != nil {
				return fmt.Errorf("import snapshot: block %d: %w", b.ID, err)
			}
		}
	}
	fresh.graph.ClearChanged()
	if snap.Changed {
		fresh.graph.MarkChanged()
	}
	fresh.nextBlock = grid.BlockID(snap.Counters.NextBlock)
	if fresh.nextBlock == grid.NoBlock {
		fresh.nextBlock = 1
	}
	fresh.totals = Totals{
		Spawned:   snap.Counters.Spawned,
		Consumed:  snap.Counters.Consumed,
		Killed:    snap.Counters.Killed,
		Collected: snap.Counters.Collected,
	}

	w.cfg = fresh.cfg
	w.models = fresh.models
	w.graph = fresh.graph
	w.structures = fresh.structures
	w.blocks = fresh.blocks
	w.nextBlock = fresh.nextBlock
	w.resolver = fresh.resolver
	w.totals = fresh.totals
	w.changedThisTick = false
	w.tick.Store(snap.Header.Tick + 1)
	for _, c := range w.clients {
		c.needsFull = true
	}
	return nil
}
