package world

import (
	"fmt"

	"blockmarch.dev/internal/sim/grid"
	"blockmarch.dev/internal/sim/movement"
	"blockmarch.dev/internal/sim/pathfind"
	"blockmarch.dev/internal/sim/structure"
)

// PlaceStructure places a structure, replacing an existing one only if that
// one allows building over it. An impassable structure cannot go onto a tile
// holding a block.
func (w *World) PlaceStructure(spec structure.Spec) error {
	return w.placeStructure(spec, false)
}

// LoadStructure places a structure without the build-over check. Used for
// layouts and snapshots.
func (w *World) LoadStructure(spec structure.Spec) error {
	return w.placeStructure(spec, true)
}

func (w *World) placeStructure(spec structure.Spec, force bool) error {
	tile, ok := w.graph.At(spec.Pos)
	if !ok {
		return fmt.Errorf("place %v: %w", spec.Pos, ErrOutOfBounds)
	}
	s, err := structure.New(spec)
	if err != nil {
		return fmt.Errorf("place %v: %w", spec.Pos, err)
	}
	if old := w.structures[spec.Pos]; old != nil && !force && !old.BuildOver() {
		return fmt.Errorf("place %v: %s present: %w", spec.Pos, old.Kind(), ErrTileOccupied)
	}
	if s.Impassable() && tile.Occupied() {
		return fmt.Errorf("place %v: block %d present: %w", spec.Pos, tile.Block(), ErrTileOccupied)
	}
	if old := w.structures[spec.Pos]; old != nil {
		w.audit("STRUCTURE_REPLACED", spec.Pos, string(old.Kind()), grid.NoBlock, "")
	}
	if err := w.graph.SetStructure(spec.Pos, s); err != nil {
		return err
	}
	w.structures[spec.Pos] = s
	w.audit("STRUCTURE_PLACED", spec.Pos, string(s.Kind()), grid.NoBlock, "")
	return nil
}

func (w *World) DeleteStructure(p grid.Point) error {
	if !w.graph.InBounds(p) {
		return fmt.Errorf("delete %v: %w", p, ErrOutOfBounds)
	}
	s := w.structures[p]
	if s == nil {
		return fmt.Errorf("delete %v: %w", p, ErrNoStructure)
	}
	if !s.Removable() {
		return fmt.Errorf("delete %v: %s: %w", p, s.Kind(), ErrNotRemovable)
	}
	w.removeStructure(p, "STRUCTURE_REMOVED", "")
	return nil
}

// DamageStructure applies damage and removes the structure if it dies.
func (w *World) DamageStructure(p grid.Point, amount int) (destroyed bool, err error) {
	if !w.graph.InBounds(p) {
		return false, fmt.Errorf("damage %v: %w", p, ErrOutOfBounds)
	}
	s := w.structures[p]
	if s == nil {
		return false, fmt.Errorf("damage %v: %w", p, ErrNoStructure)
	}
	if !s.Damage(amount) {
		return false, nil
	}
	w.removeStructure(p, "STRUCTURE_DESTROYED", "life")
	w.logf("structure %s at %v destroyed", s.Kind(), p)
	return true, nil
}

func (w *World) removeStructure(p grid.Point, action, reason string) {
	s := w.structures[p]
	delete(w.structures, p)
	w.graph.ClearStructure(p)
	w.audit(action, p, string(s.Kind()), grid.NoBlock, reason)
}

// AddBlock spawns a block of kind (empty means the default kind) on p and
// gives it a route right away.
func (w *World) AddBlock(p grid.Point, kind string) (grid.BlockID, error) {
	tile, ok := w.graph.At(p)
	if !ok {
		return grid.NoBlock, fmt.Errorf("spawn %v: %w", p, ErrOutOfBounds)
	}
	kind, k, err := w.kindOrDefault(kind)
	if err != nil {
		return grid.NoBlock, fmt.Errorf("spawn %v: %w", p, err)
	}
	if !tile.Passable() {
		return grid.NoBlock, fmt.Errorf("spawn %v: %w", p, ErrImpassable)
	}
	if tile.Occupied() {
		return grid.NoBlock, fmt.Errorf("spawn %v: block %d present: %w", p, tile.Block(), ErrTileOccupied)
	}
	id := w.nextBlock
	w.nextBlock++
	b := &movement.Block{ID: id, Kind: kind, Pos: p, Prev: p, Life: k.Life}
	w.blocks[id] = b
	_ = w.graph.SetBlock(p, id)
	w.repath(b)

	w.totals.Spawned++
	w.ev.spawned = append(w.ev.spawned, uint32(id))
	w.audit("BLOCK_SPAWNED", p, kind, id, "")
	return id, nil
}

func (w *World) RemoveBlock(id grid.BlockID) error {
	b := w.blocks[id]
	if b == nil {
		return fmt.Errorf("remove %d: %w", id, ErrNoBlock)
	}
	w.dropBlock(b, "BLOCK_REMOVED", "")
	return nil
}

// dropBlock deletes b and clears its tile if the tile still points at it.
func (w *World) dropBlock(b *movement.Block, action, reason string) {
	if t, ok := w.graph.At(b.Pos); ok && t.Block() == b.ID {
		w.graph.ClearBlock(b.Pos)
	}
	delete(w.blocks, b.ID)
	if action == "BLOCK_CONSUMED" {
		w.ev.consumed = append(w.ev.consumed, uint32(b.ID))
	} else {
		w.ev.removed = append(w.ev.removed, uint32(b.ID))
	}
	w.audit(action, b.Pos, b.Kind, b.ID, reason)
}

func (w *World) repath(b *movement.Block) {
	p := pathfind.FindNearest(w.graph, b.Pos, w.goalPositions(), w.modelFor(b.Kind), w.searchOptions())
	b.SetPath(p)
	if p.Code == pathfind.FailureTooManyTries {
		// Budget exhaustion is retried next tick.
		b.Stale = true
	}
	w.ev.repaths++
}

// TileInfo is a read-only view of one tile.
type TileInfo struct {
	Pos           grid.Point
	Structure     *structure.Spec
	Block         grid.BlockID
	Passable      bool
	TraversalCost float64
}

func (w *World) TileAt(p grid.Point) (TileInfo, bool) {
	t, ok := w.graph.At(p)
	if !ok {
		return TileInfo{}, false
	}
	info := TileInfo{
		Pos:           p,
		Block:         t.Block(),
		Passable:      t.Passable(),
		TraversalCost: t.TraversalCost(),
	}
	if s := w.structures[p]; s != nil {
		spec := s.Spec()
		info.Structure = &spec
	}
	return info, true
}

// BlockView is a read-only copy of a block's public state.
type BlockView struct {
	ID       grid.BlockID
	Kind     string
	Pos      grid.Point
	Prev     grid.Point
	Life     int
	Moving   bool
	Waiting  bool
	PathCode pathfind.Code
}

func viewOf(b *movement.Block) BlockView {
	return BlockView{
		ID:       b.ID,
		Kind:     b.Kind,
		Pos:      b.Pos,
		Prev:     b.Prev,
		Life:     b.Life,
		Moving:   b.Moving,
		Waiting:  b.Waiting,
		PathCode: b.Path.Code,
	}
}

func (w *World) Block(id grid.BlockID) (BlockView, bool) {
	b := w.blocks[id]
	if b == nil {
		return BlockView{}, false
	}
	return viewOf(b), true
}

// Blocks lists every block sorted by id.
func (w *World) Blocks() []BlockView {
	bs := w.sortedBlocks()
	out := make([]BlockView, len(bs))
	for i, b := range bs {
		out[i] = viewOf(b)
	}
	return out
}

// Structures lists every structure sorted by position.
func (w *World) Structures() []structure.Spec {
	ss := w.sortedStructures()
	out := make([]structure.Spec, len(ss))
	for i, s := range ss {
		out[i] = s.Spec()
	}
	return out
}

// Path returns a copy of the remaining route of block id.
func (w *World) Path(id grid.BlockID) ([]grid.Point, pathfind.Code, bool) {
	b := w.blocks[id]
	if b == nil {
		return nil, pathfind.FailureNoPath, false
	}
	p := b.Path.Clone()
	return p.Tiles, p.Code, true
}

// RoutePreview computes the route a block of kind would take from p, without
// spawning it.
func (w *World) RoutePreview(from grid.Point, kind string) (pathfind.Path, error) {
	if !w.graph.InBounds(from) {
		return pathfind.Path{}, fmt.Errorf("preview %v: %w", from, ErrOutOfBounds)
	}
	kind, _, err := w.kindOrDefault(kind)
	if err != nil {
		return pathfind.Path{}, err
	}
	return pathfind.FindNearest(w.graph, from, w.goalPositions(), w.modelFor(kind), w.searchOptions()), nil
}

// InterpolatedBlock is a render position between two ticks.
type InterpolatedBlock struct {
	ID   grid.BlockID
	Kind string
	X, Y float64
}

// Interpolate returns each block's position at fraction of the way from its
// previous tile to its current one. It does not change simulation state.
func (w *World) Interpolate(fraction float64) []InterpolatedBlock {
	bs := w.sortedBlocks()
	out := make([]InterpolatedBlock, len(bs))
	for i, b := range bs {
		x, y := b.Interpolated(fraction)
		out[i] = InterpolatedBlock{ID: b.ID, Kind: b.Kind, X: x, Y: y}
	}
	return out
}
