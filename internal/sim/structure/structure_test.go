package structure

import (
	"errors"
	"testing"

	"blockmarch.dev/internal/sim/grid"
)

type fakeEnv struct {
	tick     uint64
	blocks   map[grid.Point]grid.BlockID
	nextID   grid.BlockID
	consumed []grid.BlockID
	damaged  map[grid.BlockID]int
	spawned  []string
}

func newFakeEnv() *fakeEnv {
	return &fakeEnv{
		blocks:  map[grid.Point]grid.BlockID{},
		damaged: map[grid.BlockID]int{},
		nextID:  1,
	}
}

func (e *fakeEnv) Tick() uint64 { return e.tick }

func (e *fakeEnv) BlockAt(p grid.Point) (grid.BlockID, bool) {
	id, ok := e.blocks[p]
	return id, ok
}

func (e *fakeEnv) BlocksWithin(center grid.Point, radius int) []grid.BlockID {
	var best []grid.BlockID
	bestDist := radius + 1
	for p, id := range e.blocks {
		d := grid.Manhattan(center, p)
		if d > radius {
			continue
		}
		switch {
		case d < bestDist:
			bestDist = d
			best = []grid.BlockID{id}
		case d == bestDist:
			best = append(best, id)
		}
	}
	for i := 1; i < len(best); i++ {
		for j := i; j > 0 && best[j] < best[j-1]; j-- {
			best[j], best[j-1] = best[j-1], best[j]
		}
	}
	return best
}

func (e *fakeEnv) AddBlock(p grid.Point, kind string) (grid.BlockID, error) {
	id := e.nextID
	e.nextID++
	e.blocks[p] = id
	e.spawned = append(e.spawned, kind)
	return id, nil
}

func (e *fakeEnv) ConsumeBlock(id grid.BlockID, by grid.Point) {
	e.consumed = append(e.consumed, id)
	for p, b := range e.blocks {
		if b == id {
			delete(e.blocks, p)
		}
	}
}

func (e *fakeEnv) DamageBlock(id grid.BlockID, amount int, by grid.Point) {
	e.damaged[id] += amount
}

func mustNew(t *testing.T, spec Spec) Structure {
	t.Helper()
	s, err := New(spec)
	if err != nil {
		t.Fatalf("New(%+v): %v", spec, err)
	}
	return s
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" tower ")
	if err != nil || k != KindTower {
		t.Fatalf("ParseKind: %q %v", k, err)
	}
	if _, err := ParseKind("moat"); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestNew_Defaults(t *testing.T) {
	w := mustNew(t, Spec{Kind: KindWall, Pos: grid.Point{X: 1, Y: 1}})
	if !w.Impassable() {
		t.Fatalf("wall must be impassable")
	}
	if !w.Removable() {
		t.Fatalf("removable should default to true")
	}
	tw := mustNew(t, Spec{Kind: KindTower, Range: 2, Power: 1})
	if !tw.Impassable() {
		t.Fatalf("tower must be impassable")
	}
	g := mustNew(t, Spec{Kind: KindGoal, Impassable: true})
	if g.Impassable() {
		t.Fatalf("goal must stay passable")
	}
	no := false
	o := mustNew(t, Spec{Kind: KindObstacle, Cost: 3, Rotation: -1, Removable: &no})
	if o.TraversalCost() != 3 || o.Rotation() != 3 || o.Removable() {
		t.Fatalf("obstacle attrs: cost=%v rot=%d removable=%v", o.TraversalCost(), o.Rotation(), o.Removable())
	}
}

func TestNew_Rejects(t *testing.T) {
	cases := []Spec{
		{Kind: "MOAT"},
		{Kind: KindObstacle, Cost: -1},
		{Kind: KindWall, Life: -2},
		{Kind: KindSpawner},
		{Kind: KindSpawner, SpawnInterval: 1, SpawnCount: -5},
		{Kind: KindTower, Range: -1},
	}
	for _, c := range cases {
		if _, err := New(c); err == nil {
			t.Fatalf("expected error for %+v", c)
		}
	}
}

func TestExitBlocked_Rotation(t *testing.T) {
	// Blocks its unrotated east exit.
	spec := Spec{Kind: KindObstacle, ExitBlocked: [4]bool{grid.East: true}}
	for rot, want := range map[int]grid.Dir{0: grid.East, 1: grid.South, 2: grid.West, 3: grid.North} {
		spec.Rotation = rot
		s := mustNew(t, spec)
		for _, d := range grid.Dirs {
			if got := s.ExitBlocked(d); got != (d == want) {
				t.Fatalf("rot=%d dir=%v blocked=%v", rot, d, got)
			}
		}
	}
}

func TestDamage(t *testing.T) {
	s := mustNew(t, Spec{Kind: KindWall, Life: 5})
	if s.Damage(3) {
		t.Fatalf("should survive 3 damage")
	}
	if !s.Damage(3) {
		t.Fatalf("should die")
	}
	if s.Life() != 0 {
		t.Fatalf("life=%d", s.Life())
	}
	indestructible := mustNew(t, Spec{Kind: KindWall})
	if indestructible.Damage(100) {
		t.Fatalf("zero-life structures never die from damage")
	}
}

func TestGoal_ConsumesBlockOnItsTile(t *testing.T) {
	env := newFakeEnv()
	g := mustNew(t, Spec{Kind: KindGoal, Pos: grid.Point{X: 2, Y: 0}})
	g.OnTickEarly(env)
	if len(env.consumed) != 0 {
		t.Fatalf("consumed without a block")
	}
	env.blocks[grid.Point{X: 2, Y: 0}] = 7
	env.blocks[grid.Point{X: 1, Y: 0}] = 8
	g.OnTickEarly(env)
	if len(env.consumed) != 1 || env.consumed[0] != 7 {
		t.Fatalf("consumed=%v", env.consumed)
	}
	if got := g.(*Goal).Consumed(); got != 1 {
		t.Fatalf("Consumed()=%d", got)
	}
	if got := g.Spec().Consumed; got != 1 {
		t.Fatalf("spec consumed=%d", got)
	}
}

func TestSpawner_IntervalAndCount(t *testing.T) {
	env := newFakeEnv()
	pos := grid.Point{X: 0, Y: 0}
	s := mustNew(t, Spec{Kind: KindSpawner, Pos: pos, SpawnKind: "runner", SpawnInterval: 2, SpawnCount: 2})
	var spawnTicks []int
	for tick := 0; tick < 10; tick++ {
		before := len(env.spawned)
		s.OnTick(env)
		if len(env.spawned) > before {
			spawnTicks = append(spawnTicks, tick)
			// Walk the block off the spawn tile.
			delete(env.blocks, pos)
		}
	}
	if len(spawnTicks) != 2 || spawnTicks[0] != 0 || spawnTicks[1] != 2 {
		t.Fatalf("spawn ticks=%v", spawnTicks)
	}
	if !s.(*Spawner).Exhausted() {
		t.Fatalf("spawner should be exhausted")
	}
	if env.spawned[0] != "runner" {
		t.Fatalf("kind=%q", env.spawned[0])
	}

	// An exhausted spawner survives a spec round trip.
	again := mustNew(t, s.Spec())
	if !again.(*Spawner).Exhausted() {
		t.Fatalf("rebuilt spawner lost exhaustion")
	}
}

func TestSpawner_WaitsForFreeTile(t *testing.T) {
	env := newFakeEnv()
	pos := grid.Point{X: 0, Y: 0}
	env.blocks[pos] = 99
	s := mustNew(t, Spec{Kind: KindSpawner, Pos: pos, SpawnInterval: 5})
	s.OnTick(env)
	if len(env.spawned) != 0 {
		t.Fatalf("spawned onto an occupied tile")
	}
	delete(env.blocks, pos)
	s.OnTick(env)
	if len(env.spawned) != 1 {
		t.Fatalf("did not spawn once the tile freed up")
	}
}

func TestTower_NearestThenLowestID(t *testing.T) {
	env := newFakeEnv()
	tw := mustNew(t, Spec{Kind: KindTower, Pos: grid.Point{X: 5, Y: 5}, Range: 3, Power: 2, Reload: 3})
	env.blocks[grid.Point{X: 5, Y: 8}] = 4 // distance 3
	env.blocks[grid.Point{X: 6, Y: 5}] = 9 // distance 1
	env.blocks[grid.Point{X: 5, Y: 4}] = 6 // distance 1
	env.blocks[grid.Point{X: 9, Y: 9}] = 1 // out of range

	for tick := 0; tick < 4; tick++ {
		tw.OnTickLate(env)
	}
	// Fires on ticks 0 and 3.
	if env.damaged[6] != 4 {
		t.Fatalf("damaged=%v", env.damaged)
	}
	if env.damaged[9] != 0 || env.damaged[1] != 0 {
		t.Fatalf("wrong targets: %v", env.damaged)
	}
}
