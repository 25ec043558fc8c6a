package structure

import (
	"fmt"

	"blockmarch.dev/internal/sim/grid"
)

// Base carries the attributes every variant shares and no-op hooks.
type Base struct {
	kind        Kind
	pos         grid.Point
	rotation    int
	cost        float64
	impassable  bool
	exitBlocked [4]bool // unrotated N,E,S,W
	life        int
	removable   bool
	buildOver   bool
}

func newBase(spec Spec) Base {
	removable := true
	if spec.Removable != nil {
		removable = *spec.Removable
	}
	return Base{
		kind:        spec.Kind,
		pos:         spec.Pos,
		rotation:    spec.Rotation,
		cost:        spec.Cost,
		impassable:  spec.Impassable,
		exitBlocked: spec.ExitBlocked,
		life:        spec.Life,
		removable:   removable,
		buildOver:   spec.BuildOver,
	}
}

func (b *Base) Kind() Kind             { return b.kind }
func (b *Base) Pos() grid.Point        { return b.pos }
func (b *Base) Rotation() int          { return b.rotation }
func (b *Base) Removable() bool        { return b.removable }
func (b *Base) BuildOver() bool        { return b.buildOver }
func (b *Base) TraversalCost() float64 { return b.cost }
func (b *Base) Impassable() bool       { return b.impassable }
func (b *Base) Life() int              { return b.life }

// ExitBlocked maps the world direction back into the unrotated frame.
func (b *Base) ExitBlocked(d grid.Dir) bool {
	return b.exitBlocked[d.Rotate(-b.rotation)]
}

func (b *Base) Damage(amount int) bool {
	if b.life <= 0 || amount <= 0 {
		return false
	}
	b.life -= amount
	if b.life <= 0 {
		b.life = 0
		return true
	}
	return false
}

func (b *Base) OnTickEarly(Env) {}
func (b *Base) OnTick(Env)      {}
func (b *Base) OnTickLate(Env)  {}

func (b *Base) Spec() Spec {
	removable := b.removable
	return Spec{
		Kind:        b.kind,
		Pos:         b.pos,
		Rotation:    b.rotation,
		Cost:        b.cost,
		Impassable:  b.impassable,
		ExitBlocked: b.exitBlocked,
		Life:        b.life,
		Removable:   &removable,
		BuildOver:   b.buildOver,
	}
}

// Wall is always impassable.
type Wall struct{ Base }

// Obstacle is the generic variant: cost, passability and exit gating come
// straight from its spec.
type Obstacle struct{ Base }

// Goal consumes any block standing on it at the start of a tick.
type Goal struct {
	Base
	consumed int
}

func newGoal(spec Spec) *Goal {
	spec.Impassable = false
	return &Goal{Base: newBase(spec), consumed: spec.Consumed}
}

func (g *Goal) Consumed() int { return g.consumed }

func (g *Goal) OnTickEarly(env Env) {
	id, ok := env.BlockAt(g.pos)
	if !ok {
		return
	}
	env.ConsumeBlock(id, g.pos)
	g.consumed++
}

func (g *Goal) Spec() Spec {
	s := g.Base.Spec()
	s.Consumed = g.consumed
	return s
}

// Spawner adds a block of SpawnKind onto its own tile every Interval ticks
// while the tile is free. A positive count limits the total spawned, zero
// means unlimited and -1 marks an exhausted spawner.
type Spawner struct {
	Base
	spawnKind string
	interval  int
	remaining int
	unlimited bool
	cooldown  int
}

func newSpawner(spec Spec) (*Spawner, error) {
	if spec.SpawnInterval <= 0 {
		return nil, fmt.Errorf("spawner at %v: spawn_interval must be positive", spec.Pos)
	}
	if spec.SpawnCount < -1 {
		return nil, fmt.Errorf("spawner at %v: invalid spawn_count %d", spec.Pos, spec.SpawnCount)
	}
	spec.Impassable = false
	return &Spawner{
		Base:      newBase(spec),
		spawnKind: spec.SpawnKind,
		interval:  spec.SpawnInterval,
		remaining: max(spec.SpawnCount, 0),
		unlimited: spec.SpawnCount == 0,
		cooldown:  spec.SpawnCooldown,
	}, nil
}

func (s *Spawner) Exhausted() bool { return !s.unlimited && s.remaining <= 0 }

func (s *Spawner) OnTick(env Env) {
	if s.Exhausted() {
		return
	}
	if s.cooldown > 0 {
		s.cooldown--
		return
	}
	if _, occupied := env.BlockAt(s.pos); occupied {
		// Try again next tick.
		return
	}
	if _, err := env.AddBlock(s.pos, s.spawnKind); err != nil {
		return
	}
	if !s.unlimited {
		s.remaining--
	}
	s.cooldown = s.interval - 1
}

func (s *Spawner) Spec() Spec {
	spec := s.Base.Spec()
	spec.SpawnKind = s.spawnKind
	spec.SpawnInterval = s.interval
	if !s.unlimited {
		spec.SpawnCount = s.remaining
		if s.remaining == 0 {
			// Zero would read back as unlimited.
			spec.SpawnCount = -1
		}
	}
	spec.SpawnCooldown = s.cooldown
	return spec
}

// Tower damages the closest block within Range (Manhattan) every Reload ticks.
type Tower struct {
	Base
	rng     int
	power   int
	reload  int
	counter int
}

func newTower(spec Spec) (*Tower, error) {
	if spec.Range < 0 || spec.Power < 0 || spec.Reload < 0 {
		return nil, fmt.Errorf("tower at %v: negative range/power/reload", spec.Pos)
	}
	spec.Impassable = true
	if spec.Reload == 0 {
		spec.Reload = 1
	}
	return &Tower{
		Base:    newBase(spec),
		rng:     spec.Range,
		power:   spec.Power,
		reload:  spec.Reload,
		counter: spec.ReloadCounter,
	}, nil
}

// OnTickLate fires after movement so it targets where blocks ended up.
func (t *Tower) OnTickLate(env Env) {
	if t.counter > 0 {
		t.counter--
		return
	}
	if t.power <= 0 || t.rng <= 0 {
		return
	}
	target, ok := t.pickTarget(env)
	if !ok {
		return
	}
	env.DamageBlock(target, t.power, t.pos)
	t.counter = t.reload - 1
}

func (t *Tower) pickTarget(env Env) (grid.BlockID, bool) {
	ids := env.BlocksWithin(t.pos, t.rng)
	if len(ids) == 0 {
		return grid.NoBlock, false
	}
	return ids[0], true
}

func (t *Tower) Spec() Spec {
	s := t.Base.Spec()
	s.Range = t.rng
	s.Power = t.power
	s.Reload = t.reload
	s.ReloadCounter = t.counter
	return s
}
