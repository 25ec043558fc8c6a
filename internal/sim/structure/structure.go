package structure

import (
	"errors"
	"fmt"
	"strings"

	"blockmarch.dev/internal/sim/grid"
)

type Kind string

const (
	KindGoal     Kind = "GOAL"
	KindSpawner  Kind = "SPAWNER"
	KindTower    Kind = "TOWER"
	KindWall     Kind = "WALL"
	KindObstacle Kind = "OBSTACLE"
)

var ErrUnknownKind = errors.New("unknown structure kind")

// Env is the slice of the world a structure may touch from its tick hooks.
type Env interface {
	Tick() uint64
	BlockAt(p grid.Point) (grid.BlockID, bool)
	// BlocksWithin lists blocks within Manhattan radius, nearest first and
	// ties broken by id.
	BlocksWithin(center grid.Point, radius int) []grid.BlockID
	AddBlock(p grid.Point, kind string) (grid.BlockID, error)
	ConsumeBlock(id grid.BlockID, by grid.Point)
	DamageBlock(id grid.BlockID, amount int, by grid.Point)
}

// Structure is a placed, stationary tile occupant.
type Structure interface {
	grid.Occupant

	Kind() Kind
	Pos() grid.Point
	Rotation() int
	Removable() bool
	BuildOver() bool

	// Life is the remaining hit points; zero means indestructible.
	Life() int
	// Damage reduces life and reports whether the structure died.
	Damage(amount int) bool

	OnTickEarly(env Env)
	OnTick(env Env)
	OnTickLate(env Env)

	// Spec describes the structure, runtime state included, so it can be
	// rebuilt with New.
	Spec() Spec
}

// Spec is the serializable description of a structure, shared by layout
// files, placement commands and snapshots.
type Spec struct {
	Kind        Kind       `json:"kind"`
	Pos         grid.Point `json:"pos"`
	Rotation    int        `json:"rotation,omitempty"`
	Cost        float64    `json:"cost,omitempty"`
	Impassable  bool       `json:"impassable,omitempty"`
	ExitBlocked [4]bool    `json:"exit_blocked,omitempty"`
	Life        int        `json:"life,omitempty"`
	Removable   *bool      `json:"removable,omitempty"`
	BuildOver   bool       `json:"build_over,omitempty"`

	// Spawner.
	SpawnKind     string `json:"spawn_kind,omitempty"`
	SpawnInterval int    `json:"spawn_interval,omitempty"`
	SpawnCount    int    `json:"spawn_count,omitempty"`
	SpawnCooldown int    `json:"spawn_cooldown,omitempty"`

	// Tower.
	Range         int `json:"range,omitempty"`
	Power         int `json:"power,omitempty"`
	Reload        int `json:"reload,omitempty"`
	ReloadCounter int `json:"reload_counter,omitempty"`

	// Goal.
	Consumed int `json:"consumed,omitempty"`
}

// ParseKind accepts kinds case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	switch k {
	case KindGoal, KindSpawner, KindTower, KindWall, KindObstacle:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// New builds a structure from spec, applying per-kind defaults.
func New(spec Spec) (Structure, error) {
	kind, err := ParseKind(string(spec.Kind))
	if err != nil {
		return nil, err
	}
	spec.Kind = kind
	if spec.Cost < 0 {
		return nil, fmt.Errorf("structure %s at %v: negative cost %v", kind, spec.Pos, spec.Cost)
	}
	if spec.Life < 0 {
		return nil, fmt.Errorf("structure %s at %v: negative life %d", kind, spec.Pos, spec.Life)
	}
	spec.Rotation = normRotation(spec.Rotation)

	switch kind {
	case KindGoal:
		return newGoal(spec), nil
	case KindSpawner:
		return newSpawner(spec)
	case KindTower:
		return newTower(spec)
	case KindWall:
		spec.Impassable = true
		return &Wall{Base: newBase(spec)}, nil
	default:
		return &Obstacle{Base: newBase(spec)}, nil
	}
}

func normRotation(r int) int {
	r %= 4
	if r < 0 {
		r += 4
	}
	return r
}
