package tuning

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"blockmarch.dev/internal/protocol"
	"blockmarch.dev/internal/sim/movement"
	"blockmarch.dev/internal/sim/pathfind"
)

const (
	ModelStandard = "standard"
	ModelNoExtras = "no_extras"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz int `yaml:"tick_rate_hz"`
	Width      int `yaml:"width"`
	Height     int `yaml:"height"`

	MaxPathDistance  float64 `yaml:"max_path_distance"`
	MaxPathTries     int     `yaml:"max_path_tries"`
	ResolutionPasses int     `yaml:"resolution_passes"`

	// A block whose tile stops pointing back at it is dropped after this many ticks.
	OrphanGraceTicks   int `yaml:"orphan_grace_ticks"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`

	DefaultAgentKind string               `yaml:"default_agent_kind"`
	AgentKinds       map[string]AgentKind `yaml:"agent_kinds"`
}

type AgentKind struct {
	// CostModel is "standard", "no_extras" or an expression over distance,
	// structure_cost, crow_flies, steps and turns.
	CostModel string `yaml:"cost_model"`
	Life      int    `yaml:"life"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:    protocol.Version,
		TickRateHz:         5,
		Width:              32,
		Height:             16,
		MaxPathDistance:    pathfind.DefaultMaxDistance,
		MaxPathTries:       pathfind.DefaultMaxTries,
		ResolutionPasses:   movement.DefaultPasses,
		OrphanGraceTicks:   3,
		SnapshotEveryTicks: 3000,
		DefaultAgentKind:   "runner",
		AgentKinds: map[string]AgentKind{
			"runner": {CostModel: ModelStandard, Life: 3},
		},
	}
}

// Load reads path over Defaults; keys missing from the file keep their default.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	// agent_kinds replaces the default set rather than merging into it.
	kinds := t.AgentKinds
	t.AgentKinds = nil
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if t.AgentKinds == nil {
		t.AgentKinds = kinds
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	switch {
	case t.ProtocolVersion != protocol.Version:
		return fmt.Errorf("protocol_version %q does not match server %q", t.ProtocolVersion, protocol.Version)
	case t.TickRateHz <= 0:
		return fmt.Errorf("tick_rate_hz must be positive")
	case t.Width <= 0 || t.Height <= 0:
		return fmt.Errorf("invalid size %dx%d", t.Width, t.Height)
	case t.MaxPathDistance <= 0:
		return fmt.Errorf("max_path_distance must be positive")
	case t.MaxPathTries <= 0:
		return fmt.Errorf("max_path_tries must be positive")
	case t.ResolutionPasses <= 0:
		return fmt.Errorf("resolution_passes must be positive")
	case t.OrphanGraceTicks < 0:
		return fmt.Errorf("orphan_grace_ticks must not be negative")
	case t.SnapshotEveryTicks < 0:
		return fmt.Errorf("snapshot_every_ticks must not be negative")
	case len(t.AgentKinds) == 0:
		return fmt.Errorf("agent_kinds is empty")
	}
	if _, ok := t.AgentKinds[t.DefaultAgentKind]; !ok {
		return fmt.Errorf("default_agent_kind %q is not in agent_kinds", t.DefaultAgentKind)
	}
	for name, k := range t.AgentKinds {
		if k.Life < 0 {
			return fmt.Errorf("agent kind %q: negative life", name)
		}
	}
	_, err := t.Models()
	return err
}

// Models compiles every agent kind's cost model.
func (t Tuning) Models() (map[string]pathfind.CostModel, error) {
	out := make(map[string]pathfind.CostModel, len(t.AgentKinds))
	for _, name := range t.KindNames() {
		m, err := ParseModel(t.AgentKinds[name].CostModel)
		if err != nil {
			return nil, fmt.Errorf("agent kind %q: %w", name, err)
		}
		out[name] = m
	}
	return out, nil
}

// KindNames lists agent kinds sorted by name.
func (t Tuning) KindNames() []string {
	names := make([]string, 0, len(t.AgentKinds))
	for name := range t.AgentKinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func ParseModel(src string) (pathfind.CostModel, error) {
	switch strings.ToLower(strings.TrimSpace(src)) {
	case "", ModelStandard:
		return pathfind.Standard, nil
	case ModelNoExtras:
		return pathfind.NoExtras, nil
	}
	return pathfind.CompileModel(src)
}
