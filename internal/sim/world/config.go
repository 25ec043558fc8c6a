package world

import (
	"blockmarch.dev/internal/protocol"
	"blockmarch.dev/internal/sim/tuning"
)

type WorldConfig struct {
	ID         string
	TickRateHz int
	Width      int
	Height     int

	// Search budgets for every repath.
	MaxPathDistance float64
	MaxPathTries    int

	ResolutionPasses int
	OrphanGraceTicks int

	DefaultAgentKind string
	AgentKinds       map[string]tuning.AgentKind

	// Operational parameters. These are included in snapshots for deterministic resume.
	SnapshotEveryTicks int
}

// ConfigFromTuning builds a world config; the layout may override the size.
func ConfigFromTuning(id string, t tuning.Tuning) WorldConfig {
	kinds := make(map[string]tuning.AgentKind, len(t.AgentKinds))
	for name, k := range t.AgentKinds {
		kinds[name] = k
	}
	return WorldConfig{
		ID:                 id,
		TickRateHz:         t.TickRateHz,
		Width:              t.Width,
		Height:             t.Height,
		MaxPathDistance:    t.MaxPathDistance,
		MaxPathTries:       t.MaxPathTries,
		ResolutionPasses:   t.ResolutionPasses,
		OrphanGraceTicks:   t.OrphanGraceTicks,
		DefaultAgentKind:   t.DefaultAgentKind,
		AgentKinds:         kinds,
		SnapshotEveryTicks: t.SnapshotEveryTicks,
	}
}

func (c WorldConfig) tuning() tuning.Tuning {
	return tuning.Tuning{
		ProtocolVersion:    protocol.Version,
		TickRateHz:         c.TickRateHz,
		Width:              c.Width,
		Height:             c.Height,
		MaxPathDistance:    c.MaxPathDistance,
		MaxPathTries:       c.MaxPathTries,
		ResolutionPasses:   c.ResolutionPasses,
		OrphanGraceTicks:   c.OrphanGraceTicks,
		SnapshotEveryTicks: c.SnapshotEveryTicks,
		DefaultAgentKind:   c.DefaultAgentKind,
		AgentKinds:         c.AgentKinds,
	}
}
