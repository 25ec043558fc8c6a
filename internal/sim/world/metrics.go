package world

import "time"

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	Blocks     int `json:"blocks"`
	Structures int `json:"structures"`
	Clients    int `json:"clients"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`

	Changed        bool `json:"changed"`
	Repaths        int  `json:"repaths"`
	Moved          int  `json:"moved"`
	Blocked        int  `json:"blocked"`
	Deferred       int  `json:"deferred"`
	ResolverPasses int  `json:"resolver_passes"`

	Totals Totals `json:"totals"`
}

type QueueDepths struct {
	Commands int `json:"commands"`
	Join     int `json:"join"`
	Leave    int `json:"leave"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}

func (w *World) updateMetrics(nowTick uint64, took time.Duration) {
	st := w.ev.stats
	w.metrics.Store(WorldMetrics{
		Tick:       nowTick,
		Blocks:     len(w.blocks),
		Structures: len(w.structures),
		Clients:    len(w.clients),
		QueueDepths: QueueDepths{
			Commands: len(w.cmds),
			Join:     len(w.join),
			Leave:    len(w.leave),
		},
		StepMS:         float64(took.Microseconds()) / 1000,
		Changed:        w.changedThisTick,
		Repaths:        w.ev.repaths,
		Moved:          st.Moved,
		Blocked:        st.Blocked,
		Deferred:       st.Deferred,
		ResolverPasses: st.Passes,
		Totals:         w.totals,
	})
}
