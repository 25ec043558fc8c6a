package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"strings"
	"time"

	"blockmarch.dev/internal/persistence/indexdb"
	"blockmarch.dev/internal/sim/world"
	"blockmarch.dev/internal/transport/ws"
)

type muxOptions struct {
	EnableAdmin bool
	EnablePprof bool
}

func newMux(w *world.World, idx *indexdb.SQLiteIndex, logger *log.Logger, opts muxOptions) *http.ServeMux {
	worldID := w.ID()
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeWorldMetrics(rw, worldID, w.CurrentTick(), w.Metrics())
		writeIndexMetrics(rw, worldID, idx)
	})

	if opts.EnableAdmin {
		// Local-only admin endpoints (do not affect simulation determinism).
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			resp := struct {
				WorldID string             `json:"world_id"`
				Tick    uint64             `json:"tick"`
				Width   int                `json:"width"`
				Height  int                `json:"height"`
				Kinds   []string           `json:"agent_kinds"`
				Metrics world.WorldMetrics `json:"metrics"`
			}{
				WorldID: worldID,
				Tick:    w.CurrentTick(),
				Width:   w.Width(),
				Height:  w.Height(),
				Kinds:   w.AgentKinds(),
				Metrics: w.Metrics(),
			}
			_ = json.NewEncoder(rw).Encode(resp)
		})
		mux.HandleFunc("/admin/v1/snapshot", func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			receipt, err := w.RequestSnapshot(ctx)
			rw.Header().Set("Content-Type", "application/json")
			if err != nil {
				rw.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "tick": receipt.Tick, "error": err.Error()})
				return
			}
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "snapshot": receipt})
		})
	} else {
		logger.Printf("admin endpoints disabled (BM_ENABLE_ADMIN_HTTP=false)")
	}
	if opts.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(w, logger).Handler())
	return mux
}

// writeWorldMetrics renders the minimal Prometheus exposition format.
func writeWorldMetrics(rw http.ResponseWriter, worldID string, tick uint64, m world.WorldMetrics) {
	if m.Tick != 0 {
		tick = m.Tick
	}
	gauge := func(name, help string, v any) {
		fmt.Fprintf(rw, "# HELP blockmarch_%s %s\n", name, help)
		fmt.Fprintf(rw, "# TYPE blockmarch_%s gauge\n", name)
		fmt.Fprintf(rw, "blockmarch_%s{world=%q} %v\n", name, worldID, v)
	}
	counter := func(name, help string, v uint64) {
		fmt.Fprintf(rw, "# HELP blockmarch_%s %s\n", name, help)
		fmt.Fprintf(rw, "# TYPE blockmarch_%s counter\n", name)
		fmt.Fprintf(rw, "blockmarch_%s{world=%q} %d\n", name, worldID, v)
	}

	gauge("world_tick", "Current world tick.", tick)
	gauge("world_blocks", "Blocks currently in the world.", m.Blocks)
	gauge("world_structures", "Structures currently in the world.", m.Structures)
	gauge("world_clients", "Connected websocket sessions.", m.Clients)
	gauge("world_step_ms", "Last tick step duration in milliseconds.", fmt.Sprintf("%.3f", m.StepMS))
	gauge("world_repaths", "Path searches run in the last tick.", m.Repaths)
	gauge("world_moved", "Blocks that moved in the last tick.", m.Moved)
	gauge("world_blocked", "Blocks that could not move in the last tick.", m.Blocked)
	gauge("world_deferred", "Blocks still waiting after the last pass.", m.Deferred)
	gauge("world_resolver_passes", "Resolver passes used in the last tick.", m.ResolverPasses)

	fmt.Fprintf(rw, "# HELP blockmarch_world_queue_depth Channel backlog depth.\n")
	fmt.Fprintf(rw, "# TYPE blockmarch_world_queue_depth gauge\n")
	fmt.Fprintf(rw, "blockmarch_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "commands", m.QueueDepths.Commands)
	fmt.Fprintf(rw, "blockmarch_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "join", m.QueueDepths.Join)
	fmt.Fprintf(rw, "blockmarch_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "leave", m.QueueDepths.Leave)

	counter("blocks_spawned_total", "Blocks spawned.", m.Totals.Spawned)
	counter("blocks_consumed_total", "Blocks consumed by goals.", m.Totals.Consumed)
	counter("blocks_killed_total", "Blocks killed by towers.", m.Totals.Killed)
	counter("blocks_collected_total", "Orphaned blocks garbage-collected.", m.Totals.Collected)
}

func writeIndexMetrics(rw http.ResponseWriter, worldID string, idx *indexdb.SQLiteIndex) {
	if idx == nil {
		return
	}
	s := idx.Stats()
	fmt.Fprintf(rw, "# HELP blockmarch_index_queue_depth Index writer queue depth.\n")
	fmt.Fprintf(rw, "# TYPE blockmarch_index_queue_depth gauge\n")
	fmt.Fprintf(rw, "blockmarch_index_queue_depth{world=%q} %d\n", worldID, s.QueueDepth)
	fmt.Fprintf(rw, "# HELP blockmarch_index_dropped_total Index writes dropped on backpressure.\n")
	fmt.Fprintf(rw, "# TYPE blockmarch_index_dropped_total counter\n")
	fmt.Fprintf(rw, "blockmarch_index_dropped_total{world=%q,kind=%q} %d\n", worldID, "tick", s.DropTickTotal)
	fmt.Fprintf(rw, "blockmarch_index_dropped_total{world=%q,kind=%q} %d\n", worldID, "audit", s.DropAuditTotal)
	fmt.Fprintf(rw, "blockmarch_index_dropped_total{world=%q,kind=%q} %d\n", worldID, "snapshot", s.DropSnapshotTotal)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
