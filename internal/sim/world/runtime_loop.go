package world

import (
	"context"
	"encoding/json"
	"time"

	"blockmarch.dev/internal/protocol"
)

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingCmds []Command
	var pendingSnaps []snapshotRequest

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.join:
			w.handleJoin(req)
		case id := <-w.leave:
			w.handleLeave(id)
		case req := <-w.admin:
			pendingSnaps = append(pendingSnaps, req)
		case c := <-w.cmds:
			pendingCmds = append(pendingCmds, c)
		case <-ticker.C:
			w.step(pendingCmds)
			w.serveSnapshotRequests(pendingSnaps)
			pendingCmds = pendingCmds[:0]
			pendingSnaps = pendingSnaps[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

func (w *World) handleJoin(req JoinRequest) {
	if req.SessionID != "" && req.Out != nil {
		w.clients[req.SessionID] = &clientState{Out: req.Out, needsFull: true}
	}
	if req.Resp == nil {
		return
	}
	resp := JoinResponse{Welcome: protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       req.SessionID,
		WorldID:         w.cfg.ID,
		Width:           w.cfg.Width,
		Height:          w.cfg.Height,
		TickRateHz:      w.cfg.TickRateHz,
		Tick:            w.tick.Load(),
		AgentKinds:      w.AgentKinds(),
	}}
	select {
	case req.Resp <- resp:
	default:
	}
}

func (w *World) handleLeave(sessionID string) {
	delete(w.clients, sessionID)
}

// broadcastFrames sends the post-tick state to every session. Structures are
// included for sessions that have not seen them yet and after any change.
func (w *World) broadcastFrames(nowTick uint64) {
	if len(w.clients) == 0 {
		return
	}
	blocks := make([]protocol.BlockState, 0, len(w.blocks))
	for _, b := range w.sortedBlocks() {
		st := protocol.BlockState{
			ID:     uint32(b.ID),
			Kind:   b.Kind,
			Pos:    b.Pos.ToArray(),
			Prev:   b.Prev.ToArray(),
			Life:   b.Life,
			Moving: b.Moving,
		}
		for _, p := range b.Path.Tiles {
			st.Route = append(st.Route, p.ToArray())
		}
		blocks = append(blocks, st)
	}

	var full, delta []byte
	for _, c := range w.clients {
		withStructures := c.needsFull || w.changedThisTick
		if withStructures && full == nil {
			full = w.marshalFrame(nowTick, blocks, true)
		}
		if !withStructures && delta == nil {
			delta = w.marshalFrame(nowTick, blocks, false)
		}
		if withStructures {
			sendLatest(c.Out, full)
		} else {
			sendLatest(c.Out, delta)
		}
		c.needsFull = false
	}
}

func (w *World) marshalFrame(nowTick uint64, blocks []protocol.BlockState, withStructures bool) []byte {
	msg := protocol.FrameMsg{
		Type:            protocol.TypeFrame,
		ProtocolVersion: protocol.Version,
		Tick:            nowTick,
		Changed:         w.changedThisTick,
		Blocks:          blocks,
	}
	if withStructures {
		msg.Structures = []protocol.StructureState{}
		for _, s := range w.sortedStructures() {
			spec := s.Spec()
			msg.Structures = append(msg.Structures, protocol.StructureState{
				Kind:        string(spec.Kind),
				Pos:         spec.Pos.ToArray(),
				Rotation:    spec.Rotation,
				Cost:        spec.Cost,
				Impassable:  spec.Impassable,
				ExitBlocked: spec.ExitBlocked,
				Life:        spec.Life,
			})
		}
	}
	b, err := json.Marshal(msg)
	if err != nil {
		w.logf("frame marshal: %v", err)
		return nil
	}
	return b
}

func sendLatest(ch chan []byte, b []byte) {
	if b == nil {
		return
	}
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
