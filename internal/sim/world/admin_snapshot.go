package world

import (
	"context"
	"errors"
)

var (
	ErrSnapshotUnavailable  = errors.New("snapshot requests not available")
	ErrNoSnapshotSink       = errors.New("snapshot sink not configured")
	ErrSnapshotBackpressure = errors.New("snapshot sink full")
)

// SnapshotReceipt describes a snapshot handed to the sink.
type SnapshotReceipt struct {
	Tick       uint64 `json:"tick"`
	Blocks     int    `json:"blocks"`
	Structures int    `json:"structures"`
}

type snapshotRequest struct {
	reply chan snapshotReply
}

type snapshotReply struct {
	receipt SnapshotReceipt
	err     error
}

// RequestSnapshot asks the loop to export the last finished tick to the
// snapshot sink. Safe to call from any goroutine while Run is active.
func (w *World) RequestSnapshot(ctx context.Context) (SnapshotReceipt, error) {
	if w == nil || w.admin == nil {
		return SnapshotReceipt{}, ErrSnapshotUnavailable
	}
	reply := make(chan snapshotReply, 1)
	select {
	case w.admin <- snapshotRequest{reply: reply}:
	case <-ctx.Done():
		return SnapshotReceipt{}, ctx.Err()
	}
	select {
	case r := <-reply:
		return r.receipt, r.err
	case <-ctx.Done():
		return SnapshotReceipt{}, ctx.Err()
	}
}

// serveSnapshotRequests runs between steps; all pending requests share one export.
func (w *World) serveSnapshotRequests(reqs []snapshotRequest) {
	if len(reqs) == 0 {
		return
	}
	var rep snapshotReply
	if cur := w.tick.Load(); cur > 0 {
		rep.receipt.Tick = cur - 1
	}
	rep.receipt.Blocks = len(w.blocks)
	rep.receipt.Structures = len(w.structures)

	if w.snapshotSink == nil {
		rep.err = ErrNoSnapshotSink
	} else {
		select {
		case w.snapshotSink <- w.ExportSnapshot(rep.receipt.Tick):
		default:
			rep.err = ErrSnapshotBackpressure
		}
	}
	for _, r := range reqs {
		select {
		case r.reply <- rep:
		default:
		}
	}
}
