package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
)

type hashWriter interface {
	Write(p []byte) (n int, err error)
}

// stateDigest hashes everything that influences future ticks, in a fixed order.
func (w *World) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, nowTick)
	digestWriteI64(h, &tmp, int64(w.cfg.Width))
	digestWriteI64(h, &tmp, int64(w.cfg.Height))
	h.Write([]byte{boolByte(w.graph.Changed())})

	for _, s := range w.sortedStructures() {
		spec := s.Spec()
		h.Write([]byte(spec.Kind))
		digestWriteI64(h, &tmp, int64(spec.Pos.X))
		digestWriteI64(h, &tmp, int64(spec.Pos.Y))
		digestWriteI64(h, &tmp, int64(spec.Rotation))
		digestWriteU64(h, &tmp, math.Float64bits(spec.Cost))
		h.Write([]byte{boolByte(spec.Impassable), boolByte(spec.BuildOver), boolByte(s.Removable())})
		for _, b := range spec.ExitBlocked {
			h.Write([]byte{boolByte(b)})
		}
		digestWriteI64(h, &tmp, int64(spec.Life))
		h.Write([]byte(spec.SpawnKind))
		for _, v := range []int{spec.SpawnInterval, spec.SpawnCount, spec.SpawnCooldown, spec.Range, spec.Power, spec.Reload, spec.ReloadCounter, spec.Consumed} {
			digestWriteI64(h, &tmp, int64(v))
		}
	}

	for _, b := range w.sortedBlocks() {
		digestWriteU64(h, &tmp, uint64(b.ID))
		h.Write([]byte(b.Kind))
		for _, v := range []int{b.Pos.X, b.Pos.Y, b.Prev.X, b.Prev.Y, b.Life, b.Orphan} {
			digestWriteI64(h, &tmp, int64(v))
		}
		h.Write([]byte{byte(b.Path.Code), boolByte(b.Stale)})
		digestWriteU64(h, &tmp, uint64(len(b.Path.Tiles)))
		for _, p := range b.Path.Tiles {
			digestWriteI64(h, &tmp, int64(p.X))
			digestWriteI64(h, &tmp, int64(p.Y))
		}
	}

	digestWriteU64(h, &tmp, uint64(w.nextBlock))
	digestWriteU64(h, &tmp, w.totals.Spawned)
	digestWriteU64(h, &tmp, w.totals.Consumed)
	digestWriteU64(h, &tmp, w.totals.Killed)
	digestWriteU64(h, &tmp, w.totals.Collected)

	return hex.EncodeToString(h.Sum(nil))
}

func digestWriteU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h hashWriter, tmp *[8]byte, v int64) {
	digestWriteU64(h, tmp, uint64(v))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
