package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
)

// StateDigest hashes the tick, every player in id order and the folded resource state.
// Two worlds fed the same commands produce the same digest. Resource instances are not
// walked here: nodeSum is kept current as instances deplete and respawn.
func (w *World) StateDigest() string {
	h := sha256.New()
	writeU64(h, w.tick)
	for _, p := range w.players.All() {
		writeStr(h, p.ID)
		writeI64(h, int64(p.Pos.X))
		writeI64(h, int64(p.Pos.Y))
		writeU64(h, uint64(len(p.Path)))
		if p.Action != nil {
			writeStr(h, p.Action.ResourceID)
			writeI64(h, int64(p.Action.TicksLeft))
		}
		for _, k := range p.Skills.Sorted() {
			writeStr(h, string(k))
			writeI64(h, int64(p.Skills[k]))
		}
		for _, s := range p.Inventory {
			writeStr(h, s.ItemID)
			writeI64(h, int64(s.Qty))
		}
	}
	_, _ = h.Write(w.nodeSum[:])
	return hex.EncodeToString(h.Sum(nil))
}

// nodeSum is the XOR of one hash per resource instance. Mixing an instance in twice
// removes it, so a state change is mix, mutate, mix.
type nodeSum [sha256.Size]byte

func (s *nodeSum) mix(r *ResourceInstance) {
	h := sha256.New()
	writeStr(h, r.ID)
	writeStr(h, r.DefID)
	writeI64(h, int64(r.Pos.X))
	writeI64(h, int64(r.Pos.Y))
	if r.Alive {
		writeU64(h, 1)
	} else {
		writeU64(h, 0)
	}
	writeI64(h, r.RespawnAtMs)
	var sum [sha256.Size]byte
	h.Sum(sum[:0])
	for i := range s {
		s[i] ^= sum[i]
	}
}

func writeU64(h hash.Hash, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	_, _ = h.Write(b[:])
}

func writeI64(h hash.Hash, v int64) { writeU64(h, uint64(v)) }

func writeStr(h hash.Hash, s string) {
	writeU64(h, uint64(len(s)))
	_, _ = h.Write([]byte(s))
}
