package world

import (
	"fmt"
	"math/rand"

	"tileworld.ai/internal/persistence/snapshot"
	"tileworld.ai/internal/sim/tile"
)

// ExportSnapshot captures the tick clock and every resource instance.
func (w *World) ExportSnapshot() snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header:          snapshot.Header{Version: snapshot.Version, WorldID: w.cfg.ID, Tick: w.tick},
		Seed:            w.cfg.Seed,
		TickDurationMs:  w.cfg.TickDurationMs,
		ChunkSize:       w.cfg.ChunkSize,
		Width:           w.Width(),
		Height:          w.Height(),
		ResourcesDigest: w.resources.Digest(),
	}
	for _, r := range w.nodes.All() {
		snap.Resources = append(snap.Resources, snapshot.ResourceV1{
			ID:          r.ID,
			DefID:       r.DefID,
			X:           r.Pos.X,
			Y:           r.Pos.Y,
			Alive:       r.Alive,
			RespawnAtMs: r.RespawnAtMs,
		})
	}
	return snap
}

// ImportSnapshot restores the tick clock and the depletion state of instances already
// placed by ReloadResources. Instances that moved or changed definition since the
// snapshot are left alive.
func (w *World) ImportSnapshot(snap snapshot.SnapshotV1) (restored int, err error) {
	if snap.Header.Version != snapshot.Version {
		return 0, fmt.Errorf("snapshot version %d not supported", snap.Header.Version)
	}
	if snap.Width != w.Width() || snap.Height != w.Height() {
		return 0, fmt.Errorf("snapshot map %dx%d does not match world %dx%d",
			snap.Width, snap.Height, w.Width(), w.Height())
	}
	if snap.TickDurationMs != 0 && snap.TickDurationMs != w.cfg.TickDurationMs {
		return 0, fmt.Errorf("snapshot tick_duration_ms %d does not match world %d",
			snap.TickDurationMs, w.cfg.TickDurationMs)
	}

	w.tick = snap.Header.Tick
	w.rng = rand.New(rand.NewSource(w.cfg.Seed ^ int64(w.tick)))
	for _, rv := range snap.Resources {
		if rv.Alive {
			continue
		}
		r, ok := w.nodes.Get(rv.ID)
		if !ok || r.DefID != rv.DefID || r.Pos != (tile.Pos{X: rv.X, Y: rv.Y}) {
			continue
		}
		w.nodeSum.mix(r)
		r.Alive = false
		r.RespawnAtMs = rv.RespawnAtMs
		w.nodeSum.mix(r)
		w.depleted[r.ID] = r
		restored++
	}
	return restored, nil
}
