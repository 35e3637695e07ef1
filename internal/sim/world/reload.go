package world

import (
	"context"

	"tileworld.ai/internal/sim/spatial"
	"tileworld.ai/internal/sim/tile"
)

// ReloadResult summarizes one ReloadResources call.
type ReloadResult struct {
	Instances int `json:"instances"`
	Blocked   int `json:"blocked"`
	Kept      int `json:"kept_depleted"`
	Skipped   int `json:"skipped"`
}

// ReloadResources reloads the resource catalog, reads the spawn layout and rebuilds
// the instance index, the tile lookup and the collision grid from scratch. Players are
// untouched. An instance that survives with the same id and definition keeps its
// depletion timer. Spawns off the map or on an occupied tile are skipped.
//
// On a store error the current layout stays in place.
func (w *World) ReloadResources(ctx context.Context) (ReloadResult, error) {
	var res ReloadResult
	if err := w.resources.Load(ctx); err != nil {
		return res, err
	}
	spawns, err := w.resources.Spawns(ctx)
	if err != nil {
		return res, err
	}

	nodes := spatial.NewGrid[*ResourceInstance](w.cfg.ChunkSize)
	nodeAt := make(map[tile.Pos]*ResourceInstance, len(spawns))
	depleted := map[string]*ResourceInstance{}
	collision := w.base.Clone()
	var sum nodeSum

	for _, sp := range spawns {
		pos := tile.Pos{X: sp.X, Y: sp.Y}
		if !w.base.InBounds(pos) || nodeAt[pos] != nil {
			res.Skipped++
			continue
		}
		if _, dup := nodes.Get(sp.ID); dup {
			res.Skipped++
			continue
		}
		def := w.resources.GetOrFallback(sp.ResourceID)
		inst := &ResourceInstance{
			ID:    sp.ID,
			DefID: sp.ResourceID,
			Type:  def.Type,
			Pos:   pos,
			Alive: true,
		}
		if prev, ok := w.nodes.Get(sp.ID); ok && prev.DefID == sp.ResourceID && !prev.Alive {
			inst.Alive = false
			inst.RespawnAtMs = prev.RespawnAtMs
			depleted[inst.ID] = inst
			res.Kept++
		}
		nodes.Add(inst)
		nodeAt[pos] = inst
		sum.mix(inst)
		if def.Blocks() {
			collision.SetBlocked(pos, true)
			res.Blocked++
		}
		res.Instances++
	}

	w.nodes = nodes
	w.nodeAt = nodeAt
	w.depleted = depleted
	w.collision = collision
	w.nodeSum = sum
	return res, nil
}
