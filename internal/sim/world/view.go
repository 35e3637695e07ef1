package world

import (
	"tileworld.ai/internal/sim/inventory"
	"tileworld.ai/internal/sim/skills"
	"tileworld.ai/internal/sim/tile"
)

// Snapshot is one viewer's picture of the world: itself in full, and the players and
// resources in the 3×3 chunk neighborhood around it.
type Snapshot struct {
	Tick      uint64         `json:"tick"`
	Self      SelfView       `json:"self"`
	Players   []PlayerView   `json:"players"`
	Resources []ResourceView `json:"resources"`
}

type SelfView struct {
	ID        string              `json:"id"`
	Pos       tile.Pos            `json:"pos"`
	Path      []tile.Pos          `json:"path,omitempty"`
	Pending   *Pending            `json:"pending,omitempty"`
	Action    *Action             `json:"action,omitempty"`
	Skills    skills.Set          `json:"skills"`
	Inventory inventory.Inventory `json:"inventory"`
}

type PlayerView struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Pos    tile.Pos     `json:"pos"`
	Moving bool         `json:"moving,omitempty"`
	Acting skills.Skill `json:"acting,omitempty"`
}

// ResourceView carries the definition's visuals so clients need no catalog lookup.
type ResourceView struct {
	ID           string   `json:"id"`
	DefID        string   `json:"def_id"`
	Type         string   `json:"type"`
	Pos          tile.Pos `json:"pos"`
	Alive        bool     `json:"alive"`
	Mesh         string   `json:"mesh,omitempty"`
	DepletedMesh string   `json:"depleted_mesh,omitempty"`
	Scale        float64  `json:"scale,omitempty"`
	Blocks       bool     `json:"blocks,omitempty"`
}

func (w *World) SnapshotFor(viewerID string) (Snapshot, bool) {
	me, ok := w.Player(viewerID)
	if !ok {
		return Snapshot{}, false
	}
	snap := Snapshot{
		Tick: w.tick,
		Self: SelfView{
			ID:        me.ID,
			Pos:       me.Pos,
			Path:      me.Path,
			Pending:   me.Pending,
			Action:    me.Action,
			Skills:    me.Skills,
			Inventory: me.Inventory,
		},
	}

	for _, p := range w.players.QueryViewRect(me.Pos) {
		pv := PlayerView{ID: p.ID, Name: p.Name, Pos: p.Pos, Moving: len(p.Path) > 0}
		if p.Action != nil {
			pv.Acting = p.Action.Skill
		}
		snap.Players = append(snap.Players, pv)
	}
	for _, r := range w.nodes.QueryViewRect(me.Pos) {
		def := w.resources.GetOrFallback(r.DefID)
		snap.Resources = append(snap.Resources, ResourceView{
			ID:           r.ID,
			DefID:        r.DefID,
			Type:         string(r.Type),
			Pos:          r.Pos,
			Alive:        r.Alive,
			Mesh:         def.Mesh,
			DepletedMesh: def.DepletedMesh,
			Scale:        def.Scale,
			Blocks:       def.Blocks(),
		})
	}
	return snap, true
}
