// Package world is the authoritative tile simulation: players, resource instances, the
// collision grid and the per-tick player state machine.
//
// A World is not safe for concurrent use. The runtime loop is its only caller.
package world

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"tileworld.ai/internal/sim/catalogs"
	"tileworld.ai/internal/sim/inventory"
	"tileworld.ai/internal/sim/skills"
	"tileworld.ai/internal/sim/spatial"
	"tileworld.ai/internal/sim/tile"
)

type World struct {
	cfg Config

	items     *catalogs.ItemRepo
	resources *catalogs.ResourceRepo
	rng       *rand.Rand

	tick uint64

	// base is the map geometry; collision is base plus block-collision resource tiles.
	// collision is replaced wholesale on reload.
	base      *tile.Map
	collision *tile.Map

	players  *spatial.Grid[*Player]
	nodes    *spatial.Grid[*ResourceInstance]
	nodeAt   map[tile.Pos]*ResourceInstance
	depleted map[string]*ResourceInstance
	// nodeSum folds every instance's state; see digest.go.
	nodeSum nodeSum
}

// New builds a world with no resource instances; call ReloadResources to place them.
func New(cfg Config, m *tile.Map, items *catalogs.ItemRepo, resources *catalogs.ResourceRepo) (*World, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if m == nil || m.Width() <= 0 || m.Height() <= 0 {
		return nil, tile.ErrBadDimensions
	}
	if items == nil || resources == nil {
		return nil, errors.New("world: item and resource repos are required")
	}
	return &World{
		cfg:       cfg,
		items:     items,
		resources: resources,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		base:      m.Clone(),
		collision: m.Clone(),
		players:   spatial.NewGrid[*Player](cfg.ChunkSize),
		nodes:     spatial.NewGrid[*ResourceInstance](cfg.ChunkSize),
		nodeAt:    map[tile.Pos]*ResourceInstance{},
		depleted:  map[string]*ResourceInstance{},
	}, nil
}

func (w *World) ID() string     { return w.cfg.ID }
func (w *World) Config() Config { return w.cfg }
func (w *World) Tick() uint64   { return w.tick }
func (w *World) Width() int     { return w.base.Width() }
func (w *World) Height() int    { return w.base.Height() }
func (w *World) NowMs() int64   { return int64(w.tick) * w.cfg.TickDurationMs }

func (w *World) Items() *catalogs.ItemRepo         { return w.items }
func (w *World) Resources() *catalogs.ResourceRepo { return w.resources }

// TerrainCells is the static map geometry, without resources, as tile.Map.Cells.
func (w *World) TerrainCells() []uint8 { return w.base.Cells() }

// Walkable reports the current collision grid, including block-collision resources.
func (w *World) Walkable(p tile.Pos) bool { return w.collision.Walkable(p) }

// AddPlayer places a player, replacing any existing player with the same id. The
// inventory is padded or truncated to the configured size.
func (w *World) AddPlayer(id, name string, spawn tile.Pos, sk skills.Set, inv inventory.Inventory) *Player {
	if old, ok := w.players.Get(id); ok {
		w.players.Remove(old.ID)
	}
	if sk == nil {
		sk = skills.Set{}
	}
	p := &Player{
		ID:        id,
		Name:      name,
		Pos:       spawn,
		Skills:    sk.Clone(),
		Inventory: inventory.Normalize(inv, w.cfg.InventorySize),
	}
	w.players.Add(p)
	return p
}

func (w *World) RemovePlayer(id string) bool {
	if _, ok := w.players.Get(id); !ok {
		return false
	}
	w.players.Remove(id)
	return true
}

// Player returns a copy of the player's state.
func (w *World) Player(id string) (Player, bool) {
	p, ok := w.players.Get(id)
	if !ok {
		return Player{}, false
	}
	out := *p
	out.Path = append([]tile.Pos(nil), p.Path...)
	out.Skills = p.Skills.Clone()
	out.Inventory = p.Inventory.Clone()
	if p.Pending != nil {
		pend := *p.Pending
		out.Pending = &pend
	}
	if p.Action != nil {
		act := *p.Action
		out.Action = &act
	}
	return out, true
}

func (w *World) Skills(id string) (skills.Set, bool) {
	p, ok := w.players.Get(id)
	if !ok {
		return nil, false
	}
	return p.Skills.Clone(), true
}

func (w *World) Inventory(id string) (inventory.Inventory, bool) {
	p, ok := w.players.Get(id)
	if !ok {
		return nil, false
	}
	return p.Inventory.Clone(), true
}

func (w *World) PlayerIDs() []string {
	all := w.players.All()
	out := make([]string, 0, len(all))
	for _, p := range all {
		out = append(out, p.ID)
	}
	return out
}

func (w *World) CharacterRecord(id string) (CharacterRecord, bool) {
	p, ok := w.players.Get(id)
	if !ok {
		return CharacterRecord{}, false
	}
	return CharacterRecord{
		ID:        p.ID,
		Name:      p.Name,
		Pos:       p.Pos,
		Skills:    p.Skills.Clone(),
		Inventory: p.Inventory.Clone(),
	}, true
}

// ResourceAt returns a copy of the instance on p.
func (w *World) ResourceAt(p tile.Pos) (ResourceInstance, bool) {
	r := w.nodeAt[p]
	if r == nil {
		return ResourceInstance{}, false
	}
	return *r, true
}

func (w *World) Resource(id string) (ResourceInstance, bool) {
	r, ok := w.nodes.Get(id)
	if !ok {
		return ResourceInstance{}, false
	}
	return *r, true
}

// DepletedIDs lists depleted resource instances in id order.
func (w *World) DepletedIDs() []string { return sortedIDs(w.depleted) }

func (w *World) Counts() Counts {
	c := Counts{
		Players:      w.players.Len(),
		Resources:    w.nodes.Len(),
		Depleted:     len(w.depleted),
		BlockedTiles: w.collision.BlockedCount(),
	}
	for _, p := range w.players.All() {
		if p.Pending != nil {
			c.Pending++
		}
		if p.Action != nil {
			c.Acting++
		}
	}
	return c
}

func (w *World) String() string {
	return fmt.Sprintf("world %s %dx%d tick=%d players=%d resources=%d",
		w.cfg.ID, w.Width(), w.Height(), w.tick, w.players.Len(), w.nodes.Len())
}

func sortedIDs[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
