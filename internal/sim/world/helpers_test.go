package world

import (
	"context"
	"testing"

	"tileworld.ai/internal/sim/catalogs"
	"tileworld.ai/internal/sim/skills"
	"tileworld.ai/internal/sim/tile"
)

func testStore(t *testing.T) *catalogs.MemStore {
	t.Helper()
	ctx := context.Background()
	s := catalogs.NewMemStore()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("seed store: %v", err)
		}
	}
	must(s.UpsertItemDef(ctx, catalogs.ItemDef{ID: "logs", Name: "Logs", Stackable: false}))
	must(s.UpsertItemDef(ctx, catalogs.ItemDef{ID: "ore", Name: "Copper ore", Stackable: true, StackLimit: 50}))

	logsLoot := []catalogs.LootRow{{ItemID: "logs", Min: 1, Max: 1, Weight: 1}}
	must(s.UpsertResourceDef(ctx, catalogs.ResourceDef{
		ID: "tree_basic", Type: catalogs.ResourceTree, Skill: skills.Woodcutting, XP: 25,
		TicksMin: 4, TicksMax: 6, RespawnMs: 5000, Mesh: "tree.glb", DepletedMesh: "stump.glb",
		Scale: 1, Collision: catalogs.CollisionBlock,
	}, nil, logsLoot))
	must(s.UpsertResourceDef(ctx, catalogs.ResourceDef{
		ID: "tree_fixed", Type: catalogs.ResourceTree, Skill: skills.Woodcutting, XP: 10,
		TicksMin: 4, TicksMax: 4, RespawnMs: 500, Collision: catalogs.CollisionBlock,
	}, nil, logsLoot))
	must(s.UpsertResourceDef(ctx, catalogs.ResourceDef{
		ID: "rock_gated", Type: catalogs.ResourceRock, Skill: skills.Mining, XP: 40,
		TicksMin: 2, TicksMax: 2, RespawnMs: 1000, Collision: catalogs.CollisionBlock,
	}, []catalogs.Requirement{{Skill: skills.Mining, Level: 3}},
		[]catalogs.LootRow{{ItemID: "ore", Min: 1, Max: 3, Weight: 1}}))
	must(s.UpsertResourceDef(ctx, catalogs.ResourceDef{
		ID: "pool", Type: catalogs.ResourceFishingSpot, Skill: skills.Fishing, XP: 5,
		TicksMin: 2, TicksMax: 2, RespawnMs: 0, Collision: catalogs.CollisionNone,
	}, nil, nil))
	return s
}

func spawn(t *testing.T, s *catalogs.MemStore, id, def string, x, y int) {
	t.Helper()
	if err := s.UpsertSpawn(context.Background(), catalogs.Spawn{ID: id, ResourceID: def, X: x, Y: y}); err != nil {
		t.Fatalf("UpsertSpawn: %v", err)
	}
}

func openMap(t *testing.T, w, h int, blocked ...tile.Pos) *tile.Map {
	t.Helper()
	m, err := tile.NewMap(w, h)
	if err != nil {
		t.Fatalf("NewMap: %v", err)
	}
	for _, p := range blocked {
		m.SetBlocked(p, true)
	}
	return m
}

func newTestWorld(t *testing.T, cfg Config, m *tile.Map, s *catalogs.MemStore) *World {
	t.Helper()
	w, err := New(cfg, m, catalogs.NewItemRepo(s, nil), catalogs.NewResourceRepo(s, nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := w.ReloadResources(context.Background()); err != nil {
		t.Fatalf("ReloadResources: %v", err)
	}
	return w
}

func kinds(evs []Event) []EventKind {
	out := make([]EventKind, 0, len(evs))
	for _, e := range evs {
		out = append(out, e.Kind)
	}
	return out
}

func mustPlayer(t *testing.T, w *World, id string) Player {
	t.Helper()
	p, ok := w.Player(id)
	if !ok {
		t.Fatalf("player %s missing", id)
	}
	return p
}
