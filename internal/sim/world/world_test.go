package world

import (
	"context"
	"errors"
	"math/rand"
	"reflect"
	"testing"

	"tileworld.ai/internal/sim/inventory"
	"tileworld.ai/internal/sim/skills"
	"tileworld.ai/internal/sim/tile"
)

func TestNew_RejectsBadSetup(t *testing.T) {
	s := testStore(t)
	m := openMap(t, 4, 4)
	if _, err := New(Config{InventorySize: -1}, m, nil, nil); !errors.Is(err, ErrBadConfig) {
		t.Fatalf("expected ErrBadConfig, got %v", err)
	}
	w := newTestWorld(t, Config{}, m, s)
	if w.Config().ChunkSize != 16 || w.Config().InventorySize != inventory.DefaultSize {
		t.Fatalf("expected defaults, got %+v", w.Config())
	}
	if _, err := New(Config{}, nil, w.Items(), w.Resources()); err == nil {
		t.Fatalf("expected error for missing map")
	}
}

func TestAdjacentTreeScenario(t *testing.T) {
	s := testStore(t)
	spawn(t, s, "R1", "tree_basic", 6, 5)
	w := newTestWorld(t, Config{Seed: 1}, openMap(t, 16, 16), s)
	w.AddPlayer("p1", "Ann", tile.Pos{X: 5, Y: 5}, nil, nil)

	if w.Walkable(tile.Pos{X: 6, Y: 5}) {
		t.Fatalf("expected live tree tile to block")
	}
	evs := w.RequestInteract("p1", tile.Pos{X: 6, Y: 5})
	if len(evs) != 1 || evs[0].Kind != EventActionStart {
		t.Fatalf("expected immediate action_start, got %v", kinds(evs))
	}
	p := mustPlayer(t, w, "p1")
	if p.Action == nil || p.Action.TicksLeft < 4 || p.Action.TicksLeft > 6 {
		t.Fatalf("expected action with 4..6 ticks, got %+v", p.Action)
	}
	n := p.Action.TicksLeft
	if evs[0].Ticks != n || evs[0].Skill != skills.Woodcutting {
		t.Fatalf("unexpected start event %+v", evs[0])
	}

	for i := 0; i < n-1; i++ {
		if got := w.Step(); len(got) != 0 {
			t.Fatalf("step %d: expected no events, got %v", i, kinds(got))
		}
	}
	if sk, _ := w.Skills("p1"); sk[skills.Woodcutting] != 0 {
		t.Fatalf("expected no xp before the last tick, got %d", sk[skills.Woodcutting])
	}

	evs = w.Step()
	if !reflect.DeepEqual(kinds(evs), []EventKind{EventInventory, EventActionComplete}) {
		t.Fatalf("expected inv then action_complete, got %v", kinds(evs))
	}
	if evs[0].ItemID != "logs" || evs[0].Qty != 1 {
		t.Fatalf("unexpected inv event %+v", evs[0])
	}
	if evs[1].XP != 25 || evs[1].Skill != skills.Woodcutting {
		t.Fatalf("unexpected complete event %+v", evs[1])
	}
	if sk, _ := w.Skills("p1"); sk[skills.Woodcutting] != 25 {
		t.Fatalf("expected 25 xp, got %d", sk[skills.Woodcutting])
	}
	if inv, _ := w.Inventory("p1"); inv.Count("logs") != 1 {
		t.Fatalf("expected 1 logs, got %d", inv.Count("logs"))
	}
	r, _ := w.ResourceAt(tile.Pos{X: 6, Y: 5})
	if r.Alive {
		t.Fatalf("expected tree depleted")
	}
	if w.Walkable(tile.Pos{X: 6, Y: 5}) {
		t.Fatalf("expected depleted tree tile to keep blocking")
	}
	if p := mustPlayer(t, w, "p1"); p.Action != nil {
		t.Fatalf("expected idle after completion")
	}
}

func TestFullInventoryDiscardsLoot(t *testing.T) {
	s := testStore(t)
	spawn(t, s, "R1", "tree_fixed", 6, 5)
	w := newTestWorld(t, Config{InventorySize: 1}, openMap(t, 16, 16), s)
	w.AddPlayer("p1", "Ann", tile.Pos{X: 5, Y: 5}, nil, inventory.Inventory{{ItemID: "ore", Qty: 3}})

	w.RequestInteract("p1", tile.Pos{X: 6, Y: 5})
	var last []Event
	for i := 0; i < 4; i++ {
		last = w.Step()
	}
	if !reflect.DeepEqual(kinds(last), []EventKind{EventInventoryFull, EventActionComplete}) {
		t.Fatalf("expected inv_full then action_complete, got %v", kinds(last))
	}
	inv, _ := w.Inventory("p1")
	if inv.Count("logs") != 0 || inv.Count("ore") != 3 {
		t.Fatalf("expected inventory unchanged, got %+v", inv)
	}
	if sk, _ := w.Skills("p1"); sk[skills.Woodcutting] != 10 {
		t.Fatalf("expected xp awarded despite full inventory, got %d", sk[skills.Woodcutting])
	}
}

func TestWalkThenGather(t *testing.T) {
	s := testStore(t)
	spawn(t, s, "R1", "tree_fixed", 10, 5)
	w := newTestWorld(t, Config{}, openMap(t, 16, 16), s)
	w.AddPlayer("p1", "Ann", tile.Pos{X: 5, Y: 5}, nil, nil)

	if evs := w.RequestInteract("p1", tile.Pos{X: 10, Y: 5}); len(evs) != 0 {
		t.Fatalf("expected no events while walking, got %v", kinds(evs))
	}
	p := mustPlayer(t, w, "p1")
	if p.Pending == nil || p.Pending.Stand != (tile.Pos{X: 9, Y: 5}) || len(p.Path) != 4 {
		t.Fatalf("expected pending at stand (9,5) with a 4 tile path, got %+v path=%v", p.Pending, p.Path)
	}
	for i := 0; i < 3; i++ {
		if evs := w.Step(); len(evs) != 0 {
			t.Fatalf("step %d: unexpected events %v", i, kinds(evs))
		}
	}
	evs := w.Step()
	if len(evs) != 1 || evs[0].Kind != EventActionStart {
		t.Fatalf("expected action_start on arrival, got %v", kinds(evs))
	}
	p = mustPlayer(t, w, "p1")
	if p.Pos != (tile.Pos{X: 9, Y: 5}) || p.Pending != nil || len(p.Path) != 0 {
		t.Fatalf("unexpected player after arrival %+v", p)
	}
}

func TestWalledInResourceDropsPending(t *testing.T) {
	s := testStore(t)
	spawn(t, s, "R1", "tree_basic", 8, 5)
	m := openMap(t, 16, 16,
		tile.Pos{X: 7, Y: 5}, tile.Pos{X: 9, Y: 5}, tile.Pos{X: 8, Y: 4}, tile.Pos{X: 8, Y: 6})
	w := newTestWorld(t, Config{}, m, s)
	w.AddPlayer("p1", "Ann", tile.Pos{X: 6, Y: 5}, nil, nil)

	w.RequestInteract("p1", tile.Pos{X: 8, Y: 5})
	if p := mustPlayer(t, w, "p1"); p.Pending == nil {
		t.Fatalf("expected pending interaction to be stored")
	}
	if evs := w.Step(); len(evs) != 0 {
		t.Fatalf("expected no events, got %v", kinds(evs))
	}
	p := mustPlayer(t, w, "p1")
	if p.Pending != nil || p.Action != nil {
		t.Fatalf("expected pending dropped without an action, got %+v", p)
	}
}

func TestUnreachableStandDropsPendingAfterPath(t *testing.T) {
	s := testStore(t)
	spawn(t, s, "R1", "tree_basic", 10, 10)
	// A wall at x=8 cuts the map; the tree's west neighbor is walkable but out of reach.
	var wall []tile.Pos
	for y := 0; y < 16; y++ {
		wall = append(wall, tile.Pos{X: 8, Y: y})
	}
	w := newTestWorld(t, Config{}, openMap(t, 16, 16, wall...), s)
	w.AddPlayer("p1", "Ann", tile.Pos{X: 2, Y: 10}, nil, nil)

	w.RequestInteract("p1", tile.Pos{X: 10, Y: 10})
	p := mustPlayer(t, w, "p1")
	if p.Pending == nil || len(p.Path) != 0 {
		t.Fatalf("expected pending with no path, got %+v", p)
	}
	w.Step()
	if p := mustPlayer(t, w, "p1"); p.Pending != nil {
		t.Fatalf("expected pending dropped")
	}
}

func TestRequirementsGateGathering(t *testing.T) {
	s := testStore(t)
	spawn(t, s, "R1", "rock_gated", 6, 5)
	w := newTestWorld(t, Config{}, openMap(t, 16, 16), s)
	w.AddPlayer("low", "Low", tile.Pos{X: 5, Y: 5}, skills.Set{skills.Mining: 150}, nil)
	w.AddPlayer("high", "High", tile.Pos{X: 7, Y: 5}, skills.Set{skills.Mining: 200}, nil)

	if evs := w.RequestInteract("low", tile.Pos{X: 6, Y: 5}); len(evs) != 0 {
		t.Fatalf("expected level 2 miner to be refused silently, got %v", kinds(evs))
	}
	if p := mustPlayer(t, w, "low"); p.Action != nil {
		t.Fatalf("expected no action for ineligible player")
	}
	if evs := w.RequestInteract("high", tile.Pos{X: 6, Y: 5}); len(evs) != 1 {
		t.Fatalf("expected level 3 miner to start, got %v", kinds(evs))
	}
	w.Step()
	evs := w.Step()
	if len(evs) != 2 || evs[0].Kind != EventInventory || evs[0].Qty < 1 || evs[0].Qty > 3 {
		t.Fatalf("expected ore drop of 1..3, got %+v", evs)
	}
}

func TestConcurrentDepletionIsNoOp(t *testing.T) {
	s := testStore(t)
	spawn(t, s, "R1", "tree_fixed", 6, 5)
	w := newTestWorld(t, Config{}, openMap(t, 16, 16), s)
	w.AddPlayer("a", "A", tile.Pos{X: 5, Y: 5}, nil, nil)
	w.AddPlayer("b", "B", tile.Pos{X: 7, Y: 5}, nil, nil)
	w.RequestInteract("b", tile.Pos{X: 6, Y: 5})
	w.RequestInteract("a", tile.Pos{X: 6, Y: 5})

	var evs []Event
	for i := 0; i < 4; i++ {
		evs = append(evs, w.Step()...)
	}
	completes := 0
	for _, e := range evs {
		if e.PlayerID == "b" {
			t.Fatalf("expected the later finisher to get nothing, got %+v", e)
		}
		if e.Kind == EventActionComplete {
			completes++
		}
	}
	if completes != 1 {
		t.Fatalf("expected exactly one completion, got %d", completes)
	}
	if sk, _ := w.Skills("b"); sk[skills.Woodcutting] != 0 {
		t.Fatalf("expected no xp for b")
	}
	if p := mustPlayer(t, w, "b"); p.Action != nil {
		t.Fatalf("expected b idle")
	}
}

func TestRespawnUsesTickClock(t *testing.T) {
	s := testStore(t)
	spawn(t, s, "R1", "tree_fixed", 6, 5)
	w := newTestWorld(t, Config{TickDurationMs: 100}, openMap(t, 16, 16), s)
	w.AddPlayer("p1", "Ann", tile.Pos{X: 5, Y: 5}, nil, nil)
	w.RequestInteract("p1", tile.Pos{X: 6, Y: 5})
	for i := 0; i < 4; i++ {
		w.Step()
	}
	r, _ := w.Resource("R1")
	if r.Alive || r.RespawnAtMs != 400+500 {
		t.Fatalf("expected depleted until 900ms, got %+v", r)
	}
	if c := w.Counts(); c.Depleted != 1 {
		t.Fatalf("expected 1 depleted, got %+v", c)
	}
	for i := 0; i < 4; i++ {
		w.Step()
	}
	if r, _ := w.Resource("R1"); r.Alive {
		t.Fatalf("expected still depleted at tick %d", w.Tick())
	}
	w.Step()
	if r, _ := w.Resource("R1"); !r.Alive {
		t.Fatalf("expected respawn at tick %d (now=%dms)", w.Tick(), w.NowMs())
	}
	if evs := w.RequestInteract("p1", tile.Pos{X: 6, Y: 5}); len(evs) != 1 {
		t.Fatalf("expected respawned tree to be gatherable")
	}
}

func TestSetMoveTarget(t *testing.T) {
	s := testStore(t)
	spawn(t, s, "R1", "tree_fixed", 6, 5)
	w := newTestWorld(t, Config{}, openMap(t, 16, 16, tile.Pos{X: 0, Y: 9}), s)
	w.AddPlayer("p1", "Ann", tile.Pos{X: 0, Y: 0}, nil, nil)

	w.SetMoveTarget("p1", tile.Pos{X: 3, Y: 2})
	if p := mustPlayer(t, w, "p1"); len(p.Path) != 5 {
		t.Fatalf("expected 5 step path, got %v", p.Path)
	}
	w.SetMoveTarget("p1", tile.Pos{X: 0, Y: 9})
	if p := mustPlayer(t, w, "p1"); len(p.Path) != 0 {
		t.Fatalf("expected unwalkable target to clear the path, got %v", p.Path)
	}
	w.SetMoveTarget("p1", tile.Pos{X: 0, Y: 2})
	w.Step()
	w.Step()
	if p := mustPlayer(t, w, "p1"); p.Pos != (tile.Pos{X: 0, Y: 2}) || p.Path != nil {
		t.Fatalf("expected arrival at (0,2), got %+v", p)
	}

	w.AddPlayer("p2", "Bo", tile.Pos{X: 5, Y: 5}, nil, nil)
	w.RequestInteract("p2", tile.Pos{X: 6, Y: 5})
	w.SetMoveTarget("p2", tile.Pos{X: 0, Y: 0})
	if p := mustPlayer(t, w, "p2"); p.Action == nil || len(p.Path) != 0 {
		t.Fatalf("expected move ignored while acting, got %+v", p)
	}
}

func TestMoveCancelsPending(t *testing.T) {
	s := testStore(t)
	spawn(t, s, "R1", "tree_fixed", 10, 5)
	w := newTestWorld(t, Config{}, openMap(t, 16, 16), s)
	w.AddPlayer("p1", "Ann", tile.Pos{X: 5, Y: 5}, nil, nil)
	w.RequestInteract("p1", tile.Pos{X: 10, Y: 5})
	w.SetMoveTarget("p1", tile.Pos{X: 5, Y: 7})
	p := mustPlayer(t, w, "p1")
	if p.Pending != nil || len(p.Path) != 2 {
		t.Fatalf("expected the move to replace the pending interaction, got %+v", p)
	}
}

func TestPathAbortsWhenTileBecomesBlocked(t *testing.T) {
	s := testStore(t)
	w := newTestWorld(t, Config{}, openMap(t, 16, 16), s)
	w.AddPlayer("p1", "Ann", tile.Pos{X: 0, Y: 0}, nil, nil)
	w.SetMoveTarget("p1", tile.Pos{X: 5, Y: 0})
	w.Step()

	spawn(t, s, "R1", "tree_basic", 3, 0)
	if _, err := w.ReloadResources(context.Background()); err != nil {
		t.Fatalf("ReloadResources: %v", err)
	}
	w.Step()
	w.Step()
	p := mustPlayer(t, w, "p1")
	if p.Pos != (tile.Pos{X: 2, Y: 0}) || len(p.Path) != 0 {
		t.Fatalf("expected to stop at (2,0) with no path, got %+v", p)
	}
}

func TestActionAndPathNeverOverlap(t *testing.T) {
	s := testStore(t)
	rng := rand.New(rand.NewSource(99))
	n := 0
	for x := 2; x < 18; x += 4 {
		for y := 2; y < 18; y += 5 {
			n++
			def := "tree_fixed"
			if n%3 == 0 {
				def = "pool"
			}
			spawn(t, s, "R"+string(rune('A'+n)), def, x, y)
		}
	}
	w := newTestWorld(t, Config{Seed: 3}, openMap(t, 20, 20), s)
	ids := []string{"a", "b", "c"}
	for i, id := range ids {
		w.AddPlayer(id, id, tile.Pos{X: i, Y: 0}, nil, nil)
	}
	check := func(step int) {
		for _, p := range w.players.All() {
			if p.Action != nil && len(p.Path) > 0 {
				t.Fatalf("step %d: player %s has an action and a path", step, p.ID)
			}
		}
	}
	for i := 0; i < 3000; i++ {
		id := ids[rng.Intn(len(ids))]
		target := tile.Pos{X: rng.Intn(20), Y: rng.Intn(20)}
		switch rng.Intn(4) {
		case 0:
			w.SetMoveTarget(id, target)
		case 1:
			w.RequestInteract(id, target)
		default:
			w.Step()
		}
		check(i)
	}
}

func TestAddRemovePlayer(t *testing.T) {
	s := testStore(t)
	w := newTestWorld(t, Config{InventorySize: 4}, openMap(t, 8, 8), s)
	p := w.AddPlayer("p1", "Ann", tile.Pos{X: 1, Y: 1}, skills.Set{skills.Fishing: 300}, nil)
	if len(p.Inventory) != 4 {
		t.Fatalf("expected padded inventory of 4, got %d", len(p.Inventory))
	}
	w.AddPlayer("p1", "Ann", tile.Pos{X: 2, Y: 2}, nil, nil)
	if got := w.Counts().Players; got != 1 {
		t.Fatalf("expected re-add to replace, got %d players", got)
	}
	rec, ok := w.CharacterRecord("p1")
	if !ok || rec.Pos != (tile.Pos{X: 2, Y: 2}) {
		t.Fatalf("unexpected record %+v", rec)
	}
	sk, _ := w.Skills("p1")
	sk[skills.Mining] = 999
	if again, _ := w.Skills("p1"); again[skills.Mining] != 0 {
		t.Fatalf("expected Skills to return a copy")
	}
	if !w.RemovePlayer("p1") || w.RemovePlayer("p1") {
		t.Fatalf("expected remove to succeed once")
	}
	if _, ok := w.Player("p1"); ok {
		t.Fatalf("expected player gone")
	}
	if evs := w.RequestInteract("p1", tile.Pos{}); evs != nil {
		t.Fatalf("expected no-op for unknown player")
	}
}

func TestFallbackDefinition(t *testing.T) {
	s := testStore(t)
	spawn(t, s, "X1", "ghost", 3, 3)
	w := newTestWorld(t, Config{}, openMap(t, 8, 8), s)
	if !w.Walkable(tile.Pos{X: 3, Y: 3}) {
		t.Fatalf("expected unknown definition to fall back to no collision")
	}
	w.AddPlayer("p1", "Ann", tile.Pos{X: 3, Y: 4}, nil, nil)
	evs := w.RequestInteract("p1", tile.Pos{X: 3, Y: 3})
	if len(evs) != 1 || evs[0].Ticks != 1 {
		t.Fatalf("expected a one tick action, got %+v", evs)
	}
	evs = w.Step()
	if !reflect.DeepEqual(kinds(evs), []EventKind{EventActionComplete}) || evs[0].XP != 0 {
		t.Fatalf("expected bare completion, got %+v", evs)
	}
}

func TestDeterministicDigest(t *testing.T) {
	run := func() (string, []Event) {
		s := testStore(t)
		spawn(t, s, "R1", "tree_basic", 6, 5)
		spawn(t, s, "R2", "rock_gated", 2, 9)
		w := newTestWorld(t, Config{Seed: 11}, openMap(t, 16, 16), s)
		w.AddPlayer("p1", "Ann", tile.Pos{X: 0, Y: 0}, skills.Set{skills.Mining: 500}, nil)
		w.AddPlayer("p2", "Bo", tile.Pos{X: 5, Y: 5}, nil, nil)
		var evs []Event
		evs = append(evs, w.RequestInteract("p1", tile.Pos{X: 2, Y: 9})...)
		evs = append(evs, w.RequestInteract("p2", tile.Pos{X: 6, Y: 5})...)
		for i := 0; i < 40; i++ {
			evs = append(evs, w.Step()...)
		}
		return w.StateDigest(), evs
	}
	d1, e1 := run()
	d2, e2 := run()
	if d1 != d2 || !reflect.DeepEqual(e1, e2) {
		t.Fatalf("expected identical runs, got %s vs %s", d1, d2)
	}
}
