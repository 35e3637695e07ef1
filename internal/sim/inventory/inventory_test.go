package inventory

import (
	"math/rand"
	"testing"

	"tileworld.ai/internal/sim/catalogs"
)

var (
	logs   = catalogs.ItemDef{ID: "logs", Stackable: false}
	arrows = catalogs.ItemDef{ID: "arrows", Stackable: true, StackLimit: 10}
	coins  = catalogs.ItemDef{ID: "coins", Stackable: true}
	single = catalogs.ItemDef{ID: "rune", Stackable: true, StackLimit: 1}
)

func TestAdd_NonStackableOnePerSlot(t *testing.T) {
	inv := New(3)
	if !inv.Add(logs, 2) {
		t.Fatalf("expected room for 2 logs")
	}
	if inv[0].Qty != 1 || inv[1].Qty != 1 || !inv[2].Empty() {
		t.Fatalf("expected one log per slot, got %+v", inv)
	}
	if inv.Add(logs, 2) {
		t.Fatalf("expected failure when slots run out")
	}
	if got := inv.Count("logs"); got != 3 {
		t.Fatalf("expected partial deposit to stay (3 logs), got %d", got)
	}
}

func TestAdd_StackLimitOneIsNonStacking(t *testing.T) {
	inv := New(2)
	inv.Add(single, 2)
	if inv[0].Qty != 1 || inv[1].Qty != 1 {
		t.Fatalf("expected split across slots, got %+v", inv)
	}
}

func TestAdd_StackableTopsUpThenSplits(t *testing.T) {
	inv := New(4)
	inv[0] = Slot{ItemID: "logs", Qty: 1}
	inv[1] = Slot{ItemID: "arrows", Qty: 7}
	if !inv.Add(arrows, 15) {
		t.Fatalf("expected 15 arrows to fit")
	}
	if inv[1].Qty != 10 {
		t.Fatalf("expected existing stack topped up to 10, got %d", inv[1].Qty)
	}
	if inv[2] != (Slot{ItemID: "arrows", Qty: 10}) || inv[3] != (Slot{ItemID: "arrows", Qty: 2}) {
		t.Fatalf("expected remainder split 10+2, got %+v", inv[2:])
	}
	if inv.Add(arrows, 1) {
		t.Fatalf("expected failure with all stacks full and no empty slot")
	}
}

func TestAdd_UnlimitedStackUsesOneSlot(t *testing.T) {
	inv := New(1)
	if !inv.Add(coins, 1_000_000) || !inv.Add(coins, 5) {
		t.Fatalf("expected unlimited stack to absorb everything")
	}
	if inv[0].Qty != 1_000_005 {
		t.Fatalf("expected 1000005 coins, got %d", inv[0].Qty)
	}
}

func TestNormalize(t *testing.T) {
	src := Inventory{{ItemID: "logs", Qty: 1}, {ItemID: "", Qty: 3}, {ItemID: "ore", Qty: 0}}
	got := Normalize(src, 5)
	if len(got) != 5 || got[0].ItemID != "logs" || !got[1].Empty() || !got[2].Empty() {
		t.Fatalf("unexpected normalize result %+v", got)
	}
	if got := Normalize(src, 1); len(got) != 1 {
		t.Fatalf("expected truncation to 1 slot, got %d", len(got))
	}
	got[0].Qty = 99
	if src[0].Qty != 1 {
		t.Fatalf("Normalize must not alias its input")
	}
}

func TestAdd_RandomSequencesKeepTotalsAndLimits(t *testing.T) {
	defs := []catalogs.ItemDef{logs, arrows, coins, single}
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 200; round++ {
		inv := New(6)
		added := map[string]int{}
		for k := 0; k < 20; k++ {
			d := defs[rng.Intn(len(defs))]
			q := 1 + rng.Intn(12)
			before := inv.Count(d.ID)
			ok := inv.Add(d, q)
			delta := inv.Count(d.ID) - before
			if ok && delta != q {
				t.Fatalf("round %d: successful add of %d %s deposited %d", round, q, d.ID, delta)
			}
			if !ok && delta >= q {
				t.Fatalf("round %d: failed add of %d %s deposited %d", round, q, d.ID, delta)
			}
			added[d.ID] += delta
		}
		for _, d := range defs {
			if got := inv.Count(d.ID); got != added[d.ID] {
				t.Fatalf("round %d: %s total %d, deposited %d", round, d.ID, got, added[d.ID])
			}
		}
		for i, s := range inv {
			if s.Empty() {
				continue
			}
			var lim int
			for _, d := range defs {
				if d.ID == s.ItemID {
					lim = d.PerSlotLimit()
				}
			}
			if s.Qty > lim {
				t.Fatalf("round %d: slot %d holds %d %s over limit %d", round, i, s.Qty, s.ItemID, lim)
			}
		}
	}
}
