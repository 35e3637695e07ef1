// Package inventory implements the fixed-length slot inventory carried by every player.
package inventory

import "tileworld.ai/internal/sim/catalogs"

const DefaultSize = 28

// Slot is one inventory cell. The zero Slot is empty.
type Slot struct {
	ItemID string `json:"item,omitempty"`
	Qty    int    `json:"qty,omitempty"`
}

func (s Slot) Empty() bool { return s.ItemID == "" || s.Qty <= 0 }

type Inventory []Slot

func New(n int) Inventory {
	if n <= 0 {
		n = DefaultSize
	}
	return make(Inventory, n)
}

// Normalize returns a copy of inv with exactly n slots: padded with empty slots or
// truncated. Malformed slots (no id or non-positive qty) are cleared.
func Normalize(inv Inventory, n int) Inventory {
	out := New(n)
	for i := 0; i < len(out) && i < len(inv); i++ {
		if !inv[i].Empty() {
			out[i] = inv[i]
		}
	}
	return out
}

func (inv Inventory) Clone() Inventory {
	out := make(Inventory, len(inv))
	copy(out, inv)
	return out
}

// Count is the total quantity of itemID across all slots.
func (inv Inventory) Count(itemID string) int {
	n := 0
	for _, s := range inv {
		if !s.Empty() && s.ItemID == itemID {
			n += s.Qty
		}
	}
	return n
}

func (inv Inventory) FreeSlots() int {
	n := 0
	for _, s := range inv {
		if s.Empty() {
			n++
		}
	}
	return n
}

// Add deposits qty units of item. Non-stacking items take one empty slot per unit.
// Stacking items first top up existing slots of the same item to the per-slot limit,
// then fill empty slots. Add returns false when units remain with no room left; units
// already deposited stay.
func (inv Inventory) Add(item catalogs.ItemDef, qty int) bool {
	if qty <= 0 {
		return true
	}
	limit := item.PerSlotLimit()
	if limit <= 1 {
		for i := range inv {
			if qty == 0 {
				break
			}
			if inv[i].Empty() {
				inv[i] = Slot{ItemID: item.ID, Qty: 1}
				qty--
			}
		}
		return qty == 0
	}

	for i := range inv {
		if qty == 0 {
			return true
		}
		s := &inv[i]
		if s.Empty() || s.ItemID != item.ID || s.Qty >= limit {
			continue
		}
		n := min(limit-s.Qty, qty)
		s.Qty += n
		qty -= n
	}
	for i := range inv {
		if qty == 0 {
			return true
		}
		if !inv[i].Empty() {
			continue
		}
		n := min(limit, qty)
		inv[i] = Slot{ItemID: item.ID, Qty: n}
		qty -= n
	}
	return qty == 0
}
