package world

import "tileworld.ai/internal/sim/tile"

// Step advances one tick: due resources respawn, then every player in id order either
// progresses its action or moves one tile and resolves a pending interaction on arrival.
func (w *World) Step() []Event {
	w.tick++
	w.respawnDue(w.NowMs())

	var events []Event
	for _, p := range w.players.All() {
		if p.Action != nil {
			p.Action.TicksLeft--
			if p.Action.TicksLeft <= 0 {
				act := *p.Action
				p.Action = nil
				events = append(events, w.finishAction(p, act)...)
			}
			continue
		}

		if len(p.Path) > 0 {
			next := p.Path[0]
			if w.collision.Walkable(next) && tile.Adjacent(p.Pos, next) {
				p.Pos = next
				p.Path = p.Path[1:]
				w.players.Update(p)
			} else {
				// The tile was blocked after the path was planned.
				p.Path = nil
			}
			if len(p.Path) == 0 {
				p.Path = nil
			}
		}

		if len(p.Path) == 0 && p.Pending != nil {
			pend := *p.Pending
			p.Pending = nil
			inst := w.nodeAt[pend.At]
			if inst != nil && tile.Adjacent(p.Pos, pend.At) {
				events = append(events, w.tryStartAction(p, inst)...)
			}
		}
	}
	return events
}

// respawnDue only walks the depleted set, so idle resources cost nothing per tick.
func (w *World) respawnDue(nowMs int64) {
	for _, id := range sortedIDs(w.depleted) {
		r := w.depleted[id]
		if nowMs >= r.RespawnAtMs {
			w.nodeSum.mix(r)
			r.Alive = true
			r.RespawnAtMs = 0
			w.nodeSum.mix(r)
			delete(w.depleted, id)
		}
	}
}

func (w *World) tryStartAction(p *Player, inst *ResourceInstance) []Event {
	if !inst.Alive || !w.resources.MeetsRequirements(inst.DefID, p.Skills) {
		return nil
	}
	def := w.resources.GetOrFallback(inst.DefID)
	lo, hi := def.TicksMin, def.TicksMax
	if lo < 1 {
		lo = 1
	}
	if hi < lo {
		hi = lo
	}
	ticks := lo
	if hi > lo {
		ticks = lo + w.rng.Intn(hi-lo+1)
	}

	p.Path = nil
	p.Pending = nil
	p.Action = &Action{
		Skill:      def.Skill,
		TicksLeft:  ticks,
		TicksTotal: ticks,
		Target:     inst.Pos,
		ResourceID: inst.ID,
		DefID:      inst.DefID,
	}
	at := inst.Pos
	return []Event{{
		Kind:       EventActionStart,
		PlayerID:   p.ID,
		Tick:       w.tick,
		Skill:      def.Skill,
		Ticks:      ticks,
		ResourceID: inst.ID,
		At:         &at,
	}}
}

// finishAction revalidates the target; a node depleted or replaced in the meantime ends
// the action with no effect.
func (w *World) finishAction(p *Player, act Action) []Event {
	inst, ok := w.nodes.Get(act.ResourceID)
	if !ok || !inst.Alive || inst.Pos != act.Target || inst.DefID != act.DefID {
		return nil
	}
	if !w.resources.MeetsRequirements(inst.DefID, p.Skills) {
		return nil
	}
	def := w.resources.GetOrFallback(inst.DefID)

	xp := 0
	if def.Skill != "" && def.XP > 0 {
		xp = def.XP
		p.Skills[def.Skill] += xp
	}
	w.nodeSum.mix(inst)
	inst.Alive = false
	inst.RespawnAtMs = w.NowMs() + def.RespawnMs
	w.nodeSum.mix(inst)
	w.depleted[inst.ID] = inst

	var events []Event
	if drop, ok := w.resources.RollLoot(inst.DefID, w.rng); ok {
		kind := EventInventory
		if !p.Inventory.Add(w.items.GetOrFallback(drop.ItemID), drop.Qty) {
			kind = EventInventoryFull
		}
		events = append(events, Event{Kind: kind, PlayerID: p.ID, Tick: w.tick, ItemID: drop.ItemID, Qty: drop.Qty})
	}
	at := inst.Pos
	events = append(events, Event{
		Kind:       EventActionComplete,
		PlayerID:   p.ID,
		Tick:       w.tick,
		Skill:      def.Skill,
		XP:         xp,
		ResourceID: inst.ID,
		At:         &at,
	})
	return events
}
