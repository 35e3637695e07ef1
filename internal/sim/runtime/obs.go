package runtime

import (
	"fmt"

	"tileworld.ai/internal/protocol"
	"tileworld.ai/internal/sim/catalogs"
	"tileworld.ai/internal/sim/skills"
	"tileworld.ai/internal/sim/world"
)

func (r *Runtime) snapshotMsg(snap world.Snapshot, events []world.Event) protocol.SnapshotMsg {
	msg := protocol.SnapshotMsg{
		Type:            protocol.TypeSnapshot,
		ProtocolVersion: protocol.Version,
		Tick:            snap.Tick,
		PlayerID:        snap.Self.ID,
		Players:         make([]protocol.PlayerObs, 0, len(snap.Players)),
		Resources:       make([]protocol.ResourceObs, 0, len(snap.Resources)),
		Events:          make([]protocol.EventObs, 0, len(events)),
	}

	self := protocol.SelfObs{
		Pos:       snap.Self.Pos.ToArray(),
		Skills:    make([]protocol.SkillObs, 0, len(snap.Self.Skills)),
		Inventory: make([]protocol.SlotObs, 0, len(snap.Self.Inventory)),
	}
	for _, p := range snap.Self.Path {
		self.Path = append(self.Path, p.ToArray())
	}
	if a := snap.Self.Action; a != nil {
		self.Action = &protocol.ActionObs{
			Skill:      string(a.Skill),
			TicksLeft:  a.TicksLeft,
			TicksTotal: a.TicksTotal,
			Target:     a.Target.ToArray(),
		}
	}
	if pd := snap.Self.Pending; pd != nil {
		self.Pending = &protocol.PendingObs{At: pd.At.ToArray(), Stand: pd.Stand.ToArray()}
	}
	for _, k := range snap.Self.Skills.Sorted() {
		xp := snap.Self.Skills[k]
		self.Skills = append(self.Skills, protocol.SkillObs{Skill: string(k), XP: xp, Level: skills.LevelForXP(xp)})
	}
	for _, s := range snap.Self.Inventory {
		if s.Empty() {
			self.Inventory = append(self.Inventory, protocol.SlotObs{})
			continue
		}
		self.Inventory = append(self.Inventory, protocol.SlotObs{Item: s.ItemID, Qty: s.Qty})
	}
	msg.Self = self

	for _, p := range snap.Players {
		msg.Players = append(msg.Players, protocol.PlayerObs{
			ID:     p.ID,
			Name:   p.Name,
			Pos:    p.Pos.ToArray(),
			Moving: p.Moving,
			Acting: string(p.Acting),
		})
	}
	for _, res := range snap.Resources {
		msg.Resources = append(msg.Resources, protocol.ResourceObs{
			ID:           res.ID,
			Def:          res.DefID,
			Type:         res.Type,
			Pos:          res.Pos.ToArray(),
			Alive:        res.Alive,
			Mesh:         res.Mesh,
			DepletedMesh: res.DepletedMesh,
			Scale:        res.Scale,
			Blocks:       res.Blocks,
		})
	}
	for _, e := range events {
		msg.Events = append(msg.Events, eventObs(e, r.w.Items()))
	}
	return msg
}

func eventObs(e world.Event, items *catalogs.ItemRepo) protocol.EventObs {
	out := protocol.EventObs{
		Type:     string(e.Kind),
		Tick:     e.Tick,
		Skill:    string(e.Skill),
		XP:       e.XP,
		Ticks:    e.Ticks,
		Resource: e.ResourceID,
		Item:     e.ItemID,
		Qty:      e.Qty,
		Text:     EventText(e, items),
	}
	if e.At != nil {
		at := e.At.ToArray()
		out.At = &at
	}
	return out
}

// EventText is the chat line shown for an event, or "" when the event has none.
func EventText(e world.Event, items *catalogs.ItemRepo) string {
	switch e.Kind {
	case world.EventActionStart:
		switch e.Skill {
		case skills.Woodcutting:
			return "You swing your axe at the tree."
		case skills.Mining:
			return "You swing your pickaxe at the rock."
		case skills.Fishing:
			return "You cast out your line."
		}
		return "You start gathering."
	case world.EventActionComplete:
		if e.XP <= 0 || e.Skill == "" {
			return ""
		}
		return fmt.Sprintf("You gain %d %s XP.", e.XP, skills.DisplayName(e.Skill))
	case world.EventInventory:
		return fmt.Sprintf("You get %d %s.", e.Qty, itemName(items, e.ItemID))
	case world.EventInventoryFull:
		return fmt.Sprintf("Your inventory is too full to hold any more %s.", itemName(items, e.ItemID))
	}
	return ""
}

func itemName(items *catalogs.ItemRepo, id string) string {
	if items == nil {
		return id
	}
	return items.GetOrFallback(id).DisplayName()
}
