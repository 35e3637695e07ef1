package world

import (
	"tileworld.ai/internal/sim/pathfind"
	"tileworld.ai/internal/sim/tile"
)

// SetMoveTarget replaces the player's path with a fresh one to dest and drops any pending
// interaction. Ignored while the player is acting. An unreachable dest leaves the player
// standing still.
func (w *World) SetMoveTarget(id string, dest tile.Pos) {
	p, ok := w.players.Get(id)
	if !ok || p.Action != nil {
		return
	}
	p.Pending = nil
	p.Path = w.findPath(p.Pos, dest)
}

// RequestInteract targets the resource instance on at. An adjacent player tries to start
// gathering at once; otherwise the player walks to the walkable neighbor of at closest to
// them and the interaction waits in Pending. Ignored while acting or when no instance is
// on at.
func (w *World) RequestInteract(id string, at tile.Pos) []Event {
	p, ok := w.players.Get(id)
	if !ok || p.Action != nil {
		return nil
	}
	inst := w.nodeAt[at]
	if inst == nil {
		return nil
	}
	p.Path = nil
	p.Pending = nil
	if tile.Adjacent(p.Pos, at) {
		return w.tryStartAction(p, inst)
	}

	stand, found := w.standTile(p.Pos, at)
	if !found {
		// Nothing to walk to; Step drops this on the next tick.
		p.Pending = &Pending{At: at, Stand: at}
		return nil
	}
	p.Pending = &Pending{At: at, Stand: stand}
	p.Path = w.findPath(p.Pos, stand)
	return nil
}

// standTile picks the walkable orthogonal neighbor of at nearest to from. Ties keep the
// fixed neighbor order.
func (w *World) standTile(from, at tile.Pos) (tile.Pos, bool) {
	best, bestD, found := tile.Pos{}, 0, false
	for _, n := range tile.Neighbors4(at) {
		if !w.collision.Walkable(n) {
			continue
		}
		d := tile.Manhattan(from, n)
		if !found || d < bestD {
			best, bestD, found = n, d, true
		}
	}
	return best, found
}

func (w *World) findPath(from, to tile.Pos) []tile.Pos {
	return pathfind.FindPath(w.collision, from, to, w.cfg.PathMaxExpanded)
}
