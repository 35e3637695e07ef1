// Package pathfind computes orthogonal tile paths on a static walkability grid.
package pathfind

import "tileworld.ai/internal/sim/tile"

// DefaultMaxExpanded bounds a single search when the caller passes a non-positive cap.
const DefaultMaxExpanded = 4096

// Grid is the walkability view the search runs on. Out-of-bounds tiles must report false.
type Grid interface {
	Walkable(p tile.Pos) bool
}

type node struct {
	pos tile.Pos
	g   int
	h   int
	seq int
}

// FindPath returns the tiles after start up to and including goal, or nil when start ==
// goal, goal is not walkable, goal is unreachable, or more than maxExpanded nodes would
// need to be expanded. A nil result is "no path", never an error.
//
// The open set is a plain slice scanned for the lowest f (ties: lowest h, then the
// earliest inserted), which is fine at tile-world scale and keeps results deterministic.
func FindPath(g Grid, start, goal tile.Pos, maxExpanded int) []tile.Pos {
	if g == nil || start == goal || !g.Walkable(goal) {
		return nil
	}
	if maxExpanded <= 0 {
		maxExpanded = DefaultMaxExpanded
	}

	open := []node{{pos: start, g: 0, h: tile.Manhattan(start, goal)}}
	gScore := map[tile.Pos]int{start: 0}
	cameFrom := map[tile.Pos]tile.Pos{}
	closed := map[tile.Pos]bool{}
	seq := 1
	expanded := 0

	for len(open) > 0 {
		bi := 0
		for i := 1; i < len(open); i++ {
			if better(open[i], open[bi]) {
				bi = i
			}
		}
		cur := open[bi]
		open[bi] = open[len(open)-1]
		open = open[:len(open)-1]

		if closed[cur.pos] {
			continue
		}
		if cur.pos == goal {
			return reconstruct(cameFrom, start, goal)
		}
		if expanded >= maxExpanded {
			return nil
		}
		expanded++
		closed[cur.pos] = true

		for _, np := range tile.Neighbors4(cur.pos) {
			if closed[np] || !g.Walkable(np) {
				continue
			}
			ng := cur.g + 1
			if prev, ok := gScore[np]; ok && ng >= prev {
				continue
			}
			gScore[np] = ng
			cameFrom[np] = cur.pos
			open = append(open, node{pos: np, g: ng, h: tile.Manhattan(np, goal), seq: seq})
			seq++
		}
	}
	return nil
}

func better(a, b node) bool {
	fa, fb := a.g+a.h, b.g+b.h
	if fa != fb {
		return fa < fb
	}
	if a.h != b.h {
		return a.h < b.h
	}
	return a.seq < b.seq
}

func reconstruct(cameFrom map[tile.Pos]tile.Pos, start, goal tile.Pos) []tile.Pos {
	var rev []tile.Pos
	for p := goal; p != start; p = cameFrom[p] {
		rev = append(rev, p)
	}
	out := make([]tile.Pos, len(rev))
	for i := range rev {
		out[i] = rev[len(rev)-1-i]
	}
	return out
}
