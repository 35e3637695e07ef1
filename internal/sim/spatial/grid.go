// Package spatial buckets entities by fixed-size square chunks of the tile grid so
// neighborhood queries touch a constant number of buckets regardless of world size.
package spatial

import (
	"sort"

	"tileworld.ai/internal/sim/tile"
)

const DefaultChunkSize = 16

// Entity is anything with a stable id and a tile position.
type Entity interface {
	SpatialID() string
	SpatialPos() tile.Pos
}

type ChunkKey struct {
	CX int
	CY int
}

// Grid maps id -> entity, id -> chunk and chunk -> ids. An id is in exactly one bucket.
// Not safe for concurrent use; the owner serializes access.
type Grid[T Entity] struct {
	chunkSize int

	items   map[string]T
	chunkOf map[string]ChunkKey
	buckets map[ChunkKey]map[string]struct{}
}

func NewGrid[T Entity](chunkSize int) *Grid[T] {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Grid[T]{
		chunkSize: chunkSize,
		items:     map[string]T{},
		chunkOf:   map[string]ChunkKey{},
		buckets:   map[ChunkKey]map[string]struct{}{},
	}
}

func (g *Grid[T]) ChunkSize() int { return g.chunkSize }

func (g *Grid[T]) KeyFor(p tile.Pos) ChunkKey {
	return ChunkKey{CX: tile.FloorDiv(p.X, g.chunkSize), CY: tile.FloorDiv(p.Y, g.chunkSize)}
}

// Add inserts e. Adding an id that is already present behaves like Update.
func (g *Grid[T]) Add(e T) {
	id := e.SpatialID()
	if _, ok := g.items[id]; ok {
		g.Update(e)
		return
	}
	k := g.KeyFor(e.SpatialPos())
	g.items[id] = e
	g.chunkOf[id] = k
	g.bucket(k)[id] = struct{}{}
}

func (g *Grid[T]) Remove(id string) {
	k, ok := g.chunkOf[id]
	if !ok {
		return
	}
	g.dropFromBucket(k, id)
	delete(g.chunkOf, id)
	delete(g.items, id)
}

// Update refreshes the stored entity and moves it between buckets only when its chunk
// changed. It reports whether a bucket move happened. Unknown ids are ignored.
func (g *Grid[T]) Update(e T) bool {
	id := e.SpatialID()
	old, ok := g.chunkOf[id]
	if !ok {
		return false
	}
	g.items[id] = e
	k := g.KeyFor(e.SpatialPos())
	if k == old {
		return false
	}
	g.dropFromBucket(old, id)
	g.bucket(k)[id] = struct{}{}
	g.chunkOf[id] = k
	return true
}

func (g *Grid[T]) Get(id string) (T, bool) {
	e, ok := g.items[id]
	return e, ok
}

func (g *Grid[T]) Len() int { return len(g.items) }

func (g *Grid[T]) ChunkOf(id string) (ChunkKey, bool) {
	k, ok := g.chunkOf[id]
	return k, ok
}

// BucketIDs returns the ids stored in one chunk, sorted.
func (g *Grid[T]) BucketIDs(k ChunkKey) []string {
	b := g.buckets[k]
	out := make([]string, 0, len(b))
	for id := range b {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (g *Grid[T]) BucketCount() int { return len(g.buckets) }

// All returns every entity sorted by id.
func (g *Grid[T]) All() []T {
	ids := make([]string, 0, len(g.items))
	for id := range g.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.items[id])
	}
	return out
}

// QueryViewRect returns the entities in the 3×3 block of chunks centered on the chunk
// containing p, sorted by id.
func (g *Grid[T]) QueryViewRect(p tile.Pos) []T {
	c := g.KeyFor(p)
	var ids []string
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			for id := range g.buckets[ChunkKey{CX: c.CX + dx, CY: c.CY + dy}] {
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.items[id])
	}
	return out
}

func (g *Grid[T]) Clear() {
	g.items = map[string]T{}
	g.chunkOf = map[string]ChunkKey{}
	g.buckets = map[ChunkKey]map[string]struct{}{}
}

func (g *Grid[T]) bucket(k ChunkKey) map[string]struct{} {
	b := g.buckets[k]
	if b == nil {
		b = map[string]struct{}{}
		g.buckets[k] = b
	}
	return b
}

func (g *Grid[T]) dropFromBucket(k ChunkKey, id string) {
	b := g.buckets[k]
	if b == nil {
		return
	}
	delete(b, id)
	if len(b) == 0 {
		delete(g.buckets, k)
	}
}
