package tile

import (
	"errors"
	"strings"
	"testing"
)

func TestNewMap_RejectsBadDimensions(t *testing.T) {
	if _, err := NewMap(0, 4); !errors.Is(err, ErrBadDimensions) {
		t.Fatalf("expected ErrBadDimensions, got %v", err)
	}
	if _, err := NewMap(4, -1); !errors.Is(err, ErrBadDimensions) {
		t.Fatalf("expected ErrBadDimensions, got %v", err)
	}
}

func TestMap_WalkableBounds(t *testing.T) {
	m, err := NewMap(3, 2)
	if err != nil {
		t.Fatalf("NewMap: %v", err)
	}
	if !m.Walkable(Pos{X: 2, Y: 1}) {
		t.Fatalf("expected corner to be walkable")
	}
	for _, p := range []Pos{{X: -1}, {X: 3}, {Y: 2}, {X: 0, Y: -1}} {
		if m.Walkable(p) {
			t.Fatalf("expected %v out of bounds to be unwalkable", p)
		}
	}
	m.SetBlocked(Pos{X: 1, Y: 1}, true)
	if m.Walkable(Pos{X: 1, Y: 1}) {
		t.Fatalf("expected blocked tile")
	}
}

func TestMap_CloneIsIndependent(t *testing.T) {
	m, _ := NewMap(2, 2)
	c := m.Clone()
	c.SetBlocked(Pos{X: 0, Y: 0}, true)
	if !m.Walkable(Pos{X: 0, Y: 0}) {
		t.Fatalf("clone edit leaked into base map")
	}
	if c.BlockedCount() != 1 {
		t.Fatalf("expected 1 blocked tile in clone, got %d", c.BlockedCount())
	}
}

func TestParseMap(t *testing.T) {
	src := "; test map\n" +
		"..#.\n" +
		"\n" +
		"##\n"
	m, err := ParseMap(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ParseMap: %v", err)
	}
	if m.Width() != 4 || m.Height() != 2 {
		t.Fatalf("expected 4x2, got %dx%d", m.Width(), m.Height())
	}
	if m.Walkable(Pos{X: 2, Y: 0}) || m.Walkable(Pos{X: 1, Y: 1}) {
		t.Fatalf("expected '#' tiles to be blocked")
	}
	if !m.Walkable(Pos{X: 3, Y: 1}) {
		t.Fatalf("expected padded tile to be walkable")
	}
	want := []uint8{0, 0, 1, 0, 1, 1, 0, 0}
	got := m.Cells()
	if len(got) != len(want) {
		t.Fatalf("expected %d cells, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("cell %d: expected %d, got %d", i, want[i], got[i])
		}
	}
}

func TestFloorDiv(t *testing.T) {
	cases := []struct{ a, b, want int }{
		{0, 16, 0}, {15, 16, 0}, {16, 16, 1}, {-1, 16, -1}, {-16, 16, -1}, {-17, 16, -2},
	}
	for _, c := range cases {
		if got := FloorDiv(c.a, c.b); got != c.want {
			t.Fatalf("FloorDiv(%d,%d): expected %d, got %d", c.a, c.b, c.want, got)
		}
	}
}
