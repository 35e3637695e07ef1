package tile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

var ErrBadDimensions = errors.New("tile map: width and height must be positive")

// Map is a static W×H walkability grid stored flat as y*W+x.
type Map struct {
	w, h    int
	blocked []bool
}

func NewMap(w, h int) (*Map, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w (got %dx%d)", ErrBadDimensions, w, h)
	}
	return &Map{w: w, h: h, blocked: make([]bool, w*h)}, nil
}

func (m *Map) Width() int  { return m.w }
func (m *Map) Height() int { return m.h }

func (m *Map) InBounds(p Pos) bool {
	return m != nil && p.X >= 0 && p.Y >= 0 && p.X < m.w && p.Y < m.h
}

func (m *Map) index(p Pos) int { return p.Y*m.w + p.X }

// Walkable is false for out-of-bounds tiles.
func (m *Map) Walkable(p Pos) bool {
	if !m.InBounds(p) {
		return false
	}
	return !m.blocked[m.index(p)]
}

func (m *Map) SetBlocked(p Pos, blocked bool) {
	if !m.InBounds(p) {
		return
	}
	m.blocked[m.index(p)] = blocked
}

// Clone returns an independent copy. Overlays are built on clones so the base map
// is never edited.
func (m *Map) Clone() *Map {
	out := &Map{w: m.w, h: m.h, blocked: make([]bool, len(m.blocked))}
	copy(out.blocked, m.blocked)
	return out
}

// Cells returns the grid row-major, 1 for blocked and 0 for walkable.
func (m *Map) Cells() []uint8 {
	out := make([]uint8, len(m.blocked))
	for i, b := range m.blocked {
		if b {
			out[i] = 1
		}
	}
	return out
}

func (m *Map) BlockedCount() int {
	n := 0
	for _, b := range m.blocked {
		if b {
			n++
		}
	}
	return n
}

// ParseMap reads an ASCII map: '#' is blocked, any other rune is walkable.
// Blank lines and lines starting with ';' are ignored. Rows shorter than the widest
// row are padded as walkable.
func ParseMap(r io.Reader) (*Map, error) {
	var rows []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	width := 0
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, ";") {
			continue
		}
		rows = append(rows, line)
		if len(line) > width {
			width = len(line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("tile map: %w", err)
	}
	m, err := NewMap(width, len(rows))
	if err != nil {
		return nil, err
	}
	for y, row := range rows {
		for x := 0; x < len(row); x++ {
			if row[x] == '#' {
				m.SetBlocked(Pos{X: x, Y: y}, true)
			}
		}
	}
	return m, nil
}
