package tile

// Pos is an integer tile coordinate. It is a value type and is used directly as a map key.
type Pos struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Pos) ToArray() [2]int { return [2]int{p.X, p.Y} }

func FromArray(a [2]int) Pos { return Pos{X: a[0], Y: a[1]} }

func (p Pos) Add(d Pos) Pos { return Pos{X: p.X + d.X, Y: p.Y + d.Y} }

func Manhattan(a, b Pos) int {
	return AbsInt(a.X-b.X) + AbsInt(a.Y-b.Y)
}

// Adjacent reports orthogonal adjacency (|dx|+|dy| == 1).
func Adjacent(a, b Pos) bool { return Manhattan(a, b) == 1 }

// Dirs4 is the fixed neighbor order used everywhere movement is decided.
var Dirs4 = [4]Pos{{X: 1}, {X: -1}, {Y: 1}, {Y: -1}}

func Neighbors4(p Pos) [4]Pos {
	var out [4]Pos
	for i, d := range Dirs4 {
		out[i] = p.Add(d)
	}
	return out
}

func FloorDiv(a, b int) int {
	// b > 0
	q := a / b
	r := a % b
	if r < 0 {
		q--
	}
	return q
}

func AbsInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
