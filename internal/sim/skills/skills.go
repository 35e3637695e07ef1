package skills

import "sort"

type Skill string

const (
	Woodcutting Skill = "woodcutting"
	Mining      Skill = "mining"
	Fishing     Skill = "fishing"
)

// XPPerLevel is shared with clients through WELCOME so both sides compute levels alike.
const XPPerLevel = 100

// LevelForXP is strictly increasing in steps of XPPerLevel; level 1 at 0 xp.
func LevelForXP(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return xp/XPPerLevel + 1
}

func DisplayName(s Skill) string {
	switch s {
	case Woodcutting:
		return "Woodcutting"
	case Mining:
		return "Mining"
	case Fishing:
		return "Fishing"
	case "":
		return ""
	default:
		b := []byte(s)
		if b[0] >= 'a' && b[0] <= 'z' {
			b[0] -= 'a' - 'A'
		}
		return string(b)
	}
}

// Set holds per-skill experience totals. A missing skill has 0 xp.
type Set map[Skill]int

func (s Set) XP(k Skill) int { return s[k] }

func (s Set) Level(k Skill) int { return LevelForXP(s[k]) }

func (s Set) Clone() Set {
	out := make(Set, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

func (s Set) Sorted() []Skill {
	out := make([]Skill, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
