package protocol

// SNAPSHOT (server -> client), one per tick. Players and Resources cover the 3×3 chunk
// neighborhood of the receiving player.
type SnapshotMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	PlayerID        string `json:"player_id"`

	Self      SelfObs       `json:"self"`
	Players   []PlayerObs   `json:"players"`
	Resources []ResourceObs `json:"resources"`
	Events    []EventObs    `json:"events"`
}

type SelfObs struct {
	Pos       [2]int      `json:"pos"`
	Path      [][2]int    `json:"path,omitempty"`
	Action    *ActionObs  `json:"action,omitempty"`
	Skills    []SkillObs  `json:"skills"`
	Inventory []SlotObs   `json:"inventory"`
	Pending   *PendingObs `json:"pending,omitempty"`
}

type ActionObs struct {
	Skill      string `json:"skill"`
	TicksLeft  int    `json:"ticks_left"`
	TicksTotal int    `json:"ticks_total"`
	Target     [2]int `json:"target"`
}

type PendingObs struct {
	At    [2]int `json:"at"`
	Stand [2]int `json:"stand"`
}

type SkillObs struct {
	Skill string `json:"skill"`
	XP    int    `json:"xp"`
	Level int    `json:"level"`
}

// SlotObs is one inventory slot; an empty slot has no item.
type SlotObs struct {
	Item string `json:"item,omitempty"`
	Qty  int    `json:"qty,omitempty"`
}

type PlayerObs struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Pos    [2]int `json:"pos"`
	Moving bool   `json:"moving,omitempty"`
	Acting string `json:"acting,omitempty"`
}

type ResourceObs struct {
	ID           string  `json:"id"`
	Def          string  `json:"def"`
	Type         string  `json:"type"`
	Pos          [2]int  `json:"pos"`
	Alive        bool    `json:"alive"`
	Mesh         string  `json:"mesh,omitempty"`
	DepletedMesh string  `json:"depleted_mesh,omitempty"`
	Scale        float64 `json:"scale,omitempty"`
	Blocks       bool    `json:"blocks,omitempty"`
}

// EventObs is a gameplay event addressed to the receiving player. Text is the chat line
// a client may print verbatim.
type EventObs struct {
	Type     string  `json:"type"`
	Tick     uint64  `json:"tick"`
	Skill    string  `json:"skill,omitempty"`
	XP       int     `json:"xp,omitempty"`
	Ticks    int     `json:"ticks,omitempty"`
	Resource string  `json:"resource,omitempty"`
	At       *[2]int `json:"at,omitempty"`
	Item     string  `json:"item,omitempty"`
	Qty      int     `json:"qty,omitempty"`
	Text     string  `json:"text,omitempty"`
}
