package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	persistlog "tileworld.ai/internal/persistence/log"
	"tileworld.ai/internal/persistence/snapshot"
	"tileworld.ai/internal/sim/runtime"
	"tileworld.ai/internal/sim/world"
)

func main() {
	var (
		dataDir  = flag.String("data", "./data", "runtime data directory")
		worldID  = flag.String("world", "world_1", "world id")
		snapPath = flag.String("snapshot", "", "path to .snap.zst to summarize (optional)")
		fromTick = flag.Uint64("from_tick", 0, "first tick to include (inclusive)")
		toTick   = flag.Uint64("to_tick", 0, "last tick to include (inclusive, 0 = end)")
		player   = flag.String("player", "", "only count events for this player id")
		verbose  = flag.Bool("v", false, "print every event as a JSON line")
	)
	flag.Parse()

	if *snapPath != "" {
		snap, err := snapshot.ReadSnapshot(*snapPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read snapshot:", err)
			os.Exit(1)
		}
		alive := 0
		for _, r := range snap.Resources {
			if r.Alive {
				alive++
			}
		}
		fmt.Printf("snapshot v%d world=%s tick=%d seed=%d size=%dx%d resources=%d depleted=%d\n",
			snap.Header.Version, snap.Header.WorldID, snap.Header.Tick, snap.Seed, snap.Width, snap.Height,
			len(snap.Resources), len(snap.Resources)-alive)
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	files, err := persistlog.EventFiles(worldDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list events:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Println("no event logs under", worldDir)
		return
	}

	s := newSummary(*fromTick, *toTick, *player)
	for _, f := range files {
		err := persistlog.ReadTicks(f, func(e runtime.TickLogEntry) bool {
			if !s.inRange(e.Tick) {
				return !s.pastEnd(e.Tick)
			}
			s.add(e)
			if *verbose {
				for _, ev := range e.Events {
					if s.player == "" || ev.PlayerID == s.player {
						b, _ := json.Marshal(ev)
						fmt.Println(string(b))
					}
				}
			}
			return true
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", filepath.Base(f), err)
			os.Exit(1)
		}
	}
	s.print()
}

// summary aggregates tick log entries: tick coverage, session churn, event counts and
// per player gains.
type summary struct {
	from, to uint64
	player   string

	ticks      int
	first      uint64
	last       uint64
	gaps       int
	reloads    int
	joins      int
	leaves     int
	commands   int
	lastDigest string

	byKind map[world.EventKind]int
	xp     map[string]map[string]int
	items  map[string]map[string]int
}

func newSummary(from, to uint64, player string) *summary {
	return &summary{
		from:   from,
		to:     to,
		player: player,
		byKind: map[world.EventKind]int{},
		xp:     map[string]map[string]int{},
		items:  map[string]map[string]int{},
	}
}

func (s *summary) inRange(tick uint64) bool {
	return tick >= s.from && (s.to == 0 || tick <= s.to)
}

func (s *summary) pastEnd(tick uint64) bool {
	return s.to != 0 && tick > s.to
}

func (s *summary) add(e runtime.TickLogEntry) {
	if s.ticks == 0 {
		s.first = e.Tick
	} else if e.Tick != s.last+1 {
		s.gaps++
	}
	s.ticks++
	s.last = e.Tick
	s.lastDigest = e.Digest
	s.joins += len(e.Joins)
	s.leaves += len(e.Leaves)
	s.commands += len(e.Commands)
	if e.Reloaded {
		s.reloads++
	}
	for _, ev := range e.Events {
		if s.player != "" && ev.PlayerID != s.player {
			continue
		}
		s.byKind[ev.Kind]++
		switch ev.Kind {
		case world.EventActionComplete:
			bump(s.xp, ev.PlayerID, string(ev.Skill), ev.XP)
		case world.EventInventory:
			bump(s.items, ev.PlayerID, ev.ItemID, ev.Qty)
		}
	}
}

func bump(m map[string]map[string]int, player, key string, n int) {
	inner := m[player]
	if inner == nil {
		inner = map[string]int{}
		m[player] = inner
	}
	inner[key] += n
}

func (s *summary) print() {
	if s.ticks == 0 {
		fmt.Println("no ticks in range")
		return
	}
	fmt.Printf("ticks=%d range=[%d,%d] gaps=%d reloads=%d joins=%d leaves=%d commands=%d digest=%s\n",
		s.ticks, s.first, s.last, s.gaps, s.reloads, s.joins, s.leaves, s.commands, s.lastDigest)

	kinds := make([]string, 0, len(s.byKind))
	for k := range s.byKind {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Printf("event %s=%d\n", k, s.byKind[world.EventKind(k)])
	}
	printGains("xp", s.xp)
	printGains("items", s.items)
}

func printGains(label string, m map[string]map[string]int) {
	players := make([]string, 0, len(m))
	for p := range m {
		players = append(players, p)
	}
	sort.Strings(players)
	for _, p := range players {
		keys := make([]string, 0, len(m[p]))
		for k := range m[p] {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("%s player=%s %s=%d\n", label, p, k, m[p][k])
		}
	}
}
