package log

import (
	"testing"
	"time"

	"tileworld.ai/internal/sim/runtime"
	"tileworld.ai/internal/sim/tile"
	"tileworld.ai/internal/sim/world"
)

func TestTickLogger_WriteReadAcrossHours(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir)
	clock := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }

	at := tile.Pos{X: 6, Y: 5}
	entries := []runtime.TickLogEntry{
		{Tick: 1, Joins: []runtime.RecordedJoin{{PlayerID: "c1", Name: "Ann"}}, Digest: "d1"},
		{Tick: 2, Commands: []runtime.Command{{PlayerID: "c1", Kind: runtime.CommandInteract, At: at}},
			Events: []world.Event{{Kind: world.EventActionStart, PlayerID: "c1", Tick: 1, Ticks: 4, At: &at}}, Digest: "d2"},
	}
	for _, e := range entries {
		if err := l.WriteTick(e); err != nil {
			t.Fatalf("WriteTick: %v", err)
		}
	}
	clock = clock.Add(2 * time.Minute)
	if err := l.WriteTick(runtime.TickLogEntry{Tick: 3, Leaves: []string{"c1"}, Digest: "d3"}); err != nil {
		t.Fatalf("WriteTick: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, err := EventFiles(dir)
	if err != nil || len(files) != 2 {
		t.Fatalf("expected 2 hourly files, got %v err=%v", files, err)
	}
	var got []runtime.TickLogEntry
	for _, f := range files {
		if err := ReadTicks(f, func(e runtime.TickLogEntry) bool {
			got = append(got, e)
			return true
		}); err != nil {
			t.Fatalf("ReadTicks: %v", err)
		}
	}
	if len(got) != 3 || got[0].Tick != 1 || got[2].Leaves[0] != "c1" {
		t.Fatalf("unexpected entries %+v", got)
	}
	ev := got[1].Events[0]
	if ev.Kind != world.EventActionStart || ev.At == nil || *ev.At != at {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestTickLogger_ReopenSameHourAppendsFrame(t *testing.T) {
	dir := t.TempDir()
	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, tick := range []uint64{7, 8} {
		l := NewTickLogger(dir)
		l.now = func() time.Time { return clock }
		if err := l.WriteTick(runtime.TickLogEntry{Tick: tick, Digest: "d"}); err != nil {
			t.Fatalf("WriteTick %d: %v", i, err)
		}
		if err := l.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
		if err := l.WriteTick(runtime.TickLogEntry{Tick: 99}); err == nil {
			t.Fatalf("expected write after Close to fail")
		}
	}

	files, err := EventFiles(dir)
	if err != nil || len(files) != 1 {
		t.Fatalf("expected one file for the hour, got %v err=%v", files, err)
	}
	var ticks []uint64
	if err := ReadTicks(files[0], func(e runtime.TickLogEntry) bool {
		ticks = append(ticks, e.Tick)
		return true
	}); err != nil {
		t.Fatalf("ReadTicks: %v", err)
	}
	if len(ticks) != 2 || ticks[0] != 7 || ticks[1] != 8 {
		t.Fatalf("expected ticks [7 8] across frames, got %v", ticks)
	}
}
