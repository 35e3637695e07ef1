package snapshot

import (
	"path/filepath"
	"testing"
)

func TestWriteReadSnapshot(t *testing.T) {
	dir := t.TempDir()
	in := SnapshotV1{
		Header:         Header{Version: Version, WorldID: "w1", Tick: 120},
		Seed:           42,
		TickDurationMs: 100,
		ChunkSize:      16,
		Width:          64,
		Height:         48,
		Resources: []ResourceV1{
			{ID: "R1", DefID: "tree_basic", X: 6, Y: 5, Alive: false, RespawnAtMs: 17000},
			{ID: "R2", DefID: "rock_copper", X: 9, Y: 2, Alive: true},
		},
	}
	path := Path(dir, in.Header.Tick)
	if err := WriteSnapshot(path, in); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	out, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if out.Header != in.Header || out.Width != 64 || len(out.Resources) != 2 {
		t.Fatalf("unexpected snapshot %+v", out)
	}
	if out.Resources[0] != in.Resources[0] {
		t.Fatalf("expected %+v, got %+v", in.Resources[0], out.Resources[0])
	}
	h, err := ReadHeader(path)
	if err != nil || h.Tick != 120 || h.WorldID != "w1" {
		t.Fatalf("unexpected header %+v err=%v", h, err)
	}
}

func TestLatest(t *testing.T) {
	dir := t.TempDir()
	if p, err := Latest(filepath.Join(dir, "missing")); err != nil || p != "" {
		t.Fatalf("expected empty result for missing dir, got %q err=%v", p, err)
	}
	for _, tick := range []uint64{30, 3000, 300} {
		snap := SnapshotV1{Header: Header{Version: Version, Tick: tick}}
		if err := WriteSnapshot(Path(dir, tick), snap); err != nil {
			t.Fatalf("WriteSnapshot: %v", err)
		}
	}
	p, err := Latest(dir)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if p != Path(dir, 3000) {
		t.Fatalf("expected tick 3000 snapshot, got %s", p)
	}
}

func TestReadSnapshot_RejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.snap.zst")
	if err := WriteSnapshot(path, SnapshotV1{Header: Header{Version: 9}}); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	if _, err := ReadSnapshot(path); err == nil {
		t.Fatalf("expected version error")
	}
}
