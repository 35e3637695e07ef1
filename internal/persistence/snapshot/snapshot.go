// Package snapshot stores world snapshots as a JSON header line followed by a gob body,
// all zstd-compressed.
package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
}

// SnapshotV1 captures what the character store does not: the tick clock and resource
// depletion state. Players are persisted per character.
type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed           int64 `json:"seed"`
	TickDurationMs int64 `json:"tick_duration_ms"`
	ChunkSize      int   `json:"chunk_size"`
	Width          int   `json:"width"`
	Height         int   `json:"height"`

	ResourcesDigest string `json:"resources_digest,omitempty"`

	Resources []ResourceV1 `json:"resources"`
}

type ResourceV1 struct {
	ID          string `json:"id"`
	DefID       string `json:"def_id"`
	X           int    `json:"x"`
	Y           int    `json:"y"`
	Alive       bool   `json:"alive"`
	RespawnAtMs int64  `json:"respawn_at_ms,omitempty"`
}

// Path is where the snapshot for tick lives under dir.
func Path(dir string, tick uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%012d.snap.zst", tick))
}

// WriteSnapshot writes to a temp file and renames it into place so readers never see a
// partial snapshot.
func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := writeFile(tmp, snap); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func writeFile(path string, snap SnapshotV1) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(append(hb, '\n')); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Sync()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	br, closeFn, err := open(path)
	if err != nil {
		return snap, err
	}
	defer closeFn()

	// The gob body repeats the header.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader decodes only the header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	br, closeFn, err := open(path)
	if err != nil {
		return h, err
	}
	defer closeFn()
	line, err := br.ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}

func open(path string) (*bufio.Reader, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	return bufio.NewReaderSize(dec, 64*1024), func() {
		dec.Close()
		_ = f.Close()
	}, nil
}

// Latest returns the path of the highest-tick snapshot in dir, or "" when there is none.
func Latest(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	var ticks []uint64
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		t, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		ticks = append(ticks, t)
	}
	if len(ticks) == 0 {
		return "", nil
	}
	sort.Slice(ticks, func(i, j int) bool { return ticks[i] < ticks[j] })
	return Path(dir, ticks[len(ticks)-1]), nil
}
