package log

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"tileworld.ai/internal/sim/runtime"
)

const (
	eventsDir    = "events"
	eventsPrefix = "events"
	hourLayout   = "2006-01-02-15"
	// flushEvery bounds how many ticks can sit in the encoder before a crash loses them.
	flushEvery = 20
)

// TickLogger appends one JSON line per tick to hourly files
// <world>/events/events-YYYY-MM-DD-HH.jsonl.zst. Reopening an hour that already has a
// file appends a new zstd frame, which readers decode as one stream.
type TickLogger struct {
	dir string
	now func() time.Time

	mu     sync.Mutex
	seg    *segment
	closed bool
}

// segment is the open file for one hour.
type segment struct {
	hour    string
	file    *os.File
	zw      *zstd.Encoder
	enc     *json.Encoder
	unflush int
}

func NewTickLogger(worldDir string) *TickLogger {
	return &TickLogger{dir: filepath.Join(worldDir, eventsDir), now: time.Now}
}

func (l *TickLogger) WriteTick(e runtime.TickLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return errors.New("tick log closed")
	}

	hour := l.now().UTC().Format(hourLayout)
	if l.seg == nil || l.seg.hour != hour {
		if err := l.seg.close(); err != nil {
			return err
		}
		seg, err := openSegment(l.dir, hour)
		if err != nil {
			l.seg = nil
			return err
		}
		l.seg = seg
	}
	if err := l.seg.enc.Encode(e); err != nil {
		return fmt.Errorf("tick %d: %w", e.Tick, err)
	}
	l.seg.unflush++
	if l.seg.unflush >= flushEvery {
		l.seg.unflush = 0
		return l.seg.zw.Flush()
	}
	return nil
}

// Close finishes the open frame. Later writes fail.
func (l *TickLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	err := l.seg.close()
	l.seg = nil
	return err
}

func segmentPath(dir, hour string) string {
	return filepath.Join(dir, eventsPrefix+"-"+hour+".jsonl.zst")
}

func openSegment(dir, hour string) (*segment, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create events dir: %w", err)
	}
	f, err := os.OpenFile(segmentPath(dir, hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open events log: %w", err)
	}
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest), zstd.WithEncoderConcurrency(1))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &segment{hour: hour, file: f, zw: zw, enc: json.NewEncoder(zw)}, nil
}

func (s *segment) close() error {
	if s == nil {
		return nil
	}
	return errors.Join(s.zw.Close(), s.file.Close())
}

// ReadTicks decodes every entry of one events file in order. fn returning false stops
// the scan.
func ReadTicks(path string, fn func(runtime.TickLogEntry) bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	zr, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer zr.Close()

	dec := json.NewDecoder(zr)
	for n := 1; ; n++ {
		var e runtime.TickLogEntry
		err := dec.Decode(&e)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: entry %d: %w", filepath.Base(path), n, err)
		}
		if !fn(e) {
			return nil
		}
	}
}

// EventFiles lists the hourly event files under worldDir in time order.
func EventFiles(worldDir string) ([]string, error) {
	files, err := filepath.Glob(segmentPath(filepath.Join(worldDir, eventsDir), "*"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
