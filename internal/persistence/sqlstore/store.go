package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"tileworld.ai/internal/sim/world"
)

// Store keeps catalog rows and character records in a single sqlite file.
// Catalog reads and writes run on the caller's goroutine; character saves are
// coalesced per character and written by one background goroutine.
type Store struct {
	db  *sql.DB
	log logrus.FieldLogger

	mu       sync.Mutex
	pending  map[string]world.CharacterRecord
	inflight map[string]world.CharacterRecord
	wake     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once

	closed atomic.Bool

	savesTotal  atomic.Uint64
	saveErrors  atomic.Uint64
	lastFlushMs atomic.Int64
}

type Stats struct {
	Pending     int
	SavesTotal  uint64
	SaveErrors  uint64
	LastFlushMs int64
}

func Open(path string, log logrus.FieldLogger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite pragmas: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	s := &Store{
		db:       db,
		log:      log.WithField("component", "sqlstore"),
		pending:  map[string]world.CharacterRecord{},
		inflight: map[string]world.CharacterRecord{},
		wake:     make(chan struct{}, 1),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS item_defs (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			stackable INTEGER NOT NULL,
			stack_limit INTEGER NOT NULL,
			splittable INTEGER NOT NULL,
			consumable INTEGER NOT NULL,
			equip_slot TEXT NOT NULL,
			meta_json TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS resource_defs (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			skill TEXT NOT NULL,
			xp INTEGER NOT NULL,
			ticks_min INTEGER NOT NULL,
			ticks_max INTEGER NOT NULL,
			respawn_ms INTEGER NOT NULL,
			mesh TEXT NOT NULL,
			depleted_mesh TEXT NOT NULL,
			scale REAL NOT NULL,
			collision TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS resource_requirements (
			resource_id TEXT NOT NULL REFERENCES resource_defs(id) ON DELETE CASCADE,
			skill TEXT NOT NULL,
			level INTEGER NOT NULL,
			PRIMARY KEY (resource_id, skill)
		);`,
		`CREATE TABLE IF NOT EXISTS resource_loot (
			resource_id TEXT NOT NULL REFERENCES resource_defs(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			item_id TEXT NOT NULL,
			min_qty INTEGER NOT NULL,
			max_qty INTEGER NOT NULL,
			weight INTEGER NOT NULL,
			PRIMARY KEY (resource_id, seq)
		);`,
		`CREATE TABLE IF NOT EXISTS resource_spawns (
			id TEXT PRIMARY KEY,
			resource_id TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_spawns_resource ON resource_spawns(resource_id);`,
		`CREATE TABLE IF NOT EXISTS characters (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS character_skills (
			character_id TEXT NOT NULL REFERENCES characters(id) ON DELETE CASCADE,
			skill TEXT NOT NULL,
			xp INTEGER NOT NULL,
			PRIMARY KEY (character_id, skill)
		);`,
		`CREATE TABLE IF NOT EXISTS character_inventory (
			character_id TEXT NOT NULL REFERENCES characters(id) ON DELETE CASCADE,
			slot INTEGER NOT NULL,
			item_id TEXT NOT NULL,
			qty INTEGER NOT NULL,
			PRIMARY KEY (character_id, slot)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	_, err := db.Exec(`INSERT OR IGNORE INTO meta(key,value) VALUES('schema_version','1')`)
	return err
}

// Close flushes queued character saves and closes the database.
func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed.Store(true)
		close(s.wake)
		s.mu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *Store) Stats() Stats {
	s.mu.Lock()
	n := len(s.pending)
	s.mu.Unlock()
	return Stats{
		Pending:     n,
		SavesTotal:  s.savesTotal.Load(),
		SaveErrors:  s.saveErrors.Load(),
		LastFlushMs: s.lastFlushMs.Load(),
	}
}

func (s *Store) loop() {
	for range s.wake {
		s.flush()
	}
	s.flush()
}

// flush writes every pending record in one transaction. Records stay visible to
// LoadCharacter through inflight until the write finishes.
func (s *Store) flush() {
	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return
	}
	batch := s.pending
	s.pending = map[string]world.CharacterRecord{}
	s.inflight = batch
	s.mu.Unlock()

	start := time.Now()
	err := s.writeCharacters(context.Background(), batch)
	s.lastFlushMs.Store(time.Since(start).Milliseconds())
	if err != nil {
		s.saveErrors.Add(1)
		s.log.WithError(err).WithField("characters", len(batch)).Error("character save failed")
	} else {
		s.savesTotal.Add(uint64(len(batch)))
	}

	s.mu.Lock()
	s.inflight = map[string]world.CharacterRecord{}
	if err != nil {
		// Retry on the next flush unless a newer record arrived meanwhile.
		for id, rec := range batch {
			if _, ok := s.pending[id]; !ok {
				s.pending[id] = rec
			}
		}
	}
	s.mu.Unlock()
}

// Meta returns a value from the key/value meta table.
func (s *Store) Meta(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key=?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}
