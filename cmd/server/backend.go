package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"tileworld.ai/internal/logging"
	"tileworld.ai/internal/persistence/sqlstore"
	"tileworld.ai/internal/sim/catalogs"
	"tileworld.ai/internal/sim/runtime"
	"tileworld.ai/internal/sim/world"
)

type characterStore interface {
	runtime.CharacterSink
	LoadCharacter(ctx context.Context, id string) (world.CharacterRecord, bool, error)
}

// backend bundles the catalog and character stores the server runs on. db is nil when
// running from the seed files only.
type backend struct {
	items     catalogs.ItemStore
	resources catalogs.ResourceStore
	chars     characterStore
	db        *sqlstore.Store
}

func (b *backend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

// fatalAfterClose returns a Fatal that closes the backend first. Fatal skips deferred
// calls, and queued character saves only reach sqlite on Close.
func fatalAfterClose(log logrus.FieldLogger, be *backend) func(err error, msg string) {
	log = logging.OrDiscard(log)
	return func(err error, msg string) {
		if cerr := be.Close(); cerr != nil {
			log.WithError(cerr).Error("close store")
		}
		log.WithError(err).Fatal(msg)
	}
}

// openBackend opens the sqlite store under worldDir, importing the seed catalogs when the
// database has none yet. With disableDB (or TW_STORE_BACKEND=memory) it serves the seed
// from memory and keeps characters only for the process lifetime.
func openBackend(ctx context.Context, worldDir, configDir string, disableDB bool, log logrus.FieldLogger) (*backend, error) {
	log = logging.OrDiscard(log)
	kind := strings.ToLower(strings.TrimSpace(os.Getenv("TW_STORE_BACKEND")))
	if kind == "" {
		kind = "sqlite"
	}
	if disableDB {
		kind = "memory"
	}

	switch kind {
	case "memory", "none", "off":
		seed, err := catalogs.LoadSeed(configDir)
		if err != nil {
			return nil, fmt.Errorf("load seed: %w", err)
		}
		mem := catalogs.NewMemStoreFromSeed(seed)
		log.WithField("seed_digest", seed.Digest()).Info("running on in-memory catalogs")
		return &backend{items: mem, resources: mem, chars: runtime.NewMemCharacters()}, nil
	case "sqlite":
		db, err := sqlstore.Open(filepath.Join(worldDir, "db", "world.sqlite"), log)
		if err != nil {
			return nil, err
		}
		empty, err := db.Empty(ctx)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		if empty {
			seed, err := catalogs.LoadSeed(configDir)
			if err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("load seed: %w", err)
			}
			if err := db.ImportSeed(ctx, seed); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("import seed: %w", err)
			}
			log.WithField("seed_digest", seed.Digest()).Info("imported seed catalogs into empty database")
		}
		return &backend{items: db, resources: db, chars: db, db: db}, nil
	default:
		return nil, fmt.Errorf("unsupported TW_STORE_BACKEND: %s", kind)
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
