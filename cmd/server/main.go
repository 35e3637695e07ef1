package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"tileworld.ai/internal/logging"
	persistlog "tileworld.ai/internal/persistence/log"
	"tileworld.ai/internal/persistence/snapshot"
	"tileworld.ai/internal/persistence/sqlstore"
	"tileworld.ai/internal/sim/catalogs"
	"tileworld.ai/internal/sim/runtime"
	"tileworld.ai/internal/sim/tile"
	"tileworld.ai/internal/sim/tuning"
	"tileworld.ai/internal/sim/world"
	"tileworld.ai/internal/transport/observer"
	"tileworld.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "world_1", "world id")
		configDir  = flag.String("configs", "./configs", "config directory (tuning.yaml, items.json, resources.json, spawns.json)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "run on the seed catalogs in memory; characters are not persisted")
		logLevel   = flag.String("log_level", "info", "log level (LOG_LEVEL overrides)")
		logFormat  = flag.String("log_format", "text", "log format: text|json (LOG_FORMAT overrides)")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := logging.FromEnv(*logLevel, *logFormat)
	log := logger.WithField("world", *worldID)

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	if err := os.MkdirAll(worldDir, 0o755); err != nil {
		log.WithError(err).Fatal("create world dir")
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			log.WithError(err).Fatal("load tuning")
		}
		log.WithField("path", tp).Warn("tuning not found; using defaults")
		tune = tuning.Defaults()
	}

	ctx, cancel := signalContext()
	defer cancel()

	be, err := openBackend(ctx, worldDir, *configDir, *disableDB, log)
	if err != nil {
		log.WithError(err).Fatal("open store")
	}
	defer be.Close()
	fatal := fatalAfterClose(log, be)

	items := catalogs.NewItemRepo(be.items, log)
	resources := catalogs.NewResourceRepo(be.resources, log)
	w, err := buildWorld(ctx, *worldID, tune, filepath.Dir(tp), items, resources)
	if err != nil {
		fatal(err, "world")
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	snapDir := filepath.Join(worldDir, "snapshots")
	if snapshotToLoad == "" && *loadLatest {
		if snapshotToLoad, err = snapshot.Latest(snapDir); err != nil {
			fatal(err, "scan snapshots")
		}
	}
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			fatal(err, "read snapshot")
		}
		if snap.Header.WorldID != "" && snap.Header.WorldID != *worldID {
			fatal(fmt.Errorf("flag=%s snap=%s", *worldID, snap.Header.WorldID), "snapshot world id mismatch")
		}
		restored, err := w.ImportSnapshot(snap)
		if err != nil {
			fatal(err, "import snapshot")
		}
		log.WithFields(logrus.Fields{
			"snapshot": filepath.Base(snapshotToLoad),
			"tick":     w.Tick(),
			"depleted": restored,
		}).Info("resumed from snapshot")
	}

	rt, err := runtime.New(runtime.Config{
		TickRateHz:         tune.TickRateHz,
		SaveEveryTicks:     tune.SaveEveryTicks,
		SnapshotEveryTicks: tune.SnapshotEveryTicks,
		MaxPlayers:         tune.MaxPlayers,
		InboxCapacity:      tune.InboxCapacity,
	}, w, log)
	if err != nil {
		fatal(err, "runtime")
	}
	rt.SetCharacterSink(be.chars)

	tickLog := persistlog.NewTickLogger(worldDir)
	defer tickLog.Close()
	rt.SetTickLogger(tickLog)

	// Snapshot writer.
	snapCh := make(chan snapshot.SnapshotV1, 2)
	rt.SetSnapshotSink(snapCh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				path := snapshot.Path(snapDir, snap.Header.Tick)
				if err := snapshot.WriteSnapshot(path, snap); err != nil {
					log.WithError(err).Error("snapshot write")
					continue
				}
				log.WithFields(logrus.Fields{"tick": snap.Header.Tick, "path": path}).Info("snapshot written")
			}
		}
	}()

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := rt.Run(ctx); err != nil && err != context.Canceled {
			log.WithError(err).Error("world stopped")
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		var dbStats *sqlstore.Stats
		if be.db != nil {
			st := be.db.Stats()
			dbStats = &st
		}
		writeMetrics(rw, *worldID, rt.Metrics(), dbStats)
	})

	enableAdminHTTP := envBool("TW_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
	enablePprofHTTP := envBool("TW_ENABLE_PPROF_HTTP", false)
	if enableAdminHTTP {
		// Local-only admin endpoints.
		api := &adminAPI{rt: rt, items: items, resources: resources, log: log.WithField("component", "admin")}
		api.register(mux)
		obs := observer.NewServer(rt, log)
		mux.HandleFunc("/admin/v1/observer/bootstrap", obs.BootstrapHandler())
		mux.HandleFunc("/admin/v1/observer/ws", obs.WSHandler())
	} else {
		log.Info("admin endpoints disabled (TW_ENABLE_ADMIN_HTTP=false)")
	}
	if enablePprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(rt, be.chars, tune.Spawn(), log).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	log.WithField("addr", *addr).Info("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Error("ListenAndServe")
		cancel()
	}
	// The loop saves every connected player on exit; wait so the store can flush them.
	<-loopDone
}

// buildWorld loads the map named by tuning (or an open map), creates the world and
// places the resource layout from the store.
func buildWorld(ctx context.Context, worldID string, tune tuning.Tuning, tuningDir string, items *catalogs.ItemRepo, resources *catalogs.ResourceRepo) (*world.World, error) {
	m, err := loadMap(tune, tuningDir)
	if err != nil {
		return nil, err
	}
	w, err := world.New(world.Config{
		ID:              worldID,
		ChunkSize:       tune.ChunkSize,
		InventorySize:   tune.InventorySize,
		PathMaxExpanded: tune.PathMaxExpanded,
		TickDurationMs:  tune.TickDurationMs,
		Seed:            tune.Seed,
	}, m, items, resources)
	if err != nil {
		return nil, err
	}
	if _, err := w.ReloadResources(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

func loadMap(tune tuning.Tuning, tuningDir string) (*tile.Map, error) {
	p := strings.TrimSpace(tune.World.MapPath)
	if p == "" {
		return tile.NewMap(tune.World.Width, tune.World.Height)
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(tuningDir, p)
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return tile.ParseMap(f)
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
