// Package runtime drives a world.World from a single goroutine: it buffers joins, leaves
// and player commands, applies them at the tick boundary, steps the world and fans
// snapshots out to connected clients.
package runtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"tileworld.ai/internal/logging"
	"tileworld.ai/internal/persistence/snapshot"
	"tileworld.ai/internal/protocol"
	"tileworld.ai/internal/sim/encoding"
	"tileworld.ai/internal/sim/skills"
	"tileworld.ai/internal/sim/tile"
	"tileworld.ai/internal/sim/world"
)

type Config struct {
	TickRateHz         int
	SaveEveryTicks     int
	SnapshotEveryTicks int
	MaxPlayers         int
	InboxCapacity      int
}

type CommandKind string

const (
	CommandMove     CommandKind = "move"
	CommandInteract CommandKind = "interact"
)

// Command is a fully-formed player request posted by the transport. A non-empty
// SessionID must match the session that currently owns the player.
type Command struct {
	PlayerID  string      `json:"player_id"`
	SessionID string      `json:"session_id,omitempty"`
	Kind      CommandKind `json:"kind"`
	At        tile.Pos    `json:"at"`
}

type JoinRequest struct {
	Character world.CharacterRecord
	SessionID string
	Out       chan []byte
	Resp      chan JoinResponse
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
	Err     *protocol.ErrorMsg
}

// LeaveRequest removes the player only if SessionID still owns it, so a stale
// connection closing after a reconnect does not kick the new session.
type LeaveRequest struct {
	PlayerID  string
	SessionID string
}

// CharacterSink persists character records. SaveCharacter must not block the loop.
type CharacterSink interface {
	SaveCharacter(rec world.CharacterRecord)
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type RecordedJoin struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
}

type TickLogEntry struct {
	Tick     uint64         `json:"tick"`
	Joins    []RecordedJoin `json:"joins,omitempty"`
	Leaves   []string       `json:"leaves,omitempty"`
	Commands []Command      `json:"commands,omitempty"`
	Events   []world.Event  `json:"events,omitempty"`
	Reloaded bool           `json:"reloaded,omitempty"`
	Digest   string         `json:"digest"`
}

type client struct {
	sessionID string
	out       chan []byte
}

type Runtime struct {
	cfg Config
	w   *world.World
	log logrus.FieldLogger

	join   chan JoinRequest
	leave  chan LeaveRequest
	inbox  chan Command
	reload chan reloadReq
	snap   chan snapshotReq
	state  chan stateReq
	stop   chan struct{}

	obsJoin   chan ObserverJoinRequest
	obsLeave  chan string
	observers map[string]*observer

	stopOnce sync.Once

	clients map[string]*client
	// params go out in every WELCOME; world geometry and tick rate never change.
	params protocol.WorldParams

	chars        CharacterSink
	tickLogger   TickLogger
	snapshotSink chan<- snapshot.SnapshotV1

	eventsTotal atomic.Uint64
	savesTotal  atomic.Uint64
	metrics     atomic.Value
}

func New(cfg Config, w *world.World, log logrus.FieldLogger) (*Runtime, error) {
	if w == nil {
		return nil, errors.New("runtime: nil world")
	}
	if cfg.TickRateHz <= 0 {
		cfg.TickRateHz = 10
	}
	if cfg.InboxCapacity <= 0 {
		cfg.InboxCapacity = 4096
	}
	if cfg.MaxPlayers <= 0 {
		cfg.MaxPlayers = 256
	}
	r := &Runtime{
		cfg:     cfg,
		w:       w,
		log:     logging.OrDiscard(log).WithField("component", "runtime"),
		join:    make(chan JoinRequest, 64),
		leave:   make(chan LeaveRequest, 64),
		inbox:   make(chan Command, cfg.InboxCapacity),
		reload:  make(chan reloadReq, 4),
		snap:    make(chan snapshotReq, 4),
		state:   make(chan stateReq, 16),
		stop:    make(chan struct{}),
		clients: map[string]*client{},

		obsJoin:   make(chan ObserverJoinRequest, 16),
		obsLeave:  make(chan string, 16),
		observers: map[string]*observer{},
	}
	wc := w.Config()
	r.params = protocol.WorldParams{
		WorldID:        w.ID(),
		TickRateHz:     cfg.TickRateHz,
		TickDurationMs: wc.TickDurationMs,
		ChunkSize:      wc.ChunkSize,
		Width:          w.Width(),
		Height:         w.Height(),
		InventorySize:  wc.InventorySize,
		XPPerLevel:     skills.XPPerLevel,
		MapRLE:         encoding.EncodeRLE(w.TerrainCells()),
	}
	r.metrics.Store(Metrics{})
	return r, nil
}

func (r *Runtime) SetCharacterSink(s CharacterSink)              { r.chars = s }
func (r *Runtime) SetTickLogger(l TickLogger)                    { r.tickLogger = l }
func (r *Runtime) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { r.snapshotSink = ch }

func (r *Runtime) Inbox() chan<- Command      { return r.inbox }
func (r *Runtime) Join() chan<- JoinRequest   { return r.join }
func (r *Runtime) Leave() chan<- LeaveRequest { return r.leave }

func (r *Runtime) WorldID() string { return r.w.ID() }
func (r *Runtime) Config() Config  { return r.cfg }

// Run owns the world until ctx is done or Stop is called. Every connected player is
// saved before it returns.
func (r *Runtime) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(r.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingJoins []JoinRequest
	var pendingLeaves []LeaveRequest
	var pendingCmds []Command
	var pendingReloads []reloadReq
	var pendingSnaps []snapshotReq

	r.log.WithFields(logrus.Fields{"world": r.w.ID(), "tick_rate_hz": r.cfg.TickRateHz}).Info("world loop started")
	for {
		select {
		case <-ctx.Done():
			r.saveAll()
			return ctx.Err()
		case <-r.stop:
			r.saveAll()
			return nil
		case req := <-r.join:
			pendingJoins = append(pendingJoins, req)
		case req := <-r.leave:
			pendingLeaves = append(pendingLeaves, req)
		case cmd := <-r.inbox:
			pendingCmds = append(pendingCmds, cmd)
		case req := <-r.reload:
			pendingReloads = append(pendingReloads, req)
		case req := <-r.snap:
			pendingSnaps = append(pendingSnaps, req)
		case req := <-r.state:
			req.Resp <- r.buildState()
		case req := <-r.obsJoin:
			r.handleObserverJoin(req)
		case id := <-r.obsLeave:
			r.handleObserverLeave(id)
		case <-ticker.C:
			r.step(ctx, pendingJoins, pendingLeaves, pendingCmds, pendingReloads)
			r.handleSnapshotRequests(pendingSnaps)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingCmds = pendingCmds[:0]
			pendingReloads = pendingReloads[:0]
			pendingSnaps = pendingSnaps[:0]
		}
	}
}

func (r *Runtime) Stop() { r.stopOnce.Do(func() { close(r.stop) }) }

func (r *Runtime) saveAll() {
	if r.chars == nil {
		return
	}
	for _, id := range r.w.PlayerIDs() {
		if rec, ok := r.w.CharacterRecord(id); ok {
			r.chars.SaveCharacter(rec)
			r.savesTotal.Add(1)
		}
	}
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
