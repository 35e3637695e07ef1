package runtime

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"tileworld.ai/internal/protocol"
	"tileworld.ai/internal/sim/world"
)

// StepOnce runs one tick with the given inputs using the loop's ordering. It is meant for
// tests and tools that drive the world without Run.
func (r *Runtime) StepOnce(joins []JoinRequest, leaves []LeaveRequest, cmds []Command) TickLogEntry {
	return r.step(context.Background(), joins, leaves, cmds, nil)
}

// step applies joins, leaves, reloads and commands in that order, advances the world and
// delivers one snapshot per client.
func (r *Runtime) step(ctx context.Context, joins []JoinRequest, leaves []LeaveRequest, cmds []Command, reloads []reloadReq) TickLogEntry {
	stepStart := time.Now()
	entry := TickLogEntry{Tick: r.w.Tick()}

	// A reconnect in the same tick must own the player before the old session's leave
	// is checked.
	for _, req := range joins {
		resp := r.handleJoin(req)
		if req.Resp != nil {
			req.Resp <- resp
		}
		if resp.Err == nil {
			entry.Joins = append(entry.Joins, RecordedJoin{PlayerID: req.Character.ID, Name: req.Character.Name})
		}
	}
	for _, req := range leaves {
		if r.handleLeave(req) {
			entry.Leaves = append(entry.Leaves, req.PlayerID)
		}
	}
	if len(reloads) > 0 {
		entry.Reloaded = r.applyReloads(ctx, reloads)
	}

	var events []world.Event
	for _, cmd := range cmds {
		cl, ok := r.clients[cmd.PlayerID]
		if !ok || (cmd.SessionID != "" && cl.sessionID != cmd.SessionID) {
			continue
		}
		entry.Commands = append(entry.Commands, cmd)
		switch cmd.Kind {
		case CommandMove:
			r.w.SetMoveTarget(cmd.PlayerID, cmd.At)
		case CommandInteract:
			events = append(events, r.w.RequestInteract(cmd.PlayerID, cmd.At)...)
		}
	}
	events = append(events, r.w.Step()...)
	entry.Events = events
	r.eventsTotal.Add(uint64(len(events)))

	byPlayer := map[string][]world.Event{}
	for _, e := range events {
		byPlayer[e.PlayerID] = append(byPlayer[e.PlayerID], e)
	}
	for _, id := range sortedClientIDs(r.clients) {
		cl := r.clients[id]
		snap, ok := r.w.SnapshotFor(id)
		if !ok {
			continue
		}
		b, err := json.Marshal(r.snapshotMsg(snap, byPlayer[id]))
		if err != nil {
			r.log.WithError(err).WithField("player", id).Error("encode snapshot")
			continue
		}
		sendLatest(cl.out, b)
	}
	r.fanOutObservers(entry)

	tick := r.w.Tick()
	entry.Digest = r.w.StateDigest()
	if r.tickLogger != nil {
		if err := r.tickLogger.WriteTick(entry); err != nil {
			r.log.WithError(err).Warn("tick log write failed")
		}
	}
	if r.cfg.SaveEveryTicks > 0 && tick%uint64(r.cfg.SaveEveryTicks) == 0 {
		r.saveAll()
	}
	if r.snapshotSink != nil && r.cfg.SnapshotEveryTicks > 0 && tick%uint64(r.cfg.SnapshotEveryTicks) == 0 {
		select {
		case r.snapshotSink <- r.w.ExportSnapshot():
		default:
			// Drop snapshot if sink is backed up.
		}
	}

	r.storeMetrics(stepStart, len(events))
	return entry
}

func (r *Runtime) handleLeave(req LeaveRequest) bool {
	cl, ok := r.clients[req.PlayerID]
	if !ok || (req.SessionID != "" && cl.sessionID != req.SessionID) {
		return false
	}
	if r.chars != nil {
		if rec, ok := r.w.CharacterRecord(req.PlayerID); ok {
			r.chars.SaveCharacter(rec)
			r.savesTotal.Add(1)
		}
	}
	r.w.RemovePlayer(req.PlayerID)
	delete(r.clients, req.PlayerID)
	r.log.WithField("player", req.PlayerID).Info("player left")
	return true
}

// handleJoin admits a player. A reconnect for a player already in the world takes over
// the live state instead of the stored record.
func (r *Runtime) handleJoin(req JoinRequest) JoinResponse {
	id := req.Character.ID
	if id == "" {
		e := protocol.NewError(protocol.ErrProtoBadRequest, "missing character id")
		return JoinResponse{Err: &e}
	}
	if _, exists := r.clients[id]; !exists && len(r.clients) >= r.cfg.MaxPlayers {
		e := protocol.NewError(protocol.ErrWorldBusy, "world is full")
		return JoinResponse{Err: &e}
	}
	if _, live := r.w.Player(id); !live {
		c := req.Character
		r.w.AddPlayer(c.ID, c.Name, c.Pos, c.Skills, c.Inventory)
	}
	if old, ok := r.clients[id]; ok && old.sessionID != req.SessionID && old.out != nil && old.out != req.Out {
		// The superseded connection's writer sees the close and hangs up.
		close(old.out)
	}
	r.clients[id] = &client{sessionID: req.SessionID, out: req.Out}
	r.log.WithFields(logrus.Fields{"player": id, "session": req.SessionID}).Info("player joined")
	return JoinResponse{Welcome: r.welcome(id, req.SessionID)}
}

func (r *Runtime) welcome(playerID, sessionID string) protocol.WelcomeMsg {
	return protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sessionID,
		PlayerID:        playerID,
		WorldParams:     r.params,
		Catalogs: protocol.CatalogDigests{
			Items:     protocol.DigestRef{Digest: r.w.Items().Digest(), Count: len(r.w.Items().All())},
			Resources: protocol.DigestRef{Digest: r.w.Resources().Digest(), Count: len(r.w.Resources().All())},
		},
	}
}

// applyReloads runs queued edits in arrival order, then one reload for every request
// whose edit went through. It reports whether a reload succeeded.
func (r *Runtime) applyReloads(ctx context.Context, reloads []reloadReq) bool {
	rejected := make([]error, len(reloads))
	need := false
	for i, req := range reloads {
		if req.Edit != nil {
			if err := req.Edit(ctx); err != nil {
				r.log.WithError(err).Warn("catalog edit rejected")
				rejected[i] = &EditError{Err: err}
				continue
			}
		}
		need = true
	}
	var res world.ReloadResult
	var err error
	if need {
		res, err = r.reloadCatalogs(ctx)
	}
	for i, req := range reloads {
		if rejected[i] != nil {
			req.Resp <- reloadResp{Err: rejected[i]}
			continue
		}
		req.Resp <- reloadResp{Result: res, Err: err}
	}
	return need && err == nil
}

func (r *Runtime) reloadCatalogs(ctx context.Context) (world.ReloadResult, error) {
	if err := r.w.Items().Load(ctx); err != nil {
		r.log.WithError(err).Error("item reload failed; keeping current catalogs")
		return world.ReloadResult{}, err
	}
	res, err := r.w.ReloadResources(ctx)
	if err != nil {
		r.log.WithError(err).Error("resource reload failed; keeping current layout")
		return res, err
	}
	r.log.WithFields(logrus.Fields{
		"instances": res.Instances,
		"blocked":   res.Blocked,
		"kept":      res.Kept,
		"skipped":   res.Skipped,
	}).Info("resources reloaded")
	return res, nil
}

func sortedClientIDs(m map[string]*client) []string {
	out := make([]string, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
