package runtime

import (
	"encoding/json"
	"sort"

	"tileworld.ai/internal/observerproto"
	"tileworld.ai/internal/protocol"
)

// ObserverJoinRequest subscribes a spectator to the world-wide tick feed.
type ObserverJoinRequest struct {
	SessionID string
	Events    bool
	Out       chan []byte
}

type observer struct {
	events bool
	out    chan []byte
}

func (r *Runtime) ObserverJoin() chan<- ObserverJoinRequest { return r.obsJoin }
func (r *Runtime) ObserverLeave() chan<- string             { return r.obsLeave }

// WorldParams are fixed for the life of the runtime and safe to read from any goroutine.
func (r *Runtime) WorldParams() protocol.WorldParams { return r.params }

// fanOutObservers encodes the tick once and offers it to every observer, dropping the
// oldest queued tick for slow readers.
func (r *Runtime) fanOutObservers(entry TickLogEntry) {
	if len(r.observers) == 0 {
		return
	}
	full := r.observerTick(entry, true)
	if full == nil {
		return
	}
	var quiet []byte
	for _, id := range sortedObserverIDs(r.observers) {
		o := r.observers[id]
		if o.events {
			sendLatest(o.out, full)
			continue
		}
		if quiet == nil {
			quiet = r.observerTick(entry, false)
		}
		sendLatest(o.out, quiet)
	}
}

func (r *Runtime) observerTick(entry TickLogEntry, withEvents bool) []byte {
	msg := observerproto.TickMsg{
		Type:            observerproto.TypeTick,
		ProtocolVersion: observerproto.Version,
		Tick:            r.w.Tick(),
		Depleted:        r.w.DepletedIDs(),
		Leaves:          entry.Leaves,
	}
	ids := r.w.PlayerIDs()
	sort.Strings(ids)
	msg.Players = make([]protocol.PlayerObs, 0, len(ids))
	for _, id := range ids {
		p, ok := r.w.Player(id)
		if !ok {
			continue
		}
		obs := protocol.PlayerObs{ID: p.ID, Name: p.Name, Pos: p.Pos.ToArray(), Moving: len(p.Path) > 0}
		if p.Action != nil {
			obs.Acting = string(p.Action.Skill)
		}
		msg.Players = append(msg.Players, obs)
	}
	for _, j := range entry.Joins {
		msg.Joins = append(msg.Joins, observerproto.JoinInfo{PlayerID: j.PlayerID, Name: j.Name})
	}
	if withEvents {
		for _, e := range entry.Events {
			msg.Events = append(msg.Events, observerproto.PlayerEvent{PlayerID: e.PlayerID, EventObs: eventObs(e, r.w.Items())})
		}
	}
	b, err := json.Marshal(msg)
	if err != nil {
		r.log.WithError(err).Error("encode observer tick")
		return nil
	}
	return b
}

func (r *Runtime) handleObserverJoin(req ObserverJoinRequest) {
	if old, ok := r.observers[req.SessionID]; ok && old.out != req.Out {
		close(old.out)
	}
	r.observers[req.SessionID] = &observer{events: req.Events, out: req.Out}
	r.log.WithField("observer", req.SessionID).Info("observer subscribed")
}

func (r *Runtime) handleObserverLeave(sessionID string) {
	if _, ok := r.observers[sessionID]; ok {
		delete(r.observers, sessionID)
		r.log.WithField("observer", sessionID).Info("observer left")
	}
}

func sortedObserverIDs(m map[string]*observer) []string {
	out := make([]string, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
