package runtime

import (
	"context"
	"errors"

	"tileworld.ai/internal/sim/tile"
	"tileworld.ai/internal/sim/world"
)

// Edit is a catalog write run on the loop goroutine at the tick boundary, just before
// the reload it triggers.
type Edit func(ctx context.Context) error

// EditError carries the error an Edit returned. No reload runs for a rejected edit.
type EditError struct{ Err error }

func (e *EditError) Error() string { return "edit rejected: " + e.Err.Error() }
func (e *EditError) Unwrap() error { return e.Err }

type reloadReq struct {
	Edit Edit
	Resp chan reloadResp
}

type reloadResp struct {
	Result world.ReloadResult
	Err    error
}

type snapshotReq struct {
	Resp chan snapshotResp
}

type snapshotResp struct {
	Tick uint64
	Err  string
}

type stateReq struct {
	Resp chan State
}

// State is a read-only summary for the admin endpoint.
type State struct {
	WorldID string            `json:"world_id"`
	Tick    uint64            `json:"tick"`
	Counts  world.Counts      `json:"counts"`
	Players []PlayerState     `json:"players"`
	Digests map[string]string `json:"digests"`
}

type PlayerState struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Pos     tile.Pos `json:"pos"`
	Acting  string   `json:"acting,omitempty"`
	PathLen int      `json:"path_len,omitempty"`
	Pending bool     `json:"pending,omitempty"`
}

// RequestReload asks the loop to clear catalog caches and rebuild the resource layout at
// the next tick boundary. Safe to call from other goroutines.
func (r *Runtime) RequestReload(ctx context.Context) (world.ReloadResult, error) {
	return r.requestReload(ctx, nil)
}

// RequestEdit runs edit on the loop goroutine and then reloads, so catalog caches are
// only cleared between ticks. A failing edit comes back as *EditError.
func (r *Runtime) RequestEdit(ctx context.Context, edit Edit) (world.ReloadResult, error) {
	if edit == nil {
		return world.ReloadResult{}, errors.New("runtime: nil edit")
	}
	return r.requestReload(ctx, edit)
}

func (r *Runtime) requestReload(ctx context.Context, edit Edit) (world.ReloadResult, error) {
	resp := make(chan reloadResp, 1)
	select {
	case r.reload <- reloadReq{Edit: edit, Resp: resp}:
	case <-ctx.Done():
		return world.ReloadResult{}, ctx.Err()
	}
	select {
	case out := <-resp:
		return out.Result, out.Err
	case <-ctx.Done():
		return world.ReloadResult{}, ctx.Err()
	}
}

// RequestSnapshot asks the loop to hand a world snapshot to the snapshot sink.
func (r *Runtime) RequestSnapshot(ctx context.Context) (uint64, error) {
	resp := make(chan snapshotResp, 1)
	select {
	case r.snap <- snapshotReq{Resp: resp}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case out := <-resp:
		if out.Err != "" {
			return out.Tick, errors.New(out.Err)
		}
		return out.Tick, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (r *Runtime) handleSnapshotRequests(reqs []snapshotReq) {
	if len(reqs) == 0 {
		return
	}
	resp := snapshotResp{Tick: r.w.Tick()}
	if r.snapshotSink == nil {
		resp.Err = "snapshot sink not configured"
	} else {
		select {
		case r.snapshotSink <- r.w.ExportSnapshot():
		default:
			resp.Err = "snapshot sink busy"
		}
	}
	for _, req := range reqs {
		req.Resp <- resp
	}
}

// State returns a consistent summary read on the loop goroutine.
func (r *Runtime) State(ctx context.Context) (State, error) {
	resp := make(chan State, 1)
	select {
	case r.state <- stateReq{Resp: resp}:
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
	select {
	case s := <-resp:
		return s, nil
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
}

func (r *Runtime) buildState() State {
	st := State{
		WorldID: r.w.ID(),
		Tick:    r.w.Tick(),
		Counts:  r.w.Counts(),
		Digests: map[string]string{
			"items":     r.w.Items().Digest(),
			"resources": r.w.Resources().Digest(),
			"state":     r.w.StateDigest(),
		},
	}
	for _, id := range r.w.PlayerIDs() {
		p, ok := r.w.Player(id)
		if !ok {
			continue
		}
		ps := PlayerState{ID: p.ID, Name: p.Name, Pos: p.Pos, PathLen: len(p.Path), Pending: p.Pending != nil}
		if p.Action != nil {
			ps.Acting = string(p.Action.Skill)
		}
		st.Players = append(st.Players, ps)
	}
	return st
}
