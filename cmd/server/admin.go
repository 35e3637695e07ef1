package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"tileworld.ai/internal/logging"
	"tileworld.ai/internal/sim/catalogs"
	"tileworld.ai/internal/sim/runtime"
	"tileworld.ai/internal/sim/world"
)

const adminBodyLimit = 1 << 20

// adminRuntime is what the admin endpoints need from *runtime.Runtime.
type adminRuntime interface {
	State(ctx context.Context) (runtime.State, error)
	RequestReload(ctx context.Context) (world.ReloadResult, error)
	RequestEdit(ctx context.Context, edit runtime.Edit) (world.ReloadResult, error)
	RequestSnapshot(ctx context.Context) (uint64, error)
}

type adminAPI struct {
	rt        adminRuntime
	items     *catalogs.ItemRepo
	resources *catalogs.ResourceRepo
	log       logrus.FieldLogger
}

func (a *adminAPI) register(mux *http.ServeMux) {
	a.log = logging.OrDiscard(a.log)
	mux.HandleFunc("/admin/v1/state", a.loopbackOnly(a.handleState))
	mux.HandleFunc("/admin/v1/reload", a.loopbackOnly(a.handleReload))
	mux.HandleFunc("/admin/v1/snapshot", a.loopbackOnly(a.handleSnapshot))
	mux.HandleFunc("/admin/v1/items", a.loopbackOnly(a.handleItem))
	mux.HandleFunc("/admin/v1/resources", a.loopbackOnly(a.handleResource))
	mux.HandleFunc("/admin/v1/spawns", a.loopbackOnly(a.handleSpawn))
}

func (a *adminAPI) loopbackOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

func (a *adminAPI) handleState(rw http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	st, err := a.rt.State(ctx)
	if err != nil {
		writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(rw, http.StatusOK, st)
}

func (a *adminAPI) handleReload(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	a.replyReload(rw, r, nil, nil)
}

func (a *adminAPI) handleSnapshot(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	tick, err := a.rt.RequestSnapshot(ctx)
	if err != nil {
		writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "tick": tick, "error": err.Error()})
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "tick": tick})
}

// handleItem upserts one item definition. The store write, the cache clear and the
// world reload all run on the loop goroutine at the next tick boundary.
func (a *adminAPI) handleItem(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var def catalogs.ItemDef
	if !decodeBody(rw, r, &def) {
		return
	}
	a.replyReload(rw, r, func(ctx context.Context) error {
		if err := a.items.Upsert(ctx, def); err != nil {
			return err
		}
		a.log.WithField("item", def.ID).Info("item definition upserted")
		return nil
	}, map[string]any{"item": def.ID})
}

func (a *adminAPI) handleResource(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var res catalogs.SeedResource
	if !decodeBody(rw, r, &res) {
		return
	}
	a.replyReload(rw, r, func(ctx context.Context) error {
		if err := a.resources.Upsert(ctx, res.ResourceDef, res.Requirements, res.Loot); err != nil {
			return err
		}
		a.log.WithField("resource", res.ID).Info("resource definition upserted")
		return nil
	}, map[string]any{"resource": res.ID})
}

// handleSpawn upserts a spawn on POST and removes one on DELETE ?id=.
func (a *adminAPI) handleSpawn(rw http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var sp catalogs.Spawn
		if !decodeBody(rw, r, &sp) {
			return
		}
		a.replyReload(rw, r, func(ctx context.Context) error {
			return a.resources.UpsertSpawn(ctx, sp)
		}, map[string]any{"spawn": sp.ID})
	case http.MethodDelete:
		id := strings.TrimSpace(r.URL.Query().Get("id"))
		if id == "" {
			writeJSON(rw, http.StatusBadRequest, map[string]any{"ok": false, "error": "missing id"})
			return
		}
		a.replyReload(rw, r, func(ctx context.Context) error {
			return a.resources.DeleteSpawn(ctx, id)
		}, map[string]any{"spawn": id, "deleted": true})
	default:
		rw.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// replyReload posts a reload, with edit applied first when non-nil, and writes the
// outcome. A rejected edit is reported like a failed upsert.
func (a *adminAPI) replyReload(rw http.ResponseWriter, r *http.Request, edit runtime.Edit, extra map[string]any) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	var res world.ReloadResult
	var err error
	if edit != nil {
		res, err = a.rt.RequestEdit(ctx, edit)
	} else {
		res, err = a.rt.RequestReload(ctx)
	}
	var rejected *runtime.EditError
	if errors.As(err, &rejected) {
		writeUpsertError(rw, rejected.Err)
		return
	}
	body := map[string]any{"ok": err == nil, "reload": res}
	for k, v := range extra {
		body[k] = v
	}
	if err != nil {
		body["error"] = err.Error()
		writeJSON(rw, http.StatusServiceUnavailable, body)
		return
	}
	writeJSON(rw, http.StatusOK, body)
}

func decodeBody(rw http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, adminBodyLimit))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(rw, http.StatusBadRequest, map[string]any{"ok": false, "error": "bad json: " + err.Error()})
		return false
	}
	return true
}

func writeUpsertError(rw http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, catalogs.ErrInvalidDef) {
		status = http.StatusBadRequest
	}
	writeJSON(rw, status, map[string]any{"ok": false, "error": err.Error()})
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
