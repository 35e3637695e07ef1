package observer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"tileworld.ai/internal/observerproto"
	"tileworld.ai/internal/sim/catalogs"
	"tileworld.ai/internal/sim/runtime"
	"tileworld.ai/internal/sim/tile"
	"tileworld.ai/internal/sim/world"
)

func startFeed(t *testing.T) (*httptest.Server, *runtime.Runtime) {
	t.Helper()
	store := catalogs.NewMemStore()
	m, err := tile.NewMap(8, 8)
	if err != nil {
		t.Fatalf("NewMap: %v", err)
	}
	w, err := world.New(world.Config{ID: "w"}, m, catalogs.NewItemRepo(store, nil), catalogs.NewResourceRepo(store, nil))
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	rt, err := runtime.New(runtime.Config{TickRateHz: 50}, w, nil)
	if err != nil {
		t.Fatalf("runtime.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = rt.Run(ctx)
	}()

	s := NewServer(rt, nil)
	mux := http.NewServeMux()
	mux.HandleFunc("/bootstrap", s.BootstrapHandler())
	mux.HandleFunc("/ws", s.WSHandler())
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return srv, rt
}

func TestBootstrap(t *testing.T) {
	srv, _ := startFeed(t)
	resp, err := http.Get(srv.URL + "/bootstrap")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var b observerproto.BootstrapResponse
	if err := json.NewDecoder(resp.Body).Decode(&b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b.ProtocolVersion != observerproto.Version || b.WorldParams.Width != 8 || b.WorldParams.MapRLE == "" {
		t.Fatalf("unexpected bootstrap %+v", b)
	}
}

func TestBootstrap_RejectsNonLoopback(t *testing.T) {
	s := NewServer(nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/bootstrap", nil)
	req.RemoteAddr = "203.0.113.9:4000"
	rec := httptest.NewRecorder()
	s.BootstrapHandler()(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestFeed_StreamsTicksWithPlayers(t *testing.T) {
	srv, rt := startFeed(t)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if err := conn.WriteJSON(observerproto.SubscribeMsg{Type: observerproto.TypeSubscribe, ProtocolVersion: observerproto.Version, Events: true}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	resp := make(chan runtime.JoinResponse, 1)
	rt.Join() <- runtime.JoinRequest{
		Character: world.CharacterRecord{ID: "c1", Name: "Ann", Pos: tile.Pos{X: 1, Y: 1}},
		SessionID: "s1",
		Out:       make(chan []byte, 8),
		Resp:      resp,
	}
	if r := <-resp; r.Err != nil {
		t.Fatalf("join: %+v", r.Err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var msg observerproto.TickMsg
		if err := json.Unmarshal(b, &msg); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if msg.Type != observerproto.TypeTick {
			t.Fatalf("expected %s, got %s", observerproto.TypeTick, msg.Type)
		}
		if len(msg.Players) == 1 {
			if msg.Players[0].ID != "c1" || msg.Players[0].Pos != [2]int{1, 1} {
				t.Fatalf("unexpected player %+v", msg.Players[0])
			}
			return
		}
	}
}

func TestFeed_RejectsBadSubscribe(t *testing.T) {
	srv, _ := startFeed(t)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.WriteJSON(map[string]string{"type": "HELLO", "protocol_version": "1.0"})
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy violation close, got %v", err)
	}
}
