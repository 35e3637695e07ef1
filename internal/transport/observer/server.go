// Package observer serves the loopback-only spectator feed: a bootstrap document over
// HTTP and one world-wide tick message per tick over WebSocket.
package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"tileworld.ai/internal/logging"
	"tileworld.ai/internal/observerproto"
	"tileworld.ai/internal/protocol"
	"tileworld.ai/internal/sim/runtime"
)

// Runtime is the part of *runtime.Runtime the feed needs.
type Runtime interface {
	WorldParams() protocol.WorldParams
	State(ctx context.Context) (runtime.State, error)
	ObserverJoin() chan<- runtime.ObserverJoinRequest
	ObserverLeave() chan<- string
}

type Server struct {
	rt  Runtime
	log logrus.FieldLogger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewServer(rt Runtime, log logrus.FieldLogger) *Server {
	return &Server{
		rt:  rt,
		log: logging.OrDiscard(log).WithField("component", "observer"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		st, err := s.rt.State(ctx)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusServiceUnavailable)
			return
		}
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			Tick:            st.Tick,
			WorldParams:     s.rt.WorldParams(),
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetReadLimit(1024)

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub observerproto.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil || sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		out := make(chan []byte, 8)
		select {
		case s.rt.ObserverJoin() <- runtime.ObserverJoinRequest{SessionID: sid, Events: sub.Events, Out: out}:
		default:
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server busy"), time.Now().Add(time.Second))
			return
		}
		log := s.log.WithField("observer", sid)
		log.Info("observer connected")
		defer func() {
			select {
			case s.rt.ObserverLeave() <- sid:
			case <-time.After(time.Second):
				// World loop is stopping; nothing else to do.
			}
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeDone := make(chan struct{})
		go func() {
			defer close(writeDone)
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						// Unblocks the reader below.
						conn.Close()
						return
					}
				}
			}
		}()

		// The feed is one-way; reads only detect the close.
		_ = conn.SetReadDeadline(time.Time{})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeDone:
		case <-time.After(500 * time.Millisecond):
		}
		log.Info("observer disconnected")
	}
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
