package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"tileworld.ai/internal/logging"
	"tileworld.ai/internal/protocol"
	"tileworld.ai/internal/sim/runtime"
	"tileworld.ai/internal/sim/tile"
	"tileworld.ai/internal/sim/world"
)

const (
	handshakeTimeout = 5 * time.Second
	writeTimeout     = 5 * time.Second
	readTimeout      = 60 * time.Second
	maxMessageBytes  = 4096
	outQueue         = 8
	maxNameLen       = 32
)

// CharacterLoader resolves a HELLO character_id to a stored record.
type CharacterLoader interface {
	LoadCharacter(ctx context.Context, id string) (world.CharacterRecord, bool, error)
}

// Runtime is the part of *runtime.Runtime the transport posts to.
type Runtime interface {
	Join() chan<- runtime.JoinRequest
	Leave() chan<- runtime.LeaveRequest
	Inbox() chan<- runtime.Command
}

type Server struct {
	rt    Runtime
	chars CharacterLoader
	spawn tile.Pos
	log   logrus.FieldLogger

	upgrader websocket.Upgrader
}

func NewServer(rt Runtime, chars CharacterLoader, spawn tile.Pos, log logrus.FieldLogger) *Server {
	return &Server{
		rt:    rt,
		chars: chars,
		spawn: spawn,
		log:   logging.OrDiscard(log).WithField("component", "ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

type session struct {
	playerID  string
	sessionID string
	out       chan []byte
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetReadLimit(maxMessageBytes)

		sess, ok := s.handshake(r.Context(), conn)
		if !ok {
			return
		}
		log := s.log.WithFields(logrus.Fields{"player": sess.playerID, "session": sess.sessionID})

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine. A closed out channel means another session took the player over.
		go func() {
			defer conn.Close()
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-sess.out:
					if !ok {
						log.Info("session superseded")
						_ = conn.WriteControl(websocket.CloseMessage,
							websocket.FormatCloseMessage(websocket.CloseNormalClosure, "superseded"), time.Now().Add(time.Second))
						cancel()
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			cmd, ok := decodeCommand(msg)
			if !ok {
				log.WithField("bytes", len(msg)).Debug("dropped malformed message")
				continue
			}
			cmd.PlayerID = sess.playerID
			cmd.SessionID = sess.sessionID
			select {
			case s.rt.Inbox() <- cmd:
			case <-ctx.Done():
			}
		}

		// Cleanup.
		s.leave(sess)
		log.Info("connection closed")
	}
}

// decodeCommand turns a MOVE or INTERACT message into a runtime command. Anything else,
// including a protocol version mismatch, is rejected.
func decodeCommand(msg []byte) (runtime.Command, bool) {
	base, err := protocol.DecodeBase(msg)
	if err != nil || base.ProtocolVersion != protocol.Version {
		return runtime.Command{}, false
	}
	switch base.Type {
	case protocol.TypeMove:
		var m protocol.MoveMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return runtime.Command{}, false
		}
		return runtime.Command{Kind: runtime.CommandMove, At: tile.FromArray(m.To)}, true
	case protocol.TypeInteract:
		var m protocol.InteractMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return runtime.Command{}, false
		}
		return runtime.Command{Kind: runtime.CommandInteract, At: tile.FromArray(m.At)}, true
	}
	return runtime.Command{}, false
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) (session, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return session{}, false
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil {
		s.reject(conn, protocol.ErrProtoBadRequest, "malformed json")
		return session{}, false
	}
	if base.Type != protocol.TypeHello {
		s.reject(conn, protocol.ErrProtoUnknownType, "expected HELLO")
		return session{}, false
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		s.reject(conn, protocol.ErrProtoBadRequest, "malformed HELLO")
		return session{}, false
	}
	if hello.ProtocolVersion != protocol.Version {
		s.reject(conn, protocol.ErrProtoVersion, "unsupported protocol_version")
		return session{}, false
	}

	rec, code, reason := s.resolveCharacter(ctx, hello)
	if code != "" {
		s.reject(conn, code, reason)
		return session{}, false
	}

	sess := session{playerID: rec.ID, sessionID: uuid.NewString(), out: make(chan []byte, outQueue)}
	respCh := make(chan runtime.JoinResponse, 1)
	timer := time.NewTimer(handshakeTimeout)
	defer timer.Stop()
	select {
	case s.rt.Join() <- runtime.JoinRequest{Character: rec, SessionID: sess.sessionID, Out: sess.out, Resp: respCh}:
	case <-timer.C:
		s.reject(conn, protocol.ErrWorldBusy, "join queue full")
		return session{}, false
	case <-ctx.Done():
		return session{}, false
	}

	var resp runtime.JoinResponse
	select {
	case resp = <-respCh:
	case <-timer.C:
		// The runtime may still admit the player; the leave keeps it from lingering.
		s.leave(sess)
		s.reject(conn, protocol.ErrWorldBusy, "join timed out")
		return session{}, false
	}
	if resp.Err != nil {
		_ = s.writeJSON(conn, resp.Err)
		return session{}, false
	}
	if err := s.writeJSON(conn, resp.Welcome); err != nil {
		s.leave(sess)
		return session{}, false
	}
	s.log.WithFields(logrus.Fields{"player": sess.playerID, "session": sess.sessionID, "name": rec.Name}).Info("session started")
	return sess, true
}

// resolveCharacter loads the HELLO character, or creates a fresh one at the spawn tile
// when no id is given. A non-empty code rejects the handshake.
func (s *Server) resolveCharacter(ctx context.Context, hello protocol.HelloMsg) (world.CharacterRecord, string, string) {
	name := strings.TrimSpace(hello.Name)
	if name == "" {
		name = "player"
	}
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	id := strings.TrimSpace(hello.CharacterID)
	if id == "" {
		return world.CharacterRecord{ID: uuid.NewString(), Name: name, Pos: s.spawn}, "", ""
	}
	if s.chars == nil {
		return world.CharacterRecord{}, protocol.ErrNoCharacter, "no character store"
	}
	rec, ok, err := s.chars.LoadCharacter(ctx, id)
	if err != nil {
		s.log.WithError(err).WithField("character", id).Error("load character")
		return world.CharacterRecord{}, protocol.ErrInternal, "character load failed"
	}
	if !ok {
		return world.CharacterRecord{}, protocol.ErrNoCharacter, "unknown character_id"
	}
	if rec.Name == "" {
		rec.Name = name
	}
	return rec, "", ""
}

func (s *Server) leave(sess session) {
	select {
	case s.rt.Leave() <- runtime.LeaveRequest{PlayerID: sess.playerID, SessionID: sess.sessionID}:
	case <-time.After(handshakeTimeout):
		s.log.WithField("player", sess.playerID).Warn("leave not delivered")
	}
}

func (s *Server) reject(conn *websocket.Conn, code, reason string) {
	s.log.WithFields(logrus.Fields{"code": code, "reason": reason}).Info("handshake rejected")
	_ = s.writeJSON(conn, protocol.NewError(code, reason))
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, code), time.Now().Add(time.Second))
}

func (s *Server) writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}
