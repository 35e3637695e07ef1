package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"tileworld.ai/internal/logging"
	"tileworld.ai/internal/protocol"
	"tileworld.ai/internal/sim/encoding"
)

func main() {
	var (
		url       = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name      = flag.String("name", "bot", "character name")
		character = flag.String("character", "", "character id to resume (empty creates one)")
		wander    = flag.Int("wander", 7, "max tile offset for idle moves when nothing is gatherable")
	)
	flag.Parse()

	log := logging.FromEnv("info", "text").WithField("component", "bot")
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		log.WithError(err).Fatal("dial")
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		CharacterID:     *character,
		Name:            *name,
	}
	if err := conn.WriteJSON(hello); err != nil {
		log.WithError(err).Fatal("send HELLO")
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
		conn.Close()
	}()

	b := &bot{conn: conn, log: log, wander: *wander, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			log.WithFields(logrus.Fields{
				"player":    w.PlayerID,
				"tick_rate": w.WorldParams.TickRateHz,
				"size":      [2]int{w.WorldParams.Width, w.WorldParams.Height},
			}).Info("WELCOME")
			if err := b.setTerrain(w.WorldParams); err != nil {
				log.WithError(err).Warn("map_rle unusable; wandering blind")
			}
		case protocol.TypeError:
			var e protocol.ErrorMsg
			_ = json.Unmarshal(msg, &e)
			log.WithField("code", e.Code).Error(e.Message)
			return
		case protocol.TypeSnapshot:
			var snap protocol.SnapshotMsg
			if err := json.Unmarshal(msg, &snap); err != nil {
				continue
			}
			b.onSnapshot(&snap)
		}
	}
}

// bot gathers the nearest live resource whenever it is idle and wanders otherwise.
type bot struct {
	conn   *websocket.Conn
	log    logrus.FieldLogger
	wander int
	rng    *rand.Rand

	// terrain is the static map from WELCOME, row-major, 1 = blocked. Empty until then.
	terrain       []uint8
	width, height int

	// lastOrder is the tick of the last command; the bot waits a few ticks for it to land.
	lastOrder uint64
}

func (b *bot) onSnapshot(s *protocol.SnapshotMsg) {
	for _, ev := range s.Events {
		if ev.Text != "" {
			b.log.WithField("tick", ev.Tick).Info(ev.Text)
		}
	}
	if s.Self.Action != nil || len(s.Self.Path) > 0 || s.Self.Pending != nil {
		return
	}
	if s.Tick < b.lastOrder+5 {
		return
	}
	b.lastOrder = s.Tick

	if target, ok := nearestAlive(s.Self.Pos, s.Resources); ok {
		_ = b.conn.WriteJSON(protocol.InteractMsg{Type: protocol.TypeInteract, ProtocolVersion: protocol.Version, At: target})
		return
	}
	if to, ok := b.wanderTarget(s.Self.Pos); ok {
		_ = b.conn.WriteJSON(protocol.MoveMsg{Type: protocol.TypeMove, ProtocolVersion: protocol.Version, To: to})
	}
}

func (b *bot) setTerrain(p protocol.WorldParams) error {
	if p.MapRLE == "" {
		return nil
	}
	cells, err := encoding.DecodeRLE(p.MapRLE, p.Width*p.Height)
	if err != nil {
		return err
	}
	if len(cells) != p.Width*p.Height {
		return fmt.Errorf("map_rle has %d cells, want %d", len(cells), p.Width*p.Height)
	}
	b.terrain, b.width, b.height = cells, p.Width, p.Height
	return nil
}

// wanderTarget picks a random tile within b.wander of from. Once the terrain is known it
// only picks in-bounds tiles the static map leaves open.
func (b *bot) wanderTarget(from [2]int) ([2]int, bool) {
	if b.wander <= 0 {
		return [2]int{}, false
	}
	for try := 0; try < 16; try++ {
		to := [2]int{
			from[0] + b.rng.Intn(2*b.wander+1) - b.wander,
			from[1] + b.rng.Intn(2*b.wander+1) - b.wander,
		}
		if b.open(to) {
			return to, true
		}
	}
	return [2]int{}, false
}

func (b *bot) open(p [2]int) bool {
	if b.terrain == nil {
		return true
	}
	if p[0] < 0 || p[1] < 0 || p[0] >= b.width || p[1] >= b.height {
		return false
	}
	return b.terrain[p[1]*b.width+p[0]] == 0
}

func nearestAlive(from [2]int, rs []protocol.ResourceObs) ([2]int, bool) {
	best, bestD := [2]int{}, -1
	for _, r := range rs {
		if !r.Alive {
			continue
		}
		d := abs(r.Pos[0]-from[0]) + abs(r.Pos[1]-from[1])
		if bestD < 0 || d < bestD {
			best, bestD = r.Pos, d
		}
	}
	return best, bestD >= 0
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
