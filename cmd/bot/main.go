package main

import (
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"megabots.dev/internal/protocol"
	"megabots.dev/internal/sim/mirror"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		robotID  = flag.Int("robot", 0, "robot id to drive (0 connects as an observer)")
		capacity = flag.Int("lift_capacity", 0, "lift capacity to announce (0 keeps the configured one)")
		wander   = flag.Bool("wander", false, "send the robot to a random cell whenever it goes idle")
		seed     = flag.Int64("seed", time.Now().UnixNano(), "wander seed")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var hello []byte
	if *robotID > 0 {
		hello, err = protocol.Encode(protocol.TypeRobotConnect, protocol.RobotHelloData{RobotID: *robotID, LiftCapacity: *capacity})
	} else {
		hello, err = protocol.Encode(protocol.TypeWebsiteConnect, protocol.WebsiteConnectData{WebsiteID: time.Now().UnixMilli()})
	}
	if err != nil {
		logger.Fatalf("encode hello: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, hello); err != nil {
		logger.Fatalf("send hello: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		if *robotID > 0 {
			if b, err := protocol.Encode(protocol.TypeRobotDisconnect, protocol.RobotDisconnectData{RobotID: *robotID}); err == nil {
				_ = conn.WriteMessage(websocket.TextMessage, b)
			}
		}
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
	}()

	m := mirror.New()
	rng := rand.New(rand.NewSource(*seed))
	pending := false
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			logger.Printf("read: %v", err)
			return
		}
		msg, err := m.ApplyFrame(raw)
		if err != nil {
			logger.Printf("apply %s: %v", msg.Type, err)
			continue
		}
		switch msg.Type {
		case protocol.TypeWorldInfo:
			info := m.Snapshot()
			logger.Printf("world_info tick=%d map=%dx%d robots=%d program=%s", info.Tick, info.Map.Width, info.Map.Height, len(info.Robots), info.ActiveProgram)
		case protocol.TypeError:
			var e protocol.ErrorData
			_ = protocol.DecodeData(msg, &e)
			logger.Printf("error %s: %s (for %s)", e.Code, e.Message, e.For)
			pending = false
		case protocol.TypeNewDirection:
			pending = false
		case protocol.TypeWebsiteTick:
			tick := m.Snapshot().Tick
			if tick%50 == 0 {
				logger.Printf("tick=%d digest=%s", tick, m.Digest()[:12])
			}
			if *wander && *robotID > 0 && !pending {
				pending = wanderOnce(conn, m, *robotID, rng, logger)
			}
		}
	}
}

// wanderOnce queues a random interior cell for an idle robot. It reports
// whether a command was sent.
func wanderOnce(conn *websocket.Conn, m *mirror.Mirror, robotID int, rng *rand.Rand, logger *log.Logger) bool {
	r, ok := m.Robot(robotID)
	if !ok || !r.Connected || len(r.Directions) > 0 {
		return false
	}
	info := m.Snapshot()
	if info.Map.Width < 3 || info.Map.Height < 3 {
		return false
	}
	x := 1 + rng.Intn(info.Map.Width-2)
	y := 1 + rng.Intn(info.Map.Height-2)
	if t := m.Tile(x, y); t == protocol.TileChest || t == protocol.TileWall {
		return false
	}
	b, err := protocol.Encode(protocol.TypeNewDirection, protocol.NewDirectionData{
		RobotID:   robotID,
		Direction: protocol.Direction{X: x, Y: y},
	})
	if err != nil {
		return false
	}
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		logger.Printf("send new_direction: %v", err)
		return false
	}
	return true
}
