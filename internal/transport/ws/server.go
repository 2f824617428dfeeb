package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"megabots.dev/internal/protocol"
	"megabots.dev/internal/sim/world"
)

// Server accepts robot and browser links on one websocket endpoint. The
// first frame decides the link kind: website_connect or robot_connect.
type Server struct {
	world     *world.World
	log       *log.Logger
	validator *protocol.Validator
	queue     int

	upgrader websocket.Upgrader
}

func NewServer(w *world.World, v *protocol.Validator, queue int, logger *log.Logger) *Server {
	if queue <= 0 {
		queue = 256
	}
	return &Server{
		world:     w,
		log:       logger,
		validator: v,
		queue:     queue,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sid, out, done := s.handshake(conn)
		if sid == "" {
			return
		}
		defer func() {
			select {
			case s.world.Leave() <- sid:
			case <-time.After(2 * time.Second):
				s.logf("leave %s dropped: world not draining", sid)
			}
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case <-done:
					// Dropped by the world; whatever is still queued is flushed first.
					for {
						select {
						case b := <-out:
							_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
							if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
								writeErr <- err
								return
							}
							continue
						default:
						}
						break
					}
					_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "dropped by world, reconnect"), time.Now().Add(time.Second))
					_ = conn.Close()
					writeErr <- nil
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, raw, err := conn.ReadMessage()
			if err != nil {
				break
			}
			msg, err := s.validator.DecodeInbound(raw)
			if err != nil {
				trySend(out, errorFrame(protocol.ErrProtoBadRequest, err.Error(), msg.Type))
				continue
			}
			if err := s.world.Submit(ctx, world.Command{SessionID: sid, Msg: msg}); err != nil {
				trySend(out, errorFrame(protocol.ErrWorldBusy, err.Error(), msg.Type))
				break
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) (sid string, out chan []byte, done <-chan struct{}) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return "", nil, nil
	}

	msg, err := s.validator.DecodeInbound(raw)
	if err != nil {
		s.reject(conn, protocol.ErrProtoBadRequest, err.Error(), msg.Type)
		return "", nil, nil
	}

	sid = uuid.NewString()
	req := world.JoinRequest{SessionID: sid}
	switch msg.Type {
	case protocol.TypeWebsiteConnect:
		var hello protocol.WebsiteConnectData
		if err := protocol.DecodeData(msg, &hello); err != nil {
			s.reject(conn, protocol.ErrProtoBadRequest, err.Error(), msg.Type)
			return "", nil, nil
		}
		s.logf("website %v joined as %s", hello.WebsiteID, sid)
	case protocol.TypeRobotConnect:
		var hello protocol.RobotHelloData
		if err := protocol.DecodeData(msg, &hello); err != nil {
			s.reject(conn, protocol.ErrProtoBadRequest, err.Error(), msg.Type)
			return "", nil, nil
		}
		req.Hello = &hello
	default:
		s.reject(conn, protocol.ErrProtoBadRequest, "expected website_connect or robot_connect", msg.Type)
		return "", nil, nil
	}

	out = make(chan []byte, s.queue)
	respCh := make(chan world.JoinResponse, 1)
	req.Out = out
	req.Resp = respCh
	select {
	case s.world.Join() <- req:
	default:
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server busy"), time.Now().Add(time.Second))
		return "", nil, nil
	}

	var resp world.JoinResponse
	select {
	case resp = <-respCh:
	case <-time.After(5 * time.Second):
		// The request may still be applied; make sure it does not linger.
		go func() {
			<-respCh
			s.world.Leave() <- sid
		}()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server busy"), time.Now().Add(time.Second))
		return "", nil, nil
	}
	if resp.Err != nil {
		s.reject(conn, world.ErrorCode(resp.Err), resp.Err.Error(), msg.Type)
		return "", nil, nil
	}
	if req.Hello != nil {
		s.logf("robot %d linked as %s", req.Hello.RobotID, sid)
	}
	return sid, out, resp.Done
}

// reject sends an error frame and closes the link.
func (s *Server) reject(conn *websocket.Conn, code, message, forType string) {
	s.logf("handshake rejected: %s %s", code, message)
	_ = writeFrame(conn, errorFrame(code, message, forType))
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, code), time.Now().Add(time.Second))
}

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}

func errorFrame(code, message, forType string) []byte {
	b, err := protocol.Encode(protocol.TypeError, protocol.ErrorData{Code: code, Message: message, For: forType})
	if err != nil {
		b, _ = json.Marshal(protocol.Message{Type: protocol.TypeError})
	}
	return b
}

func writeFrame(conn *websocket.Conn, b []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	}
	return nil
}

func trySend(ch chan []byte, b []byte) bool {
	select {
	case ch <- b:
		return true
	default:
		return false
	}
}
