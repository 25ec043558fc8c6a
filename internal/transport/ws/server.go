package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"blockmarch.dev/internal/protocol"
	"blockmarch.dev/internal/sim/world"
)

type Server struct {
	world *world.World
	log   *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	return &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
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

		sessionID, out := s.handshake(conn)
		if sessionID == "" {
			return
		}
		s.logf("session %s connected from %s", sessionID, r.RemoteAddr)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Acks are never dropped; frames are latest-wins in out.
		acks := make(chan protocol.AckMsg, 64)
		results := make(chan world.CommandResult, 64)

		// Writer goroutine.
		go func() {
			for {
				var b []byte
				select {
				case <-ctx.Done():
					return
				case a := <-acks:
					b, _ = json.Marshal(a)
				case res := <-results:
					b, _ = json.Marshal(ackFor(res))
				case f, ok := <-out:
					if !ok {
						return
					}
					b = f
				}
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					cancel()
					return
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeCmd {
				continue
			}
			var cmd protocol.CmdMsg
			if err := json.Unmarshal(msg, &cmd); err != nil {
				queueAck(ctx, acks, reject("", protocol.ErrProtoBadRequest, err.Error(), s.world.CurrentTick()))
				continue
			}
			if cmd.ProtocolVersion != protocol.Version {
				queueAck(ctx, acks, reject(cmd.ID, protocol.ErrProtoBadRequest, "bad protocol_version", s.world.CurrentTick()))
				continue
			}
			c, err := world.CommandFromProtocol(sessionID, cmd)
			if err != nil {
				queueAck(ctx, acks, reject(cmd.ID, world.ErrorCode(err), err.Error(), s.world.CurrentTick()))
				continue
			}
			c.Resp = results
			select {
			case s.world.Commands() <- c:
			default:
				queueAck(ctx, acks, reject(cmd.ID, protocol.ErrWorldBusy, "command queue full", s.world.CurrentTick()))
			}
		}

		// Cleanup.
		s.world.Leave() <- sessionID
		s.logf("session %s disconnected", sessionID)
	}
}

func (s *Server) handshake(conn *websocket.Conn) (sessionID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return "", nil
	}

	maxQ := hello.MaxQueue
	if maxQ <= 0 {
		maxQ = 8
	}
	if maxQ > 64 {
		maxQ = 64
	}
	out = make(chan []byte, maxQ)
	sessionID = uuid.NewString()

	respCh := make(chan world.JoinResponse, 1)
	s.world.Join() <- world.JoinRequest{SessionID: sessionID, Out: out, Resp: respCh}
	var resp world.JoinResponse
	select {
	case resp = <-respCh:
	case <-time.After(5 * time.Second):
		s.world.Leave() <- sessionID
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "world busy"), time.Now().Add(time.Second))
		return "", nil
	}

	if err := writeJSON(conn, resp.Welcome); err != nil {
		s.world.Leave() <- sessionID
		return "", nil
	}
	return sessionID, out
}

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}

func ackFor(res world.CommandResult) protocol.AckMsg {
	a := protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		Ref:             res.Ref,
		OK:              res.Err == nil,
		BlockID:         uint32(res.BlockID),
		Tick:            res.Tick,
	}
	if res.Err != nil {
		a.Code = world.ErrorCode(res.Err)
		a.Message = res.Err.Error()
	}
	return a
}

func reject(ref, code, message string, tick uint64) protocol.AckMsg {
	return protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		Ref:             ref,
		OK:              false,
		Code:            code,
		Message:         message,
		Tick:            tick,
	}
}

func queueAck(ctx context.Context, acks chan<- protocol.AckMsg, a protocol.AckMsg) {
	select {
	case acks <- a:
	case <-ctx.Done():
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
