package main

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"

	"blockmarch.dev/internal/protocol"
)

func main() {
	var (
		url        = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name       = flag.String("name", "bot", "client name")
		seed       = flag.Int64("seed", 1, "rng seed for command choices")
		spawnEvery = flag.Uint64("spawn_every", 10, "spawn a block every N ticks (0 disables)")
		wallEvery  = flag.Uint64("wall_every", 50, "toggle a wall every N ticks (0 disables)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      *name,
		MaxQueue:        8,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.Close()
	}()

	b := newBot(rand.New(rand.NewSource(*seed)), *spawnEvery, *wallEvery)
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
			b.welcome(w)
			logger.Printf("WELCOME session=%s world=%s size=%dx%d tick_rate=%d", w.SessionID, w.WorldID, w.Width, w.Height, w.TickRateHz)

		case protocol.TypeFrame:
			var f protocol.FrameMsg
			if err := json.Unmarshal(msg, &f); err != nil {
				continue
			}
			for _, c := range b.onFrame(f) {
				if err := conn.WriteJSON(c); err != nil {
					return
				}
			}

		case protocol.TypeAck:
			var a protocol.AckMsg
			if err := json.Unmarshal(msg, &a); err != nil {
				continue
			}
			if !a.OK {
				logger.Printf("ACK %s failed at tick %d: %s %s", a.Ref, a.Tick, a.Code, a.Message)
			}
		}
	}
}
