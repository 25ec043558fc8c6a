package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"blockmarch.dev/internal/protocol"
)

func compile(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	p := filepath.Join("..", "..", "schemas", name)
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

// asJSON round-trips v through encoding/json so the validator sees plain JSON values.
func asJSON(t *testing.T, v any) any {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func TestSchemas_ValidateMessages(t *testing.T) {
	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(asJSON(t, v)); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	validate(compile(t, "hello.schema.json"), protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      "viewer",
	})
	validate(compile(t, "welcome.schema.json"), protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       "0b5d5a4e-6b0c-4a51-9a57-3e0d2a6e4f11",
		WorldID:         "demo",
		Width:           16,
		Height:          8,
		TickRateHz:      5,
		AgentKinds:      []string{"runner"},
	})
	validate(compile(t, "cmd.schema.json"), protocol.CmdMsg{
		Type:            protocol.TypeCmd,
		ProtocolVersion: protocol.Version,
		ID:              "c1",
		Op:              protocol.OpPlace,
		Pos:             [2]int{3, 4},
		Structure:       &protocol.StructureSpec{Kind: "WALL"},
	})
	validate(compile(t, "ack.schema.json"), protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		Ref:             "c1",
		Code:            protocol.ErrBlocked,
		Tick:            12,
	})
	validate(compile(t, "frame.schema.json"), protocol.FrameMsg{
		Type:            protocol.TypeFrame,
		ProtocolVersion: protocol.Version,
		Tick:            12,
		Changed:         true,
		Blocks: []protocol.BlockState{{
			ID: 1, Kind: "runner", Pos: [2]int{1, 0}, Prev: [2]int{0, 0}, Life: 3, Moving: true,
			Route: [][2]int{{1, 0}, {2, 0}},
		}},
		Structures: []protocol.StructureState{{Kind: "GOAL", Pos: [2]int{2, 0}}},
	})
}

func TestSchemas_RejectPlaceWithoutStructure(t *testing.T) {
	s := compile(t, "cmd.schema.json")
	msg := protocol.CmdMsg{
		Type:            protocol.TypeCmd,
		ProtocolVersion: protocol.Version,
		ID:              "c2",
		Op:              protocol.OpPlace,
	}
	if err := s.Validate(asJSON(t, msg)); err == nil {
		t.Fatalf("expected PLACE without structure to be rejected")
	}
}
