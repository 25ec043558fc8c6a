package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeCmd     = "CMD"
	TypeAck     = "ACK"
	TypeFrame   = "FRAME"
)

// Command ops.
const (
	OpPlace  = "PLACE"
	OpDelete = "DELETE"
	OpSpawn  = "SPAWN"
	OpDamage = "DAMAGE"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

func IsKnownOp(op string) bool {
	switch op {
	case OpPlace, OpDelete, OpSpawn, OpDamage:
		return true
	}
	return false
}
