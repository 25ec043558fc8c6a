package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name"`
	// MaxQueue bounds the frames buffered for this client.
	MaxQueue int `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	SessionID       string   `json:"session_id"`
	WorldID         string   `json:"world_id"`
	Width           int      `json:"width"`
	Height          int      `json:"height"`
	TickRateHz      int      `json:"tick_rate_hz"`
	Tick            uint64   `json:"tick"`
	AgentKinds      []string `json:"agent_kinds,omitempty"`
}

// CMD (client -> server). Applied at the start of the next tick.
type CmdMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	ID              string         `json:"id"`
	Op              string         `json:"op"`
	Structure       *StructureSpec `json:"structure,omitempty"`
	Pos             [2]int         `json:"pos"`
	Kind            string         `json:"kind,omitempty"`
	Amount          int            `json:"amount,omitempty"`
}

// StructureSpec describes a structure to place. Pos comes from the command.
type StructureSpec struct {
	Kind          string  `json:"kind"`
	Rotation      int     `json:"rotation,omitempty"`
	Cost          float64 `json:"cost,omitempty"`
	Impassable    bool    `json:"impassable,omitempty"`
	ExitBlocked   [4]bool `json:"exit_blocked,omitempty"`
	Life          int     `json:"life,omitempty"`
	Removable     *bool   `json:"removable,omitempty"`
	BuildOver     bool    `json:"build_over,omitempty"`
	SpawnKind     string  `json:"spawn_kind,omitempty"`
	SpawnInterval int     `json:"spawn_interval,omitempty"`
	SpawnCount    int     `json:"spawn_count,omitempty"`
	Range         int     `json:"range,omitempty"`
	Power         int     `json:"power,omitempty"`
	Reload        int     `json:"reload,omitempty"`
}

// ACK (server -> client)
type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Ref             string `json:"ref"`
	OK              bool   `json:"ok"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	BlockID         uint32 `json:"block_id,omitempty"`
	Tick            uint64 `json:"tick"`
}

// FRAME (server -> client), one per tick.
type FrameMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	Tick            uint64       `json:"tick"`
	Changed         bool         `json:"changed"`
	Blocks          []BlockState `json:"blocks"`

	// Structures is sent on the first frame of a session and whenever the
	// graph changed this tick.
	Structures []StructureState `json:"structures,omitempty"`
}

type BlockState struct {
	ID     uint32   `json:"id"`
	Kind   string   `json:"kind"`
	Pos    [2]int   `json:"pos"`
	Prev   [2]int   `json:"prev"`
	Life   int      `json:"life"`
	Moving bool     `json:"moving,omitempty"`
	Route  [][2]int `json:"route,omitempty"`
}

type StructureState struct {
	Kind        string  `json:"kind"`
	Pos         [2]int  `json:"pos"`
	Rotation    int     `json:"rotation,omitempty"`
	Cost        float64 `json:"cost,omitempty"`
	Impassable  bool    `json:"impassable,omitempty"`
	ExitBlocked [4]bool `json:"exit_blocked"`
	Life        int     `json:"life,omitempty"`
}
