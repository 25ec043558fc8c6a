package world

// ---- Debug/Test Helpers ----
//
// These let black-box tests in sibling packages (e.g. internal/sim/worldtest)
// drive sessions without Run. They are NOT safe to call concurrently with Run().

// DebugJoin registers a session the way the world loop would.
func (w *World) DebugJoin(req JoinRequest) {
	if w == nil {
		return
	}
	w.handleJoin(req)
}

func (w *World) DebugLeave(sessionID string) {
	if w == nil {
		return
	}
	w.handleLeave(sessionID)
}
