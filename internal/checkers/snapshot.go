package checkers

import "encoding/json"

// Snapshot is the full state broadcast to players after every accepted change.
type Snapshot struct {
	Turn     string  `json:"turn"`
	JustTake *[2]int `json:"just_take,omitempty"`
	Board    string  `json:"board"`
}

// Snapshot captures the current state. It does not mutate the engine.
func (e *Engine) Snapshot() Snapshot {
	s := Snapshot{Turn: e.turn.String(), Board: e.board.String()}
	if e.hasPend {
		s.JustTake = &[2]int{e.pending.Row, e.pending.Col}
	}
	return s
}

// JSON encodes the snapshot as sent on the wire.
func (s Snapshot) JSON() string {
	raw, err := json.Marshal(s)
	if err != nil {
		// Only strings and ints; Marshal cannot fail here.
		panic(err)
	}
	return string(raw)
}

// Pending returns the just_take square when set.
func (s Snapshot) Pending() (Square, bool) {
	if s.JustTake == nil {
		return Square{}, false
	}
	return Square{Row: s.JustTake[0], Col: s.JustTake[1]}, true
}
