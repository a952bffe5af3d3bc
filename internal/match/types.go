package match

import (
	"time"

	"github.com/park285/cheese-checkers/internal/checkers"
)

// Role is the private message a player receives on admission.
type Role string

const (
	RoleBlack Role = "black"
	RoleWhite Role = "white"
	RoleFull  Role = "full"
)

// Sink receives outbound text for one player. Send must not block.
type Sink interface {
	Send(msg string) error
}

// Summary describes a live match after an accepted change.
type Summary struct {
	ID        string            `json:"id"`
	Players   int               `json:"players"`
	BlackID   string            `json:"black_id,omitempty"`
	WhiteID   string            `json:"white_id,omitempty"`
	Version   uint64            `json:"version"`
	Snapshot  checkers.Snapshot `json:"snapshot"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Result is the final record of a torn-down match.
type Result struct {
	ID        string
	BlackID   string
	WhiteID   string
	History   []checkers.Record
	Board     string
	Turn      string
	StartedAt time.Time
	EndedAt   time.Time
}

// Errors
var (
	ErrSessionFull        = errf("session already has two players")
	ErrSessionClosed      = errf("session closed")
	ErrRoleDelivery       = errf("role message not delivered")
	ErrWaitingForOpponent = errf("waiting for opponent")
	ErrNotSeated          = errf("player not in session")
	ErrNotYourTurn        = errf("not your turn")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }
