package match

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/park285/cheese-checkers/internal/checkers"
)

type player struct {
	id   string
	sink Sink
}

// Session is one match: two seats and the rule engine they share. All
// mutation happens under mu; outbound delivery only enqueues on sinks.
type Session struct {
	ID string

	mu     sync.Mutex
	black  *player
	white  *player
	engine *checkers.Engine

	// last occupants, kept for the archive after they leave
	lastBlack string
	lastWhite string

	version   uint64
	createdAt time.Time
	updatedAt time.Time

	closed   atomic.Bool
	notifier Notifier
}

// NewSession returns an empty session with a fresh engine.
func NewSession(id string) *Session {
	return newSession(id, nopNotifier{})
}

func newSession(id string, n Notifier) *Session {
	now := time.Now()
	return &Session{
		ID:        id,
		engine:    checkers.NewEngine(),
		createdAt: now,
		updatedAt: now,
		notifier:  n,
	}
}

// AddPlayer seats playerID in the first free slot (black first) and sends
// the role privately on sink. A third player gets "full" and ErrSessionFull.
func (s *Session) AddPlayer(playerID string, sink Sink) (Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return "", ErrSessionClosed
	}

	var role Role
	switch {
	case s.black == nil:
		role = RoleBlack
	case s.white == nil:
		role = RoleWhite
	default:
		_ = sink.Send(string(RoleFull))
		return RoleFull, ErrSessionFull
	}
	if err := sink.Send(string(role)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRoleDelivery, err)
	}

	p := &player{id: playerID, sink: sink}
	if role == RoleBlack {
		s.black, s.lastBlack = p, playerID
	} else {
		s.white, s.lastWhite = p, playerID
	}
	s.touchLocked()
	s.broadcastLocked()
	return role, nil
}

// RemovePlayer frees the seat held by playerID. Unknown ids are ignored.
func (s *Session) RemovePlayer(playerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.black != nil && s.black.id == playerID:
		s.black = nil
	case s.white != nil && s.white.id == playerID:
		s.white = nil
	default:
		return false
	}
	s.touchLocked()
	return true
}

// IsEmpty reports whether both seats are free.
func (s *Session) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.black == nil && s.white == nil
}

// SubmitMove applies raw for playerID and broadcasts on success. The error
// is for logging only; clients observe a rejection as silence.
func (s *Session) SubmitMove(playerID, raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.black == nil || s.white == nil {
		return ErrWaitingForOpponent
	}
	cmd, err := checkers.ParseCommand(raw)
	if err != nil {
		return err
	}
	var color checkers.Color
	switch playerID {
	case s.black.id:
		color = checkers.Black
	case s.white.id:
		color = checkers.White
	default:
		return ErrNotSeated
	}
	if color != s.engine.Turn() {
		return ErrNotYourTurn
	}
	if err := s.engine.Apply(cmd); err != nil {
		return err
	}
	s.touchLocked()
	s.broadcastLocked()
	return nil
}

// Broadcast sends the current snapshot to every seated player.
func (s *Session) Broadcast() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcastLocked()
}

// Snapshot returns the current engine snapshot.
func (s *Session) Snapshot() checkers.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Snapshot()
}

// Summary describes the session at its current version.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaryLocked()
}

// Role returns the seat playerID holds, if any.
func (s *Session) Role(playerID string) (Role, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.black != nil && s.black.id == playerID:
		return RoleBlack, true
	case s.white != nil && s.white.id == playerID:
		return RoleWhite, true
	}
	return "", false
}

// closeIfEmpty marks an empty session closed so no one can join it again.
func (s *Session) closeIfEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() || s.black != nil || s.white != nil {
		return false
	}
	s.closed.Store(true)
	return true
}

func (s *Session) result() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.engine.Snapshot()
	return Result{
		ID:        s.ID,
		BlackID:   s.lastBlack,
		WhiteID:   s.lastWhite,
		History:   s.engine.History(),
		Board:     snap.Board,
		Turn:      snap.Turn,
		StartedAt: s.createdAt,
		EndedAt:   time.Now(),
	}
}

func (s *Session) touchLocked() {
	s.version++
	s.updatedAt = time.Now()
	s.notifier.MatchChanged(s.summaryLocked())
}

// Delivery is best effort: a closed sink does not stop the other player's.
func (s *Session) broadcastLocked() {
	msg := s.engine.Snapshot().JSON()
	if s.black != nil {
		_ = s.black.sink.Send(msg)
	}
	if s.white != nil {
		_ = s.white.sink.Send(msg)
	}
}

func (s *Session) summaryLocked() Summary {
	sum := Summary{
		ID:        s.ID,
		Version:   s.version,
		Snapshot:  s.engine.Snapshot(),
		CreatedAt: s.createdAt,
		UpdatedAt: s.updatedAt,
	}
	if s.black != nil {
		sum.Players++
		sum.BlackID = s.black.id
	}
	if s.white != nil {
		sum.Players++
		sum.WhiteID = s.white.id
	}
	return sum
}
