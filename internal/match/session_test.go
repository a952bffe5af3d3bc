package match

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/park285/cheese-checkers/internal/checkers"
	"github.com/park285/cheese-checkers/internal/outbox"
)

type recSink struct {
	mu     sync.Mutex
	msgs   []string
	closed bool
}

func (r *recSink) Send(msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return outbox.ErrClosed
	}
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recSink) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs...)
}

func (r *recSink) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.msgs) == 0 {
		return ""
	}
	return r.msgs[len(r.msgs)-1]
}

func (r *recSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

func seated(t *testing.T) (*Session, *recSink, *recSink) {
	t.Helper()
	s := NewSession("m1")
	a, b := &recSink{}, &recSink{}
	if role, err := s.AddPlayer("A", a); err != nil || role != RoleBlack {
		t.Fatalf("AddPlayer A: %v %v", role, err)
	}
	if role, err := s.AddPlayer("B", b); err != nil || role != RoleWhite {
		t.Fatalf("AddPlayer B: %v %v", role, err)
	}
	return s, a, b
}

func TestFirstPlayerGetsBlackAndSnapshot(t *testing.T) {
	s := NewSession("m1")
	a := &recSink{}
	role, err := s.AddPlayer("A", a)
	if err != nil || role != RoleBlack {
		t.Fatalf("AddPlayer: %v %v", role, err)
	}
	msgs := a.all()
	if len(msgs) != 2 || msgs[0] != "black" {
		t.Fatalf("messages = %q", msgs)
	}
	want := `{"turn":"white","board":"` + checkers.NewEngine().Snapshot().Board + `"}`
	if msgs[1] != want {
		t.Fatalf("snapshot = %s", msgs[1])
	}
	if strings.Contains(msgs[1], "just_take") {
		t.Fatalf("unexpected just_take in initial snapshot")
	}
}

func TestAdmissionOrder(t *testing.T) {
	s, a, b := seated(t)
	if a.count() != 3 || b.count() != 2 {
		t.Fatalf("message counts a=%d b=%d", a.count(), b.count())
	}
	if b.all()[0] != "white" {
		t.Fatalf("second role = %q", b.all()[0])
	}

	c := &recSink{}
	role, err := s.AddPlayer("C", c)
	if !errors.Is(err, ErrSessionFull) || role != RoleFull {
		t.Fatalf("third AddPlayer: %v %v", role, err)
	}
	if got := c.all(); len(got) != 1 || got[0] != "full" {
		t.Fatalf("third player messages = %q", got)
	}
	if a.count() != 3 || b.count() != 2 {
		t.Fatalf("full admission broadcast to seated players")
	}
	if r, ok := s.Role("A"); !ok || r != RoleBlack {
		t.Fatalf("A role = %v", r)
	}
	if r, ok := s.Role("B"); !ok || r != RoleWhite {
		t.Fatalf("B role = %v", r)
	}
	if _, ok := s.Role("C"); ok {
		t.Fatalf("C seated")
	}
}

func TestRoleDeliveryFailureDoesNotSeat(t *testing.T) {
	s := NewSession("m1")
	dead := &recSink{closed: true}
	if _, err := s.AddPlayer("A", dead); !errors.Is(err, ErrRoleDelivery) {
		t.Fatalf("AddPlayer: %v", err)
	}
	if !s.IsEmpty() {
		t.Fatalf("slot mutated after failed delivery")
	}
	if role, err := s.AddPlayer("B", &recSink{}); err != nil || role != RoleBlack {
		t.Fatalf("next player: %v %v", role, err)
	}
}

func TestFreedBlackSeatIsRefilledFirst(t *testing.T) {
	s, _, _ := seated(t)
	s.RemovePlayer("A")
	if role, err := s.AddPlayer("C", &recSink{}); err != nil || role != RoleBlack {
		t.Fatalf("refill: %v %v", role, err)
	}
}

func TestWhiteMoveBroadcastsToBoth(t *testing.T) {
	s, a, b := seated(t)
	if err := s.SubmitMove("B", "5,0,4,1"); err != nil {
		t.Fatalf("SubmitMove: %v", err)
	}
	for name, sink := range map[string]*recSink{"A": a, "B": b} {
		last := sink.last()
		if !strings.HasPrefix(last, `{"turn":"black","board":"`) {
			t.Fatalf("%s last = %s", name, last)
		}
	}
	snap := s.Snapshot()
	if snap.JustTake != nil {
		t.Fatalf("unexpected just_take")
	}
	board, err := checkers.ParseBoard(snap.Board)
	if err != nil {
		t.Fatalf("ParseBoard: %v", err)
	}
	if _, ok := board.At(checkers.Square{Row: 4, Col: 1}); !ok {
		t.Fatalf("piece not moved")
	}
}

func TestRejectedMovesAreSilent(t *testing.T) {
	s, a, b := seated(t)
	before := s.Snapshot().JSON()
	na, nb := a.count(), b.count()

	cases := []struct {
		player, raw string
		want        error
	}{
		{"A", "2,1,3,0", ErrNotYourTurn},
		{"B", "garbage", checkers.ErrFormat},
		{"B", "5,0,4,0", checkers.ErrNotDiagonal},
		{"B", "skip", checkers.ErrNoPendingCapture},
		{"C", "5,0,4,1", ErrNotSeated},
	}
	for _, tc := range cases {
		if err := s.SubmitMove(tc.player, tc.raw); !errors.Is(err, tc.want) {
			t.Fatalf("SubmitMove(%s, %q): got %v want %v", tc.player, tc.raw, err, tc.want)
		}
	}
	if a.count() != na || b.count() != nb {
		t.Fatalf("rejection produced a broadcast")
	}
	if s.Snapshot().JSON() != before {
		t.Fatalf("rejection mutated state")
	}
}

func TestMoveRequiresOpponent(t *testing.T) {
	s := NewSession("m1")
	b := &recSink{}
	_, _ = s.AddPlayer("A", &recSink{})
	s.RemovePlayer("A")
	_, _ = s.AddPlayer("A2", b)
	n := b.count()
	if err := s.SubmitMove("A2", "2,1,3,0"); !errors.Is(err, ErrWaitingForOpponent) {
		t.Fatalf("SubmitMove: %v", err)
	}
	if b.count() != n {
		t.Fatalf("broadcast without opponent")
	}
}

func TestBroadcastIsBestEffort(t *testing.T) {
	s, a, b := seated(t)
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	n := b.count()
	if err := s.SubmitMove("B", "5,0,4,1"); err != nil {
		t.Fatalf("SubmitMove: %v", err)
	}
	if b.count() != n+1 {
		t.Fatalf("healthy peer missed broadcast")
	}
}

func TestRemovePlayer(t *testing.T) {
	s, _, _ := seated(t)
	if s.RemovePlayer("nobody") {
		t.Fatalf("removed unknown player")
	}
	if !s.RemovePlayer("A") || s.IsEmpty() {
		t.Fatalf("remove A")
	}
	if !s.RemovePlayer("B") || !s.IsEmpty() {
		t.Fatalf("remove B")
	}
}

func TestCaptureChainThroughSession(t *testing.T) {
	s, a, b := seated(t)
	steps := []struct {
		player, raw string
	}{
		{"B", "5,2,4,3"},
		{"A", "2,5,3,4"},
		{"B", "4,3,2,5"},
	}
	for _, st := range steps {
		if err := s.SubmitMove(st.player, st.raw); err != nil {
			t.Fatalf("SubmitMove(%s, %s): %v", st.player, st.raw, err)
		}
	}
	last := b.last()
	if !strings.Contains(last, `"turn":"white"`) || !strings.Contains(last, `"just_take":[2,5]`) {
		t.Fatalf("after capture: %s", last)
	}
	if a.last() != last {
		t.Fatalf("players saw different snapshots")
	}
	if err := s.SubmitMove("A", "skip"); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("opponent skip: %v", err)
	}
	if err := s.SubmitMove("B", "skip"); err != nil {
		t.Fatalf("skip: %v", err)
	}
	if !strings.HasPrefix(b.last(), `{"turn":"black","board"`) {
		t.Fatalf("after skip: %s", b.last())
	}
}

func TestSlowPeerDoesNotBlock(t *testing.T) {
	s := NewSession("m1")
	slow := outbox.New[string]() // never drained
	fast := &recSink{}
	if _, err := s.AddPlayer("A", slow); err != nil {
		t.Fatalf("AddPlayer: %v", err)
	}
	if _, err := s.AddPlayer("B", fast); err != nil {
		t.Fatalf("AddPlayer: %v", err)
	}
	moves := []struct{ p, raw string }{
		{"B", "5,0,4,1"}, {"A", "2,1,3,0"}, {"B", "6,1,5,0"}, {"A", "1,0,2,1"},
	}
	for _, m := range moves {
		if err := s.SubmitMove(m.p, m.raw); err != nil {
			t.Fatalf("SubmitMove(%s, %s): %v", m.p, m.raw, err)
		}
	}
	if slow.Len() != 2+1+len(moves) {
		t.Fatalf("slow queue len = %d", slow.Len())
	}
}
