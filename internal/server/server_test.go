package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"github.com/park285/cheese-checkers/internal/checkers"
	"github.com/park285/cheese-checkers/internal/match"
)

func newTestServer(t *testing.T, opts Options) (*httptest.Server, *match.Registry, *Server) {
	t.Helper()
	reg := match.NewRegistry()
	s := New(reg, opts)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Close()
		ts.Close()
	})
	return ts, reg, s
}

func dial(t *testing.T, ts *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + path
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial %s: %v", path, err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	typ, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if typ != websocket.MessageText {
		t.Fatalf("message type = %v", typ)
	}
	return string(data)
}

func writeText(t *testing.T, conn *websocket.Conn, msg string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, []byte(msg)); err != nil {
		t.Fatalf("Write: %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestIndex(t *testing.T) {
	ts, _, _ := newTestServer(t, Options{})
	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != indexText {
		t.Fatalf("GET / = %d %q", resp.StatusCode, body)
	}

	resp2, err := http.Get(ts.URL + "/nope")
	if err != nil {
		t.Fatalf("GET /nope: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Fatalf("GET /nope = %d", resp2.StatusCode)
	}
}

func TestTwoPlayersMatch(t *testing.T) {
	ts, reg, _ := newTestServer(t, Options{})
	initial := checkers.NewEngine().Snapshot().JSON()

	a := dial(t, ts, "/game/room")
	if got := readText(t, a); got != "black" {
		t.Fatalf("A role = %q", got)
	}
	if got := readText(t, a); got != initial {
		t.Fatalf("A snapshot = %s", got)
	}

	b := dial(t, ts, "/game/room")
	if got := readText(t, b); got != "white" {
		t.Fatalf("B role = %q", got)
	}
	if got := readText(t, b); got != initial {
		t.Fatalf("B snapshot = %s", got)
	}
	if got := readText(t, a); got != initial {
		t.Fatalf("A second snapshot = %s", got)
	}

	// black moving on white's turn and garbage are both silent
	writeText(t, a, "5,0,4,1")
	writeText(t, b, "not a move")
	writeText(t, b, "5,0,4,1")

	wantPrefix := `{"turn":"black","board":"`
	gotA, gotB := readText(t, a), readText(t, b)
	if !strings.HasPrefix(gotA, wantPrefix) || gotA != gotB {
		t.Fatalf("after move: A=%s B=%s", gotA, gotB)
	}
	if strings.Contains(gotA, "just_take") {
		t.Fatalf("unexpected just_take: %s", gotA)
	}

	if reg.Len() != 1 {
		t.Fatalf("Len = %d", reg.Len())
	}
}

func TestThirdPlayerGetsFull(t *testing.T) {
	ts, reg, _ := newTestServer(t, Options{})
	a := dial(t, ts, "/game/room")
	readText(t, a)
	readText(t, a)
	b := dial(t, ts, "/game/room")
	readText(t, b)
	readText(t, b)
	readText(t, a)

	c := dial(t, ts, "/game/room")
	if got := readText(t, c); got != "full" {
		t.Fatalf("third role = %q", got)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, _, err := c.Read(ctx); websocket.CloseStatus(err) != websocket.StatusTryAgainLater {
		t.Fatalf("third connection close = %v", err)
	}

	s, ok := reg.Get("room")
	if !ok {
		t.Fatalf("session gone")
	}
	if sum := s.Summary(); sum.Players != 2 {
		t.Fatalf("players = %d", sum.Players)
	}
}

func TestDisconnectTearsDown(t *testing.T) {
	ts, reg, _ := newTestServer(t, Options{})
	a := dial(t, ts, "/game/room")
	readText(t, a)
	readText(t, a)
	b := dial(t, ts, "/game/room")
	readText(t, b)
	readText(t, b)
	readText(t, a)

	_ = a.Close(websocket.StatusNormalClosure, "bye")
	waitFor(t, "A removed", func() bool {
		s, ok := reg.Get("room")
		return ok && s.Summary().Players == 1
	})

	// the freed black seat goes to the next arrival
	c := dial(t, ts, "/game/room")
	if got := readText(t, c); got != "black" {
		t.Fatalf("replacement role = %q", got)
	}

	_ = b.Close(websocket.StatusNormalClosure, "bye")
	_ = c.Close(websocket.StatusNormalClosure, "bye")
	waitFor(t, "session teardown", func() bool { return reg.Len() == 0 })
}

func TestOversizedFrameDisconnects(t *testing.T) {
	ts, reg, _ := newTestServer(t, Options{ReadLimit: 64})
	a := dial(t, ts, "/game/room")
	readText(t, a)
	readText(t, a)

	writeText(t, a, strings.Repeat("9", 200))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, _, err := a.Read(ctx); err == nil {
		t.Fatalf("connection survived oversized frame")
	}
	waitFor(t, "session teardown", func() bool { return reg.Len() == 0 })
}

func TestBinaryFramesIgnored(t *testing.T) {
	ts, _, _ := newTestServer(t, Options{})
	a := dial(t, ts, "/game/room")
	readText(t, a)
	readText(t, a)
	b := dial(t, ts, "/game/room")
	readText(t, b)
	readText(t, b)
	readText(t, a)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.Write(ctx, websocket.MessageBinary, []byte("5,0,4,1")); err != nil {
		t.Fatalf("Write binary: %v", err)
	}
	writeText(t, b, "5,2,4,3")
	got := readText(t, a)
	board, err := checkers.ParseBoard(mustSnapshotBoard(t, got))
	if err != nil {
		t.Fatalf("ParseBoard: %v", err)
	}
	if _, ok := board.At(checkers.Square{Row: 5, Col: 0}); !ok {
		t.Fatalf("binary frame was applied")
	}
	if _, ok := board.At(checkers.Square{Row: 4, Col: 3}); !ok {
		t.Fatalf("text frame was not applied")
	}
}

func TestOriginAllowList(t *testing.T) {
	ts, _, _ := newTestServer(t, Options{AllowedOrigins: []string{"good.test"}})
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/game/room"
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hdr := http.Header{}
	hdr.Set("Origin", "http://evil.test")
	if _, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: hdr}); err == nil {
		t.Fatalf("foreign origin accepted")
	}

	hdr.Set("Origin", "http://good.test")
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: hdr})
	if err != nil {
		t.Fatalf("allowed origin rejected: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	if got := readText(t, conn); got != "black" {
		t.Fatalf("role = %q", got)
	}
}

func TestCloseDropsConnections(t *testing.T) {
	ts, reg, s := newTestServer(t, Options{})
	a := dial(t, ts, "/game/room")
	readText(t, a)
	readText(t, a)

	s.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if reg.Len() != 0 {
		t.Fatalf("Len = %d", reg.Len())
	}
}

func mustSnapshotBoard(t *testing.T, raw string) string {
	t.Helper()
	var snap checkers.Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		t.Fatalf("decode snapshot %s: %v", raw, err)
	}
	return snap.Board
}

func TestProbe(t *testing.T) {
	ts, reg, _ := newTestServer(t, Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := Probe(ctx, ts.URL, "probe-1", nil)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if res.Role != "black" || res.Snapshot.Turn != "white" {
		t.Fatalf("probe = %+v", res)
	}
	waitFor(t, "probe teardown", func() bool { return reg.Len() == 0 })
}

func TestProbeFullMatch(t *testing.T) {
	ts, _, _ := newTestServer(t, Options{})
	a := dial(t, ts, "/game/room")
	readText(t, a)
	b := dial(t, ts, "/game/room")
	readText(t, b)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := Probe(ctx, ts.URL, "room", nil)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if res.Role != "full" {
		t.Fatalf("role = %q", res.Role)
	}
}
