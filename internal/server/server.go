// Package server exposes matches over websockets at /game/{id}.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/park285/cheese-checkers/internal/match"
	"github.com/park285/cheese-checkers/internal/obslog"
	"github.com/park285/cheese-checkers/internal/outbox"
)

const (
	indexText        = "Endpoint for checkers game"
	defaultReadLimit = 512
	pingTimeout      = 3 * time.Second
	maxPingFailures  = 2
)

type Options struct {
	// Host patterns accepted in the Origin header; empty accepts any origin.
	AllowedOrigins []string
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	ReadLimit      int64
}

type Server struct {
	reg  *match.Registry
	opts Options
	mux  *http.ServeMux

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(reg *match.Registry, opts Options) *Server {
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = defaultReadLimit
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	s := &Server{reg: reg, opts: opts, mux: http.NewServeMux()}
	s.base, s.cancel = context.WithCancel(context.Background())
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /game/{id}", s.handleGame)
	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

// Close drops every open game connection. Each connection leaves its match
// on the way out, so sessions are torn down normally.
func (s *Server) Close() { s.cancel() }

// Wait blocks until all connection handlers have returned or ctx is done.
func (s *Server) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(indexText))
}

func (s *Server) acceptOptions() *websocket.AcceptOptions {
	if len(s.opts.AllowedOrigins) == 0 {
		return &websocket.AcceptOptions{InsecureSkipVerify: true}
	}
	return &websocket.AcceptOptions{OriginPatterns: s.opts.AllowedOrigins}
}

func (s *Server) handleGame(w http.ResponseWriter, r *http.Request) {
	s.wg.Add(1)
	defer s.wg.Done()
	matchID := r.PathValue("id")
	conn, err := websocket.Accept(w, r, s.acceptOptions())
	if err != nil {
		obslog.L().Warn("ws_accept_error", zap.String("match_id", matchID), zap.String("origin", r.Header.Get("Origin")), zap.Error(err))
		return
	}
	conn.SetReadLimit(s.opts.ReadLimit)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(s.base, cancel)
	defer stop()

	c := &client{
		id:      uuid.NewString(),
		matchID: matchID,
		conn:    conn,
		out:     outbox.New[string](),
		opts:    s.opts,
		done:    make(chan struct{}),
	}
	obslog.L().Info("ws_connect", zap.String("match_id", matchID), zap.String("player_id", c.id), zap.String("remote", r.RemoteAddr))

	go c.writeLoop(ctx, cancel)

	if _, err := s.reg.Join(matchID, c.id, c.out); err != nil {
		// the role message ("full") is still queued; let the writer flush it
		c.out.Close()
		c.waitWriter(s.opts.WriteTimeout)
		status := websocket.StatusInternalError
		if errors.Is(err, match.ErrSessionFull) {
			status = websocket.StatusTryAgainLater
		}
		_ = conn.Close(status, "not admitted")
		return
	}

	if s.opts.PingInterval > 0 {
		go c.pingLoop(ctx, cancel)
	}

	reason := c.readLoop(ctx, s.reg)
	cancel()
	s.reg.Leave(matchID, c.id)
	c.out.Close()
	<-c.done
	_ = conn.Close(websocket.StatusNormalClosure, "")
	obslog.L().Info("ws_disconnect", zap.String("match_id", matchID), zap.String("player_id", c.id), zap.String("reason", reason))
}
