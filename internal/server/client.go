package server

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/park285/cheese-checkers/internal/match"
	"github.com/park285/cheese-checkers/internal/obslog"
	"github.com/park285/cheese-checkers/internal/outbox"
)

// client is one websocket connection seated (or trying to sit) in a match.
type client struct {
	id      string
	matchID string
	conn    *websocket.Conn
	out     *outbox.Queue[string]
	opts    Options
	done    chan struct{} // closed when writeLoop returns
}

// readLoop feeds text frames to the match until the connection fails.
func (c *client) readLoop(ctx context.Context, reg *match.Registry) string {
	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return "closed"
			}
			if status := websocket.CloseStatus(err); status != -1 {
				return "peer_close:" + status.String()
			}
			obslog.L().Debug("ws_read_error", zap.String("match_id", c.matchID), zap.String("player_id", c.id), zap.Error(err))
			return "read_error"
		}
		if typ != websocket.MessageText {
			continue
		}
		_ = reg.Move(c.matchID, c.id, string(data))
	}
}

// writeLoop drains the outbox onto the socket. A failed write ends the
// connection; a closed outbox ends the loop once drained.
func (c *client) writeLoop(ctx context.Context, cancel context.CancelFunc) {
	defer close(c.done)
	for {
		msg, err := c.out.Next(ctx)
		if err != nil {
			if !errors.Is(err, outbox.ErrClosed) && !errors.Is(err, context.Canceled) {
				obslog.L().Debug("ws_outbox_error", zap.String("player_id", c.id), zap.Error(err))
			}
			return
		}
		wctx, wcancel := context.WithTimeout(ctx, c.opts.WriteTimeout)
		err = c.conn.Write(wctx, websocket.MessageText, []byte(msg))
		wcancel()
		if err != nil {
			obslog.L().Warn("ws_write_error", zap.String("match_id", c.matchID), zap.String("player_id", c.id), zap.Error(err))
			cancel()
			return
		}
	}
}

func (c *client) waitWriter(limit time.Duration) {
	t := time.NewTimer(limit)
	defer t.Stop()
	select {
	case <-c.done:
	case <-t.C:
	}
}

func (c *client) pingLoop(ctx context.Context, cancel context.CancelFunc) {
	t := time.NewTicker(c.opts.PingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, pcancel := context.WithTimeout(ctx, pingTimeout)
			err := c.conn.Ping(pctx)
			pcancel()
			if err == nil {
				failures = 0
				continue
			}
			if ctx.Err() != nil {
				return
			}
			failures++
			if failures >= maxPingFailures {
				obslog.L().Info("ws_ping_failure", zap.String("match_id", c.matchID), zap.String("player_id", c.id), zap.Error(err))
				cancel()
				return
			}
		}
	}
}
