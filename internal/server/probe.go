package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-checkers/internal/checkers"
)

// ProbeResult is what a fresh connection saw on admission.
type ProbeResult struct {
	Role     string
	Snapshot checkers.Snapshot
	Elapsed  time.Duration
}

// Probe joins matchID on the game endpoint at baseURL, reads the role and
// first snapshot, then disconnects. baseURL may be ws(s):// or http(s)://.
func Probe(ctx context.Context, baseURL, matchID string, header http.Header) (*ProbeResult, error) {
	start := time.Now()
	url := strings.TrimRight(baseURL, "/") + "/game/" + matchID
	switch {
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	}

	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      header,
	})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "probe done")

	typ, data, err := conn.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read role: %w", err)
	}
	if typ != websocket.MessageText {
		return nil, fmt.Errorf("role frame type %v", typ)
	}
	res := &ProbeResult{Role: string(data)}
	if res.Role == "full" {
		res.Elapsed = time.Since(start)
		return res, nil
	}
	if err := wsjson.Read(ctx, conn, &res.Snapshot); err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if _, err := checkers.ParseBoard(res.Snapshot.Board); err != nil {
		return nil, fmt.Errorf("snapshot board: %w", err)
	}
	res.Elapsed = time.Since(start)
	return res, nil
}
