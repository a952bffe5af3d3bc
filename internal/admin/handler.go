// Package admin serves a read-only status API over fasthttp.
package admin

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/cheese-checkers/internal/archive"
	"github.com/park285/cheese-checkers/internal/checkers"
	"github.com/park285/cheese-checkers/internal/match"
	"github.com/park285/cheese-checkers/internal/obslog"
	"github.com/park285/cheese-checkers/internal/render"
)

// LiveIndex lists matches mirrored by every server process.
type LiveIndex interface {
	List(ctx context.Context) ([]match.Summary, error)
}

// History lists archived matches.
type History interface {
	Recent(ctx context.Context, limit int) ([]archive.Match, error)
}

type Handler struct {
	reg      *match.Registry
	renderer render.BoardRenderer
	live     LiveIndex
	history  History
	timeout  time.Duration
}

type Option func(*Handler)

func WithLiveIndex(l LiveIndex) Option { return func(h *Handler) { h.live = l } }
func WithHistory(hs History) Option    { return func(h *Handler) { h.history = hs } }

func NewHandler(reg *match.Registry, renderer render.BoardRenderer, opts ...Option) *Handler {
	h := &Handler{reg: reg, renderer: renderer, timeout: 5 * time.Second}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle routes:
//
//	GET /healthz
//	GET /games
//	GET /games/{id}
//	GET /games/{id}/board.png?flip=1
//	GET /live      (needs a LiveIndex)
//	GET /archive?limit=N (needs a History)
func (h *Handler) Handle(ctx *fasthttp.RequestCtx) {
	if !ctx.IsGet() && !ctx.IsHead() {
		ctx.Error("method not allowed", fasthttp.StatusMethodNotAllowed)
		return
	}
	path := string(ctx.Path())
	switch {
	case path == "/healthz":
		ctx.SetContentType("text/plain; charset=utf-8")
		ctx.SetBodyString("ok")
	case path == "/games":
		h.writeJSON(ctx, h.reg.List())
	case path == "/live":
		h.handleLive(ctx)
	case path == "/archive":
		h.handleArchive(ctx)
	case strings.HasPrefix(path, "/games/"):
		rest := strings.TrimPrefix(path, "/games/")
		if id, ok := strings.CutSuffix(rest, "/board.png"); ok {
			h.handleBoard(ctx, id)
			return
		}
		h.handleGame(ctx, rest)
	default:
		ctx.Error("not found", fasthttp.StatusNotFound)
	}
}

func (h *Handler) handleGame(ctx *fasthttp.RequestCtx, id string) {
	s, ok := h.lookup(id)
	if !ok {
		ctx.Error("match not found", fasthttp.StatusNotFound)
		return
	}
	h.writeJSON(ctx, s.Summary())
}

func (h *Handler) handleBoard(ctx *fasthttp.RequestCtx, id string) {
	s, ok := h.lookup(id)
	if !ok {
		ctx.Error("match not found", fasthttp.StatusNotFound)
		return
	}
	snap := s.Snapshot()
	args := ctx.QueryArgs()
	opts := render.Options{Flip: args.GetBool("flip")}
	if args.Has("row") && args.Has("col") {
		sq := checkers.Square{Row: args.GetUintOrZero("row"), Col: args.GetUintOrZero("col")}
		if sq.Valid() {
			opts.Highlight = &sq
		}
	}

	rctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	img, err := h.renderer.RenderPNG(rctx, snap, opts)
	if err != nil {
		obslog.L().Error("admin_render_error", zap.String("match_id", id), zap.Error(err))
		ctx.Error("render failed", fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetContentType("image/png")
	ctx.Response.Header.Set("Cache-Control", "no-store")
	ctx.SetBody(img)
}

func (h *Handler) handleLive(ctx *fasthttp.RequestCtx) {
	if h.live == nil {
		ctx.Error("live index disabled", fasthttp.StatusNotFound)
		return
	}
	rctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	list, err := h.live.List(rctx)
	if err != nil {
		obslog.L().Warn("admin_live_error", zap.Error(err))
		ctx.Error("live index unavailable", fasthttp.StatusBadGateway)
		return
	}
	h.writeJSON(ctx, list)
}

func (h *Handler) handleArchive(ctx *fasthttp.RequestCtx) {
	if h.history == nil {
		ctx.Error("archive disabled", fasthttp.StatusNotFound)
		return
	}
	limit := ctx.QueryArgs().GetUintOrZero("limit")
	rctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	list, err := h.history.Recent(rctx, limit)
	if err != nil {
		obslog.L().Warn("admin_archive_error", zap.Error(err))
		ctx.Error("archive unavailable", fasthttp.StatusBadGateway)
		return
	}
	if list == nil {
		list = []archive.Match{}
	}
	h.writeJSON(ctx, list)
}

func (h *Handler) lookup(id string) (*match.Session, bool) {
	if id == "" || strings.Contains(id, "/") {
		return nil, false
	}
	return h.reg.Get(id)
}

func (h *Handler) writeJSON(ctx *fasthttp.RequestCtx, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		ctx.Error("encode failed", fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetContentType("application/json")
	ctx.SetBody(raw)
}

// Serve runs the admin API on ln until ctx is done.
func Serve(ctx context.Context, ln net.Listener, h *Handler) error {
	srv := &fasthttp.Server{
		Handler:      h.Handle,
		Name:         "checkers-admin",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		if err := srv.Shutdown(); err != nil {
			return err
		}
		return <-errCh
	}
}

// ListenAndServe binds addr and calls Serve.
func ListenAndServe(ctx context.Context, addr string, h *Handler) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	obslog.L().Info("admin_listen", zap.String("addr", ln.Addr().String()))
	return Serve(ctx, ln, h)
}
