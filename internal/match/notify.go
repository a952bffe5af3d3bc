package match

import (
	"context"
	"errors"
	"time"

	"github.com/park285/cheese-checkers/internal/obslog"
	"github.com/park285/cheese-checkers/internal/outbox"
	"go.uber.org/zap"
)

// Notifier observes accepted changes and teardowns. Sessions and the
// registry call it while holding their locks, so implementations must return
// immediately and must not call back into the registry.
type Notifier interface {
	MatchChanged(Summary)
	MatchEnded(Result)
}

type nopNotifier struct{}

func (nopNotifier) MatchChanged(Summary) {}
func (nopNotifier) MatchEnded(Result)    {}

// Index mirrors live matches somewhere outside the process.
type Index interface {
	Put(ctx context.Context, s Summary) error
	Remove(ctx context.Context, id string) error
}

// Archiver stores finished matches.
type Archiver interface {
	SaveMatch(ctx context.Context, r Result) error
}

type event struct {
	summary *Summary
	result  *Result
}

// Publisher queues notifications and forwards them to an Index and an
// Archiver from a single goroutine, in the order they were produced.
type Publisher struct {
	index   Index
	archive Archiver
	timeout time.Duration
	q       *outbox.Queue[event]
}

// NewPublisher accepts nil for either backend.
func NewPublisher(index Index, archive Archiver) *Publisher {
	return &Publisher{index: index, archive: archive, timeout: 5 * time.Second, q: outbox.New[event]()}
}

func (p *Publisher) MatchChanged(s Summary) {
	if p.index == nil {
		return
	}
	_ = p.q.Send(event{summary: &s})
}

func (p *Publisher) MatchEnded(r Result) {
	if p.index == nil && p.archive == nil {
		return
	}
	_ = p.q.Send(event{result: &r})
}

// Pending returns the number of queued events.
func (p *Publisher) Pending() int { return p.q.Len() }

// Close stops accepting events; Run returns after draining the rest.
func (p *Publisher) Close() { p.q.Close() }

// Run forwards events until Close has been called and the queue is drained,
// or ctx is done.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		ev, err := p.q.Next(ctx)
		if errors.Is(err, outbox.ErrClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		p.handle(ctx, ev)
	}
}

func (p *Publisher) handle(ctx context.Context, ev event) {
	cctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	switch {
	case ev.summary != nil:
		if err := p.index.Put(cctx, *ev.summary); err != nil {
			obslog.L().Warn("index_put_error", zap.String("match_id", ev.summary.ID), zap.Uint64("version", ev.summary.Version), zap.Error(err))
		}
	case ev.result != nil:
		if p.index != nil {
			if err := p.index.Remove(cctx, ev.result.ID); err != nil {
				obslog.L().Warn("index_remove_error", zap.String("match_id", ev.result.ID), zap.Error(err))
			}
		}
		if p.archive != nil && len(ev.result.History) > 0 {
			if err := p.archive.SaveMatch(cctx, *ev.result); err != nil {
				obslog.L().Error("archive_save_error", zap.String("match_id", ev.result.ID), zap.Error(err))
				return
			}
			obslog.L().Info("archive_saved", zap.String("match_id", ev.result.ID), zap.Int("moves", len(ev.result.History)))
		}
	}
}
