package match

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/park285/cheese-checkers/internal/obslog"
	"go.uber.org/zap"
)

var ErrInvalidArgs = errf("invalid arguments")

// Registry maps match ids to sessions. Its own lock only guards the map;
// each session serializes its own mutations.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	notifier Notifier
}

type Option func(*Registry)

// WithNotifier installs n for change and teardown events.
func WithNotifier(n Notifier) Option {
	return func(r *Registry) {
		if n != nil {
			r.notifier = n
		}
	}
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{sessions: make(map[string]*Session), notifier: nopNotifier{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the live session for id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok || s.closed.Load() {
		return nil, false
	}
	return s, true
}

// GetOrCreate returns the session for id, creating it on first reference.
func (r *Registry) GetOrCreate(id string) *Session {
	if s, ok := r.Get(id); ok {
		return s
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok && !s.closed.Load() {
		return s
	}
	s := newSession(id, r.notifier)
	r.sessions[id] = s
	obslog.L().Debug("match_create", zap.String("match_id", id))
	return s
}

// RemoveIfEmpty drops the session for id when both seats are free. The
// teardown event is emitted before the entry disappears, so a session
// recreated under the same id always notifies after it.
func (r *Registry) RemoveIfEmpty(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok || !s.closeIfEmpty() {
		r.mu.Unlock()
		return false
	}
	res := s.result()
	r.notifier.MatchEnded(res)
	delete(r.sessions, id)
	r.mu.Unlock()

	obslog.L().Info("match_teardown", zap.String("match_id", id), zap.Int("moves", len(res.History)))
	return true
}

// Join admits playerID to match id. A session torn down between lookup and
// admission is replaced by a fresh one.
func (r *Registry) Join(id, playerID string, sink Sink) (Role, error) {
	if strings.TrimSpace(id) == "" || strings.TrimSpace(playerID) == "" || sink == nil {
		return "", ErrInvalidArgs
	}
	for {
		role, err := r.GetOrCreate(id).AddPlayer(playerID, sink)
		if errors.Is(err, ErrSessionClosed) {
			continue
		}
		if err != nil {
			obslog.L().Warn("player_join_rejected", zap.String("match_id", id), zap.String("player_id", playerID), zap.Error(err))
			if !errors.Is(err, ErrSessionFull) {
				// a failed first admission can leave a session nobody holds
				r.RemoveIfEmpty(id)
			}
			return role, err
		}
		obslog.L().Info("player_join", zap.String("match_id", id), zap.String("player_id", playerID), zap.String("role", string(role)))
		return role, nil
	}
}

// Leave frees playerID's seat and tears the session down once empty.
func (r *Registry) Leave(id, playerID string) {
	if s, ok := r.Get(id); ok {
		if s.RemovePlayer(playerID) {
			obslog.L().Info("player_leave", zap.String("match_id", id), zap.String("player_id", playerID))
		}
	}
	r.RemoveIfEmpty(id)
}

// Move forwards raw to the session; nothing happens for unknown matches.
func (r *Registry) Move(id, playerID, raw string) error {
	s, ok := r.Get(id)
	if !ok {
		return ErrSessionClosed
	}
	if err := s.SubmitMove(playerID, raw); err != nil {
		obslog.L().Debug("move_rejected", zap.String("match_id", id), zap.String("player_id", playerID), zap.String("raw", raw), zap.Error(err))
		return err
	}
	obslog.L().Debug("move_accepted", zap.String("match_id", id), zap.String("player_id", playerID), zap.String("raw", raw))
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// List returns summaries of all live sessions ordered by id.
func (r *Registry) List() []Summary {
	r.mu.RLock()
	list := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		list = append(list, s)
	}
	r.mu.RUnlock()

	out := make([]Summary, 0, len(list))
	for _, s := range list {
		out = append(out, s.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
