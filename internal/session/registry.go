package session

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/five82/videocompress/internal/errors"
	"github.com/five82/videocompress/internal/logging"
	"github.com/five82/videocompress/internal/media"
	"github.com/five82/videocompress/internal/metrics"
)

// Registry tracks running sessions and bounds how many may run at once.
type Registry struct {
	maxActive int

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates a registry that admits at most maxActive sessions.
// Values below one are treated as one.
func NewRegistry(maxActive int) *Registry {
	return &Registry{
		maxActive: max(1, maxActive),
		sessions:  make(map[string]*Session),
	}
}

// Start creates a session for req and runs it in the background. It fails
// with a session busy error when the registry is full.
func (r *Registry) Start(ctx context.Context, req media.CompressionRequest, opts Options) (*Session, error) {
	s := New(uuid.NewString(), req, opts)

	r.mu.Lock()
	if len(r.sessions) >= r.maxActive {
		active := len(r.sessions)
		r.mu.Unlock()
		metrics.SessionsTotal.WithLabelValues(metrics.StatusRejected).Inc()
		logging.Warn("Compression rejected", "path", req.Path, "active", active)
		return nil, errors.NewSessionBusyError(active)
	}
	r.sessions[s.id] = s
	r.mu.Unlock()

	s.onDone = r.remove
	s.Start(ctx)
	return s, nil
}

func (r *Registry) remove(s *Session) {
	r.mu.Lock()
	delete(r.sessions, s.id)
	r.mu.Unlock()
}

// Get returns the running session with the given id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, errors.NewSessionNotFoundError(id)
	}
	return s, nil
}

// Cancel cancels the session with the given id. It reports whether the
// request was accepted.
func (r *Registry) Cancel(id string) bool {
	s, err := r.Get(id)
	if err != nil {
		return false
	}
	return s.Cancel()
}

// CancelAll cancels every running session and returns how many accepted.
func (r *Registry) CancelAll() int {
	n := 0
	for _, s := range r.Active() {
		if s.Cancel() {
			n++
		}
	}
	return n
}

// Active returns the running sessions ordered by id.
func (r *Registry) Active() []*Session {
	r.mu.Lock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}
