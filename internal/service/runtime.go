package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	fotel "github.com/freshet/freshet/internal/adapter/otel"
	"github.com/freshet/freshet/internal/domain/script"
)

// Runtime owns every live session of the server. Sessions whose client
// disconnects are kept warm for a grace period so a page refresh or flaky
// network does not lose widget state; past the grace period they are torn
// down.
type Runtime struct {
	pages       *PageRegistry
	fwdCache    *ForwardMsgCache
	log         *slog.Logger
	gracePeriod time.Duration
	metrics     *fotel.Metrics

	mu           sync.Mutex
	sessions     map[string]*Session
	disconnected map[string]*time.Timer
	closed       bool
}

// NewRuntime builds the session manager. gracePeriod at or below zero closes
// sessions immediately on disconnect.
func NewRuntime(pages *PageRegistry, fwdCache *ForwardMsgCache, gracePeriod time.Duration, log *slog.Logger) *Runtime {
	return &Runtime{
		pages:        pages,
		fwdCache:     fwdCache,
		log:          log,
		gracePeriod:  gracePeriod,
		sessions:     make(map[string]*Session),
		disconnected: make(map[string]*time.Timer),
	}
}

// SetMetrics attaches metric instruments to sessions created from now on.
func (rt *Runtime) SetMetrics(m *fotel.Metrics) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.metrics = m
}

// CreateSession registers a new session for a connecting client. The first
// run starts when the client sends its initial rerun request.
func (rt *Runtime) CreateSession() *Session {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.closed {
		return nil
	}

	s := NewSession(rt.pages, rt.fwdCache, rt.log)
	s.SetMetrics(rt.metrics)
	rt.sessions[s.ID()] = s
	rt.log.Info("session created", "session_id", s.ID(), "sessions", len(rt.sessions))
	return s
}

// ResumeSession reattaches a reconnecting client to its session. It reports
// false when the session is unknown or its grace period already expired, in
// which case the caller should create a fresh session.
func (rt *Runtime) ResumeSession(sessionID string) (*Session, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	s, ok := rt.sessions[sessionID]
	if !ok {
		return nil, false
	}
	if t, pending := rt.disconnected[sessionID]; pending {
		t.Stop()
		delete(rt.disconnected, sessionID)
	}
	rt.log.Info("session resumed", "session_id", sessionID)
	return s, true
}

// GetSession looks up a live session.
func (rt *Runtime) GetSession(sessionID string) (*Session, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	s, ok := rt.sessions[sessionID]
	return s, ok
}

// Disconnect marks a session's client as gone and arms the grace timer.
func (rt *Runtime) Disconnect(sessionID string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	s, ok := rt.sessions[sessionID]
	if !ok || rt.closed {
		return
	}
	if rt.gracePeriod <= 0 {
		go rt.closeSession(s)
		delete(rt.sessions, sessionID)
		return
	}
	if _, pending := rt.disconnected[sessionID]; pending {
		return
	}
	rt.log.Info("session disconnected, grace period armed",
		"session_id", sessionID, "grace_period", rt.gracePeriod)
	rt.disconnected[sessionID] = time.AfterFunc(rt.gracePeriod, func() {
		rt.expireSession(sessionID)
	})
}

func (rt *Runtime) expireSession(sessionID string) {
	rt.mu.Lock()
	s, ok := rt.sessions[sessionID]
	if ok {
		delete(rt.sessions, sessionID)
	}
	delete(rt.disconnected, sessionID)
	rt.mu.Unlock()

	if !ok {
		return
	}
	rt.log.Info("session grace period expired", "session_id", sessionID)
	rt.closeSession(s)
}

func (rt *Runtime) closeSession(s *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.Close(ctx)
}

// RequestRerun routes a rerun to the named session.
func (rt *Runtime) RequestRerun(sessionID string, data script.RerunData) bool {
	s, ok := rt.GetSession(sessionID)
	if !ok {
		return false
	}
	s.RequestRerun(data)
	return true
}

// StopSession interrupts the named session's current run.
func (rt *Runtime) StopSession(sessionID string) bool {
	s, ok := rt.GetSession(sessionID)
	if !ok {
		return false
	}
	s.Stop()
	return true
}

// SessionCount reports the number of live sessions, including disconnected
// ones inside their grace period.
func (rt *Runtime) SessionCount() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return len(rt.sessions)
}

// Close tears down all sessions concurrently and waits for their runners,
// bounded by ctx.
func (rt *Runtime) Close(ctx context.Context) error {
	rt.mu.Lock()
	rt.closed = true
	sessions := make([]*Session, 0, len(rt.sessions))
	for _, s := range rt.sessions {
		sessions = append(sessions, s)
	}
	rt.sessions = make(map[string]*Session)
	for id, t := range rt.disconnected {
		t.Stop()
		delete(rt.disconnected, id)
	}
	rt.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, s := range sessions {
		g.Go(func() error {
			s.Close(ctx)
			return nil
		})
	}
	err := g.Wait()
	rt.log.Info("runtime closed", "sessions_closed", len(sessions))
	return err
}
