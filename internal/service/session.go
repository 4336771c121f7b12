package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	fotel "github.com/freshet/freshet/internal/adapter/otel"
	"github.com/freshet/freshet/internal/domain/fragment"
	"github.com/freshet/freshet/internal/domain/msg"
	"github.com/freshet/freshet/internal/domain/script"
	"github.com/freshet/freshet/internal/domain/state"
)

// Session binds one client connection to a runner, a widget state store, a
// fragment registry, and an outgoing message queue. It translates runner
// events into the lifecycle messages clients observe and coalesces produced
// deltas until the transport flushes them.
type Session struct {
	id       string
	queue    *msg.Queue
	state    *state.SessionState
	frags    *fragment.MemoryStorage
	pages    *PageRegistry
	fwdCache *ForwardMsgCache
	log      *slog.Logger

	// updates is signaled whenever the queue gains content, so the
	// transport's write loop knows to flush. Capacity one: signals coalesce
	// exactly like the queue does.
	updates chan struct{}

	metrics *fotel.Metrics
	span    trace.Span

	mu              sync.Mutex
	runner          *ScriptRunner
	scriptRunID     string
	scriptIsRunning bool
	runStarted      time.Time
	clientState     script.ClientState
	closed          bool

	onShutdown func(sessionID string)
}

// NewSession creates a session with fresh state and launches its runner.
func NewSession(pages *PageRegistry, fwdCache *ForwardMsgCache, log *slog.Logger) *Session {
	s := &Session{
		id:       uuid.NewString(),
		queue:    msg.NewQueue(),
		state:    state.New(),
		frags:    fragment.NewMemoryStorage(),
		pages:    pages,
		fwdCache: fwdCache,
		updates:  make(chan struct{}, 1),
	}
	s.log = log.With("session_id", s.id)
	_, s.span = fotel.StartSessionSpan(context.Background(), s.id)
	s.startRunner()
	return s
}

// ID returns the session's identifier.
func (s *Session) ID() string { return s.id }

// Updates is signaled when queued messages are ready to flush.
func (s *Session) Updates() <-chan struct{} { return s.updates }

// ScriptIsRunning reports whether a run is in progress.
func (s *Session) ScriptIsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scriptIsRunning
}

func (s *Session) startRunner() {
	r := NewScriptRunner(s.id, s.pages, s.state, s.frags, s.log)
	r.AddListener(s.handleRunnerEvent)
	r.Start()
	s.runner = r
}

// RequestRerun schedules a fresh execution. A runner that has already shut
// down is replaced transparently, which is how a session resumes after a
// reconnect within the grace period.
func (s *Session) RequestRerun(data script.RerunData) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	r := s.runner
	s.mu.Unlock()

	if r.RequestRerun(data) {
		return
	}
	s.mu.Lock()
	s.startRunner()
	r = s.runner
	s.mu.Unlock()
	r.RequestRerun(data)
}

// Stop interrupts the current run without tearing the session down.
func (s *Session) Stop() {
	s.mu.Lock()
	r := s.runner
	s.mu.Unlock()
	r.RequestStop()
}

// Close shuts the session down for good. The runner unwinds at its next
// yield point and emits a shutdown event; Close waits for it up to the
// context deadline.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	r := s.runner
	s.mu.Unlock()

	r.RequestStop()
	select {
	case <-r.Done():
	case <-ctx.Done():
		s.log.Warn("session close timed out waiting for runner")
	}
	s.fwdCache.RemoveSession(ctx, s.id)
	s.span.End()
}

// Done unblocks once the active runner goroutine has exited.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runner.Done()
}

// SetOnShutdown registers a callback invoked from the runner goroutine when
// it emits its shutdown event.
func (s *Session) SetOnShutdown(fn func(sessionID string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onShutdown = fn
}

// SetMetrics attaches metric instruments. A nil receiver field means no
// metrics are recorded.
func (s *Session) SetMetrics(m *fotel.Metrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m
}

// ClientState returns the last known client view, used to resume a session
// after reconnect.
func (s *Session) ClientState() script.ClientState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientState
}

// Flush drains the queue in order. Messages have already been through the
// forward message cache when they were enqueued.
func (s *Session) Flush() []*msg.ForwardMsg {
	return s.queue.Flush()
}

func (s *Session) handleRunnerEvent(ev script.Event) {
	ctx := context.Background()

	switch ev.Type {
	case script.EventScriptStarted:
		s.mu.Lock()
		s.scriptRunID = uuid.NewString()
		s.scriptIsRunning = true
		s.runStarted = time.Now()
		runID := s.scriptRunID
		m := s.metrics
		s.mu.Unlock()

		if m != nil {
			m.RunsStarted.Add(ctx, 1, metric.WithAttributes(
				attribute.Bool("fragment", len(ev.FragmentIDsThisRun) > 0),
			))
		}

		// Pending output from the superseded run is obsolete; lifecycle
		// messages survive, and fragment runs only evict their own deltas.
		s.queue.Clear(true, ev.FragmentIDsThisRun)
		s.enqueue(msg.NewLifecycleMsg(&msg.Lifecycle{NewSession: &msg.NewSession{
			SessionID:      s.id,
			ScriptRunID:    runID,
			PageScriptHash: ev.PageScriptHash,
		}}))
		s.enqueue(msg.NewLifecycleMsg(&msg.Lifecycle{
			SessionStatusChanged: &msg.SessionStatusChanged{ScriptIsRunning: true},
		}))

	case script.EventEnqueueForwardMsg:
		s.mu.Lock()
		m := s.metrics
		s.mu.Unlock()
		if m != nil {
			m.MsgsEnqueued.Add(ctx, 1)
		}
		s.enqueue(s.fwdCache.Prepare(ctx, s.id, ev.Msg))

	case script.EventScriptStoppedWithSuccess:
		s.finishRun(ctx, msg.FinishedSuccessfully)

	case script.EventScriptStoppedForRerun:
		s.finishRun(ctx, msg.FinishedEarlyForRerun)

	case script.EventScriptStoppedWithCompileError:
		if ev.Err != nil {
			s.enqueue(msg.NewElementMsg(
				msg.MakeDeltaPath(msg.RootEvent, nil, 0),
				exceptionElement(ev.Err),
			))
		}
		s.finishRun(ctx, msg.FinishedWithCompileError)

	case script.EventFragmentStoppedWithSuccess:
		s.finishRun(ctx, msg.FinishedFragmentSuccessfully)

	case script.EventShutdown:
		s.mu.Lock()
		if ev.ClientState != nil {
			s.clientState = *ev.ClientState
		}
		s.scriptIsRunning = false
		fn := s.onShutdown
		s.mu.Unlock()
		if fn != nil {
			fn(s.id)
		}
	}
}

func (s *Session) finishRun(ctx context.Context, status msg.ScriptFinishedStatus) {
	s.mu.Lock()
	s.scriptIsRunning = false
	started := s.runStarted
	m := s.metrics
	s.mu.Unlock()

	if m != nil {
		attrs := metric.WithAttributes(attribute.String("status", string(status)))
		switch status {
		case msg.FinishedSuccessfully, msg.FinishedFragmentSuccessfully:
			m.RunsCompleted.Add(ctx, 1, attrs)
		case msg.FinishedEarlyForRerun:
			m.RunsPreempted.Add(ctx, 1, attrs)
		case msg.FinishedWithCompileError:
			m.RunsFailed.Add(ctx, 1, attrs)
		}
		if !started.IsZero() {
			m.RunDuration.Record(ctx, time.Since(started).Seconds(), attrs)
		}
	}

	s.enqueue(msg.ScriptFinishedMsg(status))
	s.enqueue(msg.NewLifecycleMsg(&msg.Lifecycle{
		SessionStatusChanged: &msg.SessionStatusChanged{ScriptIsRunning: false},
	}))
	s.fwdCache.OnRunFinished(ctx, s.id)
}

func (s *Session) enqueue(m *msg.ForwardMsg) {
	s.queue.Enqueue(m)
	select {
	case s.updates <- struct{}{}:
	default:
	}
}
