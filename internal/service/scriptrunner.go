package service

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	fotel "github.com/freshet/freshet/internal/adapter/otel"
	"github.com/freshet/freshet/internal/domain/cursor"
	"github.com/freshet/freshet/internal/domain/fragment"
	"github.com/freshet/freshet/internal/domain/msg"
	"github.com/freshet/freshet/internal/domain/script"
	"github.com/freshet/freshet/internal/domain/state"
)

// Control-flow sentinels. User-facing calls like App.Rerun and App.Stop, and
// the yield-point checks inside enqueueForwardMsg, unwind the app function by
// panicking with one of these; execute recovers them at the run boundary.
type rerunSignal struct{ data script.RerunData }

type stopSignal struct{}

// ScriptRunner drives one session's app executions. It owns a single
// goroutine that blocks between runs waiting for the next request, executes
// the app function from the top for each rerun, and reports progress through
// its event listeners.
type ScriptRunner struct {
	sessionID string
	requests  *script.Requests
	state     *state.SessionState
	fragments fragment.Storage
	pages     *PageRegistry
	log       *slog.Logger

	mu        sync.Mutex
	listeners []func(script.Event)

	// run is the active run's context. Only the runner goroutine touches it.
	run *scriptRun

	clientState script.ClientState

	done chan struct{}
}

// scriptRun is the per-execution context shared by all App handles of one run.
type scriptRun struct {
	id               string
	data             script.RerunData
	sidebarCur       *cursor.Cursor
	fragmentsThisRun []string
}

func (ru *scriptRun) addFragment(id string) {
	for _, f := range ru.fragmentsThisRun {
		if f == id {
			return
		}
	}
	ru.fragmentsThisRun = append(ru.fragmentsThisRun, id)
}

func (ru *scriptRun) sidebar(a *App) *App {
	if ru.sidebarCur == nil {
		ru.sidebarCur = cursor.New(msg.RootSidebar)
	}
	return &App{r: a.r, cur: ru.sidebarCur, fragmentID: a.fragmentID}
}

// NewScriptRunner wires a runner for one session. Call Start to launch its
// goroutine, then RequestRerun to kick off the first run.
func NewScriptRunner(
	sessionID string,
	pages *PageRegistry,
	sessionState *state.SessionState,
	fragments fragment.Storage,
	log *slog.Logger,
) *ScriptRunner {
	return &ScriptRunner{
		sessionID: sessionID,
		requests:  script.NewRequests(),
		state:     sessionState,
		fragments: fragments,
		pages:     pages,
		log:       log.With("session_id", sessionID),
		done:      make(chan struct{}),
	}
}

// AddListener subscribes to runner events. Listeners run synchronously on
// the runner goroutine in subscription order.
func (r *ScriptRunner) AddListener(fn func(script.Event)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

func (r *ScriptRunner) emit(ev script.Event) {
	r.mu.Lock()
	listeners := r.listeners
	r.mu.Unlock()
	for _, fn := range listeners {
		fn(ev)
	}
}

// RequestRerun asks for a fresh execution with the given data. It reports
// false once the runner has been stopped.
func (r *ScriptRunner) RequestRerun(data script.RerunData) bool {
	return r.requests.RequestRerun(data)
}

// RequestStop shuts the runner down. The current run, if any, is interrupted
// at its next yield point; the goroutine then emits a shutdown event and
// exits.
func (r *ScriptRunner) RequestStop() {
	r.requests.RequestStop()
}

// Done is closed after the shutdown event has been emitted.
func (r *ScriptRunner) Done() <-chan struct{} { return r.done }

// Start launches the runner goroutine.
func (r *ScriptRunner) Start() {
	go r.loop()
}

func (r *ScriptRunner) loop() {
	defer close(r.done)
	for {
		req := r.requests.OnReady()
		if req.Type == script.RequestStop {
			r.log.Info("script runner shutting down")
			cs := r.clientState
			r.emit(script.Event{Type: script.EventShutdown, ClientState: &cs})
			return
		}
		r.runScript(req.RerunData)
	}
}

// enqueueForwardMsg is the single chokepoint for produced messages and the
// runner's yield point: a pending stop or rerun request interrupts here,
// before the message is emitted.
func (r *ScriptRunner) enqueueForwardMsg(m *msg.ForwardMsg) {
	r.maybeHandleControlRequest()
	r.emit(script.Event{Type: script.EventEnqueueForwardMsg, Msg: m})
}

// enqueueNoYield emits a message without checking control requests. Used
// while reporting a finished run, where unwinding again would lose the
// message.
func (r *ScriptRunner) enqueueNoYield(m *msg.ForwardMsg) {
	r.emit(script.Event{Type: script.EventEnqueueForwardMsg, Msg: m})
}

func (r *ScriptRunner) maybeHandleControlRequest() {
	req := r.requests.OnYield()
	if req == nil {
		return
	}
	switch req.Type {
	case script.RequestStop:
		panic(stopSignal{})
	case script.RequestRerun:
		panic(rerunSignal{data: req.RerunData})
	}
}

// currentRerunData rebuilds rerun parameters for a programmatic rerun of the
// active run. Widget states stay unset: the session state already holds them.
func (r *ScriptRunner) currentRerunData() script.RerunData {
	d := r.run.data
	return script.RerunData{
		QueryString:    d.QueryString,
		PageScriptHash: d.PageScriptHash,
		PageName:       d.PageName,
	}
}

func (r *ScriptRunner) runScript(data script.RerunData) {
	page, found := r.pages.Resolve(data.PageScriptHash, data.PageName)
	if page == nil {
		err := fmt.Errorf("no pages registered")
		r.log.Error("script run failed", "error", err)
		r.emit(script.Event{Type: script.EventScriptStoppedWithCompileError, Err: err})
		return
	}

	r.run = &scriptRun{id: uuid.NewString(), data: data}
	defer func() { r.run = nil }()

	r.clientState = script.ClientState{
		QueryString:    data.QueryString,
		PageScriptHash: page.Hash,
	}

	var fragmentScope []string
	if data.IsFragmentRun() {
		fragmentScope = data.FragmentIDQueue
	}
	r.emit(script.Event{
		Type:               script.EventScriptStarted,
		PageScriptHash:     page.Hash,
		FragmentIDsThisRun: fragmentScope,
	})

	_, span := fotel.StartScriptRunSpan(context.Background(), r.sessionID, page.Hash, data.IsFragmentRun())
	defer span.End()

	start := time.Now()
	r.state.ApplyClientStates(data.WidgetStates)

	if !found {
		r.enqueueNoYield(msg.NewLifecycleMsg(&msg.Lifecycle{
			PageNotFound: &msg.PageNotFound{PageName: data.PageName},
		}))
		r.log.Warn("page not found, rendering default page", "page_name", data.PageName)
	}

	if data.IsFragmentRun() {
		r.runFragments(data)
	} else {
		r.runFull(page)
	}
	r.log.Debug("script run finished",
		"run_id", r.run.id,
		"page", page.Name,
		"fragment_run", data.IsFragmentRun(),
		"duration", time.Since(start))
}

func (r *ScriptRunner) runFull(page *PageScript) {
	r.state.BeginRun()
	app := &App{r: r, cur: cursor.New(msg.RootMain)}

	out := r.execute(func() error {
		for _, cb := range r.state.ChangedCallbacks() {
			cb()
		}
		return page.Fn(app)
	})

	switch out.kind {
	case outcomeRerun:
		r.emit(script.Event{Type: script.EventScriptStoppedForRerun})
		r.requests.RequestRerun(out.rerun)
	case outcomeStop:
		// Interrupted run: state is left as-is so the next run picks up
		// where the client left off.
		r.emit(script.Event{Type: script.EventScriptStoppedWithSuccess})
	case outcomeOK:
		if out.err != nil {
			r.reportAppError(app, out)
		}
		r.state.PruneStale()
		r.fragments.Clear(r.run.fragmentsThisRun)
		r.state.FinishRun()
		r.emit(script.Event{Type: script.EventScriptStoppedWithSuccess})
	}
}

func (r *ScriptRunner) runFragments(data script.RerunData) {
	r.state.BeginFragmentRun()
	processed := make([]string, 0, len(data.FragmentIDQueue))

	out := r.execute(func() error {
		for _, cb := range r.state.ChangedCallbacks() {
			cb()
		}
		for _, id := range data.FragmentIDQueue {
			fn, err := r.fragments.Get(id)
			if err != nil {
				return fmt.Errorf("fragment %q: %w", id, err)
			}
			if stack, err := r.invokeFragment(fn); err != nil {
				// One fragment failing does not starve the rest of the
				// batch; its error renders in place.
				el := exceptionElement(err)
				if len(stack) > 0 {
					el.Exception.Stack = stack
				}
				r.enqueueNoYield(msg.NewElementMsg(
					cursor.New(msg.RootEvent).NextPath(),
					el,
				))
				r.log.Warn("fragment run failed", "fragment_id", id, "error", err)
			}
			processed = append(processed, id)
		}
		return nil
	})

	switch out.kind {
	case outcomeRerun:
		r.emit(script.Event{Type: script.EventScriptStoppedForRerun})
		r.requests.RequestRerun(out.rerun)
	case outcomeStop:
		r.emit(script.Event{Type: script.EventScriptStoppedWithSuccess})
	case outcomeOK:
		if out.err != nil {
			// An unresolvable fragment ID aborts the batch loudly: the
			// client referenced a section the last full run never declared.
			r.log.Error("fragment batch aborted", "error", out.err)
			r.emit(script.Event{Type: script.EventScriptStoppedWithCompileError, Err: out.err})
			return
		}
		r.state.FinishRun()
		r.emit(script.Event{
			Type:               script.EventFragmentStoppedWithSuccess,
			FragmentIDsThisRun: processed,
		})
	}
}

// invokeFragment runs one registered fragment body and keeps an app-bug
// panic contained to that fragment, so the rest of the batch still runs.
// Control-flow panics propagate untouched for execute to resolve.
func (r *ScriptRunner) invokeFragment(fn fragment.Func) (stack []string, err error) {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		switch rec.(type) {
		case rerunSignal, stopSignal:
			panic(rec)
		default:
			err = fmt.Errorf("panic: %v", rec)
			stack = strings.Split(strings.TrimSpace(string(debug.Stack())), "\n")
		}
	}()
	return nil, fn()
}

// reportAppError renders a failed app function as an exception element in
// the main container, after whatever output the run already produced.
func (r *ScriptRunner) reportAppError(app *App, out runOutcome) {
	el := exceptionElement(out.err)
	if len(out.stack) > 0 {
		el.Exception.Stack = out.stack
	}
	r.enqueueNoYield(msg.NewElementMsg(app.cur.NextPath(), el))
	r.log.Warn("app function failed", "error", out.err)
}

type outcomeKind uint8

const (
	outcomeOK outcomeKind = iota
	outcomeStop
	outcomeRerun
)

type runOutcome struct {
	kind  outcomeKind
	err   error
	stack []string
	rerun script.RerunData
}

// execute runs fn and converts control-flow panics back into outcomes. Any
// other panic is an app bug and is reported like a returned error, with its
// stack attached.
func (r *ScriptRunner) execute(fn func() error) (out runOutcome) {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		switch sig := rec.(type) {
		case rerunSignal:
			out = runOutcome{kind: outcomeRerun, rerun: sig.data}
		case stopSignal:
			out = runOutcome{kind: outcomeStop}
		default:
			out = runOutcome{
				kind:  outcomeOK,
				err:   fmt.Errorf("panic: %v", rec),
				stack: strings.Split(strings.TrimSpace(string(debug.Stack())), "\n"),
			}
		}
	}()
	return runOutcome{kind: outcomeOK, err: fn()}
}
