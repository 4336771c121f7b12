package script

import "sync"

// RequestState is the runner's pending-request state.
type RequestState uint8

const (
	// StateContinue: no pending request; the current run (if any) proceeds.
	StateContinue RequestState = iota
	// StateRerun: a rerun is pending with coalesced RerunData.
	StateRerun
	// StateStop: the runner must halt. Terminal; stop always wins.
	StateStop
)

// RequestType tags a popped request.
type RequestType uint8

const (
	RequestRerun RequestType = iota
	RequestStop
)

// Request is a popped pending request.
type Request struct {
	Type      RequestType
	RerunData RerunData
}

// Requests is the thread-safe request state machine shared between the
// session layer (producers) and the script runner goroutine (consumer).
// Rapid rerun requests coalesce into one pending request; a stop request
// unconditionally supersedes anything pending.
type Requests struct {
	mu        sync.Mutex
	cond      *sync.Cond
	state     RequestState
	rerunData RerunData
}

// NewRequests returns a Requests in the Continue state.
func NewRequests() *Requests {
	r := &Requests{state: StateContinue}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// State returns the current pending-request state.
func (r *Requests) State() RequestState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// RequestStop records a stop request. Succeeds regardless of current state
// and is idempotent.
func (r *Requests) RequestStop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = StateStop
	r.cond.Broadcast()
}

// RequestRerun records a rerun request, coalescing with any pending one.
// Returns false if the runner is stopped and cannot be rerun.
func (r *Requests) RequestRerun(data RerunData) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case StateStop:
		return false

	case StateContinue:
		if data.FragmentID != "" {
			data.FragmentIDQueue = appendFragmentID(data.FragmentIDQueue, data.FragmentID)
			data.FragmentID = ""
		}
		r.rerunData = data
		r.state = StateRerun
		r.cond.Broadcast()
		return true

	case StateRerun:
		queue := data.FragmentIDQueue
		if data.FragmentID != "" {
			// A single-fragment request joins the pending queue; an explicit
			// full rerun (no fragment at all) clears it.
			queue = appendFragmentID(r.rerunData.FragmentIDQueue, data.FragmentID)
		}

		r.rerunData = RerunData{
			WidgetStates:          coalesceWidgetStates(r.rerunData.WidgetStates, data.WidgetStates),
			FragmentIDQueue:       queue,
			IsFragmentScopedRerun: data.IsFragmentScopedRerun,
			QueryString:           data.QueryString,
			PageScriptHash:        data.PageScriptHash,
			PageName:              data.PageName,
		}
		return true
	}
	return false
}

// OnYield is consulted at every cooperative yield point while a script is
// executing. It returns nil when execution should continue. A pending stop
// is always returned (state stays Stop). A pending rerun is popped and
// returned, transitioning back to Continue — unless it targets fragments
// without being fragment-scoped, in which case the executing run is allowed
// to finish and the request is handled by OnReady.
func (r *Requests) OnYield() *Request {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case StateContinue:
		return nil
	case StateStop:
		return &Request{Type: RequestStop}
	}

	if r.rerunData.IsFragmentRun() && !r.rerunData.IsFragmentScopedRerun {
		return nil
	}

	r.state = StateContinue
	return &Request{Type: RequestRerun, RerunData: r.rerunData}
}

// OnReady is consulted when the runner is between runs. It blocks until a
// request is pending: a rerun is popped and returned, a stop tells the
// runner to shut down. Blocking here is the only place the runner goroutine
// waits.
func (r *Requests) OnReady() Request {
	r.mu.Lock()
	defer r.mu.Unlock()

	for r.state == StateContinue {
		r.cond.Wait()
	}
	if r.state == StateRerun {
		r.state = StateContinue
		return Request{Type: RequestRerun, RerunData: r.rerunData}
	}
	return Request{Type: RequestStop}
}

func appendFragmentID(queue []string, id string) []string {
	for _, existing := range queue {
		if existing == id {
			return queue
		}
	}
	out := make([]string, 0, len(queue)+1)
	out = append(out, queue...)
	return append(out, id)
}
