package script

import "github.com/freshet/freshet/internal/domain/msg"

// EventType enumerates the runner's lifecycle event stream. Every run
// attempt produces exactly one terminal event (stopped-with-success,
// compile-error, stopped-for-rerun, or fragment-stopped-with-success);
// Shutdown follows when the runner goroutine itself exits.
type EventType uint8

const (
	EventScriptStarted EventType = iota
	// EventEnqueueForwardMsg is the data event: one per delta-producing
	// call, carrying the message for the session layer to enqueue.
	EventEnqueueForwardMsg
	EventScriptStoppedWithSuccess
	EventScriptStoppedWithCompileError
	EventScriptStoppedForRerun
	EventFragmentStoppedWithSuccess
	EventShutdown
)

// String returns the event name for logging.
func (t EventType) String() string {
	switch t {
	case EventScriptStarted:
		return "script_started"
	case EventEnqueueForwardMsg:
		return "enqueue_forward_msg"
	case EventScriptStoppedWithSuccess:
		return "script_stopped_with_success"
	case EventScriptStoppedWithCompileError:
		return "script_stopped_with_compile_error"
	case EventScriptStoppedForRerun:
		return "script_stopped_for_rerun"
	case EventFragmentStoppedWithSuccess:
		return "fragment_stopped_with_success"
	case EventShutdown:
		return "shutdown"
	}
	return "unknown"
}

// IsTerminal reports whether t ends a run attempt.
func (t EventType) IsTerminal() bool {
	switch t {
	case EventScriptStoppedWithSuccess,
		EventScriptStoppedWithCompileError,
		EventScriptStoppedForRerun,
		EventFragmentStoppedWithSuccess:
		return true
	}
	return false
}

// ClientState is the last known client-visible navigation state, reported at
// shutdown so a reconnecting client can resume where it was.
type ClientState struct {
	QueryString    string
	PageScriptHash string
}

// Event is one entry in the runner's event stream. Listeners run
// synchronously on the runner goroutine.
type Event struct {
	Type EventType

	// Msg is set for EventEnqueueForwardMsg.
	Msg *msg.ForwardMsg

	// Err is set for EventScriptStoppedWithCompileError.
	Err error

	// PageScriptHash and FragmentIDsThisRun describe the starting run for
	// EventScriptStarted.
	PageScriptHash     string
	FragmentIDsThisRun []string

	// ClientState is set for EventShutdown.
	ClientState *ClientState
}
