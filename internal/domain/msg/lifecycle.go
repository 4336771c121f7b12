package msg

// ScriptFinishedStatus reports how a script run ended.
type ScriptFinishedStatus string

const (
	FinishedSuccessfully         ScriptFinishedStatus = "finished_successfully"
	FinishedEarlyForRerun        ScriptFinishedStatus = "finished_early_for_rerun"
	FinishedWithCompileError     ScriptFinishedStatus = "finished_with_compile_error"
	FinishedFragmentSuccessfully ScriptFinishedStatus = "finished_fragment_run_successfully"
)

// Lifecycle is a control message exempt from delta coalescing. Exactly one
// field is set. Lifecycle messages are retained verbatim across queue clears
// that keep lifecycle messages, except that an in-flight successful
// ScriptFinished is rewritten to FinishedEarlyForRerun.
type Lifecycle struct {
	NewSession           *NewSession           `msgpack:"new_session,omitempty"`
	SessionStatusChanged *SessionStatusChanged `msgpack:"session_status_changed,omitempty"`
	ScriptFinished       *ScriptFinished       `msgpack:"script_finished,omitempty"`
	PageNotFound         *PageNotFound         `msgpack:"page_not_found,omitempty"`
	ParentMessage        *ParentMessage        `msgpack:"parent_message,omitempty"`
}

// NewSession announces the start of a script run to the client.
type NewSession struct {
	SessionID      string `msgpack:"session_id"`
	ScriptRunID    string `msgpack:"script_run_id"`
	PageScriptHash string `msgpack:"page_script_hash"`
}

// SessionStatusChanged reports whether a script is currently running.
type SessionStatusChanged struct {
	ScriptIsRunning bool `msgpack:"script_is_running"`
}

// ScriptFinished reports the terminal status of a run.
type ScriptFinished struct {
	Status ScriptFinishedStatus `msgpack:"status"`
}

// PageNotFound is sent when a rerun request names an unknown page.
type PageNotFound struct {
	PageName string `msgpack:"page_name"`
}

// ParentMessage is an opaque message forwarded to a host page embedding the
// app.
type ParentMessage struct {
	Message string `msgpack:"message"`
}
