// Package script defines the rerun/stop request protocol between the session
// layer and the script runner, and the event stream runners emit.
package script

import "github.com/freshet/freshet/internal/domain/state"

// Func is a user app entrypoint. The concrete handle type is defined by the
// runner; scripts receive it as an opaque value assertable to *service.App.
type Func any

// RerunData carries the input of one requested script run.
type RerunData struct {
	// WidgetStates is the ordered list of client widget updates, or nil when
	// the rerun carries no new values.
	WidgetStates []state.WidgetUpdate

	// FragmentID requests a rerun of a single fragment; it is appended to
	// the pending FragmentIDQueue with duplicates dropped.
	FragmentID string

	// FragmentIDQueue lists the fragments to run, in order. Empty means a
	// full script run.
	FragmentIDQueue []string

	// IsFragmentScopedRerun marks reruns initiated from within a fragment's
	// own scope. Only these interrupt an executing run at yield points;
	// other fragment reruns wait for the current run to finish.
	IsFragmentScopedRerun bool

	QueryString    string
	PageScriptHash string
	PageName       string
}

// IsFragmentRun reports whether this run is scoped to fragments.
func (d RerunData) IsFragmentRun() bool {
	return len(d.FragmentIDQueue) > 0
}

// coalesceWidgetStates merges a pending request's widget states with a newer
// request's. The newer values win, except that a pending true trigger value
// survives so a click is never lost to a racing rerun.
func coalesceWidgetStates(old, new []state.WidgetUpdate) []state.WidgetUpdate {
	if old == nil {
		return new
	}
	if new == nil {
		return old
	}

	merged := make([]state.WidgetUpdate, len(new))
	copy(merged, new)

	index := make(map[state.WidgetID]int, len(merged))
	for i, u := range merged {
		index[u.ID] = i
	}

	for _, u := range old {
		if u.Value.Kind != state.KindTrigger || !u.Value.Bool {
			continue
		}
		if i, ok := index[u.ID]; ok {
			if merged[i].Value.Kind == state.KindTrigger {
				merged[i].Value = state.TriggerValue(true)
			}
			continue
		}
		merged = append(merged, u)
	}
	return merged
}
