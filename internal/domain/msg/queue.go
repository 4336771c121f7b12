package msg

import "sync"

// Queue is the ordered, session-scoped outbox of ForwardMsgs awaiting
// delivery. Replaceable deltas sharing a path coalesce in place; block and
// lifecycle messages always append. All operations are safe for concurrent
// use: the script runner goroutine enqueues while the transport flushes.
type Queue struct {
	mu   sync.Mutex
	msgs []*ForwardMsg

	// deltaIndex maps a path key to the queue position of the replaceable
	// delta currently occupying it. Block messages never enter this map.
	deltaIndex map[string]int
}

// NewQueue returns an empty Queue.
func NewQueue() *Queue {
	return &Queue{deltaIndex: make(map[string]int)}
}

// Enqueue adds m to the queue. A replaceable delta whose path matches an
// earlier replaceable delta overwrites it at the same queue position.
func (q *Queue) Enqueue(m *ForwardMsg) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !m.IsDelta() || m.IsAddBlock() {
		q.msgs = append(q.msgs, m)
		return
	}

	key := m.Delta.Path.Key()
	if i, ok := q.deltaIndex[key]; ok {
		q.msgs[i] = m
		return
	}
	q.deltaIndex[key] = len(q.msgs)
	q.msgs = append(q.msgs, m)
}

// IsEmpty reports whether the queue holds no messages.
func (q *Queue) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.msgs) == 0
}

// Len returns the number of queued messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.msgs)
}

// Flush atomically drains the queue and returns its contents in order.
func (q *Queue) Flush() []*ForwardMsg {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.msgs
	q.msgs = nil
	q.deltaIndex = make(map[string]int)
	return out
}

// Clear empties the queue. With retainLifecycleMsgs, lifecycle messages
// survive, and an in-flight successful ScriptFinished is rewritten to
// FinishedEarlyForRerun so the client learns the run was superseded instead
// of seeing the message vanish. When fragmentIDsThisRun is non-empty, only
// deltas tagged with one of those fragment IDs are dropped: deltas belonging
// to other fragments, or to none, keep their relative order. The coalescing
// index always resets; retained deltas are not coalesced against afterward.
func (q *Queue) Clear(retainLifecycleMsgs bool, fragmentIDsThisRun []string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.deltaIndex = make(map[string]int)

	if !retainLifecycleMsgs {
		q.msgs = nil
		return
	}

	fragmentScope := make(map[string]struct{}, len(fragmentIDsThisRun))
	for _, id := range fragmentIDsThisRun {
		fragmentScope[id] = struct{}{}
	}

	retained := q.msgs[:0]
	for _, m := range q.msgs {
		switch {
		case m.IsLifecycle():
			if len(fragmentScope) == 0 {
				m = rewriteFinished(m)
			}
			retained = append(retained, m)
		case m.IsDelta() && len(fragmentScope) > 0:
			if _, drop := fragmentScope[m.Delta.FragmentID]; !drop {
				retained = append(retained, m)
			}
		}
	}
	q.msgs = retained
}

// rewriteFinished replaces a successful ScriptFinished with the
// early-for-rerun variant. Other lifecycle messages pass through unchanged.
func rewriteFinished(m *ForwardMsg) *ForwardMsg {
	sf := m.Lifecycle.ScriptFinished
	if sf == nil || sf.Status != FinishedSuccessfully {
		return m
	}
	return ScriptFinishedMsg(FinishedEarlyForRerun)
}
