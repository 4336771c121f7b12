package state

import (
	"errors"
	"fmt"
	"sync"
)

// ErrWidgetNotFound indicates a lookup of a widget ID that was never
// registered. This is a programmer error, distinct from a widget that is
// registered but has no stored value yet.
var ErrWidgetNotFound = errors.New("widget not found")

// ErrDuplicateWidgetID indicates two widget declarations in one run derived
// the same ID. Identity collisions are rejected loudly rather than silently
// overwritten, since they would merge the two widgets' values.
var ErrDuplicateWidgetID = errors.New("duplicate widget id")

// entry is the stored state for one widget.
type entry struct {
	value      Value
	hasValue   bool
	fromClient bool // value came from a client update, not a script default
	changed    bool // value differs from the previous run's value
	onChange   func()
}

// SessionState is the authoritative widget value store for one session.
// It is shared between the script runner goroutine and the session layer;
// all access goes through its methods.
type SessionState struct {
	mu      sync.Mutex
	entries map[WidgetID]*entry

	// seen accumulates widget IDs registered since the last full run; full
	// runs prune entries not re-registered. Fragment runs add to it without
	// resetting, so pruning never acts on a fragment's partial view.
	seen map[WidgetID]struct{}

	// registered tracks IDs declared during the current run attempt only,
	// full or fragment, for duplicate detection.
	registered map[WidgetID]struct{}

	// changedOrder records the order client updates were applied, which is
	// the order their widgets are declared client-side. Callbacks fire in
	// this order, not widget-ID order.
	changedOrder []WidgetID
}

// New returns an empty SessionState.
func New() *SessionState {
	return &SessionState{
		entries:    make(map[WidgetID]*entry),
		seen:       make(map[WidgetID]struct{}),
		registered: make(map[WidgetID]struct{}),
	}
}

// WidgetUpdate is one client-supplied widget value.
type WidgetUpdate struct {
	ID    WidgetID `msgpack:"id"`
	Value Value    `msgpack:"value"`
}

// ApplyClientStates writes incoming client values in order, marking entries
// whose externally-visible value changed. Unknown IDs create provisional
// entries; if the next full run does not re-register them they are pruned.
func (s *SessionState) ApplyClientStates(updates []WidgetUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.changedOrder = s.changedOrder[:0]
	for _, u := range updates {
		e, ok := s.entries[u.ID]
		if !ok {
			e = &entry{}
			s.entries[u.ID] = e
		}
		if !e.hasValue || !e.value.Equal(u.Value) {
			e.changed = true
			s.changedOrder = append(s.changedOrder, u.ID)
		}
		e.value = u.Value
		e.hasValue = true
		e.fromClient = true
	}
}

// ChangedCallbacks returns the on_change callbacks of widgets whose value
// changed since the previous run, in the order the updates were applied.
// Each callback fires at most once per rerun.
func (s *SessionState) ChangedCallbacks() []func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cbs []func()
	for _, id := range s.changedOrder {
		if e := s.entries[id]; e != nil && e.changed && e.onChange != nil {
			cbs = append(cbs, e.onChange)
		}
	}
	s.changedOrder = s.changedOrder[:0]
	return cbs
}

// BeginRun resets the registration tracking before a full script run. Both
// the prune set and the duplicate set start empty.
func (s *SessionState) BeginRun() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = make(map[WidgetID]struct{})
	s.registered = make(map[WidgetID]struct{})
}

// BeginFragmentRun resets only the duplicate set before a fragment-scoped
// run. A fragment re-declares widgets the last full run already registered,
// which must not count as duplicates, while the prune set keeps accumulating
// so a later full-run prune still sees every live ID.
func (s *SessionState) BeginFragmentRun() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registered = make(map[WidgetID]struct{})
}

// RegisterWidget records a widget declaration for the current run and
// returns its current value plus whether that value changed since the last
// run. A script default only applies when no value is stored for the ID;
// client-sourced values always win.
func (s *SessionState) RegisterWidget(id WidgetID, defaultValue Value, onChange func()) (Value, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.registered[id]; dup {
		return Value{}, false, fmt.Errorf("%w: %s", ErrDuplicateWidgetID, id)
	}
	s.registered[id] = struct{}{}
	s.seen[id] = struct{}{}

	e, ok := s.entries[id]
	if !ok {
		e = &entry{}
		s.entries[id] = e
	}
	e.onChange = onChange

	if !e.hasValue {
		e.value = defaultValue
		e.hasValue = true
		e.fromClient = false
	}
	return e.value, e.changed, nil
}

// Get returns the stored value for id. Looking up an ID that was never
// created fails with ErrWidgetNotFound rather than defaulting silently.
func (s *SessionState) Get(id WidgetID) (Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return Value{}, fmt.Errorf("%w: %s", ErrWidgetNotFound, id)
	}
	return e.value, nil
}

// IsNewValue reports whether id holds a value that did not originate from
// the current run's own default declaration. Used to warn when a default
// argument is ignored because session state already holds a value.
func (s *SessionState) IsNewValue(id WidgetID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	return ok && e.hasValue && e.fromClient
}

// PruneStale removes entries whose IDs were not registered during the
// current run. Invoked only after full script runs: a fragment run sees only
// a subset of widgets and must never trigger garbage collection.
func (s *SessionState) PruneStale() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.entries {
		if _, ok := s.seen[id]; !ok {
			delete(s.entries, id)
		}
	}
}

// FinishRun clears per-run change flags and resets trigger values so one-shot
// widgets fire exactly once.
func (s *SessionState) FinishRun() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		e.changed = false
		if e.value.Kind == KindTrigger && e.value.Bool {
			e.value = TriggerValue(false)
			e.fromClient = false
		}
	}
}

// Len returns the number of stored widget entries.
func (s *SessionState) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
