package state_test

import (
	"errors"
	"testing"

	"github.com/freshet/freshet/internal/domain/msg"
	"github.com/freshet/freshet/internal/domain/state"
)

func TestComputeWidgetID_Deterministic(t *testing.T) {
	path := msg.MakeDeltaPath(msg.RootMain, nil, 3)

	a := state.ComputeWidgetID(msg.TypeCheckbox, "cb", []string{"false"}, path, "")
	b := state.ComputeWidgetID(msg.TypeCheckbox, "cb", []string{"false"}, path, "")
	if a != b {
		t.Fatalf("same declaration at same position must produce same ID: %s != %s", a, b)
	}
}

func TestComputeWidgetID_ComponentsChangeID(t *testing.T) {
	path := msg.MakeDeltaPath(msg.RootMain, nil, 3)
	base := state.ComputeWidgetID(msg.TypeCheckbox, "cb", []string{"false"}, path, "")

	variants := map[string]state.WidgetID{
		"label":    state.ComputeWidgetID(msg.TypeCheckbox, "other", []string{"false"}, path, ""),
		"type":     state.ComputeWidgetID(msg.TypeRadio, "cb", []string{"false"}, path, ""),
		"params":   state.ComputeWidgetID(msg.TypeCheckbox, "cb", []string{"true"}, path, ""),
		"position": state.ComputeWidgetID(msg.TypeCheckbox, "cb", []string{"false"}, msg.MakeDeltaPath(msg.RootMain, nil, 4), ""),
	}
	for name, id := range variants {
		if id == base {
			t.Errorf("changing %s should change the widget ID", name)
		}
	}
}

func TestComputeWidgetID_UserKeyPinsIdentity(t *testing.T) {
	a := state.ComputeWidgetID(msg.TypeCheckbox, "cb", nil, msg.MakeDeltaPath(msg.RootMain, nil, 0), "pinned")
	b := state.ComputeWidgetID(msg.TypeCheckbox, "cb", nil, msg.MakeDeltaPath(msg.RootMain, nil, 7), "pinned")
	if a != b {
		t.Error("a user key should make identity independent of position")
	}
}

func TestRegisterWidget_DefaultThenClientValue(t *testing.T) {
	s := state.New()
	id := state.WidgetID("w1")

	s.BeginRun()
	v, changed, err := s.RegisterWidget(id, state.BoolValue(false), nil)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if v.Bool || changed {
		t.Fatalf("first run should see the default: value=%v changed=%v", v.Bool, changed)
	}
	s.FinishRun()

	// Client flips the checkbox.
	s.ApplyClientStates([]state.WidgetUpdate{{ID: id, Value: state.BoolValue(true)}})

	s.BeginRun()
	v, changed, err = s.RegisterWidget(id, state.BoolValue(false), nil)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !v.Bool {
		t.Error("client value should override the script default")
	}
	if !changed {
		t.Error("value should be reported as changed since last run")
	}
	if !s.IsNewValue(id) {
		t.Error("IsNewValue should be true for a client-sourced value")
	}
}

func TestRegisterWidget_DuplicateIDRejected(t *testing.T) {
	s := state.New()
	s.BeginRun()

	id := state.WidgetID("w1")
	if _, _, err := s.RegisterWidget(id, state.BoolValue(false), nil); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, _, err := s.RegisterWidget(id, state.BoolValue(false), nil)
	if !errors.Is(err, state.ErrDuplicateWidgetID) {
		t.Fatalf("expected ErrDuplicateWidgetID, got %v", err)
	}
}

func TestBeginFragmentRun_AllowsReregistration(t *testing.T) {
	s := state.New()

	s.BeginRun()
	_, _, _ = s.RegisterWidget("outside", state.IntValue(1), nil)
	_, _, _ = s.RegisterWidget("inside", state.BoolValue(false), nil)
	s.FinishRun()

	// A fragment run re-declares a widget the full run already registered.
	s.BeginFragmentRun()
	if _, _, err := s.RegisterWidget("inside", state.BoolValue(false), nil); err != nil {
		t.Fatalf("fragment re-registration: %v", err)
	}
	// Declaring the same ID twice within the fragment run still fails.
	if _, _, err := s.RegisterWidget("inside", state.BoolValue(false), nil); !errors.Is(err, state.ErrDuplicateWidgetID) {
		t.Fatalf("expected ErrDuplicateWidgetID, got %v", err)
	}
	s.FinishRun()

	// The prune set spans the full run and the fragment run, so a prune at
	// this point removes nothing.
	s.PruneStale()
	if got := s.Len(); got != 2 {
		t.Fatalf("widget count after fragment run = %d, want 2", got)
	}
}

func TestGet_NeverRegistered(t *testing.T) {
	s := state.New()
	_, err := s.Get(state.WidgetID("nope"))
	if !errors.Is(err, state.ErrWidgetNotFound) {
		t.Fatalf("expected ErrWidgetNotFound, got %v", err)
	}
}

func TestChangedCallbacks_FireOncePerChange(t *testing.T) {
	s := state.New()
	id := state.WidgetID("cb")

	var calls int
	onChange := func() { calls++ }

	s.BeginRun()
	_, _, _ = s.RegisterWidget(id, state.BoolValue(false), onChange)
	s.FinishRun()

	// Client update changes the value: callback fires once.
	s.ApplyClientStates([]state.WidgetUpdate{{ID: id, Value: state.BoolValue(true)}})
	for _, cb := range s.ChangedCallbacks() {
		cb()
	}
	if calls != 1 {
		t.Fatalf("callback should fire exactly once, fired %d times", calls)
	}

	s.BeginRun()
	_, _, _ = s.RegisterWidget(id, state.BoolValue(false), onChange)
	s.FinishRun()

	// Same value again: no change, no callback.
	s.ApplyClientStates([]state.WidgetUpdate{{ID: id, Value: state.BoolValue(true)}})
	for _, cb := range s.ChangedCallbacks() {
		cb()
	}
	if calls != 1 {
		t.Fatalf("unchanged value must not re-fire the callback, fired %d times", calls)
	}
}

func TestChangedCallbacks_DeclarationOrder(t *testing.T) {
	s := state.New()
	var order []string

	ids := []state.WidgetID{"z-last", "a-first", "m-mid"}
	s.BeginRun()
	for _, id := range ids {
		id := id
		_, _, _ = s.RegisterWidget(id, state.IntValue(0), func() { order = append(order, string(id)) })
	}
	s.FinishRun()

	// Updates arrive in declaration order, which differs from ID sort order.
	s.ApplyClientStates([]state.WidgetUpdate{
		{ID: "z-last", Value: state.IntValue(1)},
		{ID: "a-first", Value: state.IntValue(2)},
		{ID: "m-mid", Value: state.IntValue(3)},
	})
	for _, cb := range s.ChangedCallbacks() {
		cb()
	}

	want := []string{"z-last", "a-first", "m-mid"}
	if len(order) != len(want) {
		t.Fatalf("fired %d callbacks, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("callback order = %v, want %v", order, want)
		}
	}
}

func TestPruneStale_RemovesUnregistered(t *testing.T) {
	s := state.New()

	s.BeginRun()
	_, _, _ = s.RegisterWidget("keep", state.IntValue(1), nil)
	_, _, _ = s.RegisterWidget("drop", state.IntValue(2), nil)
	s.FinishRun()

	// Next full run declares only "keep".
	s.BeginRun()
	_, _, _ = s.RegisterWidget("keep", state.IntValue(1), nil)
	s.PruneStale()
	s.FinishRun()

	if _, err := s.Get("keep"); err != nil {
		t.Errorf("surviving widget lookup failed: %v", err)
	}
	if _, err := s.Get("drop"); !errors.Is(err, state.ErrWidgetNotFound) {
		t.Errorf("pruned widget should be gone, got %v", err)
	}
}

func TestFinishRun_ResetsTriggers(t *testing.T) {
	s := state.New()
	id := state.WidgetID("btn")

	s.BeginRun()
	_, _, _ = s.RegisterWidget(id, state.TriggerValue(false), nil)
	s.FinishRun()

	s.ApplyClientStates([]state.WidgetUpdate{{ID: id, Value: state.TriggerValue(true)}})

	s.BeginRun()
	v, _, _ := s.RegisterWidget(id, state.TriggerValue(false), nil)
	if !v.Bool {
		t.Fatal("trigger should read true during the run processing the click")
	}
	s.FinishRun()

	s.BeginRun()
	v, _, _ = s.RegisterWidget(id, state.TriggerValue(false), nil)
	if v.Bool {
		t.Fatal("trigger should reset to false on the following run")
	}
}
