package script_test

import (
	"testing"

	"github.com/freshet/freshet/internal/domain/script"
	"github.com/freshet/freshet/internal/domain/state"
)

func findUpdate(updates []state.WidgetUpdate, id state.WidgetID) (state.WidgetUpdate, bool) {
	for _, u := range updates {
		if u.ID == id {
			return u, true
		}
	}
	return state.WidgetUpdate{}, false
}

func TestRequests_StartsInContinue(t *testing.T) {
	r := script.NewRequests()
	if r.State() != script.StateContinue {
		t.Fatalf("new Requests should start in Continue, got %v", r.State())
	}
}

func TestRequests_StopAlwaysWins(t *testing.T) {
	// Stop succeeds from every prior state.
	fresh := script.NewRequests()
	fresh.RequestStop()
	if fresh.State() != script.StateStop {
		t.Error("stop from Continue failed")
	}

	pending := script.NewRequests()
	pending.RequestRerun(script.RerunData{})
	pending.RequestStop()
	if pending.State() != script.StateStop {
		t.Error("stop should supersede a pending rerun")
	}

	stopped := script.NewRequests()
	stopped.RequestStop()
	stopped.RequestStop()
	if stopped.State() != script.StateStop {
		t.Error("stop should be idempotent")
	}
}

func TestRequests_RerunWhileStoppedFails(t *testing.T) {
	r := script.NewRequests()
	r.RequestStop()
	if r.RequestRerun(script.RerunData{}) {
		t.Fatal("rerun after stop should fail")
	}
	if r.State() != script.StateStop {
		t.Fatal("state should remain Stop")
	}
}

func TestRequests_CoalesceWidgetStates(t *testing.T) {
	r := script.NewRequests()

	ok := r.RequestRerun(script.RerunData{WidgetStates: []state.WidgetUpdate{
		{ID: "trigger", Value: state.TriggerValue(true)},
		{ID: "int", Value: state.IntValue(123)},
	}})
	if !ok {
		t.Fatal("first rerun request failed")
	}

	ok = r.RequestRerun(script.RerunData{WidgetStates: []state.WidgetUpdate{
		{ID: "trigger", Value: state.TriggerValue(false)},
		{ID: "int", Value: state.IntValue(456)},
	}})
	if !ok {
		t.Fatal("second rerun request failed")
	}

	req := r.OnReady()
	if req.Type != script.RequestRerun {
		t.Fatalf("expected rerun, got %v", req.Type)
	}

	// Triggers OR-merge so a click survives coalescing.
	trig, ok := findUpdate(req.RerunData.WidgetStates, "trigger")
	if !ok || !trig.Value.Bool {
		t.Error("coalesced trigger should be true when either request was true")
	}
	// Other values take the newest request.
	i, ok := findUpdate(req.RerunData.WidgetStates, "int")
	if !ok || i.Value.Int != 456 {
		t.Errorf("coalesced int = %v, want 456", i.Value.Int)
	}
}

func TestRequests_NilStatesNeverClobber(t *testing.T) {
	r := script.NewRequests()

	r.RequestRerun(script.RerunData{WidgetStates: []state.WidgetUpdate{
		{ID: "int", Value: state.IntValue(123)},
	}})
	r.RequestRerun(script.RerunData{WidgetStates: nil})

	req := r.OnReady()
	i, ok := findUpdate(req.RerunData.WidgetStates, "int")
	if !ok || i.Value.Int != 123 {
		t.Error("a nil-states request must not drop stored widget states")
	}
}

func TestRequests_NilThenStates(t *testing.T) {
	r := script.NewRequests()

	r.RequestRerun(script.RerunData{WidgetStates: nil})
	r.RequestRerun(script.RerunData{WidgetStates: []state.WidgetUpdate{
		{ID: "int", Value: state.IntValue(123)},
	}})

	req := r.OnReady()
	i, ok := findUpdate(req.RerunData.WidgetStates, "int")
	if !ok || i.Value.Int != 123 {
		t.Error("newer widget states should replace a nil-states request")
	}
}

func TestRequests_FragmentIDsAppendWithDedupe(t *testing.T) {
	r := script.NewRequests()

	r.RequestRerun(script.RerunData{FragmentID: "frag1"})
	r.RequestRerun(script.RerunData{FragmentID: "frag2"})
	r.RequestRerun(script.RerunData{FragmentID: "frag3"})
	r.RequestRerun(script.RerunData{FragmentID: "frag1"}) // duplicate

	req := r.OnReady()
	want := []string{"frag1", "frag2", "frag3"}
	got := req.RerunData.FragmentIDQueue
	if len(got) != len(want) {
		t.Fatalf("fragment queue = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("fragment queue = %v, want %v", got, want)
		}
	}
}

func TestRequests_FullRerunClearsFragmentQueue(t *testing.T) {
	r := script.NewRequests()

	r.RequestRerun(script.RerunData{FragmentIDQueue: []string{"frag1", "frag2"}})
	r.RequestRerun(script.RerunData{})

	req := r.OnReady()
	if len(req.RerunData.FragmentIDQueue) != 0 {
		t.Fatalf("full rerun should clear the fragment queue, got %v", req.RerunData.FragmentIDQueue)
	}
}

func TestRequests_OnYield(t *testing.T) {
	t.Run("no request", func(t *testing.T) {
		r := script.NewRequests()
		if r.OnYield() != nil {
			t.Fatal("OnYield with no request should return nil")
		}
		if r.State() != script.StateContinue {
			t.Fatal("state should remain Continue")
		}
	})

	t.Run("plain rerun pops", func(t *testing.T) {
		r := script.NewRequests()
		r.RequestRerun(script.RerunData{})

		req := r.OnYield()
		if req == nil || req.Type != script.RequestRerun {
			t.Fatal("expected popped rerun request")
		}
		if r.State() != script.StateContinue {
			t.Fatal("popping should transition back to Continue")
		}
	})

	t.Run("fragment rerun waits for run to finish", func(t *testing.T) {
		r := script.NewRequests()
		r.RequestRerun(script.RerunData{FragmentIDQueue: []string{"frag"}})

		if r.OnYield() != nil {
			t.Fatal("unscoped fragment rerun must not interrupt the current run")
		}
		if r.State() != script.StateRerun {
			t.Fatal("request should stay pending")
		}
	})

	t.Run("fragment-scoped rerun pops", func(t *testing.T) {
		r := script.NewRequests()
		r.RequestRerun(script.RerunData{
			FragmentIDQueue:       []string{"frag"},
			IsFragmentScopedRerun: true,
		})

		req := r.OnYield()
		if req == nil || req.Type != script.RequestRerun {
			t.Fatal("fragment-scoped rerun should interrupt at a yield point")
		}
		if r.State() != script.StateContinue {
			t.Fatal("popping should transition back to Continue")
		}
	})

	t.Run("stop remains pending", func(t *testing.T) {
		r := script.NewRequests()
		r.RequestStop()

		req := r.OnYield()
		if req == nil || req.Type != script.RequestStop {
			t.Fatal("expected stop request")
		}
		if r.State() != script.StateStop {
			t.Fatal("stop state is terminal")
		}
	})
}

func TestRequests_StopRacingRerunsAtOneYield(t *testing.T) {
	// A stop and several reruns race before the next yield-point check:
	// stop wins no matter the arrival order.
	r := script.NewRequests()
	r.RequestRerun(script.RerunData{})
	r.RequestStop()
	if r.RequestRerun(script.RerunData{}) {
		t.Fatal("rerun after stop should be rejected")
	}

	req := r.OnYield()
	if req == nil || req.Type != script.RequestStop {
		t.Fatal("stop must win over racing reruns")
	}
}

func TestRequests_OnReadyPopsPending(t *testing.T) {
	r := script.NewRequests()
	r.RequestRerun(script.RerunData{QueryString: "a=1"})

	req := r.OnReady()
	if req.Type != script.RequestRerun || req.RerunData.QueryString != "a=1" {
		t.Fatalf("unexpected request %+v", req)
	}
	if r.State() != script.StateContinue {
		t.Fatal("state should transition back to Continue")
	}
}

func TestRequests_OnReadyBlocksUntilRequest(t *testing.T) {
	r := script.NewRequests()

	got := make(chan script.Request, 1)
	go func() { got <- r.OnReady() }()

	r.RequestStop()
	req := <-got
	if req.Type != script.RequestStop {
		t.Fatalf("expected stop after blocking, got %v", req.Type)
	}
}
