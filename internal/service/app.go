package service

import (
	"fmt"

	"github.com/freshet/freshet/internal/domain/cursor"
	"github.com/freshet/freshet/internal/domain/msg"
	"github.com/freshet/freshet/internal/domain/state"
)

// App is the handle user code draws with. Each container (main body,
// sidebar, nested blocks) is its own App sharing one underlying run; element
// calls append to the container's cursor position and enqueue deltas through
// the runner, which makes every call a potential interrupt point.
type App struct {
	r   *ScriptRunner
	cur *cursor.Cursor

	// fragmentID tags deltas produced while a fragment body is executing so
	// fragment reruns can clear exactly the fragment's own output.
	fragmentID string
}

// WidgetOption configures a widget declaration.
type WidgetOption func(*widgetOpts)

type widgetOpts struct {
	key      string
	onChange func()
}

// WithKey pins a widget's identity to a user-chosen key instead of its
// position in the tree, so reordering the layout does not reset its state.
func WithKey(key string) WidgetOption {
	return func(o *widgetOpts) { o.key = key }
}

// WithOnChange registers a callback fired before the next script body runs
// when the widget's value changed from the client.
func WithOnChange(fn func()) WidgetOption {
	return func(o *widgetOpts) { o.onChange = fn }
}

func (a *App) enqueue(el *msg.Element) {
	m := msg.NewElementMsg(a.cur.NextPath(), el)
	m.Delta.FragmentID = a.fragmentID
	a.r.enqueueForwardMsg(m)
}

// Text renders a plain text element.
func (a *App) Text(body string) {
	a.enqueue(&msg.Element{Type: msg.TypeText, Text: &msg.TextElement{Body: body}})
}

// Markdown renders a markdown element.
func (a *App) Markdown(body string) {
	a.enqueue(&msg.Element{Type: msg.TypeMarkdown, Markdown: &msg.MarkdownElement{Body: body}})
}

// Heading renders a heading at the given level (1 is largest).
func (a *App) Heading(body string, level int) {
	a.enqueue(&msg.Element{Type: msg.TypeHeading, Heading: &msg.HeadingElement{Body: body, Level: level}})
}

// JSON renders a pretty-printed JSON viewer for the given document body.
func (a *App) JSON(body string) {
	a.enqueue(&msg.Element{Type: msg.TypeJSON, JSON: &msg.JSONElement{Body: body}})
}

// Metric renders a labeled value with an optional delta annotation.
func (a *App) Metric(label, value, delta string) {
	a.enqueue(&msg.Element{Type: msg.TypeMetric, Metric: &msg.MetricElement{Label: label, Value: value, Delta: delta}})
}

// Exception renders an error the way uncaught app errors are shown.
func (a *App) Exception(err error) {
	a.enqueue(exceptionElement(err))
}

func exceptionElement(err error) *msg.Element {
	return &msg.Element{Type: msg.TypeException, Exception: &msg.ExceptionElement{
		ExcType: fmt.Sprintf("%T", err),
		Message: err.Error(),
	}}
}

// Container opens a nested vertical block and returns an App writing inside
// it. The block claims one slot in the receiver's container.
func (a *App) Container() *App {
	return a.block(&msg.Block{Kind: msg.BlockVertical})
}

// Columns opens a horizontal block with n vertical children and returns one
// App per column.
func (a *App) Columns(n int) []*App {
	row := a.block(&msg.Block{Kind: msg.BlockHorizontal})
	cols := make([]*App, n)
	for i := range cols {
		cols[i] = row.block(&msg.Block{Kind: msg.BlockVertical})
	}
	return cols
}

// Expander opens a collapsible labeled block.
func (a *App) Expander(label string) *App {
	return a.block(&msg.Block{Kind: msg.BlockExpander, Label: label})
}

func (a *App) block(b *msg.Block) *App {
	path, child := a.cur.Child()
	m := msg.NewBlockMsg(path, b)
	m.Delta.FragmentID = a.fragmentID
	a.r.enqueueForwardMsg(m)
	return &App{r: a.r, cur: child, fragmentID: a.fragmentID}
}

// Sidebar returns the App writing into the sidebar container. All calls in
// one run share the same sidebar cursor.
func (a *App) Sidebar() *App {
	return a.r.run.sidebar(a)
}

// Checkbox declares a boolean widget and returns its current value.
func (a *App) Checkbox(label string, defaultValue bool, opts ...WidgetOption) (bool, error) {
	v, err := a.registerWidget(msg.TypeCheckbox, label, nil, state.BoolValue(defaultValue), nil, opts)
	if err != nil {
		return false, err
	}
	return v.Bool, nil
}

// TextInput declares a single-line text widget and returns its current value.
func (a *App) TextInput(label, defaultValue string, opts ...WidgetOption) (string, error) {
	v, err := a.registerWidget(msg.TypeTextInput, label, nil, state.StringValue(defaultValue), nil, opts)
	if err != nil {
		return "", err
	}
	return v.Str, nil
}

// Radio declares a single-choice widget over options and returns the
// selected option. The first option is the default.
func (a *App) Radio(label string, options []string, opts ...WidgetOption) (string, error) {
	var def string
	if len(options) > 0 {
		def = options[0]
	}
	v, err := a.registerWidget(msg.TypeRadio, label, options, state.StringValue(def), func(w *msg.WidgetElement) {
		w.Options = options
	}, opts)
	if err != nil {
		return "", err
	}
	return v.Str, nil
}

// Slider declares an integer slider in [min, max] and returns its value.
func (a *App) Slider(label string, min, max, defaultValue int64, opts ...WidgetOption) (int64, error) {
	params := []string{
		fmt.Sprintf("%d", min),
		fmt.Sprintf("%d", max),
	}
	v, err := a.registerWidget(msg.TypeSlider, label, params, state.IntValue(defaultValue), func(w *msg.WidgetElement) {
		w.Min, w.Max = min, max
	}, opts)
	if err != nil {
		return 0, err
	}
	return v.Int, nil
}

// Button declares a one-shot trigger widget. It reports true for exactly the
// run that follows a click, then resets.
func (a *App) Button(label string, opts ...WidgetOption) (bool, error) {
	v, err := a.registerWidget(msg.TypeButton, label, nil, state.TriggerValue(false), nil, opts)
	if err != nil {
		return false, err
	}
	return v.Bool, nil
}

// registerWidget derives the widget's identity from its declaration, pulls
// or seeds its value in the session state, and renders its element. The
// element claims the cursor slot the ID was computed from.
func (a *App) registerWidget(
	t msg.ElementType,
	label string,
	params []string,
	defaultValue state.Value,
	decorate func(*msg.WidgetElement),
	opts []WidgetOption,
) (state.Value, error) {
	var o widgetOpts
	for _, opt := range opts {
		opt(&o)
	}

	id := state.ComputeWidgetID(t, label, params, a.cur.PeekPath(), o.key)
	val, _, err := a.r.state.RegisterWidget(id, defaultValue, o.onChange)
	if err != nil {
		return state.Value{}, err
	}

	w := &msg.WidgetElement{ID: string(id), Label: label, Default: defaultValue.String()}
	if decorate != nil {
		decorate(w)
	}
	a.enqueue(&msg.Element{Type: t, Widget: w})
	return val, nil
}

// Fragment declares a rerunnable section. The body runs inline now, and a
// closure replaying it from the same tree position is registered under id so
// later interactions can rerun just this section. IDs must be unique within
// a page and stable across runs; an empty id is derived from the fragment's
// position in the tree.
func (a *App) Fragment(id string, fn AppFunc) error {
	snap := a.cur.Snapshot()
	if id == "" {
		// Anonymous fragments derive identity from their tree position, so
		// the same declaration keeps its ID across reruns.
		id = "fragment-" + msg.MakeDeltaPath(snap.Root, snap.ParentPath, snap.Index).Key()
	}
	r := a.r
	r.run.addFragment(id)
	r.fragments.Set(id, func() error {
		fa := &App{r: r, cur: snap.Restore(), fragmentID: id}
		return fn(fa)
	})

	// Inline run shares the parent cursor so trailing elements land after
	// the fragment's output.
	fa := &App{r: r, cur: a.cur, fragmentID: id}
	return fn(fa)
}

// Rerun abandons the current run and starts a fresh one from the top,
// keeping the current widget states. It does not return.
func (a *App) Rerun() {
	panic(rerunSignal{data: a.r.currentRerunData()})
}

// RerunFragment abandons the current run and reruns only the enclosing
// fragment. Calling it outside a fragment body falls back to a full rerun.
// It does not return.
func (a *App) RerunFragment() {
	data := a.r.currentRerunData()
	if a.fragmentID != "" {
		data.FragmentID = a.fragmentID
		data.FragmentIDQueue = []string{a.fragmentID}
		data.IsFragmentScopedRerun = true
	}
	panic(rerunSignal{data: data})
}

// Stop ends the current run early and reports it as a successful finish. It
// does not return.
func (a *App) Stop() {
	panic(stopSignal{})
}

// WidgetValue reads the stored value for a widget key without declaring a
// widget, for cross-widget logic.
func (a *App) WidgetValue(id state.WidgetID) (state.Value, error) {
	return a.r.state.Get(id)
}
