package msg

// ElementType discriminates the closed set of element payloads the core
// understands. Individual element semantics live client-side; the engine only
// keys on delta path and whether a message introduces a container.
type ElementType string

const (
	TypeText      ElementType = "text"
	TypeMarkdown  ElementType = "markdown"
	TypeHeading   ElementType = "heading"
	TypeJSON      ElementType = "json"
	TypeException ElementType = "exception"
	TypeMetric    ElementType = "metric"
	TypeCheckbox  ElementType = "checkbox"
	TypeTextInput ElementType = "text_input"
	TypeRadio     ElementType = "radio"
	TypeSlider    ElementType = "slider"
	TypeButton    ElementType = "button"
)

// Element is a tagged union of element payloads. Exactly one payload field is
// set, matching Type.
type Element struct {
	Type ElementType `msgpack:"type"`

	Text      *TextElement      `msgpack:"text,omitempty"`
	Markdown  *MarkdownElement  `msgpack:"markdown,omitempty"`
	Heading   *HeadingElement   `msgpack:"heading,omitempty"`
	JSON      *JSONElement      `msgpack:"json,omitempty"`
	Exception *ExceptionElement `msgpack:"exception,omitempty"`
	Metric    *MetricElement    `msgpack:"metric,omitempty"`
	Widget    *WidgetElement    `msgpack:"widget,omitempty"`
}

// TextElement renders a plain text body.
type TextElement struct {
	Body string `msgpack:"body"`
}

// MarkdownElement renders a markdown body.
type MarkdownElement struct {
	Body string `msgpack:"body"`
}

// HeadingElement renders a heading at the given level (1-6).
type HeadingElement struct {
	Body  string `msgpack:"body"`
	Level int    `msgpack:"level"`
}

// JSONElement renders a pretty-printed JSON document.
type JSONElement struct {
	Body string `msgpack:"body"`
}

// ExceptionElement renders an error box in place of the element the failed
// code would have produced.
type ExceptionElement struct {
	ExcType string   `msgpack:"exc_type"`
	Message string   `msgpack:"message"`
	Stack   []string `msgpack:"stack,omitempty"`
}

// MetricElement renders a labeled value with an optional delta indicator.
type MetricElement struct {
	Label string `msgpack:"label"`
	Value string `msgpack:"value"`
	Delta string `msgpack:"delta,omitempty"`
}

// WidgetElement carries the client-facing description of an input widget:
// its stable identity, label, default, and type-specific options.
type WidgetElement struct {
	ID      string   `msgpack:"id"`
	Label   string   `msgpack:"label"`
	Options []string `msgpack:"options,omitempty"`
	Default string   `msgpack:"default,omitempty"`
	Min     int64    `msgpack:"min,omitempty"`
	Max     int64    `msgpack:"max,omitempty"`
}

// BlockKind discriminates container-introducing deltas.
type BlockKind string

const (
	BlockVertical   BlockKind = "vertical"
	BlockHorizontal BlockKind = "horizontal"
	BlockExpander   BlockKind = "expander"
)

// Block describes a new container at a delta path. Later deltas may be
// nested beneath it, which is why the queue never coalesces block messages.
type Block struct {
	Kind  BlockKind `msgpack:"kind"`
	Label string    `msgpack:"label,omitempty"`
}
