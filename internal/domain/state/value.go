// Package state implements the per-session widget state store: typed widget
// values keyed by structurally-derived widget IDs, with provenance tracking
// (script default vs. client update), change detection for on_change
// callbacks, and orphan pruning after full script runs.
package state

import "strconv"

// Kind discriminates the closed set of widget value types.
type Kind uint8

const (
	KindBool Kind = iota
	KindInt
	KindFloat
	KindString
	// KindTrigger is a one-shot boolean (buttons). Trigger values reset to
	// false after every run so a click fires exactly once.
	KindTrigger
)

// Value is a typed widget value. Exactly one payload field is meaningful,
// selected by Kind.
type Value struct {
	Kind  Kind    `msgpack:"kind"`
	Bool  bool    `msgpack:"bool,omitempty"`
	Int   int64   `msgpack:"int,omitempty"`
	Float float64 `msgpack:"float,omitempty"`
	Str   string  `msgpack:"str,omitempty"`
}

// Bool and friends construct values of each kind.

func BoolValue(b bool) Value     { return Value{Kind: KindBool, Bool: b} }
func IntValue(i int64) Value     { return Value{Kind: KindInt, Int: i} }
func FloatValue(f float64) Value { return Value{Kind: KindFloat, Float: f} }
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }
func TriggerValue(b bool) Value  { return Value{Kind: KindTrigger, Bool: b} }

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindBool, KindTrigger:
		return v.Bool == o.Bool
	case KindInt:
		return v.Int == o.Int
	case KindFloat:
		return v.Float == o.Float
	case KindString:
		return v.Str == o.Str
	}
	return false
}

// String renders the payload for display and fingerprinting.
func (v Value) String() string {
	switch v.Kind {
	case KindBool, KindTrigger:
		return strconv.FormatBool(v.Bool)
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindString:
		return v.Str
	}
	return ""
}
