package msg

// ForwardMsg is the unit of delivery to the client: either a delta addressed
// by a DeltaPath, a lifecycle message, or a reference to a previously sent
// message cached client-side. Exactly one of Delta, Lifecycle, RefHash is set.
type ForwardMsg struct {
	Delta     *Delta     `msgpack:"delta,omitempty"`
	Lifecycle *Lifecycle `msgpack:"lifecycle,omitempty"`

	// RefHash points at an earlier message with identical content that the
	// client is expected to have cached.
	RefHash string `msgpack:"ref_hash,omitempty"`
}

// Delta is a single UI-tree mutation: a new element or a new container at a
// path. FragmentID tags deltas produced while a fragment was executing, which
// scopes queue clears during fragment reruns.
type Delta struct {
	Path       DeltaPath `msgpack:"path"`
	FragmentID string    `msgpack:"fragment_id,omitempty"`

	NewElement *Element `msgpack:"new_element,omitempty"`
	AddBlock   *Block   `msgpack:"add_block,omitempty"`
}

// NewElementMsg builds a delta message placing el at path.
func NewElementMsg(path DeltaPath, el *Element) *ForwardMsg {
	return &ForwardMsg{Delta: &Delta{Path: path, NewElement: el}}
}

// NewBlockMsg builds a container-creation message at path.
func NewBlockMsg(path DeltaPath, b *Block) *ForwardMsg {
	return &ForwardMsg{Delta: &Delta{Path: path, AddBlock: b}}
}

// NewLifecycleMsg wraps a lifecycle payload.
func NewLifecycleMsg(lc *Lifecycle) *ForwardMsg {
	return &ForwardMsg{Lifecycle: lc}
}

// ScriptFinishedMsg builds a ScriptFinished lifecycle message.
func ScriptFinishedMsg(status ScriptFinishedStatus) *ForwardMsg {
	return NewLifecycleMsg(&Lifecycle{ScriptFinished: &ScriptFinished{Status: status}})
}

// IsDelta reports whether m carries a delta payload of any kind.
func (m *ForwardMsg) IsDelta() bool { return m.Delta != nil }

// IsAddBlock reports whether m introduces a container. Block messages are
// never replaced in the queue because later deltas may nest beneath them.
func (m *ForwardMsg) IsAddBlock() bool { return m.Delta != nil && m.Delta.AddBlock != nil }

// IsLifecycle reports whether m is a control message.
func (m *ForwardMsg) IsLifecycle() bool { return m.Lifecycle != nil }
