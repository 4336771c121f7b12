package ws

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/freshet/freshet/internal/domain/script"
	"github.com/freshet/freshet/internal/domain/state"
)

// Client message types.
const (
	// ClientRerun asks for a script run with the attached widget states.
	ClientRerun = "rerun"
	// ClientStop interrupts the running script without scheduling another run.
	ClientStop = "stop"
)

// ClientMessage is one msgpack frame from the browser.
type ClientMessage struct {
	Type string `msgpack:"type"`

	// Rerun payload. WidgetStates carries the full client widget state in
	// interaction order; FragmentID scopes the run to one fragment.
	WidgetStates   []state.WidgetUpdate `msgpack:"widget_states,omitempty"`
	FragmentID     string               `msgpack:"fragment_id,omitempty"`
	QueryString    string               `msgpack:"query_string,omitempty"`
	PageScriptHash string               `msgpack:"page_script_hash,omitempty"`
	PageName       string               `msgpack:"page_name,omitempty"`
}

// RerunData converts the message into a rerun request for the session.
func (cm *ClientMessage) RerunData() script.RerunData {
	return script.RerunData{
		WidgetStates:   cm.WidgetStates,
		FragmentID:     cm.FragmentID,
		QueryString:    cm.QueryString,
		PageScriptHash: cm.PageScriptHash,
		PageName:       cm.PageName,
	}
}

// EncodeClientMessage serializes cm to its msgpack wire form.
func EncodeClientMessage(cm *ClientMessage) ([]byte, error) {
	data, err := msgpack.Marshal(cm)
	if err != nil {
		return nil, fmt.Errorf("encode client message: %w", err)
	}
	return data, nil
}

// DecodeClientMessage parses a msgpack frame from the client.
func DecodeClientMessage(data []byte) (*ClientMessage, error) {
	var cm ClientMessage
	if err := msgpack.Unmarshal(data, &cm); err != nil {
		return nil, fmt.Errorf("decode client message: %w", err)
	}
	return &cm, nil
}
