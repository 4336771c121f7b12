package msg

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Encode serializes m to its msgpack wire form.
func Encode(m *ForwardMsg) ([]byte, error) {
	data, err := msgpack.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode forward msg: %w", err)
	}
	return data, nil
}

// Decode parses a msgpack-encoded ForwardMsg.
func Decode(data []byte) (*ForwardMsg, error) {
	var m ForwardMsg
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode forward msg: %w", err)
	}
	return &m, nil
}
