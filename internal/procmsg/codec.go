package procmsg

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// Marshal serializes an envelope for the renderer channel.
func Marshal(msg *ProcessMessage) ([]byte, error) {
	data, err := sonic.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", msg.Name, err)
	}
	return data, nil
}

// Unmarshal parses an envelope received from the renderer channel. Numeric
// arguments come back as float64; Decode accepts them for integer fields.
func Unmarshal(data []byte) (*ProcessMessage, error) {
	var msg ProcessMessage
	if err := sonic.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if msg.Name == "" {
		return nil, fmt.Errorf("%w: empty message name", ErrMalformed)
	}
	return &msg, nil
}
