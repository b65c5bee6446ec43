// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package gateway

import (
	"encoding/json"
	"fmt"

	"golang.org/x/net/websocket"
)

// Opcodes sent by the Guilded gateway.
const (
	OpEvent   = 0
	OpWelcome = 1
	OpResume  = 2
)

// payload is the envelope of every gateway text frame.
type payload struct {
	Op int             `json:"op"`
	T  string          `json:"t,omitempty"`
	D  json.RawMessage `json:"d,omitempty"`
	S  string          `json:"s,omitempty"`
}

type welcome struct {
	HeartbeatIntervalMs int    `json:"heartbeatIntervalMs"`
	LastMessageID       string `json:"lastMessageId"`
	BotID               string `json:"botId"`
}

// RawEvent is an undecoded op 0 frame.
type RawEvent struct {
	Name      string
	Data      json.RawMessage
	MessageID string
}

// frame is one received websocket message with its payload type preserved.
type frame struct {
	payloadType byte
	data        []byte
}

// frameCodec receives whole messages without discarding the frame type, so
// binary frames can be told apart from text ones.
var frameCodec = websocket.Codec{
	Marshal: func(v any) ([]byte, byte, error) {
		data, err := json.Marshal(v)
		return data, websocket.TextFrame, err
	},
	Unmarshal: func(data []byte, payloadType byte, v any) error {
		f, ok := v.(*frame)
		if !ok {
			return fmt.Errorf("gateway: unexpected receive target %T", v)
		}
		f.payloadType = payloadType
		f.data = data
		return nil
	},
}

// pingCodec emits an empty ping control frame.
var pingCodec = websocket.Codec{
	Marshal: func(any) ([]byte, byte, error) {
		return nil, websocket.PingFrame, nil
	},
}
