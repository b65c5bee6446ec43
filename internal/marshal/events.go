// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package marshal

import (
	"encoding/json"
	"fmt"

	"github.com/ManuGH/seitokai/internal/model"
)

type messageEnvelope struct {
	ServerID string          `json:"serverId"`
	Message  json.RawMessage `json:"message"`
}

type deletedMessage struct {
	ID        string `json:"id"`
	ChannelID string `json:"channelId"`
	DeletedAt string `json:"deletedAt"`
}

// UnmarshalEvent converts the "d" payload of an op 0 frame named name into
// a typed event. Names without a typed model yield ErrUnknownEvent.
func (m JSONMarshaller) UnmarshalEvent(name string, data json.RawMessage) (model.Event, error) {
	switch name {
	case model.EventChatMessageCreated:
		msg, err := m.unmarshalEnvelopedMessage(data)
		if err != nil {
			return nil, err
		}
		return model.MessageCreatedEvent{Message: msg}, nil

	case model.EventChatMessageUpdated:
		msg, err := m.unmarshalEnvelopedMessage(data)
		if err != nil {
			return nil, err
		}
		return model.MessageUpdatedEvent{Message: msg}, nil

	case model.EventChatMessageDeleted:
		var env messageEnvelope
		if err := decode(data, &env); err != nil {
			return nil, err
		}
		var w deletedMessage
		if err := decode(env.Message, &w); err != nil {
			return nil, err
		}
		id, err := parseUUID("id", w.ID)
		if err != nil {
			return nil, err
		}
		channelID, err := parseUUID("channelId", w.ChannelID)
		if err != nil {
			return nil, err
		}
		deletedAt, err := parseTime("deletedAt", w.DeletedAt)
		if err != nil {
			return nil, err
		}
		return model.MessageDeletedEvent{ID: id, Channel: channelID, DeletedAt: deletedAt}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, name)
	}
}

func (m JSONMarshaller) unmarshalEnvelopedMessage(data json.RawMessage) (model.Message, error) {
	var env messageEnvelope
	if err := decode(data, &env); err != nil {
		return model.Message{}, err
	}
	return m.UnmarshalMessage(env.Message)
}
