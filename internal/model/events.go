// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import (
	"time"

	"github.com/google/uuid"
)

// Gateway event names as sent in the "t" field of op 0 frames.
const (
	EventChatMessageCreated = "ChatMessageCreated"
	EventChatMessageUpdated = "ChatMessageUpdated"
	EventChatMessageDeleted = "ChatMessageDeleted"
)

// Event is implemented by every typed gateway event.
type Event interface {
	EventName() string
}

// MessageEvent is an Event concerning a single chat message.
type MessageEvent interface {
	Event
	ChannelID() uuid.UUID
	MessageID() uuid.UUID
}

// MessageCreatedEvent is dispatched when a chat message is posted.
type MessageCreatedEvent struct {
	Message Message
}

func (MessageCreatedEvent) EventName() string { return EventChatMessageCreated }

func (e MessageCreatedEvent) ChannelID() uuid.UUID { return e.Message.ChannelID }

func (e MessageCreatedEvent) MessageID() uuid.UUID { return e.Message.ID }

// MessageUpdatedEvent is dispatched when a chat message is edited.
type MessageUpdatedEvent struct {
	Message Message
}

func (MessageUpdatedEvent) EventName() string { return EventChatMessageUpdated }

func (e MessageUpdatedEvent) ChannelID() uuid.UUID { return e.Message.ChannelID }

func (e MessageUpdatedEvent) MessageID() uuid.UUID { return e.Message.ID }

// MessageDeletedEvent is dispatched when a chat message is removed. Only the
// identifiers survive deletion.
type MessageDeletedEvent struct {
	ID        uuid.UUID
	Channel   uuid.UUID
	DeletedAt time.Time
}

func (MessageDeletedEvent) EventName() string { return EventChatMessageDeleted }

func (e MessageDeletedEvent) ChannelID() uuid.UUID { return e.Channel }

func (e MessageDeletedEvent) MessageID() uuid.UUID { return e.ID }

var (
	_ MessageEvent = MessageCreatedEvent{}
	_ MessageEvent = MessageUpdatedEvent{}
	_ MessageEvent = MessageDeletedEvent{}
)
