// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import (
	"time"

	"github.com/google/uuid"
)

// Message is a chat message posted in a channel.
type Message struct {
	ID          uuid.UUID   `json:"id"`
	ChannelID   uuid.UUID   `json:"channelId"`
	Content     string      `json:"content"`
	CreatedAt   time.Time   `json:"createdAt"`
	CreatorID   string      `json:"creatorId"`
	CreatorType CreatorType `json:"creatorType"`
	UpdatedAt   *time.Time  `json:"updatedAt,omitempty"`
}

// Same reports whether m and other refer to the same message. Only the ID
// participates in identity; content and timestamps may differ between
// snapshots of one message.
func (m Message) Same(other Message) bool {
	return m.ID == other.ID
}

// Edited reports whether the message has been updated since creation.
func (m Message) Edited() bool {
	return m.UpdatedAt != nil
}

// ForumThread is a thread created in a forum channel.
type ForumThread struct {
	ID          int         `json:"id"`
	CreatedAt   time.Time   `json:"createdAt"`
	CreatorID   string      `json:"creatorId"`
	CreatorType CreatorType `json:"creatorType"`
}

// ListItem is an entry in a list channel.
type ListItem struct {
	ID          string      `json:"id"`
	Message     string      `json:"message"`
	Note        *string     `json:"note,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	CreatorID   string      `json:"creatorId"`
	CreatorType CreatorType `json:"creatorType"`
}

// ContentReaction is an emote reaction attached to a piece of content.
type ContentReaction struct {
	ID          int         `json:"id"`
	CreatedAt   time.Time   `json:"createdAt"`
	CreatorID   string      `json:"creatorId"`
	CreatorType CreatorType `json:"creatorType"`
}
