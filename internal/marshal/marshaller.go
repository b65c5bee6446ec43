// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package marshal converts Guilded JSON payloads into model types.
package marshal

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/seitokai/internal/model"
	"github.com/google/uuid"
)

var (
	// ErrMalformedPayload is wrapped by every decoding failure.
	ErrMalformedPayload = errors.New("marshal: malformed payload")
	// ErrUnknownEvent is returned for gateway event names without a typed model.
	ErrUnknownEvent = errors.New("marshal: unknown event")
)

// Marshaller turns raw JSON objects into typed models.
type Marshaller interface {
	UnmarshalForumThread(data json.RawMessage) (model.ForumThread, error)
	UnmarshalListItem(data json.RawMessage) (model.ListItem, error)
	UnmarshalMessage(data json.RawMessage) (model.Message, error)
	UnmarshalContentReaction(data json.RawMessage) (model.ContentReaction, error)
	UnmarshalEvent(name string, data json.RawMessage) (model.Event, error)
}

// JSONMarshaller is the standard Marshaller. It holds no state.
type JSONMarshaller struct{}

// New returns the standard marshaller.
func New() *JSONMarshaller {
	return &JSONMarshaller{}
}

type wireCreator struct {
	CreatedBy          string `json:"createdBy"`
	CreatedByBotID     string `json:"createdByBotId"`
	CreatedByWebhookID string `json:"createdByWebhookId"`
}

// resolve picks the most specific author: webhook, then bot, then user.
func (c wireCreator) resolve() (string, model.CreatorType, error) {
	if c.CreatedByWebhookID != "" {
		return c.CreatedByWebhookID, model.CreatorWebhook, nil
	}
	if c.CreatedByBotID != "" {
		return c.CreatedByBotID, model.CreatorBot, nil
	}
	if c.CreatedBy == "" {
		return "", "", fmt.Errorf("%w: missing createdBy", ErrMalformedPayload)
	}
	return c.CreatedBy, model.CreatorUser, nil
}

type wireMessage struct {
	wireCreator
	ID        string `json:"id"`
	ChannelID string `json:"channelId"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

type wireForumThread struct {
	wireCreator
	ID        int    `json:"id"`
	CreatedAt string `json:"createdAt"`
}

type wireListItem struct {
	wireCreator
	ID        string  `json:"id"`
	Message   string  `json:"message"`
	Note      *string `json:"note"`
	CreatedAt string  `json:"createdAt"`
}

type wireContentReaction struct {
	wireCreator
	ID        int    `json:"id"`
	CreatedAt string `json:"createdAt"`
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty object", ErrMalformedPayload)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}

func parseTime(field, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: missing %s", ErrMalformedPayload, field)
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %v", ErrMalformedPayload, field, err)
	}
	return t, nil
}

func parseOptionalTime(field, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := parseTime(field, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseUUID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s: %v", ErrMalformedPayload, field, err)
	}
	return id, nil
}

// UnmarshalForumThread decodes a forum thread object.
func (JSONMarshaller) UnmarshalForumThread(data json.RawMessage) (model.ForumThread, error) {
	var w wireForumThread
	if err := decode(data, &w); err != nil {
		return model.ForumThread{}, err
	}
	creatorID, creatorType, err := w.resolve()
	if err != nil {
		return model.ForumThread{}, err
	}
	createdAt, err := parseTime("createdAt", w.CreatedAt)
	if err != nil {
		return model.ForumThread{}, err
	}
	return model.ForumThread{
		ID:          w.ID,
		CreatedAt:   createdAt,
		CreatorID:   creatorID,
		CreatorType: creatorType,
	}, nil
}

// UnmarshalListItem decodes a list item object. An absent note stays nil.
func (JSONMarshaller) UnmarshalListItem(data json.RawMessage) (model.ListItem, error) {
	var w wireListItem
	if err := decode(data, &w); err != nil {
		return model.ListItem{}, err
	}
	creatorID, creatorType, err := w.resolve()
	if err != nil {
		return model.ListItem{}, err
	}
	createdAt, err := parseTime("createdAt", w.CreatedAt)
	if err != nil {
		return model.ListItem{}, err
	}
	return model.ListItem{
		ID:          w.ID,
		Message:     w.Message,
		Note:        w.Note,
		CreatedAt:   createdAt,
		CreatorID:   creatorID,
		CreatorType: creatorType,
	}, nil
}

// UnmarshalMessage decodes a chat message object.
func (JSONMarshaller) UnmarshalMessage(data json.RawMessage) (model.Message, error) {
	var w wireMessage
	if err := decode(data, &w); err != nil {
		return model.Message{}, err
	}
	return w.toModel()
}

func (w wireMessage) toModel() (model.Message, error) {
	id, err := parseUUID("id", w.ID)
	if err != nil {
		return model.Message{}, err
	}
	channelID, err := parseUUID("channelId", w.ChannelID)
	if err != nil {
		return model.Message{}, err
	}
	creatorID, creatorType, err := w.resolve()
	if err != nil {
		return model.Message{}, err
	}
	createdAt, err := parseTime("createdAt", w.CreatedAt)
	if err != nil {
		return model.Message{}, err
	}
	updatedAt, err := parseOptionalTime("updatedAt", w.UpdatedAt)
	if err != nil {
		return model.Message{}, err
	}
	return model.Message{
		ID:          id,
		ChannelID:   channelID,
		Content:     w.Content,
		CreatedAt:   createdAt,
		CreatorID:   creatorID,
		CreatorType: creatorType,
		UpdatedAt:   updatedAt,
	}, nil
}

// UnmarshalContentReaction decodes a content reaction object.
func (JSONMarshaller) UnmarshalContentReaction(data json.RawMessage) (model.ContentReaction, error) {
	var w wireContentReaction
	if err := decode(data, &w); err != nil {
		return model.ContentReaction{}, err
	}
	creatorID, creatorType, err := w.resolve()
	if err != nil {
		return model.ContentReaction{}, err
	}
	createdAt, err := parseTime("createdAt", w.CreatedAt)
	if err != nil {
		return model.ContentReaction{}, err
	}
	return model.ContentReaction{
		ID:          w.ID,
		CreatedAt:   createdAt,
		CreatorID:   creatorID,
		CreatorType: creatorType,
	}, nil
}

var _ Marshaller = JSONMarshaller{}
