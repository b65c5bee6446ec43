// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package marshal

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ManuGH/seitokai/internal/model"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const (
	messageID = "00000000-0000-4000-8000-000000000001"
	channelID = "00000000-0000-4000-8000-000000000002"
)

func mustTime(t *testing.T, raw string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339Nano, raw)
	require.NoError(t, err)
	return ts
}

func TestUnmarshalMessage(t *testing.T) {
	m := New()
	updated := mustTime(t, "2021-06-15T20:16:00.000Z")

	tests := []struct {
		name string
		raw  string
		want model.Message
	}{
		{
			name: "user message without update",
			raw: `{"id":"` + messageID + `","channelId":"` + channelID + `","content":"hello",` +
				`"createdAt":"2021-06-15T20:15:00.706Z","createdBy":"Ann6LewA"}`,
			want: model.Message{
				ID:          uuid.MustParse(messageID),
				ChannelID:   uuid.MustParse(channelID),
				Content:     "hello",
				CreatedAt:   mustTime(t, "2021-06-15T20:15:00.706Z"),
				CreatorID:   "Ann6LewA",
				CreatorType: model.CreatorUser,
			},
		},
		{
			name: "bot overrides user",
			raw: `{"id":"` + messageID + `","channelId":"` + channelID + `","content":"beep",` +
				`"createdAt":"2021-06-15T20:15:00Z","createdBy":"Ann6LewA","createdByBotId":"bot-1",` +
				`"updatedAt":"2021-06-15T20:16:00.000Z"}`,
			want: model.Message{
				ID:          uuid.MustParse(messageID),
				ChannelID:   uuid.MustParse(channelID),
				Content:     "beep",
				CreatedAt:   mustTime(t, "2021-06-15T20:15:00Z"),
				CreatorID:   "bot-1",
				CreatorType: model.CreatorBot,
				UpdatedAt:   &updated,
			},
		},
		{
			name: "webhook overrides bot",
			raw: `{"id":"` + messageID + `","channelId":"` + channelID + `","content":"hook",` +
				`"createdAt":"2021-06-15T20:15:00Z","createdBy":"Ann6LewA","createdByBotId":"bot-1",` +
				`"createdByWebhookId":"hook-1"}`,
			want: model.Message{
				ID:          uuid.MustParse(messageID),
				ChannelID:   uuid.MustParse(channelID),
				Content:     "hook",
				CreatedAt:   mustTime(t, "2021-06-15T20:15:00Z"),
				CreatorID:   "hook-1",
				CreatorType: model.CreatorWebhook,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.UnmarshalMessage(json.RawMessage(tt.raw))
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("UnmarshalMessage() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUnmarshalMessageRejectsMalformed(t *testing.T) {
	m := New()
	tests := map[string]string{
		"empty":          ``,
		"not json":       `{`,
		"bad id":         `{"id":"nope","channelId":"` + channelID + `","createdAt":"2021-06-15T20:15:00Z","createdBy":"u"}`,
		"bad channel":    `{"id":"` + messageID + `","channelId":"x","createdAt":"2021-06-15T20:15:00Z","createdBy":"u"}`,
		"missing author": `{"id":"` + messageID + `","channelId":"` + channelID + `","createdAt":"2021-06-15T20:15:00Z"}`,
		"bad timestamp":  `{"id":"` + messageID + `","channelId":"` + channelID + `","createdAt":"yesterday","createdBy":"u"}`,
		"bad updatedAt": `{"id":"` + messageID + `","channelId":"` + channelID +
			`","createdAt":"2021-06-15T20:15:00Z","updatedAt":"later","createdBy":"u"}`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := m.UnmarshalMessage(json.RawMessage(raw))
			require.ErrorIs(t, err, ErrMalformedPayload)
		})
	}
}

func TestUnmarshalForumThread(t *testing.T) {
	got, err := New().UnmarshalForumThread(json.RawMessage(
		`{"id":123456,"createdAt":"2021-06-15T20:15:00.706Z","createdBy":"Ann6LewA","createdByBotId":"bot-9"}`))
	require.NoError(t, err)
	want := model.ForumThread{
		ID:          123456,
		CreatedAt:   mustTime(t, "2021-06-15T20:15:00.706Z"),
		CreatorID:   "bot-9",
		CreatorType: model.CreatorBot,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("UnmarshalForumThread() mismatch (-want +got):\n%s", diff)
	}
}

func TestUnmarshalListItem(t *testing.T) {
	m := New()

	withNote, err := m.UnmarshalListItem(json.RawMessage(
		`{"id":"li-1","message":"buy milk","note":"2%","createdAt":"2021-06-15T20:15:00Z","createdBy":"u1"}`))
	require.NoError(t, err)
	require.NotNil(t, withNote.Note)
	require.Equal(t, "2%", *withNote.Note)
	require.Equal(t, "buy milk", withNote.Message)
	require.Equal(t, model.CreatorUser, withNote.CreatorType)

	withoutNote, err := m.UnmarshalListItem(json.RawMessage(
		`{"id":"li-2","message":"eggs","createdAt":"2021-06-15T20:15:00Z","createdByWebhookId":"w1"}`))
	require.NoError(t, err)
	require.Nil(t, withoutNote.Note)
	require.Equal(t, "w1", withoutNote.CreatorID)
	require.Equal(t, model.CreatorWebhook, withoutNote.CreatorType)
}

func TestUnmarshalContentReaction(t *testing.T) {
	got, err := New().UnmarshalContentReaction(json.RawMessage(
		`{"id":90001,"createdAt":"2021-06-15T20:15:00Z","createdBy":"u1"}`))
	require.NoError(t, err)
	require.Equal(t, 90001, got.ID)
	require.Equal(t, "u1", got.CreatorID)
	require.Equal(t, model.CreatorUser, got.CreatorType)
}
