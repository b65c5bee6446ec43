// SPDX-License-Identifier: MIT

package commands

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/seitokai/internal/events"
	"github.com/ManuGH/seitokai/internal/marshal"
	"github.com/ManuGH/seitokai/internal/model"
	"github.com/ManuGH/seitokai/internal/rest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/time/rate"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testChannel = uuid.MustParse("00000000-0000-4000-8000-000000000001")

type sent struct {
	channel uuid.UUID
	content string
}

type fakePoster struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (p *fakePoster) PostChannelMessage(_ context.Context, channelID uuid.UUID, content string) (model.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return model.Message{}, p.err
	}
	p.sent = append(p.sent, sent{channelID, content})
	return model.Message{ID: uuid.New(), ChannelID: channelID, Content: content}, nil
}

func (p *fakePoster) messages() []sent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]sent(nil), p.sent...)
}

func created(content string, creator model.CreatorType) model.MessageCreatedEvent {
	return model.MessageCreatedEvent{Message: model.Message{
		ID:          uuid.New(),
		ChannelID:   testChannel,
		Content:     content,
		CreatorID:   "user1",
		CreatorType: creator,
	}}
}

func TestPingReplies(t *testing.T) {
	p := &fakePoster{}
	r := New(p, "")
	r.Handle("ping", Ping)

	require.NoError(t, r.onMessage(context.Background(), created("!ping", model.CreatorUser)))
	assert.Equal(t, []sent{{testChannel, "pong"}}, p.messages())
}

func TestRouterIgnores(t *testing.T) {
	tests := []struct {
		name    string
		content string
		creator model.CreatorType
	}{
		{"bot author", "!ping", model.CreatorBot},
		{"no prefix", "ping", model.CreatorUser},
		{"space after prefix", "! ping", model.CreatorUser},
		{"prefix only", "!", model.CreatorUser},
		{"unknown command", "!pong", model.CreatorUser},
		{"other prefix", "?ping", model.CreatorUser},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePoster{}
			r := New(p, "!")
			r.Handle("ping", Ping)
			require.NoError(t, r.onMessage(context.Background(), created(tt.content, tt.creator)))
			assert.Empty(t, p.messages())
		})
	}
}

func TestRouterPassesArgs(t *testing.T) {
	p := &fakePoster{}
	r := New(p, "!")
	var got []string
	r.Handle("echo", func(_ context.Context, _ model.Message, args []string) (string, error) {
		got = args
		return "", nil
	})

	require.NoError(t, r.onMessage(context.Background(), created("!echo a  b", model.CreatorUser)))
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Empty(t, p.messages(), "empty reply sends nothing")
}

func TestRouterErrors(t *testing.T) {
	boom := errors.New("boom")

	r := New(&fakePoster{}, "!")
	r.Handle("fail", func(context.Context, model.Message, []string) (string, error) { return "", boom })
	require.ErrorIs(t, r.onMessage(context.Background(), created("!fail", model.CreatorUser)), boom)

	r = New(&fakePoster{err: boom}, "!")
	r.Handle("ping", Ping)
	err := r.onMessage(context.Background(), created("!ping", model.CreatorUser))
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "reply")
}

func TestSetPrefix(t *testing.T) {
	p := &fakePoster{}
	r := New(p, "!")
	r.Handle("ping", Ping)

	r.SetPrefix("")
	assert.Equal(t, "!", r.Prefix())

	r.SetPrefix("seito ")
	assert.Equal(t, "seito ", r.Prefix())
	require.NoError(t, r.onMessage(context.Background(), created("!ping", model.CreatorUser)))
	require.NoError(t, r.onMessage(context.Background(), created("seito ping", model.CreatorUser)))
	assert.Len(t, p.messages(), 1)

	r.Remove("ping")
	require.NoError(t, r.onMessage(context.Background(), created("seito ping", model.CreatorUser)))
	assert.Len(t, p.messages(), 1)
}

func TestAttachDetach(t *testing.T) {
	m := events.NewManager(marshal.New())
	r := New(&fakePoster{}, "!")

	require.NoError(t, r.Attach(m))
	require.ErrorIs(t, r.Attach(m), ErrAlreadyAttached)
	assert.Equal(t, 1, events.Listeners[model.MessageCreatedEvent](m))

	require.NoError(t, r.Detach())
	require.ErrorIs(t, r.Detach(), ErrNotAttached)
	assert.Equal(t, 0, events.Listeners[model.MessageCreatedEvent](m))
}

func TestPingThroughEventsAndREST(t *testing.T) {
	posted := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "/api/v1/channels/"+testChannel.String()+"/messages", r.URL.Path)
		posted <- body

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"message": map[string]any{
			"id":        uuid.NewString(),
			"channelId": testChannel.String(),
			"content":   "pong",
			"createdAt": time.Now().UTC().Format(time.RFC3339Nano),
			"createdBy": "bot1",
		}})
	}))
	defer srv.Close()

	client, err := rest.New("tok", marshal.New(), rest.Options{BaseURL: srv.URL + "/api/v1/", RateLimit: rate.Inf})
	require.NoError(t, err)
	require.NoError(t, client.Start())
	defer func() { _ = client.Close() }()

	m := events.NewManager(marshal.New())
	done := make(chan error, 1)
	go func() { done <- m.Run(context.Background()) }()
	require.Eventually(t, m.IsRunning, time.Second, time.Millisecond)

	r := New(client, "!")
	r.Handle("ping", Ping)
	require.NoError(t, r.Attach(m))

	require.NoError(t, m.Dispatch(created("!ping", model.CreatorUser)))
	select {
	case body := <-posted:
		assert.Equal(t, map[string]any{"content": "pong"}, body)
	case <-time.After(2 * time.Second):
		t.Fatal("no reply posted")
	}

	require.NoError(t, r.Detach())
	require.NoError(t, m.Close())
	require.NoError(t, <-done)
}
