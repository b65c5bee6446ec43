// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ManuGH/seitokai/internal/cache"
	"github.com/ManuGH/seitokai/internal/cursor"
	"github.com/ManuGH/seitokai/internal/events"
	"github.com/ManuGH/seitokai/internal/gateway"
	"github.com/ManuGH/seitokai/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/net/websocket"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	messageID = uuid.MustParse("00000000-0000-0000-0000-0000000000aa")
	channelID = uuid.MustParse("00000000-0000-0000-0000-0000000000bb")
)

const createdFrame = `{"op":0,"t":"ChatMessageCreated","s":"cursor-1","d":{"serverId":"srv","message":{
	"id":"00000000-0000-0000-0000-0000000000aa",
	"channelId":"00000000-0000-0000-0000-0000000000bb",
	"content":"!ping",
	"createdAt":"2021-06-15T20:15:00.706Z",
	"createdBy":"user1"}}}`

const deletedFrame = `{"op":0,"t":"ChatMessageDeleted","s":"cursor-2","d":{"serverId":"srv","message":{
	"id":"00000000-0000-0000-0000-0000000000aa",
	"channelId":"00000000-0000-0000-0000-0000000000bb",
	"deletedAt":"2021-06-15T20:16:00.000Z"}}}`

// newGateway serves a welcome frame and then the given frames, released one
// at a time through next.
func newGateway(t *testing.T, next <-chan string) string {
	t.Helper()
	srv := httptest.NewServer(websocket.Server{
		Handshake: func(_ *websocket.Config, r *http.Request) error {
			if r.Header.Get("Authorization") != "Bearer tok" {
				return errors.New("unauthorized")
			}
			return nil
		},
		Handler: func(ws *websocket.Conn) {
			if websocket.Message.Send(ws, `{"op":1,"d":{"heartbeatIntervalMs":1000,"lastMessageId":""}}`) != nil {
				return
			}
			go func() {
				for frame := range next {
					if websocket.Message.Send(ws, frame) != nil {
						return
					}
				}
			}()
			var msg []byte
			for websocket.Message.Receive(ws, &msg) == nil {
			}
		},
	})
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestBotLifecycle(t *testing.T) {
	frames := make(chan string, 2)
	t.Cleanup(func() { close(frames) })
	url := newGateway(t, frames)

	mc := cache.NewMemoryCache(time.Minute, time.Minute)
	t.Cleanup(func() { _ = mc.Close() })
	store := cursor.NewMemoryStore()

	b, err := New("tok", Options{Gateway: gateway.Options{URL: url}, Cache: mc, Cursor: store})
	require.NoError(t, err)
	require.False(t, b.IsRunning())
	require.ErrorIs(t, b.Close(context.Background()), ErrNotRunning)
	require.ErrorIs(t, b.Join(context.Background()), ErrNotRunning)

	created := events.Stream[model.MessageCreatedEvent](b, 1)

	done := make(chan error, 1)
	go func() { done <- b.Run(context.Background()) }()
	require.Eventually(t, b.IsRunning, time.Second, time.Millisecond)
	require.Eventually(t, b.Gateway().IsConnected, 2*time.Second, time.Millisecond)
	assert.True(t, b.REST().IsRunning())
	require.ErrorIs(t, b.Run(context.Background()), ErrAlreadyRunning)

	frames <- createdFrame
	ev, err := created.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "!ping", ev.Message.Content)
	assert.Equal(t, channelID, ev.ChannelID())

	require.Eventually(t, func() bool {
		_, ok := mc.Get(context.Background(), messageID)
		return ok
	}, time.Second, time.Millisecond)

	frames <- deletedFrame
	require.Eventually(t, func() bool {
		_, ok := mc.Get(context.Background(), messageID)
		return !ok
	}, time.Second, time.Millisecond)

	stored, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cursor-2", stored)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, b.Close(ctx))
	require.NoError(t, <-done)

	assert.False(t, b.IsRunning())
	assert.False(t, b.REST().IsRunning())
	assert.True(t, created.Closed())
	assert.Zero(t, events.Listeners[model.MessageCreatedEvent](b))
	require.ErrorIs(t, b.Close(context.Background()), ErrNotRunning)
}

func TestBotRunFailsWhenGatewayRejectsToken(t *testing.T) {
	frames := make(chan string)
	t.Cleanup(func() { close(frames) })
	url := newGateway(t, frames)

	b, err := New("wrong", Options{Gateway: gateway.Options{URL: url, Reconnect: true}})
	require.NoError(t, err)

	err = b.Run(context.Background())
	require.ErrorIs(t, err, gateway.ErrHandshake)
	assert.False(t, b.IsRunning())
	assert.False(t, b.EventManager().IsRunning())
}

func TestBotRunStopsWithContext(t *testing.T) {
	frames := make(chan string)
	t.Cleanup(func() { close(frames) })
	url := newGateway(t, frames)

	b, err := New("tok", Options{Gateway: gateway.Options{URL: url}})
	require.NoError(t, err)
	assert.Nil(t, b.Cache())
	assert.NotNil(t, b.Marshaller())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()
	require.Eventually(t, b.Gateway().IsConnected, 2*time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("bot did not stop")
	}
}

func TestBotDispatchPassthrough(t *testing.T) {
	b, err := New("tok", Options{})
	require.NoError(t, err)
	require.ErrorIs(t, b.Dispatch(model.MessageDeletedEvent{}), events.ErrInactive)
}
