// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package rest

import (
	"context"
	"encoding/json"
	"iter"
	"net/url"
	"strconv"
	"time"

	"github.com/ManuGH/seitokai/internal/model"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100

	// boundaryOverlap widens each cursor so messages sharing the oldest
	// timestamp of a page are fetched again instead of skipped. API
	// timestamps carry millisecond precision.
	boundaryOverlap = time.Millisecond
)

// MessageQuery narrows IterChannelMessages.
type MessageQuery struct {
	// Limit is the page size, clamped to [1, 100]. Zero selects 50.
	Limit int
	// Before starts the walk at messages created strictly before this time.
	Before time.Time
	// IncludePrivate also returns private replies visible to the bot.
	IncludePrivate bool
}

// MessagePaginator walks a channel's history from newest to oldest.
type MessagePaginator struct {
	client    *Client
	channelID uuid.UUID
	limit     int
	before    time.Time
	private   bool
	done      bool
	seen      map[uuid.UUID]struct{}
}

// IterChannelMessages returns a paginator over a channel's messages. No
// request is made until the first page is fetched.
func (c *Client) IterChannelMessages(channelID uuid.UUID, q MessageQuery) *MessagePaginator {
	limit := q.Limit
	switch {
	case limit <= 0:
		limit = defaultPageSize
	case limit > maxPageSize:
		limit = maxPageSize
	}
	return &MessagePaginator{
		client:    c,
		channelID: channelID,
		limit:     limit,
		before:    q.Before,
		private:   q.IncludePrivate,
	}
}

// Done reports whether the history has been exhausted.
func (p *MessagePaginator) Done() bool {
	return p.done
}

// NextPage fetches the next page. Once Done it returns an empty page.
// Messages are never returned twice, including those sharing a timestamp
// across a page boundary.
func (p *MessagePaginator) NextPage(ctx context.Context) ([]model.Message, error) {
	for !p.done {
		raw, err := p.fetch(ctx)
		if err != nil {
			return nil, err
		}
		if len(raw) < p.limit {
			p.done = true
		}
		if len(raw) == 0 {
			return nil, nil
		}

		page := make([]model.Message, 0, len(raw))
		for _, msg := range raw {
			if _, dup := p.seen[msg.ID]; !dup {
				page = append(page, msg)
			}
		}

		oldest := raw[0].CreatedAt
		for _, msg := range raw[1:] {
			if msg.CreatedAt.Before(oldest) {
				oldest = msg.CreatedAt
			}
		}
		if len(page) == 0 {
			// a full page of already returned messages: step strictly past it
			p.before = oldest
			p.seen = nil
			continue
		}

		p.before = oldest.Add(boundaryOverlap)
		p.seen = make(map[uuid.UUID]struct{})
		for _, msg := range raw {
			if msg.CreatedAt.Before(p.before) {
				p.seen[msg.ID] = struct{}{}
			}
		}
		return page, nil
	}
	return nil, nil
}

func (p *MessagePaginator) fetch(ctx context.Context) ([]model.Message, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(p.limit))
	if !p.before.IsZero() {
		q.Set("before", p.before.UTC().Format(time.RFC3339Nano))
	}
	if p.private {
		q.Set("includePrivate", "true")
	}

	body, err := p.client.call(ctx, routeGetChannelMessages, nil, []RequestOption{WithQuery(q)}, p.channelID)
	if err != nil {
		return nil, err
	}
	raw, err := field(routeGetChannelMessages, body, "messages")
	if err != nil {
		return nil, err
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, decodeErr(routeGetChannelMessages, err)
	}

	msgs := make([]model.Message, 0, len(items))
	for _, item := range items {
		msg, err := p.client.marshaller.UnmarshalMessage(item)
		if err != nil {
			return nil, decodeErr(routeGetChannelMessages, err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// All yields every remaining message. Iteration stops after the first error.
func (p *MessagePaginator) All(ctx context.Context) iter.Seq2[model.Message, error] {
	return func(yield func(model.Message, error) bool) {
		for !p.done {
			page, err := p.NextPage(ctx)
			if err != nil {
				yield(model.Message{}, err)
				return
			}
			for _, msg := range page {
				if !yield(msg, nil) {
					return
				}
			}
		}
	}
}
