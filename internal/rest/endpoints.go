// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package rest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ManuGH/seitokai/internal/model"
	"github.com/google/uuid"
)

func (c *Client) call(ctx context.Context, r route, payload any, opts []RequestOption, args ...any) (json.RawMessage, error) {
	opts = append(opts, withRouteLabel(r.template))
	return c.Request(ctx, r.method, r.compile(args...), payload, opts...)
}

// field extracts a top-level key from a JSON object response.
func field(r route, body json.RawMessage, key string) (json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, &APIError{Sentinel: ErrBadResponse, Method: r.method, Route: r.template, Err: err}
	}
	v, ok := obj[key]
	if !ok {
		return nil, &APIError{Sentinel: ErrBadResponse, Method: r.method, Route: r.template, Message: fmt.Sprintf("missing %q", key)}
	}
	return v, nil
}

func decodeErr(r route, err error) error {
	return &APIError{Sentinel: ErrBadResponse, Method: r.method, Route: r.template, Err: err}
}

// PostMemberRole assigns a role to a server member.
func (c *Client) PostMemberRole(ctx context.Context, userID string, roleID int) error {
	_, err := c.call(ctx, routePutMemberRole, nil, nil, userID, roleID)
	return err
}

// DeleteMemberRole removes a role from a server member.
func (c *Client) DeleteMemberRole(ctx context.Context, userID string, roleID int) error {
	_, err := c.call(ctx, routeDeleteMemberRole, nil, nil, userID, roleID)
	return err
}

// PutGroupMember adds a member to a group.
func (c *Client) PutGroupMember(ctx context.Context, groupID, userID string) error {
	_, err := c.call(ctx, routePutGroupMember, nil, nil, groupID, userID)
	return err
}

// DeleteGroupMember removes a member from a group.
func (c *Client) DeleteGroupMember(ctx context.Context, groupID, userID string) error {
	_, err := c.call(ctx, routeDeleteGroupMember, nil, nil, groupID, userID)
	return err
}

// PostChannelForum creates a forum thread.
func (c *Client) PostChannelForum(ctx context.Context, channelID uuid.UUID, title, content string) (model.ForumThread, error) {
	payload := map[string]string{"title": title, "content": content}
	body, err := c.call(ctx, routePostChannelForum, payload, nil, channelID)
	if err != nil {
		return model.ForumThread{}, err
	}
	raw, err := field(routePostChannelForum, body, "forumThread")
	if err != nil {
		return model.ForumThread{}, err
	}
	thread, err := c.marshaller.UnmarshalForumThread(raw)
	if err != nil {
		return model.ForumThread{}, decodeErr(routePostChannelForum, err)
	}
	return thread, nil
}

type messagePayload struct {
	Content string `json:"content"`
}

// PostChannelMessage sends a chat message.
func (c *Client) PostChannelMessage(ctx context.Context, channelID uuid.UUID, content string) (model.Message, error) {
	body, err := c.call(ctx, routePostChannelMessage, messagePayload{Content: content}, nil, channelID)
	if err != nil {
		return model.Message{}, err
	}
	return c.decodeMessage(routePostChannelMessage, body)
}

// GetChannelMessage fetches one chat message.
func (c *Client) GetChannelMessage(ctx context.Context, channelID, messageID uuid.UUID) (model.Message, error) {
	body, err := c.call(ctx, routeGetChannelMessage, nil, nil, channelID, messageID)
	if err != nil {
		return model.Message{}, err
	}
	return c.decodeMessage(routeGetChannelMessage, body)
}

// PutChannelMessage replaces the content of a chat message.
func (c *Client) PutChannelMessage(ctx context.Context, channelID, messageID uuid.UUID, content string) (model.Message, error) {
	body, err := c.call(ctx, routePutChannelMessage, messagePayload{Content: content}, nil, channelID, messageID)
	if err != nil {
		return model.Message{}, err
	}
	return c.decodeMessage(routePutChannelMessage, body)
}

// DeleteChannelMessage deletes a chat message.
func (c *Client) DeleteChannelMessage(ctx context.Context, channelID, messageID uuid.UUID) error {
	_, err := c.call(ctx, routeDeleteChannelMessage, nil, nil, channelID, messageID)
	return err
}

func (c *Client) decodeMessage(r route, body json.RawMessage) (model.Message, error) {
	raw, err := field(r, body, "message")
	if err != nil {
		return model.Message{}, err
	}
	msg, err := c.marshaller.UnmarshalMessage(raw)
	if err != nil {
		return model.Message{}, decodeErr(r, err)
	}
	return msg, nil
}

// PutContentReaction adds an emote reaction to a piece of content in a channel.
func (c *Client) PutContentReaction(ctx context.Context, channelID uuid.UUID, contentID string, emoteID int) error {
	_, err := c.call(ctx, routePutContentReaction, nil, nil, channelID, contentID, emoteID)
	return err
}

type listItemPayload struct {
	Message string  `json:"message"`
	Note    *string `json:"note,omitempty"`
}

// PostChannelList creates a list item. note may be nil.
func (c *Client) PostChannelList(ctx context.Context, channelID uuid.UUID, message string, note *string) (model.ListItem, error) {
	body, err := c.call(ctx, routePostChannelList, listItemPayload{Message: message, Note: note}, nil, channelID)
	if err != nil {
		return model.ListItem{}, err
	}
	raw, err := field(routePostChannelList, body, "listItem")
	if err != nil {
		return model.ListItem{}, err
	}
	item, err := c.marshaller.UnmarshalListItem(raw)
	if err != nil {
		return model.ListItem{}, decodeErr(routePostChannelList, err)
	}
	return item, nil
}

type xpPayload struct {
	Amount int `json:"amount"`
}

type xpResponse struct {
	Total  *int `json:"total"`
	Amount *int `json:"amount"`
}

// PostMemberXP awards XP to a member and returns their new total.
func (c *Client) PostMemberXP(ctx context.Context, userID string, amount int) (int, error) {
	body, err := c.call(ctx, routePostMemberXP, xpPayload{Amount: amount}, nil, userID)
	if err != nil {
		return 0, err
	}
	var resp xpResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, decodeErr(routePostMemberXP, err)
	}
	switch {
	case resp.Total != nil:
		return *resp.Total, nil
	case resp.Amount != nil:
		return *resp.Amount, nil
	}
	return 0, &APIError{Sentinel: ErrBadResponse, Method: routePostMemberXP.method, Route: routePostMemberXP.template, Message: `missing "total"`}
}

// PostRoleXP awards XP to every member holding a role.
func (c *Client) PostRoleXP(ctx context.Context, roleID int, amount int) error {
	_, err := c.call(ctx, routePostRoleXP, xpPayload{Amount: amount}, nil, roleID)
	return err
}
