// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package gateway

import (
	"fmt"

	"github.com/ManuGH/seitokai/internal/dispatch"
)

func (c *Client) rawDispatcher(name string) *dispatch.Dispatchable[RawEvent] {
	d, ok := c.raw[name]
	if !ok {
		d = dispatch.New[RawEvent](name)
		c.raw[name] = d
	}
	return d
}

// Stream opens a stream of raw events named name, e.g. "ChatMessageCreated".
func (c *Client) Stream(name string, bufferSize int) *dispatch.Stream[RawEvent] {
	c.rawMu.Lock()
	defer c.rawMu.Unlock()
	return c.rawDispatcher(name).Stream(bufferSize)
}

// AddRawListener registers cb for raw events named name.
func (c *Client) AddRawListener(name string, cb dispatch.Callback[RawEvent]) dispatch.ListenerID {
	c.rawMu.Lock()
	defer c.rawMu.Unlock()
	return c.rawDispatcher(name).AddCallback(cb)
}

// RawListeners returns the number of callbacks registered for name.
func (c *Client) RawListeners(name string) int {
	c.rawMu.Lock()
	defer c.rawMu.Unlock()
	if d, ok := c.raw[name]; ok {
		return d.Callbacks()
	}
	return 0
}

// RemoveRawListener unregisters a callback added with AddRawListener.
func (c *Client) RemoveRawListener(name string, id dispatch.ListenerID) error {
	c.rawMu.Lock()
	defer c.rawMu.Unlock()
	d, ok := c.raw[name]
	if !ok || !d.RemoveCallback(id) {
		return fmt.Errorf("%w: %s #%d", ErrNoListener, name, id)
	}
	if d.IsEmpty() {
		delete(c.raw, name)
	}
	return nil
}

func (c *Client) closeRawStreams() {
	c.rawMu.Lock()
	defer c.rawMu.Unlock()
	for name, d := range c.raw {
		d.CloseStreams()
		if d.IsEmpty() {
			delete(c.raw, name)
		}
	}
}
