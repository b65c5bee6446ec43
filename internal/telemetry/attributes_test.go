// SPDX-License-Identifier: MIT
package telemetry

import (
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestHTTPAttributes(t *testing.T) {
	attrs := HTTPAttributes("POST", "/channels/{channelId}/messages", "https://www.guilded.gg/api/v1/channels/x/messages", 201)

	if len(attrs) != 4 {
		t.Fatalf("Expected 4 attributes, got %d", len(attrs))
	}

	verifyAttribute(t, attrs, HTTPMethodKey, "POST")
	verifyAttribute(t, attrs, HTTPRouteKey, "/channels/{channelId}/messages")
	verifyIntAttribute(t, attrs, HTTPStatusCodeKey, 201)
}

func TestGatewayAttributes(t *testing.T) {
	tests := []struct {
		name    string
		event   string
		lastID  string
		wantLen int
	}{
		{name: "all fields", event: "ChatMessageCreated", lastID: "abc", wantLen: 3},
		{name: "only op", wantLen: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := GatewayAttributes(0, tt.event, tt.lastID)
			if len(attrs) != tt.wantLen {
				t.Errorf("Expected %d attributes, got %d", tt.wantLen, len(attrs))
			}
			verifyIntAttribute(t, attrs, GatewayOpKey, 0)
			if tt.event != "" {
				verifyAttribute(t, attrs, GatewayEventKey, tt.event)
			}
		})
	}
}

func TestMessageAttributes(t *testing.T) {
	if got := len(MessageAttributes("", "")); got != 0 {
		t.Fatalf("Expected no attributes, got %d", got)
	}
	attrs := MessageAttributes("chan", "msg")
	verifyAttribute(t, attrs, ChannelIDKey, "chan")
	verifyAttribute(t, attrs, MessageIDKey, "msg")
}

func TestErrorAttributes(t *testing.T) {
	attrs := ErrorAttributes("rate_limited")

	if len(attrs) != 2 {
		t.Fatalf("Expected 2 attributes, got %d", len(attrs))
	}
	verifyAttribute(t, attrs, ErrorTypeKey, "rate_limited")
}

func verifyAttribute(t *testing.T, attrs []attribute.KeyValue, key, expectedValue string) {
	t.Helper()
	for _, attr := range attrs {
		if string(attr.Key) == key {
			if attr.Value.AsString() != expectedValue {
				t.Errorf("Expected %s=%s, got %s", key, expectedValue, attr.Value.AsString())
			}
			return
		}
	}
	t.Errorf("Attribute %s not found", key)
}

func verifyIntAttribute(t *testing.T, attrs []attribute.KeyValue, key string, expectedValue int) {
	t.Helper()
	for _, attr := range attrs {
		if string(attr.Key) == key {
			if attr.Value.AsInt64() != int64(expectedValue) {
				t.Errorf("Expected %s=%d, got %d", key, expectedValue, attr.Value.AsInt64())
			}
			return
		}
	}
	t.Errorf("Attribute %s not found", key)
}
