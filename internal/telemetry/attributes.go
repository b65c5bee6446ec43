// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by spans across the bot.
const (
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"
	HTTPAttemptKey    = "http.attempt"

	GatewayOpKey          = "gateway.op"
	GatewayEventKey       = "gateway.event"
	GatewayLastMessageKey = "gateway.last_message_id"

	ChannelIDKey = "guilded.channel_id"
	MessageIDKey = "guilded.message_id"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// GatewayAttributes describes a received gateway frame. Empty values are omitted.
func GatewayAttributes(op int, event, lastMessageID string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	attrs = append(attrs, attribute.Int(GatewayOpKey, op))
	if event != "" {
		attrs = append(attrs, attribute.String(GatewayEventKey, event))
	}
	if lastMessageID != "" {
		attrs = append(attrs, attribute.String(GatewayLastMessageKey, lastMessageID))
	}
	return attrs
}

// MessageAttributes tags a span with the channel and message it touches.
func MessageAttributes(channelID, messageID string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if channelID != "" {
		attrs = append(attrs, attribute.String(ChannelIDKey, channelID))
	}
	if messageID != "" {
		attrs = append(attrs, attribute.String(MessageIDKey, messageID))
	}
	return attrs
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
