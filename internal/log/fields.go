// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldChannelID = "channel_id"
	FieldMessageID = "message_id"
	FieldUserID    = "user_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldOpcode    = "op"
	FieldListener  = "listener"

	// HTTP fields
	FieldMethod  = "method"
	FieldRoute   = "route"
	FieldStatus  = "status"
	FieldAttempt = "attempt"

	// Connection fields
	FieldURL           = "url"
	FieldLastMessageID = "last_message_id"
	FieldBackoff       = "backoff"
)
