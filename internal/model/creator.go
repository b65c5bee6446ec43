// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

// CreatorType identifies what kind of account authored a piece of content.
type CreatorType string

const (
	CreatorUser    CreatorType = "user"
	CreatorBot     CreatorType = "bot"
	CreatorWebhook CreatorType = "webhook"
)

func (c CreatorType) String() string {
	return string(c)
}

// Valid reports whether c is one of the known creator types.
func (c CreatorType) Valid() bool {
	switch c {
	case CreatorUser, CreatorBot, CreatorWebhook:
		return true
	default:
		return false
	}
}
