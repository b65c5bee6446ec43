// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package model defines the Guilded entities and gateway events the bot
// works with. Values are immutable snapshots; callers receive copies.
package model
