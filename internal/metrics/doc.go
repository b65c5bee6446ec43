// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics holds the Prometheus collectors shared across the bot.
// Collectors are registered on the default registry via promauto and exposed
// by the ops server at /metrics.
package metrics
