// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &out))
	return out
}

func TestConfigureAttachesServiceAndVersion(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "bot", Version: "v1.2.3"})
	t.Cleanup(func() { Configure(Config{Level: "info"}) })

	l := WithComponent("gateway")
	l.Info().Msg("hello")

	line := decodeLine(t, &buf)
	require.Equal(t, "bot", line["service"])
	require.Equal(t, "v1.2.3", line["version"])
	require.Equal(t, "gateway", line[FieldComponent])
	require.Equal(t, "hello", line["message"])
}

func TestSetLevel(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	require.NoError(t, SetLevel("warn"))
	require.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	require.Error(t, SetLevel("loud"))
	require.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
}

func TestWithContextAddsCorrelationFields(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithEventName(ctx, "ChatMessageCreated")

	l := WithContext(ctx, base)
	l.Info().Msg("x")

	line := decodeLine(t, &buf)
	require.Equal(t, "req-1", line[FieldRequestID])
	require.Equal(t, "ChatMessageCreated", line[FieldEvent])
}

func TestWithContextNoFieldsReturnsSameLogger(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	//nolint:staticcheck // nil context is part of the contract
	l := WithContext(nil, base)
	l.Info().Msg("x")

	line := decodeLine(t, &buf)
	require.NotContains(t, line, FieldRequestID)
}

func TestContextAccessorsHandleNil(t *testing.T) {
	//nolint:staticcheck // nil context is part of the contract
	require.Empty(t, RequestIDFromContext(nil))
	//nolint:staticcheck // nil context is part of the contract
	require.Empty(t, EventNameFromContext(nil))

	ctx := ContextWithRequestID(nil, "abc") //nolint:staticcheck
	require.Equal(t, "abc", RequestIDFromContext(ctx))
}

func TestFromContextFallsBackToBase(t *testing.T) {
	l := FromContext(context.Background())
	require.NotNil(t, l)
	require.NotEqual(t, zerolog.Disabled, l.GetLevel())
}
