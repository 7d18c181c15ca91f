// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "rigchat.log")

	l, err := New(Config{Path: path, Level: "debug"})
	require.NoError(t, err)
	gate := l.Component("gate")
	gate.Debug().Str("state", "connected").Msg("connection state changed")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	assert.Equal(t, "rigchat", entry["app"])
	assert.Equal(t, "gate", entry["component"])
	assert.Equal(t, "connected", entry["state"])
	assert.Equal(t, "debug", entry["level"])
}

func TestNew_RespectsLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rigchat.log")

	l, err := New(Config{Path: path, Level: "warn"})
	require.NoError(t, err)
	l.Info().Msg("hidden")
	l.Warn().Msg("shown")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
}

func TestNew_ConsoleMirror(t *testing.T) {
	var out bytes.Buffer
	l, err := New(Config{Path: filepath.Join(t.TempDir(), "x.log"), Console: true, Out: &out})
	require.NoError(t, err)
	defer l.Close()

	l.Info().Msg("hello console")
	assert.True(t, strings.Contains(out.String(), "hello console"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.TraceLevel, ParseLevel("trace"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" WARN "))
	assert.Equal(t, zerolog.Disabled, ParseLevel("disabled"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("whatever"))
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Error().Msg("discarded")
	assert.Empty(t, l.Path())
	assert.NoError(t, l.Close())
}
