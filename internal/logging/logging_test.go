// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJSONLogger(buf *bytes.Buffer) *Logger {
	return New(slog.New(slog.NewJSONHandler(buf, nil)))
}

func TestWithComponentTagsEveryRecord(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf).WithComponent("resolver")
	l.Info("updated links", "vlan", "ixp1")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "resolver", rec["component"])
	assert.Equal(t, "ixp1", rec["vlan"])
	assert.Equal(t, "updated links", rec["msg"])
}

func TestWithAddsFixedAttributesToSubsequentCalls(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf).With("asn", uint64(64512))
	l.Warn("port range shrunk")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, float64(64512), rec["asn"])
	assert.Equal(t, "WARN", rec["level"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("garbage"))
}

func TestDefaultReturnsSameInstanceUntilReplaced(t *testing.T) {
	first := Default()
	second := Default()
	assert.Same(t, first, second)

	var buf bytes.Buffer
	replacement := newJSONLogger(&buf)
	SetDefault(replacement)
	assert.Same(t, replacement, Default())
}
