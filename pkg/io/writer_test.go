package io

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf)

	results := []Result{
		{Timestamp: 1, Score: 0.25, IsAnomaly: false},
		{Timestamp: 2, Score: 7.5, IsAnomaly: true, Features: []float64{1, 2}},
	}
	require.NoError(t, w.WriteAll(results))
	require.NoError(t, w.Close())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first Result
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, results[0], first)

	var second Result
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.True(t, second.IsAnomaly)
	assert.Equal(t, []float64{1, 2}, second.Features)
}

func TestJSONLWriterFlushOnClose(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf)

	require.NoError(t, w.Write(Result{Timestamp: 3, Score: 0.5}))
	require.NoError(t, w.Close())

	assert.NotEmpty(t, buf.String())
}
