package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressTextSkipsSmallPayloads(t *testing.T) {
	text := "short extracted text"

	payload, compressed, err := CompressText(text)
	require.NoError(t, err)

	assert.False(t, compressed)
	assert.Equal(t, []byte(text), payload)

	restored, err := DecompressText(payload, compressed)
	require.NoError(t, err)
	assert.Equal(t, text, restored)
}

func TestCompressTextRoundTrip(t *testing.T) {
	text := strings.Repeat("This Agreement shall remain in effect. ", 200)

	payload, compressed, err := CompressText(text)
	require.NoError(t, err)

	assert.True(t, compressed)
	assert.Less(t, len(payload), len(text), "repetitive text should shrink")

	restored, err := DecompressText(payload, compressed)
	require.NoError(t, err)
	assert.Equal(t, text, restored)
}

func TestDecompressTextEmptyPayload(t *testing.T) {
	restored, err := DecompressText(nil, true)
	require.NoError(t, err)
	assert.Equal(t, "", restored)
}
