package codec

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	payload := []byte("a sample payload")
	var buf bytes.Buffer

	require.NoError(t, WriteFrame(&buf, payload))
	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestWriteFrameRejectsOversizedPayload(t *testing.T) {
	oversized := make([]byte, MaxFrameSize+1)
	err := WriteFrame(&bytes.Buffer{}, oversized)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestReadFrameRejectsOversizedDeclaredLength(t *testing.T) {
	var buf bytes.Buffer
	header := make([]byte, 8)
	header[7] = 0xff // absurdly large little-endian length
	buf.Write(header)

	_, err := ReadFrame(&buf)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestReadFrameTruncatedPayloadFails(t *testing.T) {
	_, err := ReadFrame(strings.NewReader("\x05\x00\x00\x00\x00\x00\x00\x00ab"))
	assert.Error(t, err)
}
