// Package codec implements the wire framing and compact binary primitive
// encoding shared by every link in the daemon: a u64 little-endian length
// prefix followed by a payload of variable-length integers and
// little-endian fixed-width primitives.
package codec

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameSize is the implementation-defined cap on a single frame's
// payload. Exceeding it is a fatal framing error.
const MaxFrameSize = 16 * 1024 * 1024

// WriteFrame writes length-prefixed payload to w: an 8-byte little-endian
// length followed by payload itself.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return NewProtocolError("encoding frame", ErrFrameTooLarge)
	}
	var header [8]byte
	binary.LittleEndian.PutUint64(header[:], uint64(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return NewProtocolError("writing frame header", err)
	}
	if _, err := w.Write(payload); err != nil {
		return NewProtocolError("writing frame payload", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed payload from r, failing with a
// ProtocolError on short read, truncated payload, or a declared length
// exceeding MaxFrameSize.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, NewProtocolError("reading frame header", err)
	}
	length := binary.LittleEndian.Uint64(header[:])
	if length > MaxFrameSize {
		return nil, NewProtocolError("reading frame header", fmt.Errorf("%w: declared %d bytes", ErrFrameTooLarge, length))
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, NewProtocolError("reading frame payload", err)
	}
	return payload, nil
}
