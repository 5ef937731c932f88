package codec

import "errors"

// ProtocolError wraps any framing or decode failure on the wire: short
// reads, truncated payloads, oversized frames, or tag mismatches.
type ProtocolError struct {
	msg string
	err error
}

func (e *ProtocolError) Error() string {
	if e.err != nil {
		return "protocol error: " + e.msg + ": " + e.err.Error()
	}
	return "protocol error: " + e.msg
}

func (e *ProtocolError) Unwrap() error { return e.err }

// NewProtocolError builds a ProtocolError with context and an optional
// underlying cause.
func NewProtocolError(msg string, cause error) *ProtocolError {
	return &ProtocolError{msg: msg, err: cause}
}

// ErrFrameTooLarge is returned when a frame's declared length exceeds MaxFrameSize.
var ErrFrameTooLarge = errors.New("frame exceeds maximum size")
