package protocol

import (
	"fmt"

	"github.com/PenumbraOS/pinitd-sub000/internal/codec"
)

// PMSFromChildKind discriminates frames a privileged child sends to PMS.
type PMSFromChildKind uint8

const (
	// PMSProcessLaunched MUST be the first frame on a connection.
	PMSProcessLaunched PMSFromChildKind = iota
	// PMSProcessExited conveys the child's terminal outcome.
	PMSProcessExited
)

// PMSFromChild is a message a privileged child sends to PMS.
type PMSFromChild struct {
	Kind     PMSFromChildKind
	PinitID  string // ProcessLaunched
	Pid      int32  // ProcessLaunched
	ExitCode int32  // ProcessExited
}

// Encode serialises m into a frame payload.
func (m PMSFromChild) Encode() []byte {
	e := codec.NewEncoder()
	e.Uint8(uint8(m.Kind))
	switch m.Kind {
	case PMSProcessLaunched:
		e.String(m.PinitID)
		e.Int32(m.Pid)
	case PMSProcessExited:
		e.Int32(m.ExitCode)
	}
	return e.Bytes()
}

// DecodePMSFromChild reads a PMSFromChild message from a frame payload.
func DecodePMSFromChild(payload []byte) (PMSFromChild, error) {
	d := codec.NewDecoder(payload)
	kindByte, err := d.Uint8()
	if err != nil {
		return PMSFromChild{}, err
	}
	m := PMSFromChild{Kind: PMSFromChildKind(kindByte)}
	switch m.Kind {
	case PMSProcessLaunched:
		if m.PinitID, err = d.String(); err != nil {
			return m, err
		}
		if m.Pid, err = d.Int32(); err != nil {
			return m, err
		}
	case PMSProcessExited:
		if m.ExitCode, err = d.Int32(); err != nil {
			return m, err
		}
	default:
		return m, codec.NewProtocolError("decoding", fmt.Errorf("unknown PMSFromChild kind %d", kindByte))
	}
	if err := d.Finished(); err != nil {
		return m, err
	}
	return m, nil
}

// PMSToChildKind discriminates frames PMS sends to a privileged child.
type PMSToChildKind uint8

const (
	PMSAllowStart PMSToChildKind = iota
	PMSKill
	PMSAck
)

// PMSToChild is a message PMS sends to a privileged child.
type PMSToChild struct {
	Kind PMSToChildKind
}

// Encode serialises m into a frame payload.
func (m PMSToChild) Encode() []byte {
	e := codec.NewEncoder()
	e.Uint8(uint8(m.Kind))
	return e.Bytes()
}

// DecodePMSToChild reads a PMSToChild message from a frame payload.
func DecodePMSToChild(payload []byte) (PMSToChild, error) {
	d := codec.NewDecoder(payload)
	kindByte, err := d.Uint8()
	if err != nil {
		return PMSToChild{}, err
	}
	m := PMSToChild{Kind: PMSToChildKind(kindByte)}
	if err := d.Finished(); err != nil {
		return m, err
	}
	return m, nil
}
