package codec

import (
	"encoding/binary"
	"fmt"
)

// Encoder builds a message payload using variable-length integers for
// lengths, single bytes for tags, and little-endian fixed-width encodings
// for scalars —
// the same compact shape the framed codec wraps with a length prefix.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an empty Encoder.
func NewEncoder() *Encoder { return &Encoder{} }

// Bytes returns the encoded payload so far.
func (e *Encoder) Bytes() []byte { return e.buf }

// Uint8 appends a single tag/flag byte.
func (e *Encoder) Uint8(v uint8) { e.buf = append(e.buf, v) }

// Bool appends a boolean as one byte.
func (e *Encoder) Bool(v bool) {
	if v {
		e.Uint8(1)
	} else {
		e.Uint8(0)
	}
}

// Varint appends v as an unsigned LEB128 variable-length integer.
func (e *Encoder) Varint(v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	e.buf = append(e.buf, tmp[:n]...)
}

// Int32 appends a fixed 4-byte little-endian signed integer.
func (e *Encoder) Int32(v int32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(v))
	e.buf = append(e.buf, tmp[:]...)
}

// Uint32 appends a fixed 4-byte little-endian unsigned integer.
func (e *Encoder) Uint32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	e.buf = append(e.buf, tmp[:]...)
}

// String appends a length-prefixed UTF-8 string.
func (e *Encoder) String(s string) {
	e.Varint(uint64(len(s)))
	e.buf = append(e.buf, s...)
}

// FixedBytes appends b unprefixed (used for fixed-size blobs such as UUIDs).
func (e *Encoder) FixedBytes(b []byte) {
	e.buf = append(e.buf, b...)
}

// StringSlice appends a length-prefixed sequence of strings.
func (e *Encoder) StringSlice(ss []string) {
	e.Varint(uint64(len(ss)))
	for _, s := range ss {
		e.String(s)
	}
}

// OptionalString appends a presence flag followed by the string if present.
func (e *Encoder) OptionalString(s *string) {
	e.Bool(s != nil)
	if s != nil {
		e.String(*s)
	}
}

// Decoder reads values back out of a payload produced by Encoder, failing
// with a ProtocolError on any short read or malformed varint.
type Decoder struct {
	buf []byte
	pos int
}

// NewDecoder wraps payload for sequential reads.
func NewDecoder(payload []byte) *Decoder { return &Decoder{buf: payload} }

// Remaining reports how many bytes are left unread.
func (d *Decoder) Remaining() int { return len(d.buf) - d.pos }

func (d *Decoder) need(n int) error {
	if d.Remaining() < n {
		return NewProtocolError("decoding", fmt.Errorf("need %d bytes, have %d", n, d.Remaining()))
	}
	return nil
}

// Uint8 reads a single byte.
func (d *Decoder) Uint8() (uint8, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	v := d.buf[d.pos]
	d.pos++
	return v, nil
}

// Bool reads a single byte as a boolean.
func (d *Decoder) Bool() (bool, error) {
	v, err := d.Uint8()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// Varint reads an unsigned LEB128 variable-length integer.
func (d *Decoder) Varint() (uint64, error) {
	v, n := binary.Uvarint(d.buf[d.pos:])
	if n <= 0 {
		return 0, NewProtocolError("decoding varint", fmt.Errorf("malformed varint"))
	}
	d.pos += n
	return v, nil
}

// Int32 reads a fixed 4-byte little-endian signed integer.
func (d *Decoder) Int32() (int32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := int32(binary.LittleEndian.Uint32(d.buf[d.pos:]))
	d.pos += 4
	return v, nil
}

// Uint32 reads a fixed 4-byte little-endian unsigned integer.
func (d *Decoder) Uint32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(d.buf[d.pos:])
	d.pos += 4
	return v, nil
}

// String reads a length-prefixed UTF-8 string.
func (d *Decoder) String() (string, error) {
	n, err := d.Varint()
	if err != nil {
		return "", err
	}
	if err := d.need(int(n)); err != nil {
		return "", err
	}
	s := string(d.buf[d.pos : d.pos+int(n)])
	d.pos += int(n)
	return s, nil
}

// FixedBytes reads n unprefixed bytes (used for UUIDs).
func (d *Decoder) FixedBytes(n int) ([]byte, error) {
	if err := d.need(n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	copy(b, d.buf[d.pos:d.pos+n])
	d.pos += n
	return b, nil
}

// StringSlice reads a length-prefixed sequence of strings.
func (d *Decoder) StringSlice() ([]string, error) {
	n, err := d.Varint()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]string, 0, n)
	for i := uint64(0); i < n; i++ {
		s, err := d.String()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// OptionalString reads a presence flag followed by the string if present.
func (d *Decoder) OptionalString() (*string, error) {
	present, err := d.Bool()
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	s, err := d.String()
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Finished requires every byte of the payload to have been consumed,
// catching decode mismatches where a variant reads fewer fields than it
// wrote.
func (d *Decoder) Finished() error {
	if d.Remaining() != 0 {
		return NewProtocolError("decoding", fmt.Errorf("%d trailing bytes", d.Remaining()))
	}
	return nil
}
