package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	s := "hello"
	tests := []struct {
		name  string
		write func(e *Encoder)
		read  func(d *Decoder) (any, error)
		want  any
	}{
		{
			name:  "uint8",
			write: func(e *Encoder) { e.Uint8(42) },
			read:  func(d *Decoder) (any, error) { return d.Uint8() },
			want:  uint8(42),
		},
		{
			name:  "bool true",
			write: func(e *Encoder) { e.Bool(true) },
			read:  func(d *Decoder) (any, error) { return d.Bool() },
			want:  true,
		},
		{
			name:  "varint large",
			write: func(e *Encoder) { e.Varint(1 << 40) },
			read:  func(d *Decoder) (any, error) { return d.Varint() },
			want:  uint64(1 << 40),
		},
		{
			name:  "int32 negative",
			write: func(e *Encoder) { e.Int32(-12345) },
			read:  func(d *Decoder) (any, error) { return d.Int32() },
			want:  int32(-12345),
		},
		{
			name:  "uint32",
			write: func(e *Encoder) { e.Uint32(0xdeadbeef) },
			read:  func(d *Decoder) (any, error) { return d.Uint32() },
			want:  uint32(0xdeadbeef),
		},
		{
			name:  "string",
			write: func(e *Encoder) { e.String(s) },
			read:  func(d *Decoder) (any, error) { return d.String() },
			want:  s,
		},
		{
			name:  "string slice",
			write: func(e *Encoder) { e.StringSlice([]string{"a", "bb", "ccc"}) },
			read:  func(d *Decoder) (any, error) { return d.StringSlice() },
			want:  []string{"a", "bb", "ccc"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEncoder()
			tt.write(e)
			d := NewDecoder(e.Bytes())
			got, err := tt.read(d)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NoError(t, d.Finished())
		})
	}
}

func TestOptionalStringRoundTrip(t *testing.T) {
	t.Run("present", func(t *testing.T) {
		e := NewEncoder()
		s := "present"
		e.OptionalString(&s)
		d := NewDecoder(e.Bytes())
		got, err := d.OptionalString()
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, s, *got)
	})

	t.Run("absent", func(t *testing.T) {
		e := NewEncoder()
		e.OptionalString(nil)
		d := NewDecoder(e.Bytes())
		got, err := d.OptionalString()
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestDecoderShortReadFails(t *testing.T) {
	d := NewDecoder([]byte{1, 2})
	_, err := d.Uint32()
	assert.Error(t, err)
}

func TestDecoderFinishedDetectsTrailingBytes(t *testing.T) {
	e := NewEncoder()
	e.Uint8(1)
	d := NewDecoder(append(e.Bytes(), 0xff))
	_, err := d.Uint8()
	require.NoError(t, err)
	assert.Error(t, d.Finished())
}
