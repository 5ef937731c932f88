package protocol

import "github.com/PenumbraOS/pinitd-sub000/internal/codec"

func newTestEncoder() *codec.Encoder { return codec.NewEncoder() }

func newTestDecoder(e *codec.Encoder) *codec.Decoder { return codec.NewDecoder(e.Bytes()) }
