// Package pcm converts signed 16-bit samples to and from their byte
// representation with an explicit byte order.
package pcm

import (
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/xaionaro-go/pcmrecorder/pkg/audio/types"
)

const SampleSize = 2

// Encoder is not safe for concurrent use: Encode reuses its output buffer.
type Encoder struct {
	ByteOrder binary.ByteOrder
	buf       []byte
}

func NewEncoder(byteOrder binary.ByteOrder) *Encoder {
	return &Encoder{
		ByteOrder: byteOrder,
	}
}

// EncoderFor returns an encoder for a signed 16-bit PCM format.
func EncoderFor(format types.PCMFormat) (*Encoder, error) {
	if !format.IsS16() {
		return nil, fmt.Errorf("PCM format %s is not a signed 16-bit format", format)
	}
	return NewEncoder(format.ByteOrder()), nil
}

// Encode returns the byte representation of samples. The returned slice is
// valid until the next call of Encode.
func (e *Encoder) Encode(samples []int16) []byte {
	e.buf = e.AppendEncode(e.buf[:0], samples)
	return e.buf
}

func (e *Encoder) AppendEncode(dst []byte, samples []int16) []byte {
	offset := len(dst)
	dst = slices.Grow(dst, len(samples)*SampleSize)[:offset+len(samples)*SampleSize]
	for idx, sample := range samples {
		e.ByteOrder.PutUint16(dst[offset+idx*SampleSize:], uint16(sample))
	}
	return dst
}

func (e *Encoder) Decode(dst []int16, b []byte) ([]int16, error) {
	if len(b)%SampleSize != 0 {
		return dst, fmt.Errorf("expected a length that is a multiple of %d, but received %d", SampleSize, len(b))
	}
	for idx := 0; idx < len(b); idx += SampleSize {
		dst = append(dst, int16(e.ByteOrder.Uint16(b[idx:])))
	}
	return dst, nil
}
