package types

import (
	"encoding/binary"
	"fmt"
)

type SampleRate uint32

type Channel uint32

type PCMFormat uint

const (
	PCMFormatUndefined = PCMFormat(iota)
	PCMFormatU8
	PCMFormatS16LE
	PCMFormatS16BE
	PCMFormatS24LE
	PCMFormatS24BE
	PCMFormatS32LE
	PCMFormatS32BE
	PCMFormatS64LE
	PCMFormatS64BE
	PCMFormatFloat32LE
	PCMFormatFloat32BE
	PCMFormatFloat64LE
	PCMFormatFloat64BE
	EndOfPCMFormat
)

func (f PCMFormat) String() string {
	switch f {
	case PCMFormatUndefined:
		return "<undefined>"
	case PCMFormatU8:
		return "u8"
	case PCMFormatS16LE:
		return "s16le"
	case PCMFormatS16BE:
		return "s16be"
	case PCMFormatS24LE:
		return "s24le"
	case PCMFormatS24BE:
		return "s24be"
	case PCMFormatS32LE:
		return "s32le"
	case PCMFormatS32BE:
		return "s32be"
	case PCMFormatS64LE:
		return "s64le"
	case PCMFormatS64BE:
		return "s64be"
	case PCMFormatFloat32LE:
		return "f32le"
	case PCMFormatFloat32BE:
		return "f32be"
	case PCMFormatFloat64LE:
		return "f64le"
	case PCMFormatFloat64BE:
		return "f64be"
	}
	return fmt.Sprintf("<unknown_%d>", uint(f))
}

// ParsePCMFormat is the inverse of PCMFormat.String. The pseudo-format
// "s16ne" resolves to the 16-bit format of the host's byte order.
func ParsePCMFormat(s string) (PCMFormat, error) {
	if s == "s16ne" {
		return PCMFormatS16NE(), nil
	}
	for f := PCMFormatU8; f < EndOfPCMFormat; f++ {
		if f.String() == s {
			return f, nil
		}
	}
	return PCMFormatUndefined, fmt.Errorf("unknown PCM format '%s'", s)
}

func (f PCMFormat) Size() uint32 {
	switch f {
	case PCMFormatU8:
		return 1
	case PCMFormatS16LE, PCMFormatS16BE:
		return 2
	case PCMFormatS24LE, PCMFormatS24BE:
		return 3
	case PCMFormatS32LE, PCMFormatS32BE, PCMFormatFloat32LE, PCMFormatFloat32BE:
		return 4
	case PCMFormatS64LE, PCMFormatS64BE, PCMFormatFloat64LE, PCMFormatFloat64BE:
		return 8
	}
	return 0
}

// ByteOrder returns nil for single-byte and unknown formats.
func (f PCMFormat) ByteOrder() binary.ByteOrder {
	switch f {
	case PCMFormatS16LE, PCMFormatS24LE, PCMFormatS32LE, PCMFormatS64LE, PCMFormatFloat32LE, PCMFormatFloat64LE:
		return binary.LittleEndian
	case PCMFormatS16BE, PCMFormatS24BE, PCMFormatS32BE, PCMFormatS64BE, PCMFormatFloat32BE, PCMFormatFloat64BE:
		return binary.BigEndian
	}
	return nil
}

func (f PCMFormat) IsS16() bool {
	return f == PCMFormatS16LE || f == PCMFormatS16BE
}

// PCMFormatS16NE returns the signed 16-bit format matching the host byte order.
func PCMFormatS16NE() PCMFormat {
	if IsNativeLittleEndian() {
		return PCMFormatS16LE
	}
	return PCMFormatS16BE
}

func IsNativeLittleEndian() bool {
	return binary.NativeEndian.Uint16([]byte{1, 2}) == 0x0201
}

func (f PCMFormat) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *PCMFormat) UnmarshalText(b []byte) error {
	v, err := ParsePCMFormat(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}
