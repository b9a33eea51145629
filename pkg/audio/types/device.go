package types

import (
	"context"
)

// CaptureDevice is a platform audio input capable of producing signed
// 16-bit samples.
type CaptureDevice interface {
	Ping(ctx context.Context) error

	// MinBufferSize returns the smallest buffer (in bytes) the device
	// accepts for the given parameters.
	MinBufferSize(
		sampleRate SampleRate,
		channels Channel,
		format PCMFormat,
	) (int, error)

	Open(
		ctx context.Context,
		source string,
		sampleRate SampleRate,
		channels Channel,
		format PCMFormat,
		bufferSizeBytes int,
	) (CaptureHandle, error)
}

// CaptureHandle is an opened capture device. Read fills the whole buffer
// (interleaved frames) and blocks until it is able to; it returns the
// amount of frames read.
type CaptureHandle interface {
	StartStreaming() error
	Read(samples []int16) (int, error)
	StopStreaming() error
	Release() error
}
