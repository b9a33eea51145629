package pulseaudio

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
	"github.com/xaionaro-go/pcmrecorder/pkg/audio/backends/ringbuffer"
	"github.com/xaionaro-go/pcmrecorder/pkg/audio/types"
)

// CaptureHandle accumulates the data pushed by the Pulse record stream in
// a ring buffer and serves it to blocking reads.
type CaptureHandle struct {
	RecordStream *pulse.RecordStream

	ctx      context.Context
	buffer   *ringbuffer.Buffer
	channels types.Channel
}

var _ types.CaptureHandle = (*CaptureHandle)(nil)

func newCaptureHandle(
	ctx context.Context,
	channels types.Channel,
	bufferSizeBytes int,
) *CaptureHandle {
	return &CaptureHandle{
		ctx:      ctx,
		buffer:   ringbuffer.New(ctx, bufferSizeBytes, binary.LittleEndian),
		channels: channels,
	}
}

type pulseWriter struct {
	pulseFormat byte
	io.Writer
}

var _ pulse.Writer = (*pulseWriter)(nil)

func (w pulseWriter) Format() byte {
	return w.pulseFormat
}

// writer is fed from the Pulse client goroutine.
func (h *CaptureHandle) writer() pulse.Writer {
	return pulseWriter{
		pulseFormat: proto.FormatInt16LE,
		Writer:      h.buffer,
	}
}

func (h *CaptureHandle) StartStreaming() error {
	streaming, released := h.buffer.State()
	if released {
		return types.ErrReleased
	}
	if streaming {
		return nil
	}

	h.RecordStream.Start()
	if err := h.RecordStream.Error(); err != nil {
		return fmt.Errorf("an error occurred during recording: %w", err)
	}
	h.buffer.SetStreaming(true)
	return nil
}

func (h *CaptureHandle) Read(samples []int16) (_ret int, _err error) {
	logger.Tracef(h.ctx, "Read")
	defer func() { logger.Tracef(h.ctx, "/Read: %d %v", _ret, _err) }()

	frameSize := int(h.channels)
	n, err := h.buffer.ReadSamples(samples[:len(samples)/frameSize*frameSize], h.RecordStream.Error)
	return n / frameSize, err
}

// StopStreaming and Release never hold the buffer's locker while talking
// to the server: the client goroutine may be writing meanwhile.
func (h *CaptureHandle) StopStreaming() error {
	if !h.buffer.SetStreaming(false) {
		return nil
	}
	h.RecordStream.Stop()
	return nil
}

func (h *CaptureHandle) Release() (err error) {
	defer func() {
		r := recover()
		if r != nil {
			err = fmt.Errorf("got a panic: %v", r)
		}
	}()
	if h.buffer.Release() {
		return nil
	}
	h.RecordStream.Stop()
	h.RecordStream.Close()
	return nil
}
