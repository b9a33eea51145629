package miniaudio

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/gen2brain/malgo"
	"github.com/xaionaro-go/pcmrecorder/pkg/audio/backends/ringbuffer"
	"github.com/xaionaro-go/pcmrecorder/pkg/audio/types"
)

// CaptureHandle serves the frames miniaudio pushes from its audio thread
// to blocking reads. Samples arrive in the host byte order.
type CaptureHandle struct {
	MalgoDevice *malgo.Device

	ctx      context.Context
	buffer   *ringbuffer.Buffer
	channels types.Channel
}

var _ types.CaptureHandle = (*CaptureHandle)(nil)

func (h *CaptureHandle) StartStreaming() error {
	streaming, released := h.buffer.State()
	if released {
		return types.ErrReleased
	}
	if streaming {
		return nil
	}
	h.buffer.SetStreaming(true)
	if err := h.MalgoDevice.Start(); err != nil {
		h.buffer.SetStreaming(false)
		return fmt.Errorf("unable to start the capture device: %w", err)
	}
	return nil
}

func (h *CaptureHandle) Read(samples []int16) (_ret int, _err error) {
	logger.Tracef(h.ctx, "Read")
	defer func() { logger.Tracef(h.ctx, "/Read: %d %v", _ret, _err) }()

	frameSize := int(h.channels)
	n, err := h.buffer.ReadSamples(samples[:len(samples)/frameSize*frameSize], nil)
	return n / frameSize, err
}

func (h *CaptureHandle) StopStreaming() error {
	if !h.buffer.SetStreaming(false) {
		return nil
	}
	if err := h.MalgoDevice.Stop(); err != nil {
		return fmt.Errorf("unable to stop the capture device: %w", err)
	}
	return nil
}

func (h *CaptureHandle) Release() error {
	streaming, _ := h.buffer.State()
	if h.buffer.Release() {
		return nil
	}
	var err error
	if streaming {
		err = h.MalgoDevice.Stop()
	}
	h.MalgoDevice.Uninit()
	if err != nil {
		return fmt.Errorf("unable to stop the capture device: %w", err)
	}
	return nil
}
