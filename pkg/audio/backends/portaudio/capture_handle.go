package portaudio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/gordonklaus/portaudio"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/pcmrecorder/pkg/audio/types"
)

// CaptureHandle adapts the fixed-size PortAudio input buffer to reads
// of an arbitrary amount of frames.
type CaptureHandle struct {
	ctx             context.Context
	locker          sync.Mutex
	PortAudioStream *portaudio.Stream
	InputBuffer     []int16
	pending         []int16
	channels        types.Channel
	streaming       bool
	released        bool
}

var _ types.CaptureHandle = (*CaptureHandle)(nil)

func newCaptureHandle(
	ctx context.Context,
	stream *portaudio.Stream,
	buf []int16,
	channels types.Channel,
) *CaptureHandle {
	return &CaptureHandle{
		ctx:             ctx,
		PortAudioStream: stream,
		InputBuffer:     buf,
		channels:        channels,
	}
}

func (h *CaptureHandle) StartStreaming() error {
	h.locker.Lock()
	defer h.locker.Unlock()
	if h.released {
		return types.ErrReleased
	}
	if h.streaming {
		return nil
	}
	if err := h.PortAudioStream.Start(); err != nil {
		return fmt.Errorf("unable to start the stream: %w", err)
	}
	h.streaming = true
	h.pending = nil
	return nil
}

func (h *CaptureHandle) Read(samples []int16) (_ret int, _err error) {
	logger.Tracef(h.ctx, "Read")
	defer func() { logger.Tracef(h.ctx, "/Read: %d %v", _ret, _err) }()

	h.locker.Lock()
	defer h.locker.Unlock()
	if h.released {
		return 0, types.ErrReleased
	}
	if !h.streaming {
		return 0, types.ErrNotStreaming
	}

	frameSize := int(h.channels)
	samples = samples[:len(samples)/frameSize*frameSize]
	filled := 0
	for filled < len(samples) {
		if len(h.pending) == 0 {
			err := h.PortAudioStream.Read()
			if err != nil {
				if !errors.Is(err, portaudio.InputOverflowed) {
					return filled / frameSize, fmt.Errorf("unable to read: %w", err)
				}
				logger.Warnf(h.ctx, "input overflowed, some samples were lost")
			}
			h.pending = h.InputBuffer
		}
		n := copy(samples[filled:], h.pending)
		h.pending = h.pending[n:]
		filled += n
	}
	return filled / frameSize, nil
}

func (h *CaptureHandle) StopStreaming() error {
	h.locker.Lock()
	defer h.locker.Unlock()
	if !h.streaming {
		return nil
	}
	h.streaming = false
	return h.PortAudioStream.Stop()
}

func (h *CaptureHandle) Release() error {
	h.locker.Lock()
	defer h.locker.Unlock()
	if h.released {
		return nil
	}
	h.released = true

	var mErr *multierror.Error
	if h.streaming {
		h.streaming = false
		if err := h.PortAudioStream.Abort(); err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to abort the stream: %w", err))
		}
	}
	if err := h.PortAudioStream.Close(); err != nil {
		mErr = multierror.Append(mErr, fmt.Errorf("unable to close the stream: %w", err))
	}
	return mErr.ErrorOrNil()
}
