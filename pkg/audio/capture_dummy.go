package audio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xaionaro-go/pcmrecorder/pkg/audio/types"
)

// DummyBufferDuration is the amount of audio CaptureDeviceDummy reports as
// its minimal buffer.
const DummyBufferDuration = 20 * time.Millisecond

// CaptureDeviceDummy produces silence at the pace of the requested sample rate.
type CaptureDeviceDummy struct{}

var _ CaptureDevice = (*CaptureDeviceDummy)(nil)
var _ types.SourceLister = (*CaptureDeviceDummy)(nil)

func NewCaptureDeviceDummy() *CaptureDeviceDummy {
	return &CaptureDeviceDummy{}
}

func (*CaptureDeviceDummy) Ping(context.Context) error {
	return nil
}

func (*CaptureDeviceDummy) ListSources(context.Context) ([]types.SourceInfo, error) {
	return []types.SourceInfo{{
		ID:         "default",
		Name:       "silence",
		SampleRate: 48000,
		Channels:   2,
		IsDefault:  true,
	}}, nil
}

func (*CaptureDeviceDummy) MinBufferSize(
	sampleRate SampleRate,
	channels Channel,
	format PCMFormat,
) (int, error) {
	if sampleRate == 0 || channels == 0 || format.Size() == 0 {
		return 0, fmt.Errorf("invalid parameters: rate:%d channels:%d format:%s", sampleRate, channels, format)
	}
	frames := int(DummyBufferDuration.Seconds() * float64(sampleRate))
	if frames == 0 {
		frames = 1
	}
	return frames * int(channels) * int(format.Size()), nil
}

func (d *CaptureDeviceDummy) Open(
	ctx context.Context,
	source string,
	sampleRate SampleRate,
	channels Channel,
	format PCMFormat,
	bufferSizeBytes int,
) (CaptureHandle, error) {
	if _, err := d.MinBufferSize(sampleRate, channels, format); err != nil {
		return nil, err
	}
	return &captureHandleDummy{
		sampleRate: sampleRate,
		channels:   channels,
	}, nil
}

type captureHandleDummy struct {
	locker     sync.Mutex
	sampleRate types.SampleRate
	channels   types.Channel
	streaming  bool
	released   bool
	nextRead   time.Time
}

func (h *captureHandleDummy) StartStreaming() error {
	h.locker.Lock()
	defer h.locker.Unlock()
	if h.released {
		return types.ErrReleased
	}
	h.streaming = true
	h.nextRead = time.Now()
	return nil
}

func (h *captureHandleDummy) Read(samples []int16) (int, error) {
	h.locker.Lock()
	defer h.locker.Unlock()
	if h.released {
		return 0, types.ErrReleased
	}
	if !h.streaming {
		return 0, types.ErrNotStreaming
	}
	frames := len(samples) / int(h.channels)
	h.nextRead = h.nextRead.Add(time.Duration(frames) * time.Second / time.Duration(h.sampleRate))
	time.Sleep(time.Until(h.nextRead))
	clear(samples[:frames*int(h.channels)])
	return frames, nil
}

func (h *captureHandleDummy) StopStreaming() error {
	h.locker.Lock()
	defer h.locker.Unlock()
	h.streaming = false
	return nil
}

func (h *captureHandleDummy) Release() error {
	h.locker.Lock()
	defer h.locker.Unlock()
	h.streaming = false
	h.released = true
	return nil
}
