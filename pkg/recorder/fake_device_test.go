package recorder

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/xaionaro-go/pcmrecorder/pkg/audio/types"
)

// fakeDevice yields framesPerRead frames per read, one read per token
// received from the handle's tokens channel.
type fakeDevice struct {
	framesPerRead int
	openErr       error

	locker    sync.Mutex
	openCount int
	lastOpen  fakeOpenArgs
	handles   []*fakeHandle
}

type fakeOpenArgs struct {
	Source          string
	SampleRate      types.SampleRate
	Channels        types.Channel
	Format          types.PCMFormat
	BufferSizeBytes int
}

var _ types.CaptureDevice = (*fakeDevice)(nil)

func newFakeDevice(framesPerRead int) *fakeDevice {
	return &fakeDevice{framesPerRead: framesPerRead}
}

func (*fakeDevice) Ping(context.Context) error { return nil }

func (d *fakeDevice) MinBufferSize(
	sampleRate types.SampleRate,
	channels types.Channel,
	format types.PCMFormat,
) (int, error) {
	return d.framesPerRead * int(channels) * int(format.Size()), nil
}

func (d *fakeDevice) Open(
	ctx context.Context,
	source string,
	sampleRate types.SampleRate,
	channels types.Channel,
	format types.PCMFormat,
	bufferSizeBytes int,
) (types.CaptureHandle, error) {
	d.locker.Lock()
	defer d.locker.Unlock()
	d.openCount++
	d.lastOpen = fakeOpenArgs{source, sampleRate, channels, format, bufferSizeBytes}
	if d.openErr != nil {
		return nil, d.openErr
	}
	h := &fakeHandle{
		device:   d,
		channels: int(channels),
		tokens:   make(chan struct{}, 1024),
		gate:     make(chan struct{}),
	}
	d.handles = append(d.handles, h)
	return h, nil
}

func (d *fakeDevice) lastHandle() *fakeHandle {
	d.locker.Lock()
	defer d.locker.Unlock()
	if len(d.handles) == 0 {
		return nil
	}
	return d.handles[len(d.handles)-1]
}

type fakeHandle struct {
	device   *fakeDevice
	channels int
	tokens   chan struct{}
	gate     chan struct{}
	gateOnce sync.Once
	readErr  atomic.Pointer[error]
	startErr error

	next              atomic.Int32
	reads             atomic.Int32
	streaming         atomic.Bool
	released          atomic.Bool
	inRead            atomic.Bool
	readAfterRelease  atomic.Bool
	releaseDuringRead atomic.Bool
}

// allow lets n more reads return data.
func (h *fakeHandle) allow(n int) {
	for i := 0; i < n; i++ {
		h.tokens <- struct{}{}
	}
}

// open makes pending and further reads return immediately with no frames.
func (h *fakeHandle) open() {
	h.gateOnce.Do(func() { close(h.gate) })
}

func (h *fakeHandle) failReads(err error) {
	h.readErr.Store(&err)
}

func (h *fakeHandle) StartStreaming() error {
	if h.released.Load() {
		return types.ErrReleased
	}
	if h.startErr != nil {
		return h.startErr
	}
	h.streaming.Store(true)
	return nil
}

func (h *fakeHandle) Read(samples []int16) (int, error) {
	if h.released.Load() {
		h.readAfterRelease.Store(true)
		return 0, types.ErrReleased
	}
	h.inRead.Store(true)
	defer h.inRead.Store(false)

	if errPtr := h.readErr.Load(); errPtr != nil {
		return 0, *errPtr
	}

	select {
	case <-h.tokens:
	case <-h.gate:
		return 0, nil
	}
	h.reads.Add(1)
	frames := h.device.framesPerRead
	for idx := range samples[:frames*h.channels] {
		samples[idx] = int16(h.next.Add(1))
	}
	return frames, nil
}

func (h *fakeHandle) StopStreaming() error {
	h.streaming.Store(false)
	return nil
}

func (h *fakeHandle) Release() error {
	if h.inRead.Load() {
		h.releaseDuringRead.Store(true)
	}
	h.released.Store(true)
	h.open()
	return nil
}

type failingSink struct {
	closed atomic.Bool
}

func (*failingSink) WriteBlock([]byte) error { return errors.New("no space left on device") }
func (*failingSink) BytesWritten() uint64    { return 0 }
func (*failingSink) Name() string            { return "failing" }
func (s *failingSink) Close() error {
	s.closed.Store(true)
	return nil
}

type panickingSink struct {
	closed atomic.Bool
}

func (*panickingSink) WriteBlock([]byte) error { panic("unexpected block") }
func (*panickingSink) BytesWritten() uint64    { return 0 }
func (*panickingSink) Name() string            { return "panicking" }
func (s *panickingSink) Close() error {
	s.closed.Store(true)
	return nil
}
