package recorder

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/pcmrecorder/pkg/audio/types"
	"github.com/xaionaro-go/pcmrecorder/pkg/notify"
)

const (
	waitTimeout = 5 * time.Second
	waitTick    = time.Millisecond
)

func newTestController(t *testing.T, device types.CaptureDevice, opts ...ConfigOption) (*Controller, *notify.Channel, string) {
	dir := filepath.Join(t.TempDir(), "out")
	notifier := notify.NewChannel(0)
	opts = append([]ConfigOption{OptionOutput(dir, "sample.pcm")}, opts...)
	c, err := New(device, notifier, opts...)
	require.NoError(t, err)
	return c, notifier, dir
}

func waitFrames(t *testing.T, c *Controller, frames uint64) {
	require.Eventually(t, func() bool {
		return c.Stats().FramesWritten == frames
	}, waitTimeout, waitTick)
}

func nextEvent(t *testing.T, ch *notify.Channel) notify.Event {
	select {
	case ev := <-ch.Events():
		return ev
	case <-time.After(waitTimeout):
		t.Fatal("no event received")
	}
	return notify.Event{}
}

func requireNoEvent(t *testing.T, ch *notify.Channel) {
	select {
	case ev := <-ch.Events():
		t.Fatalf("unexpected event: %s", spew.Sdump(ev))
	default:
	}
}

func TestStartBeforeInitiate(t *testing.T) {
	ctx := context.Background()
	device := newFakeDevice(4)
	c, notifier, dir := newTestController(t, device)

	status, err := c.Start(ctx)
	require.Equal(t, StatusNotInitialized, status)
	require.ErrorIs(t, err, ErrNotInitialized)
	require.Equal(t, StateIdle, c.State())
	require.Zero(t, c.Stats())

	_, err = os.Stat(dir)
	require.ErrorIs(t, err, os.ErrNotExist)
	requireNoEvent(t, notifier)
}

func TestStopWhenNotRecording(t *testing.T) {
	ctx := context.Background()
	device := newFakeDevice(4)
	c, notifier, _ := newTestController(t, device)

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Stop(ctx))
		require.Equal(t, StateIdle, c.State())
	}

	require.NoError(t, c.Initiate(ctx))
	for i := 0; i < 3; i++ {
		require.NoError(t, c.Stop(ctx))
		require.Equal(t, StateInitialized, c.State())
	}
	require.False(t, device.lastHandle().released.Load())
	requireNoEvent(t, notifier)
}

func TestInitiateBufferSize(t *testing.T) {
	ctx := context.Background()
	device := newFakeDevice(160)
	c, _, _ := newTestController(t, device,
		OptionSource("mic"),
		OptionSampleRate(SampleRate16K),
		OptionChannels(2),
		OptionFormat(types.PCMFormatS16BE),
		OptionBufferMultiplier(3),
	)

	require.NoError(t, c.Initiate(ctx))
	require.Equal(t, StateInitialized, c.State())
	require.Equal(t, fakeOpenArgs{
		Source:          "mic",
		SampleRate:      SampleRate16K,
		Channels:        2,
		Format:          types.PCMFormatS16BE,
		BufferSizeBytes: 160 * 2 * 2 * 3,
	}, device.lastOpen)

	err := c.Initiate(ctx)
	require.ErrorIs(t, err, ErrSessionActive)
	require.Equal(t, 1, device.openCount)
}

func TestInitiateFailureKeepsIdle(t *testing.T) {
	ctx := context.Background()
	device := newFakeDevice(4)
	device.openErr = errors.New("device busy")
	c, _, _ := newTestController(t, device)

	require.ErrorContains(t, c.Initiate(ctx), "device busy")
	require.Equal(t, StateIdle, c.State())

	status, err := c.Start(ctx)
	require.Equal(t, StatusNotInitialized, status)
	require.Error(t, err)
}

func TestConfigureRejectedWhileActive(t *testing.T) {
	ctx := context.Background()
	device := newFakeDevice(4)
	c, _, _ := newTestController(t, device)

	require.NoError(t, c.Configure(ctx, OptionSampleRate(SampleRate16K)))
	require.Equal(t, SampleRate16K, c.Config().SampleRate)
	require.Error(t, c.Configure(ctx, OptionChannels(3)))
	require.Equal(t, types.Channel(1), c.Config().Channels)

	require.NoError(t, c.Initiate(ctx))
	require.ErrorIs(t, c.Configure(ctx, OptionSampleRate(SampleRate8K)), ErrSessionActive)
	require.Equal(t, SampleRate16K, c.Config().SampleRate)

	status, err := c.Start(ctx)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, status)
	require.ErrorIs(t, c.Configure(ctx, OptionSampleRate(SampleRate8K)), ErrSessionActive)

	device.lastHandle().open()
	require.NoError(t, c.Stop(ctx))
	require.NoError(t, c.Configure(ctx, OptionSampleRate(SampleRate8K)))
}

func TestThreeBlocksThenStop(t *testing.T) {
	ctx := context.Background()
	const framesPerRead = 160
	device := newFakeDevice(framesPerRead)
	c, notifier, dir := newTestController(t, device, OptionFormat(types.PCMFormatS16LE))

	require.Equal(t, filepath.Join(dir, "sample.pcm"), c.OutputPath())
	require.NoError(t, c.Initiate(ctx))
	status, err := c.Start(ctx)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, status)
	require.Equal(t, StateRecording, c.State())

	h := device.lastHandle()
	require.True(t, h.streaming.Load())
	h.allow(3)
	waitFrames(t, c, 3*framesPerRead)

	h.open()
	require.NoError(t, c.Stop(ctx))
	require.Equal(t, StateStopped, c.State())
	require.True(t, h.released.Load())
	require.False(t, h.streaming.Load())

	b, err := os.ReadFile(filepath.Join(dir, "sample.pcm"))
	require.NoError(t, err)
	require.Len(t, b, 3*framesPerRead*2)
	for idx := 0; idx < 3*framesPerRead; idx++ {
		require.Equal(t, uint16(idx+1), binary.LittleEndian.Uint16(b[idx*2:]), "sample %d", idx)
	}

	ev := nextEvent(t, notifier)
	require.Equal(t, notify.CodeFinished, ev.Code)
	require.NoError(t, ev.Err)
	require.Equal(t, uint64(3*framesPerRead), ev.FramesWritten)
	require.Equal(t, uint64(3*framesPerRead*2), ev.BytesWritten)
	require.Equal(t, filepath.Join(dir, "sample.pcm"), ev.OutputPath)

	require.NoError(t, c.Stop(ctx))
	requireNoEvent(t, notifier)
}

func TestRecordingScenario(t *testing.T) {
	ctx := context.Background()
	device := newFakeDevice(80)
	c, notifier, dir := newTestController(t, device)
	require.NoError(t, c.Configure(ctx,
		OptionSampleRate(SampleRate8K),
		OptionChannels(1),
		OptionFormat(types.PCMFormatS16NE()),
		OptionSource("MIC"),
	))

	require.NoError(t, c.Initiate(ctx))
	status, err := c.Start(ctx)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, status)

	h := device.lastHandle()
	h.allow(5)
	waitFrames(t, c, 5*80)
	h.open()
	require.NoError(t, c.Stop(ctx))

	info, err := os.Stat(filepath.Join(dir, "sample.pcm"))
	require.NoError(t, err)
	require.Zero(t, info.Size()%2)
	require.Equal(t, int64(h.reads.Load())*80*2, info.Size())

	ev := nextEvent(t, notifier)
	require.Equal(t, notify.CodeFinished, ev.Code)
	require.Equal(t, uint64(info.Size()), ev.BytesWritten)
}

func TestStereoBigEndian(t *testing.T) {
	ctx := context.Background()
	device := newFakeDevice(2)
	c, _, dir := newTestController(t, device, OptionChannels(2), OptionFormat(types.PCMFormatS16BE))

	require.NoError(t, c.Initiate(ctx))
	_, err := c.Start(ctx)
	require.NoError(t, err)
	h := device.lastHandle()
	h.allow(1)
	waitFrames(t, c, 2)
	h.open()
	require.NoError(t, c.Stop(ctx))

	b, err := os.ReadFile(filepath.Join(dir, "sample.pcm"))
	require.NoError(t, err)
	require.Equal(t, []byte{0, 1, 0, 2, 0, 3, 0, 4}, b)
}

func TestStartPreparesOutputIdempotently(t *testing.T) {
	ctx := context.Background()
	device := newFakeDevice(4)
	c, _, dir := newTestController(t, device)

	for session := 0; session < 2; session++ {
		require.NoError(t, c.Initiate(ctx))
		status, err := c.Start(ctx)
		require.NoError(t, err)
		require.Equal(t, StatusSuccess, status)

		info, err := os.Stat(filepath.Join(dir, "sample.pcm"))
		require.NoError(t, err)
		require.True(t, info.Mode().IsRegular())

		device.lastHandle().open()
		require.NoError(t, c.Stop(ctx))
	}
	require.Equal(t, 2, device.openCount)
}

func TestAppendAcrossSessions(t *testing.T) {
	ctx := context.Background()
	device := newFakeDevice(4)
	c, _, dir := newTestController(t, device, OptionAppend(true))

	for session := 0; session < 2; session++ {
		require.NoError(t, c.Initiate(ctx))
		_, err := c.Start(ctx)
		require.NoError(t, err)
		h := device.lastHandle()
		h.allow(1)
		waitFrames(t, c, 4)
		h.open()
		require.NoError(t, c.Stop(ctx))
	}

	info, err := os.Stat(filepath.Join(dir, "sample.pcm"))
	require.NoError(t, err)
	require.Equal(t, int64(2*4*2), info.Size())
}

func TestStartOutputInitFailed(t *testing.T) {
	ctx := context.Background()
	device := newFakeDevice(4)
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))
	c, notifier, _ := newTestController(t, device, OptionOutput(filepath.Join(blocker, "sub"), "sample.pcm"))

	require.NoError(t, c.Initiate(ctx))
	status, err := c.Start(ctx)
	require.Equal(t, StatusOutputInitFailed, status)
	require.Error(t, err)
	require.Equal(t, StateInitialized, c.State())
	require.False(t, device.lastHandle().streaming.Load())
	require.Zero(t, c.Stats())
	requireNoEvent(t, notifier)

	require.NoError(t, c.Release(ctx))
	require.Equal(t, StateIdle, c.State())
	require.True(t, device.lastHandle().released.Load())
}

func TestStartTwice(t *testing.T) {
	ctx := context.Background()
	device := newFakeDevice(4)
	c, _, _ := newTestController(t, device)

	require.NoError(t, c.Initiate(ctx))
	_, err := c.Start(ctx)
	require.NoError(t, err)
	status, err := c.Start(ctx)
	require.Equal(t, StatusAlreadyRecording, status)
	require.ErrorIs(t, err, ErrAlreadyRecording)

	device.lastHandle().open()
	require.NoError(t, c.Stop(ctx))
}

func TestWriteFailure(t *testing.T) {
	ctx := context.Background()
	device := newFakeDevice(4)
	c, notifier, _ := newTestController(t, device)
	sink := &failingSink{}
	c.openSink = func(string, bool, bool) (blockSink, error) {
		return sink, nil
	}

	require.NoError(t, c.Initiate(ctx))
	_, err := c.Start(ctx)
	require.NoError(t, err)
	h := device.lastHandle()
	h.allow(1)

	ev := nextEvent(t, notifier)
	require.Equal(t, notify.CodeWriteFailure, ev.Code)
	require.ErrorContains(t, ev.Err, "no space left on device")
	require.True(t, sink.closed.Load())

	require.Equal(t, StateRecording, c.State())
	require.False(t, h.released.Load(), "the worker must leave the capture handle to Stop")
	require.NoError(t, c.Stop(ctx))
	require.True(t, h.released.Load())
	require.Equal(t, StateStopped, c.State())
	requireNoEvent(t, notifier)
}

func TestReadFailure(t *testing.T) {
	ctx := context.Background()
	device := newFakeDevice(4)
	c, notifier, _ := newTestController(t, device)

	require.NoError(t, c.Initiate(ctx))
	h := device.lastHandle()
	h.failReads(errors.New("device unplugged"))
	_, err := c.Start(ctx)
	require.NoError(t, err)

	ev := nextEvent(t, notifier)
	require.Equal(t, notify.CodeReadFailure, ev.Code)
	require.ErrorContains(t, ev.Err, "device unplugged")

	require.NoError(t, c.Stop(ctx))
	requireNoEvent(t, notifier)
}

func TestStopDuringRead(t *testing.T) {
	ctx := context.Background()
	device := newFakeDevice(4)
	c, _, _ := newTestController(t, device)

	require.NoError(t, c.Initiate(ctx))
	_, err := c.Start(ctx)
	require.NoError(t, err)
	h := device.lastHandle()
	require.Eventually(t, h.inRead.Load, waitTimeout, waitTick)

	var wg sync.WaitGroup
	wg.Add(1)
	stopped := make(chan struct{})
	go func() {
		defer wg.Done()
		defer close(stopped)
		assert.NoError(t, c.Stop(ctx))
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a read was in progress")
	case <-time.After(20 * time.Millisecond):
	}

	h.allow(1)
	wg.Wait()

	require.True(t, h.released.Load())
	require.False(t, h.releaseDuringRead.Load())
	require.False(t, h.readAfterRelease.Load())

	frames, ok, err := c.readBlock(make([]int16, 4))
	require.False(t, ok)
	require.NoError(t, err)
	require.Zero(t, frames)
	require.False(t, h.readAfterRelease.Load())
	require.Equal(t, uint64(4), c.Stats().FramesWritten)
}

func TestStatusesDisjointFromEventCodes(t *testing.T) {
	for s := StatusUndefined; s <= StatusStreamStartFailed; s++ {
		for _, code := range []notify.Code{notify.CodeWriteFailure, notify.CodeReadFailure, notify.CodeFinished} {
			require.NotEqual(t, uint(s), uint(code), "%s vs %s", s, code)
		}
	}
}

func TestStreamStartFailedKeepsPreviousRecording(t *testing.T) {
	ctx := context.Background()
	device := newFakeDevice(4)
	c, notifier, dir := newTestController(t, device)
	require.NoError(t, os.MkdirAll(dir, 0755))
	path := filepath.Join(dir, "sample.pcm")
	require.NoError(t, os.WriteFile(path, []byte("previous take"), 0644))

	require.NoError(t, c.Initiate(ctx))
	device.lastHandle().startErr = errors.New("device busy")
	status, err := c.Start(ctx)
	require.Equal(t, StatusStreamStartFailed, status)
	require.ErrorContains(t, err, "device busy")
	require.Equal(t, StateInitialized, c.State())
	requireNoEvent(t, notifier)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "previous take", string(b))

	require.NoError(t, c.Release(ctx))
}

func TestOpenSinkFailureStopsStreaming(t *testing.T) {
	ctx := context.Background()
	device := newFakeDevice(4)
	c, notifier, _ := newTestController(t, device)
	c.openSink = func(string, bool, bool) (blockSink, error) {
		return nil, errors.New("read-only file system")
	}

	require.NoError(t, c.Initiate(ctx))
	status, err := c.Start(ctx)
	require.Equal(t, StatusOutputInitFailed, status)
	require.ErrorContains(t, err, "read-only file system")
	require.Equal(t, StateInitialized, c.State())
	require.False(t, device.lastHandle().streaming.Load())
	requireNoEvent(t, notifier)

	require.NoError(t, c.Release(ctx))
}

func TestSinkClosedWhenWritePanics(t *testing.T) {
	ctx := context.Background()
	device := newFakeDevice(4)
	c, notifier, _ := newTestController(t, device)
	sink := &panickingSink{}
	c.openSink = func(string, bool, bool) (blockSink, error) {
		return sink, nil
	}

	require.NoError(t, c.Initiate(ctx))
	_, err := c.Start(ctx)
	require.NoError(t, err)
	h := device.lastHandle()
	h.allow(1)

	ev := nextEvent(t, notifier)
	require.Equal(t, notify.CodeWriteFailure, ev.Code)
	require.ErrorContains(t, ev.Err, "unexpected block")
	require.True(t, sink.closed.Load())

	require.NoError(t, c.Stop(ctx))
	require.True(t, h.released.Load())
}
