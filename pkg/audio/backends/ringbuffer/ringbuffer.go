// Package ringbuffer adapts push-style capture callbacks to blocking reads
// of signed 16-bit samples.
package ringbuffer

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/iamcalledrob/circular"
	"github.com/xaionaro-go/pcmrecorder/pkg/audio/types"
)

// Buffer is written by the backend's callback goroutine and read by the
// recorder. When it is full the incoming data that does not fit is dropped.
type Buffer struct {
	ctx          context.Context
	locker       sync.Mutex
	cond         *sync.Cond
	buffer       *circular.Buffer
	byteOrder    binary.ByteOrder
	readBuf      []byte
	streaming    bool
	released     bool
	droppedBytes uint64
}

var _ io.Writer = (*Buffer)(nil)

func New(
	ctx context.Context,
	size int,
	byteOrder binary.ByteOrder,
) *Buffer {
	b := &Buffer{
		ctx:       ctx,
		buffer:    circular.NewBuffer(size),
		byteOrder: byteOrder,
	}
	b.cond = sync.NewCond(&b.locker)
	return b
}

// Write never fails on overflow: it keeps what fits into the free space
// and drops the rest of p.
func (b *Buffer) Write(p []byte) (int, error) {
	b.locker.Lock()
	defer b.locker.Unlock()
	if b.released {
		return len(p), nil
	}

	n, err := b.buffer.Write(p)
	switch {
	case errors.Is(err, circular.ErrNoSpace):
		dropped := len(p) - n
		b.droppedBytes += uint64(dropped)
		logger.Warnf(b.ctx, "the capture buffer is full, dropped %d bytes (total: %d)", dropped, b.droppedBytes)
	case err != nil:
		return n, fmt.Errorf("unable to write to the circular buffer: %w", err)
	}
	b.cond.Broadcast()
	return len(p), nil
}

func (b *Buffer) DroppedBytes() uint64 {
	b.locker.Lock()
	defer b.locker.Unlock()
	return b.droppedBytes
}

func (b *Buffer) State() (streaming, released bool) {
	b.locker.Lock()
	defer b.locker.Unlock()
	return b.streaming, b.released
}

// SetStreaming returns the previous value. A released buffer stays not
// streaming.
func (b *Buffer) SetStreaming(streaming bool) bool {
	b.locker.Lock()
	defer b.locker.Unlock()
	was := b.streaming
	b.streaming = streaming && !b.released
	b.cond.Broadcast()
	return was
}

// Release wakes up the blocked readers; it returns true if the buffer was
// already released.
func (b *Buffer) Release() bool {
	b.locker.Lock()
	defer b.locker.Unlock()
	was := b.released
	b.released = true
	b.streaming = false
	b.cond.Broadcast()
	return was
}

// ReadSamples blocks until len(samples) samples are available. streamErr
// (if not nil) is consulted every time the reader wakes up.
func (b *Buffer) ReadSamples(
	samples []int16,
	streamErr func() error,
) (int, error) {
	want := len(samples) * 2

	b.locker.Lock()
	defer b.locker.Unlock()
	if cap(b.readBuf) < want {
		b.readBuf = make([]byte, want)
	}
	buf := b.readBuf[:want]

	received := 0
	for received < want {
		if b.released {
			return 0, types.ErrReleased
		}
		if !b.streaming {
			return 0, types.ErrNotStreaming
		}
		if streamErr != nil {
			if err := streamErr(); err != nil {
				return 0, fmt.Errorf("an error occurred during recording: %w", err)
			}
		}
		n, err := b.buffer.Read(buf[received:])
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("unable to read from the circular buffer: %w", err)
		}
		received += n
		if received < want {
			b.cond.Wait()
		}
	}

	for idx := range samples {
		samples[idx] = int16(b.byteOrder.Uint16(buf[idx*2:]))
	}
	return len(samples), nil
}
