package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/pcmrecorder/pkg/notify"
	"github.com/xaionaro-go/pcmrecorder/pkg/pcm"
)

type blockSink interface {
	WriteBlock([]byte) error
	BytesWritten() uint64
	Name() string
	Close() error
}

// worker runs the read-encode-write loop of one session. It is the only
// user of the sink.
type worker struct {
	controller    *Controller
	sink          blockSink
	encoder       *pcm.Encoder
	samples       []int16
	channels      int
	outputPath    string
	framesWritten atomic.Uint64
	bytesWritten  atomic.Uint64
	done          chan struct{}
	err           error
}

func newWorker(
	c *Controller,
	sink blockSink,
	cfg Config,
	minBufferSize int,
) *worker {
	blockLen := minBufferSize / pcm.SampleSize
	blockLen -= blockLen % int(cfg.Channels)
	if blockLen == 0 {
		blockLen = int(cfg.Channels)
	}
	return &worker{
		controller: c,
		sink:       sink,
		encoder:    pcm.NewEncoder(cfg.Format.ByteOrder()),
		samples:    make([]int16, blockLen),
		channels:   int(cfg.Channels),
		outputPath: sink.Name(),
		done:       make(chan struct{}),
	}
}

func (w *worker) run(ctx context.Context) {
	logger.Debugf(ctx, "worker: started, block of %d samples", len(w.samples))
	defer close(w.done)

	err := w.loopAndClose(ctx)
	if err == nil {
		logger.Debugf(ctx, "worker: finished")
		return
	}

	w.err = err
	code := notify.CodeWriteFailure
	var rErr readError
	if errors.As(err, &rErr) {
		code = notify.CodeReadFailure
	}
	logger.Errorf(ctx, "worker: %v", err)
	stats := w.stats()
	w.controller.notifier.Post(ctx, notify.Event{
		Code:          code,
		Err:           err,
		OutputPath:    stats.OutputPath,
		BytesWritten:  stats.BytesWritten,
		FramesWritten: stats.FramesWritten,
	})
}

// loopAndClose closes the sink on every exit path, a panic included.
func (w *worker) loopAndClose(ctx context.Context) (_err error) {
	defer func() {
		if r := recover(); r != nil {
			_err = fmt.Errorf("got a panic: %v", r)
		}
		if closeErr := w.sink.Close(); closeErr != nil && _err == nil {
			_err = fmt.Errorf("unable to close the output file: %w", closeErr)
		}
	}()
	return w.loop(ctx)
}

type readError struct {
	error
}

func (e readError) Unwrap() error {
	return e.error
}

func (w *worker) loop(ctx context.Context) error {
	for w.controller.recording.Load() {
		frames, ok, err := w.controller.readBlock(w.samples)
		if !ok {
			return nil
		}
		if err != nil {
			return readError{fmt.Errorf("unable to read from the capture device: %w", err)}
		}
		if frames < 0 || frames*w.channels > len(w.samples) {
			return readError{fmt.Errorf("the capture device reported an invalid amount of frames: %d", frames)}
		}

		b := w.encoder.Encode(w.samples[:frames*w.channels])
		if err := w.sink.WriteBlock(b); err != nil {
			return fmt.Errorf("unable to write to '%s': %w", w.outputPath, err)
		}
		w.framesWritten.Add(uint64(frames))
		w.bytesWritten.Store(w.sink.BytesWritten())
		logger.Tracef(ctx, "worker: wrote %d frames", frames)
	}
	return nil
}

// wait blocks until the worker exits and returns its error.
func (w *worker) wait() error {
	<-w.done
	return w.err
}

func (w *worker) stats() Stats {
	return Stats{
		OutputPath:    w.outputPath,
		BytesWritten:  w.bytesWritten.Load(),
		FramesWritten: w.framesWritten.Load(),
	}
}
