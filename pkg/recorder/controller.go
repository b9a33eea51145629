package recorder

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/pcmrecorder/pkg/audio/types"
	"github.com/xaionaro-go/pcmrecorder/pkg/notify"
	"github.com/xaionaro-go/pcmrecorder/pkg/output"
)

// Controller owns the capture handle and the state of one recording
// session at a time.
//
// Two lockers are used: controlLocker serializes the public methods,
// deviceLocker guards the capture handle and is shared with the worker
// for each read. The recording flag is atomic, so Stop can signal the
// worker before it contends for deviceLocker.
type Controller struct {
	device   types.CaptureDevice
	notifier *notify.Channel

	controlLocker sync.Mutex
	state         State
	config        Config
	session       Config
	minBufferSize int

	deviceLocker sync.Mutex
	handle       types.CaptureHandle
	recording    atomic.Bool

	worker   *worker
	openSink func(path string, appendMode, syncEveryBlock bool) (blockSink, error)
}

func openFileSink(path string, appendMode, syncEveryBlock bool) (blockSink, error) {
	sink, err := output.OpenSink(path, appendMode, syncEveryBlock)
	if err != nil {
		return nil, err
	}
	return sink, nil
}

// Stats describes the progress of the current (or the last) session.
type Stats struct {
	OutputPath    string
	BytesWritten  uint64
	FramesWritten uint64
}

func New(
	device types.CaptureDevice,
	notifier *notify.Channel,
	opts ...ConfigOption,
) (*Controller, error) {
	if device == nil {
		return nil, fmt.Errorf("capture device is not set")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notification channel is not set")
	}
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt.apply(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &Controller{
		device:   device,
		notifier: notifier,
		config:   cfg,
		openSink: openFileSink,
	}, nil
}

func (c *Controller) State() State {
	c.controlLocker.Lock()
	defer c.controlLocker.Unlock()
	return c.state
}

// Config returns the configuration that the next session will use.
func (c *Controller) Config() Config {
	c.controlLocker.Lock()
	defer c.controlLocker.Unlock()
	return c.config
}

func (c *Controller) Stats() Stats {
	c.controlLocker.Lock()
	w := c.worker
	c.controlLocker.Unlock()
	if w == nil {
		return Stats{}
	}
	return w.stats()
}

// OutputPath is the file of the current (or the last) session, or the file
// the next session would write to if none was started yet.
func (c *Controller) OutputPath() string {
	c.controlLocker.Lock()
	defer c.controlLocker.Unlock()
	if c.worker != nil {
		return c.worker.outputPath
	}
	return c.config.OutputPath()
}

// Configure is rejected with ErrSessionActive while a capture handle is held.
func (c *Controller) Configure(
	ctx context.Context,
	opts ...ConfigOption,
) error {
	c.controlLocker.Lock()
	defer c.controlLocker.Unlock()

	if c.state == StateInitialized || c.state == StateRecording {
		return fmt.Errorf("unable to reconfigure in state %s: %w", c.state, ErrSessionActive)
	}

	cfg := c.config
	for _, opt := range opts {
		opt.apply(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	c.config = cfg
	logger.Debugf(ctx, "configured: %#+v", cfg)
	return nil
}

// Initiate opens the capture device with a buffer of BufferMultiplier times
// the minimal size the device reports.
func (c *Controller) Initiate(ctx context.Context) (_err error) {
	logger.Tracef(ctx, "Initiate")
	defer func() { logger.Tracef(ctx, "/Initiate: %v", _err) }()

	c.controlLocker.Lock()
	defer c.controlLocker.Unlock()

	if c.state == StateInitialized || c.state == StateRecording {
		return fmt.Errorf("unable to initiate in state %s: %w", c.state, ErrSessionActive)
	}

	cfg := c.config
	minBufferSize, err := c.device.MinBufferSize(cfg.SampleRate, cfg.Channels, cfg.Format)
	if err != nil {
		return fmt.Errorf("unable to get the minimal buffer size: %w", err)
	}
	if minBufferSize <= 0 {
		return fmt.Errorf("the device reported an invalid minimal buffer size: %d", minBufferSize)
	}

	handle, err := c.device.Open(
		ctx,
		cfg.Source,
		cfg.SampleRate,
		cfg.Channels,
		cfg.Format,
		minBufferSize*cfg.BufferMultiplier,
	)
	if err != nil {
		return fmt.Errorf("unable to open the capture device: %w", err)
	}

	c.deviceLocker.Lock()
	c.handle = handle
	c.deviceLocker.Unlock()

	c.session = cfg
	c.minBufferSize = minBufferSize
	c.state = StateInitialized
	logger.Debugf(ctx, "initialized: source '%s', %d Hz, %d ch, %s, min buffer %d bytes", cfg.Source, cfg.SampleRate, cfg.Channels, cfg.Format, minBufferSize)
	return nil
}

// Start prepares the output path, starts streaming, opens the output file
// and spawns the worker.
// The returned error (if any) details a non-success Status.
func (c *Controller) Start(ctx context.Context) (_ret Status, _err error) {
	logger.Tracef(ctx, "Start")
	defer func() { logger.Tracef(ctx, "/Start: %s %v", _ret, _err) }()

	c.controlLocker.Lock()
	defer c.controlLocker.Unlock()

	c.deviceLocker.Lock()
	handle := c.handle
	c.deviceLocker.Unlock()

	switch {
	case c.state == StateRecording:
		return StatusAlreadyRecording, ErrAlreadyRecording
	case handle == nil:
		return StatusNotInitialized, ErrNotInitialized
	}

	cfg := c.session
	path, err := output.EnsureOutputPath(cfg.OutputDir, cfg.OutputName)
	if err != nil {
		return StatusOutputInitFailed, fmt.Errorf("unable to prepare the output file: %w", err)
	}
	if err := handle.StartStreaming(); err != nil {
		return StatusStreamStartFailed, fmt.Errorf("unable to start streaming: %w", err)
	}

	// opened only once streaming runs, as it truncates the previous recording
	sink, err := c.openSink(path, cfg.Append, cfg.SyncEveryBlock)
	if err != nil {
		if stopErr := handle.StopStreaming(); stopErr != nil {
			logger.Errorf(ctx, "unable to stop streaming: %v", stopErr)
		}
		return StatusOutputInitFailed, fmt.Errorf("unable to open the output file: %w", err)
	}

	w := newWorker(c, sink, cfg, c.minBufferSize)
	c.worker = w
	c.recording.Store(true)
	c.state = StateRecording

	ctx = context.WithoutCancel(ctx)
	observability.Go(ctx, func() {
		w.run(ctx)
	})
	logger.Infof(ctx, "recording to '%s'", path)
	return StatusSuccess, nil
}

// Stop is a no-op unless recording. Otherwise it releases the capture
// handle, waits for the worker to drain and posts CodeFinished unless the
// worker already reported a failure. It blocks while a device read is in
// progress.
func (c *Controller) Stop(ctx context.Context) (_err error) {
	logger.Tracef(ctx, "Stop")
	defer func() { logger.Tracef(ctx, "/Stop: %v", _err) }()

	c.controlLocker.Lock()
	defer c.controlLocker.Unlock()

	if c.state != StateRecording {
		return nil
	}

	c.recording.Store(false)
	err := c.releaseHandle()
	c.state = StateStopped

	w := c.worker
	workerErr := w.wait()
	stats := w.stats()
	if workerErr == nil {
		c.notifier.Post(ctx, notify.Event{
			Code:          notify.CodeFinished,
			OutputPath:    stats.OutputPath,
			BytesWritten:  stats.BytesWritten,
			FramesWritten: stats.FramesWritten,
		})
	}
	logger.Infof(ctx, "stopped: %d frames (%d bytes) written to '%s'", stats.FramesWritten, stats.BytesWritten, stats.OutputPath)
	return err
}

// Release frees the capture handle of an initialized but not started
// session. A recording session is stopped first.
func (c *Controller) Release(ctx context.Context) error {
	if err := c.Stop(ctx); err != nil {
		return err
	}

	c.controlLocker.Lock()
	defer c.controlLocker.Unlock()
	if c.state != StateInitialized {
		return nil
	}
	err := c.releaseHandle()
	c.state = StateIdle
	return err
}

func (c *Controller) releaseHandle() error {
	c.deviceLocker.Lock()
	defer c.deviceLocker.Unlock()

	handle := c.handle
	if handle == nil {
		return nil
	}
	c.handle = nil

	var mErr *multierror.Error
	if err := handle.StopStreaming(); err != nil {
		mErr = multierror.Append(mErr, fmt.Errorf("unable to stop streaming: %w", err))
	}
	if err := handle.Release(); err != nil {
		mErr = multierror.Append(mErr, fmt.Errorf("unable to release the capture device: %w", err))
	}
	return mErr.ErrorOrNil()
}

// readBlock performs one read under deviceLocker. ok is false if the
// session was stopped concurrently.
func (c *Controller) readBlock(samples []int16) (frames int, ok bool, err error) {
	c.deviceLocker.Lock()
	defer c.deviceLocker.Unlock()
	if c.handle == nil || !c.recording.Load() {
		return 0, false, nil
	}
	frames, err = c.handle.Read(samples)
	return frames, true, err
}
