package miniaudio

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/gen2brain/malgo"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/pcmrecorder/pkg/audio/backends/ringbuffer"
	"github.com/xaionaro-go/pcmrecorder/pkg/audio/types"
)

const (
	// MinBufferDuration is the length of a single miniaudio period.
	MinBufferDuration = 40 * time.Millisecond

	SourceDefault = "default"
)

type CaptureDevice struct {
	MalgoContext *malgo.AllocatedContext
}

var _ types.CaptureDevice = (*CaptureDevice)(nil)
var _ types.SourceLister = (*CaptureDevice)(nil)

func NewCaptureDevice() (*CaptureDevice, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize a miniaudio context: %w", err)
	}
	return &CaptureDevice{
		MalgoContext: ctx,
	}, nil
}

func (d *CaptureDevice) Close() error {
	var mErr *multierror.Error
	if err := d.MalgoContext.Uninit(); err != nil {
		mErr = multierror.Append(mErr, fmt.Errorf("unable to uninitialize the context: %w", err))
	}
	d.MalgoContext.Free()
	return mErr.ErrorOrNil()
}

func (d *CaptureDevice) Ping(ctx context.Context) error {
	devices, err := d.MalgoContext.Devices(malgo.Capture)
	if err != nil {
		return fmt.Errorf("unable to get the list of capture devices: %w", err)
	}
	if len(devices) == 0 {
		return fmt.Errorf("no capture devices found")
	}
	for idx := range devices {
		logger.Tracef(ctx, "devices[%d]: %s (default: %d)", idx, devices[idx].Name(), devices[idx].IsDefault)
	}
	return nil
}

func (d *CaptureDevice) ListSources(ctx context.Context) ([]types.SourceInfo, error) {
	devices, err := d.MalgoContext.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("unable to get the list of capture devices: %w", err)
	}
	result := make([]types.SourceInfo, 0, len(devices))
	for idx := range devices {
		result = append(result, types.SourceInfo{
			ID:        devices[idx].Name(),
			Name:      devices[idx].Name(),
			IsDefault: devices[idx].IsDefault != 0,
		})
	}
	return result, nil
}

func minBufferFrames(sampleRate types.SampleRate) int {
	frames := int(MinBufferDuration.Seconds() * float64(sampleRate))
	if frames == 0 {
		frames = 1
	}
	return frames
}

func (*CaptureDevice) MinBufferSize(
	sampleRate types.SampleRate,
	channels types.Channel,
	format types.PCMFormat,
) (int, error) {
	if !format.IsS16() {
		return 0, fmt.Errorf("PCM format %s is not supported, only signed 16-bit is", format)
	}
	if sampleRate == 0 || channels == 0 {
		return 0, fmt.Errorf("invalid parameters: rate:%d channels:%d", sampleRate, channels)
	}
	return minBufferFrames(sampleRate) * int(channels) * int(format.Size()), nil
}

func (d *CaptureDevice) Open(
	ctx context.Context,
	source string,
	sampleRate types.SampleRate,
	channels types.Channel,
	format types.PCMFormat,
	bufferSizeBytes int,
) (types.CaptureHandle, error) {
	minSize, err := d.MinBufferSize(sampleRate, channels, format)
	if err != nil {
		return nil, err
	}
	if bufferSizeBytes < minSize {
		return nil, fmt.Errorf("buffer size %d is less than the minimum %d", bufferSizeBytes, minSize)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(minBufferFrames(sampleRate))

	// keeps the device ID alive until InitDevice returns
	var devices []malgo.DeviceInfo
	if source != "" && source != SourceDefault {
		devices, err = d.MalgoContext.Devices(malgo.Capture)
		if err != nil {
			return nil, fmt.Errorf("unable to get the list of capture devices: %w", err)
		}
		found := false
		for idx := range devices {
			if devices[idx].Name() == source {
				deviceConfig.Capture.DeviceID = devices[idx].ID.Pointer()
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("capture device '%s' not found", source)
		}
	}

	h := &CaptureHandle{
		ctx:      ctx,
		buffer:   ringbuffer.New(ctx, bufferSizeBytes, binary.NativeEndian),
		channels: channels,
	}
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, inputSamples []byte, _ uint32) {
			if _, err := h.buffer.Write(inputSamples); err != nil {
				logger.Errorf(ctx, "unable to buffer the captured samples: %v", err)
			}
		},
	}
	device, err := malgo.InitDevice(d.MalgoContext.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize the capture device: %w", err)
	}
	h.MalgoDevice = device
	logger.Debugf(ctx, "opened a capture device '%s': %d Hz, %d ch, buffer %d bytes", source, sampleRate, channels, bufferSizeBytes)
	return h, nil
}
