package portaudio

import (
	"context"
	"fmt"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/gordonklaus/portaudio"
	"github.com/xaionaro-go/pcmrecorder/pkg/audio/types"
)

const (
	// MinBufferDuration is the period of a single PortAudio input buffer.
	MinBufferDuration = 100 * time.Millisecond

	SourceDefault = "default"
)

type CaptureDevice struct{}

var _ types.CaptureDevice = (*CaptureDevice)(nil)
var _ types.SourceLister = (*CaptureDevice)(nil)

func NewCaptureDevice() (*CaptureDevice, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}
	return &CaptureDevice{}, nil
}

func (*CaptureDevice) Ping(
	ctx context.Context,
) error {
	info, err := portaudio.DefaultInputDevice()
	if err != nil {
		return err
	}
	logger.Debugf(ctx, "device info: %#+v", info)

	if devices, err := portaudio.Devices(); err == nil {
		for idx, device := range devices {
			logger.Tracef(ctx, "devices[%d]: %#+v", idx, device)
		}
	}
	return nil
}

func (*CaptureDevice) ListSources(ctx context.Context) ([]types.SourceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("unable to get the list of devices: %w", err)
	}
	var defaultName string
	if info, err := portaudio.DefaultInputDevice(); err == nil {
		defaultName = info.Name
	} else {
		logger.Warnf(ctx, "unable to get the default input device: %v", err)
	}

	var result []types.SourceInfo
	for _, device := range devices {
		if device.MaxInputChannels <= 0 {
			continue
		}
		result = append(result, types.SourceInfo{
			ID:         device.Name,
			Name:       device.Name,
			SampleRate: types.SampleRate(device.DefaultSampleRate),
			Channels:   types.Channel(device.MaxInputChannels),
			IsDefault:  device.Name == defaultName,
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

func findInputDevice(source string) (*portaudio.DeviceInfo, error) {
	if source == "" || source == SourceDefault {
		return portaudio.DefaultInputDevice()
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("unable to get the list of devices: %w", err)
	}
	for _, device := range devices {
		if device.Name == source && device.MaxInputChannels > 0 {
			return device, nil
		}
	}
	return nil, fmt.Errorf("input device '%s' not found", source)
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

	device, err := findInputDevice(source)
	if err != nil {
		return nil, fmt.Errorf("unable to find the input device: %w", err)
	}

	frames := minBufferFrames(sampleRate)
	bytesPerFrame := int(channels) * int(format.Size())
	params := portaudio.HighLatencyParameters(device, nil)
	params.Input.Channels = int(channels)
	params.Input.Latency = time.Duration(bufferSizeBytes/bytesPerFrame) * time.Second / time.Duration(sampleRate)
	params.SampleRate = float64(sampleRate)
	params.FramesPerBuffer = frames

	buf := make([]int16, frames*int(channels))
	logger.Debugf(ctx, "opening input stream on '%s': %d Hz, %d ch, %d frames/buffer, latency %v", device.Name, sampleRate, channels, frames, params.Input.Latency)
	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return nil, fmt.Errorf("unable to open the input stream: %w", err)
	}

	return newCaptureHandle(ctx, stream, buf, channels), nil
}
