package pulseaudio

import (
	"context"
	"fmt"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
	"github.com/xaionaro-go/pcmrecorder/pkg/audio/types"
)

const (
	// MinBufferDuration is the shortest fragment requested from the server.
	MinBufferDuration = 50 * time.Millisecond

	SourceDefault = "default"
)

type CaptureDevice struct {
	PulseClient *pulse.Client
}

var _ types.CaptureDevice = (*CaptureDevice)(nil)
var _ types.SourceLister = (*CaptureDevice)(nil)

func NewCaptureDevice() (*CaptureDevice, error) {
	c, err := pulse.NewClient()
	if err != nil {
		return nil, fmt.Errorf("unable to open a client to Pulse: %w", err)
	}
	return &CaptureDevice{
		PulseClient: c,
	}, nil
}

func (d *CaptureDevice) Close() error {
	d.PulseClient.Close()
	return nil
}

func (d *CaptureDevice) Ping(ctx context.Context) error {
	source, err := d.PulseClient.DefaultSource()
	if err != nil {
		return err
	}
	logger.Debugf(ctx, "default source: %s", source.ID())
	return nil
}

func (d *CaptureDevice) ListSources(ctx context.Context) ([]types.SourceInfo, error) {
	sources, err := d.PulseClient.ListSources()
	if err != nil {
		return nil, fmt.Errorf("unable to list sources: %w", err)
	}
	var defaultID string
	if source, err := d.PulseClient.DefaultSource(); err == nil {
		defaultID = source.ID()
	} else {
		logger.Warnf(ctx, "unable to get the default source: %v", err)
	}

	result := make([]types.SourceInfo, 0, len(sources))
	for _, source := range sources {
		result = append(result, sourceInfo(
			source.ID(),
			source.Name(),
			source.SampleRate(),
			source.Channels(),
			defaultID,
		))
	}
	return result, nil
}

func sourceInfo(
	id string,
	name string,
	sampleRate int,
	chanMap proto.ChannelMap,
	defaultID string,
) types.SourceInfo {
	return types.SourceInfo{
		ID:         id,
		Name:       name,
		SampleRate: types.SampleRate(sampleRate),
		Channels:   types.Channel(len(chanMap)),
		IsDefault:  id == defaultID,
	}
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
	frames := int(MinBufferDuration.Seconds() * float64(sampleRate))
	if frames == 0 {
		frames = 1
	}
	return frames * int(channels) * int(format.Size()), nil
}

func channelMap(channels types.Channel) (proto.ChannelMap, error) {
	switch channels {
	case 1:
		return proto.ChannelMap{proto.ChannelMono}, nil
	case 2:
		return proto.ChannelMap{proto.ChannelLeft, proto.ChannelRight}, nil
	}
	return nil, fmt.Errorf("do not know how to configure %d channels", channels)
}

func (d *CaptureDevice) source(name string) (*pulse.Source, error) {
	if name == "" || name == SourceDefault {
		return d.PulseClient.DefaultSource()
	}
	return d.PulseClient.SourceByID(name)
}

func (d *CaptureDevice) Open(
	ctx context.Context,
	sourceName string,
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

	chanMap, err := channelMap(channels)
	if err != nil {
		return nil, err
	}

	source, err := d.source(sourceName)
	if err != nil {
		return nil, fmt.Errorf("unable to find source '%s': %w", sourceName, err)
	}

	h := newCaptureHandle(ctx, channels, bufferSizeBytes)
	stream, err := d.PulseClient.NewRecord(
		h.writer(),
		pulse.RecordSource(source),
		pulse.RecordSampleRate(int(sampleRate)),
		pulse.RecordChannels(chanMap),
		pulse.RecordBufferFragmentSize(uint32(minSize)),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize a record stream: %w", err)
	}
	h.RecordStream = stream
	logger.Debugf(ctx, "opened a record stream on '%s': %d Hz, %d ch, buffer %d bytes", source.ID(), sampleRate, channels, bufferSizeBytes)
	return h, nil
}
