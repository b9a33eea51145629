package audio

import (
	"github.com/xaionaro-go/pcmrecorder/pkg/audio/types"
)

type SampleRate = types.SampleRate
type Channel = types.Channel
type PCMFormat = types.PCMFormat
type CaptureDevice = types.CaptureDevice
type CaptureHandle = types.CaptureHandle

const (
	PCMFormatS16LE = types.PCMFormatS16LE
	PCMFormatS16BE = types.PCMFormatS16BE
)
