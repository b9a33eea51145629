package pulseaudio

import (
	"github.com/xaionaro-go/pcmrecorder/pkg/audio/registry"
	"github.com/xaionaro-go/pcmrecorder/pkg/audio/types"
)

const (
	Priority = 100
)

func init() {
	registry.RegisterCaptureFactory(Priority, CaptureDevicePulseFactory{})
}

type CaptureDevicePulseFactory struct{}

func (CaptureDevicePulseFactory) NewCaptureDevice() (types.CaptureDevice, error) {
	return NewCaptureDevice()
}
