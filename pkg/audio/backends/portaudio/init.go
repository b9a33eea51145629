package portaudio

import (
	"github.com/xaionaro-go/pcmrecorder/pkg/audio/registry"
	"github.com/xaionaro-go/pcmrecorder/pkg/audio/types"
)

const (
	Priority = 60
)

func init() {
	registry.RegisterCaptureFactory(Priority, CaptureDeviceFactory{})
}

type CaptureDeviceFactory struct{}

func (CaptureDeviceFactory) NewCaptureDevice() (types.CaptureDevice, error) {
	return NewCaptureDevice()
}
