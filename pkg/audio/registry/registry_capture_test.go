package registry

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/pcmrecorder/pkg/audio/types"
)

type lowFactory struct{}

func (lowFactory) NewCaptureDevice() (types.CaptureDevice, error) { return nil, nil }

type highFactory struct{}

func (*highFactory) NewCaptureDevice() (types.CaptureDevice, error) { return nil, nil }

func TestCaptureFactoriesOrder(t *testing.T) {
	RegisterCaptureFactory(10, lowFactory{})
	RegisterCaptureFactory(90, &highFactory{})

	factories := CaptureFactories()
	require.Len(t, factories, 2)
	require.IsType(t, &highFactory{}, factories[0])
	require.IsType(t, lowFactory{}, factories[1])

	require.Panics(t, func() {
		RegisterCaptureFactory(50, lowFactory{})
	})
}
