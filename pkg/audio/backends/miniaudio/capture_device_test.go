package miniaudio

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/pcmrecorder/pkg/audio/types"
)

func TestMinBufferSize(t *testing.T) {
	d := &CaptureDevice{}

	size, err := d.MinBufferSize(8000, 1, types.PCMFormatS16LE)
	require.NoError(t, err)
	require.Equal(t, 320*2, size)

	size, err = d.MinBufferSize(16000, 2, types.PCMFormatS16BE)
	require.NoError(t, err)
	require.Equal(t, 640*2*2, size)

	_, err = d.MinBufferSize(8000, 1, types.PCMFormatFloat32LE)
	require.Error(t, err)
	_, err = d.MinBufferSize(0, 1, types.PCMFormatS16LE)
	require.Error(t, err)
}
