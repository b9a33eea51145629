package audio

import (
	"github.com/xaionaro-go/pcmrecorder/pkg/audio/types"
)

var (
	ErrReleased     = types.ErrReleased
	ErrNotStreaming = types.ErrNotStreaming
)
