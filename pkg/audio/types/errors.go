package types

import (
	"errors"
)

var (
	ErrReleased     = errors.New("the capture handle is already released")
	ErrNotStreaming = errors.New("the capture handle is not streaming")
)
