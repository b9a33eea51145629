package recorder

import (
	"errors"
	"fmt"
)

// Status is the synchronous result of Controller.Start. The asynchronous
// outcomes of a session are notify.Code values instead.
type Status uint

const (
	StatusUndefined = Status(iota)
	StatusSuccess
	StatusNotInitialized
	StatusAlreadyRecording
	StatusOutputInitFailed
	StatusStreamStartFailed
)

func (s Status) String() string {
	switch s {
	case StatusUndefined:
		return "undefined"
	case StatusSuccess:
		return "success"
	case StatusNotInitialized:
		return "not_initialized"
	case StatusAlreadyRecording:
		return "already_recording"
	case StatusOutputInitFailed:
		return "output_init_failed"
	case StatusStreamStartFailed:
		return "stream_start_failed"
	}
	return fmt.Sprintf("unknown_%d", uint(s))
}

type State uint

const (
	StateIdle = State(iota)
	StateInitialized
	StateRecording
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitialized:
		return "initialized"
	case StateRecording:
		return "recording"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("unknown_%d", uint(s))
}

var (
	ErrNotInitialized   = errors.New("the capture device is not initialized")
	ErrSessionActive    = errors.New("a recording session is active")
	ErrAlreadyRecording = errors.New("already recording")
	ErrSharedMismatch   = errors.New("the shared controller was constructed with different collaborators")
)
