package recorder

import (
	"context"
	"reflect"
	"sync"

	"github.com/xaionaro-go/pcmrecorder/pkg/audio/types"
	"github.com/xaionaro-go/pcmrecorder/pkg/notify"
)

var (
	sharedController       *Controller
	sharedControllerLocker sync.Mutex
)

// Shared returns the process-wide controller, constructing it on the first
// call. Later calls may pass nil collaborators; passing different ones
// returns ErrSharedMismatch rather than silently ignoring them.
func Shared(
	device types.CaptureDevice,
	notifier *notify.Channel,
	opts ...ConfigOption,
) (*Controller, error) {
	sharedControllerLocker.Lock()
	defer sharedControllerLocker.Unlock()

	if c := sharedController; c != nil {
		if (device != nil && !sameDevice(device, c.device)) || (notifier != nil && notifier != c.notifier) {
			return nil, ErrSharedMismatch
		}
		return c, nil
	}

	c, err := New(device, notifier, opts...)
	if err != nil {
		return nil, err
	}
	sharedController = c
	return c, nil
}

// sameDevice compares two devices without panicking on a dynamic type
// that is not comparable; such values never match.
func sameDevice(a, b types.CaptureDevice) bool {
	typ := reflect.TypeOf(a)
	if typ != reflect.TypeOf(b) || !typ.Comparable() {
		return false
	}
	return a == b
}

// TeardownShared stops and releases the shared controller (if any) and
// forgets it, so that the next Shared call constructs a new one.
func TeardownShared(ctx context.Context) error {
	sharedControllerLocker.Lock()
	defer sharedControllerLocker.Unlock()

	c := sharedController
	if c == nil {
		return nil
	}
	sharedController = nil
	return c.Release(ctx)
}
