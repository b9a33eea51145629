package audio

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/pcmrecorder/pkg/audio/registry"
)

var (
	lastSuccessfulCaptureFactory       registry.CaptureDeviceFactory
	lastSuccessfulCaptureFactoryLocker sync.Mutex
)

func getLastSuccessfulCaptureFactory() registry.CaptureDeviceFactory {
	lastSuccessfulCaptureFactoryLocker.Lock()
	defer lastSuccessfulCaptureFactoryLocker.Unlock()
	return lastSuccessfulCaptureFactory
}

func setLastSuccessfulCaptureFactory(factory registry.CaptureDeviceFactory) {
	lastSuccessfulCaptureFactoryLocker.Lock()
	defer lastSuccessfulCaptureFactoryLocker.Unlock()
	lastSuccessfulCaptureFactory = factory
}

// NewCaptureDeviceAuto returns the first registered backend (by priority)
// that initializes and answers a ping. If none does, it falls back
// to CaptureDeviceDummy.
func NewCaptureDeviceAuto(
	ctx context.Context,
) CaptureDevice {
	if factory := getLastSuccessfulCaptureFactory(); factory != nil {
		device, err := factory.NewCaptureDevice()
		if err == nil {
			if err := device.Ping(ctx); err == nil {
				return device
			}
			closeDevice(ctx, device)
		}
	}

	device, err := newCaptureDeviceFromFactories(ctx, registry.CaptureFactories())
	if err == nil {
		return device
	}

	logger.Infof(ctx, "was unable to initialize any capture device: %v", err)
	return NewCaptureDeviceDummy()
}

func newCaptureDeviceFromFactories(
	ctx context.Context,
	factories []registry.CaptureDeviceFactory,
) (CaptureDevice, error) {
	var mErr *multierror.Error
	for _, factory := range factories {
		device, err := factory.NewCaptureDevice()
		logger.Debugf(ctx, "initializing capture device %T result is %v", factory, err)
		if err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to initialize %T: %w", factory, err))
			continue
		}

		err = device.Ping(ctx)
		logger.Debugf(ctx, "pinging capture device %T result is %v", device, err)
		if err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to ping %T: %w", device, err))
			closeDevice(ctx, device)
			continue
		}

		setLastSuccessfulCaptureFactory(factory)
		return device, nil
	}
	if mErr == nil {
		return nil, fmt.Errorf("no capture backends are registered")
	}
	return nil, mErr
}

// closeDevice frees a device that is not going to be used (a Pulse client,
// a miniaudio context).
func closeDevice(ctx context.Context, device CaptureDevice) {
	closer, ok := device.(io.Closer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		logger.Warnf(ctx, "unable to close %T: %v", device, err)
	}
}
