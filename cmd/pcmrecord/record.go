package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/spf13/cobra"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/pcmrecorder/pkg/audio"
	"github.com/xaionaro-go/pcmrecorder/pkg/notify"
	"github.com/xaionaro-go/pcmrecorder/pkg/recorder"
	"gopkg.in/yaml.v3"
)

func (a *app) runRecord(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	v, err := newViper(cmd.Flags(), a.configFile)
	if err != nil {
		return err
	}
	cfg, err := recorderConfig(v)
	if err != nil {
		return err
	}

	if a.printConfig {
		b, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("unable to serialize the config: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(b)
		return err
	}

	device, err := newCaptureDevice(ctx, v.GetString("backend"))
	if err != nil {
		return err
	}
	if closer, ok := device.(io.Closer); ok {
		defer closer.Close()
	}

	ctx, cancelFn := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancelFn()

	return record(ctx, device, cfg, v.GetDuration("duration"))
}

func record(
	ctx context.Context,
	device audio.CaptureDevice,
	cfg recorder.Config,
	duration time.Duration,
) (_err error) {
	logger.Tracef(ctx, "record")
	defer func() { logger.Tracef(ctx, "/record: %v", _err) }()

	notifier := notify.NewChannel(0)
	defer notifier.Close()

	ctrl, err := recorder.New(device, notifier, recorder.OptionConfig(cfg))
	if err != nil {
		return err
	}

	logger.Infof(ctx, "starting (%T)...", device)
	if err := ctrl.Initiate(ctx); err != nil {
		return fmt.Errorf("unable to initiate the recorder: %w", err)
	}
	status, err := ctrl.Start(ctx)
	if status != recorder.StatusSuccess {
		if releaseErr := ctrl.Release(ctx); releaseErr != nil {
			logger.Errorf(ctx, "unable to release the capture device: %v", releaseErr)
		}
		return fmt.Errorf("unable to start recording (%s): %w", status, err)
	}
	logger.Infof(ctx, "recording to '%s'", ctrl.OutputPath())

	var recordErr error
	listener := notify.ListenerFuncs{
		OnRecordErrorFunc: func(ev notify.Event) {
			recordErr = fmt.Errorf("recording failed (%s) after %d bytes: %w", ev.Code, ev.BytesWritten, ev.Err)
		},
		OnRecordFinishFunc: func(ev notify.Event) {
			logger.Infof(ctx, "recorded %d frames (%d bytes) to '%s'", ev.FramesWritten, ev.BytesWritten, ev.OutputPath)
		},
	}

	statsCtx, statsCancelFn := context.WithCancel(ctx)
	defer statsCancelFn()
	observability.Go(statsCtx, func() {
		t := time.NewTicker(time.Second)
		defer t.Stop()
		for {
			select {
			case <-statsCtx.Done():
				return
			case <-t.C:
				logger.Debugf(statsCtx, "written: %d", ctrl.Stats().BytesWritten)
			}
		}
	})

	var timeoutCh <-chan time.Time
	if duration > 0 {
		timer := time.NewTimer(duration)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	func() {
		for {
			select {
			case <-ctx.Done():
				logger.Infof(ctx, "interrupted")
				return
			case <-timeoutCh:
				logger.Infof(ctx, "reached the duration limit of %v", duration)
				return
			case ev := <-notifier.Events():
				notify.Deliver(ctx, listener, ev)
				if ev.Code.IsError() {
					return
				}
			}
		}
	}()

	stopCtx := context.WithoutCancel(ctx)
	if err := ctrl.Stop(stopCtx); err != nil {
		logger.Errorf(ctx, "unable to stop cleanly: %v", err)
		if recordErr == nil {
			recordErr = err
		}
	}
	notify.DispatchPending(stopCtx, notifier, listener)
	return recordErr
}
