package main

import (
	"context"
	"fmt"
	"os"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/cobra"
	"github.com/xaionaro-go/pcmrecorder/pkg/audio"
	"github.com/xaionaro-go/pcmrecorder/pkg/audio/backends/miniaudio"
	"github.com/xaionaro-go/pcmrecorder/pkg/audio/backends/portaudio"
	"github.com/xaionaro-go/pcmrecorder/pkg/audio/backends/pulseaudio"
)

type app struct {
	loggerLevel logger.Level
	configFile  string
	printConfig bool
	ctx         context.Context
}

func main() {
	a := &app{
		loggerLevel: logger.LevelInfo,
		ctx:         context.Background(),
	}
	err := a.rootCommand().ExecuteContext(a.ctx)
	belt.Flush(a.ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) rootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pcmrecord",
		Short: "Record raw PCM audio from a capture device",
		Long: `pcmrecord captures signed 16-bit samples from an input source and writes
them to a headerless PCM file until interrupted or until --duration elapses.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			l := logrus.Default().WithLevel(a.loggerLevel)
			a.ctx = logger.CtxWithLogger(cmd.Context(), l)
			logger.Default = func() logger.Logger {
				return l
			}
			cmd.SetContext(a.ctx)
		},
		RunE: a.runRecord,
	}

	persistent := cmd.PersistentFlags()
	persistent.Var(&a.loggerLevel, "log-level", "Log level")
	persistent.StringVar(&a.configFile, "config", "", "path to a YAML config file")
	registerBackendFlag(persistent)

	flags := cmd.Flags()
	flags.BoolVar(&a.printConfig, "print-config", false, "print the effective configuration and exit")
	registerConfigFlags(flags)

	cmd.AddCommand(a.sourcesCommand())
	return cmd
}

func newCaptureDevice(ctx context.Context, backend string) (audio.CaptureDevice, error) {
	switch backend {
	case "auto":
		return audio.NewCaptureDeviceAuto(ctx), nil
	case "dummy":
		return audio.NewCaptureDeviceDummy(), nil
	case "miniaudio":
		return miniaudio.NewCaptureDevice()
	case "portaudio":
		return portaudio.NewCaptureDevice()
	case "pulseaudio":
		return pulseaudio.NewCaptureDevice()
	}
	return nil, fmt.Errorf("unknown backend '%s'", backend)
}
