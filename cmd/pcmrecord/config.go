package main

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/xaionaro-go/pcmrecorder/pkg/audio/types"
	"github.com/xaionaro-go/pcmrecorder/pkg/recorder"
)

const envPrefix = "PCMRECORD"

// flagKeys maps command line flags to the keys of the config file.
var flagKeys = map[string]string{
	"source":            "source",
	"sample-rate":       "sample_rate",
	"channels":          "channels",
	"format":            "format",
	"output-dir":        "output_dir",
	"output-name":       "output_name",
	"buffer-multiplier": "buffer_multiplier",
	"append":            "append",
	"sync":              "sync_every_block",
	"backend":           "backend",
	"duration":          "duration",
}

func registerConfigFlags(flags *pflag.FlagSet) {
	def := recorder.DefaultConfig()
	flags.String("source", def.Source, "input source (device name, or 'default')")
	flags.Uint32("sample-rate", uint32(def.SampleRate), "sample rate in Hz")
	flags.Uint32("channels", uint32(def.Channels), "amount of channels: 1 (mono) or 2 (stereo)")
	flags.String("format", "s16ne", "sample format: s16le, s16be or s16ne (native byte order)")
	flags.String("output-dir", def.OutputDir, "directory of the output file")
	flags.String("output-name", def.OutputName, "name of the output file")
	flags.Int("buffer-multiplier", def.BufferMultiplier, "device buffer size as a multiple of the minimal one (>= 2)")
	flags.Bool("append", def.Append, "append to the output file instead of truncating it")
	flags.Bool("sync", def.SyncEveryBlock, "fsync the output file after every block")
	flags.Duration("duration", 0, "stop after this duration (0 means until interrupted)")
}

func registerBackendFlag(flags *pflag.FlagSet) {
	flags.String("backend", "auto", "capture backend: auto, pulseaudio, miniaudio, portaudio or dummy")
}

func newViper(flags *pflag.FlagSet, configFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for flagName, key := range flagKeys {
		flag := flags.Lookup(flagName)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("unable to bind flag '%s': %w", flagName, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("unable to read config file '%s': %w", configFile, err)
		}
	}
	return v, nil
}

func recorderConfig(v *viper.Viper) (recorder.Config, error) {
	format, err := types.ParsePCMFormat(v.GetString("format"))
	if err != nil {
		return recorder.Config{}, err
	}
	cfg := recorder.Config{
		Source:           v.GetString("source"),
		SampleRate:       types.SampleRate(v.GetUint32("sample_rate")),
		Format:           format,
		Channels:         types.Channel(v.GetUint32("channels")),
		OutputDir:        v.GetString("output_dir"),
		OutputName:       v.GetString("output_name"),
		BufferMultiplier: v.GetInt("buffer_multiplier"),
		Append:           v.GetBool("append"),
		SyncEveryBlock:   v.GetBool("sync_every_block"),
	}
	if err := cfg.Validate(); err != nil {
		return recorder.Config{}, err
	}
	return cfg, nil
}
