package recorder

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xaionaro-go/pcmrecorder/pkg/audio/types"
)

const (
	SampleRate8K  = types.SampleRate(8000)
	SampleRate16K = types.SampleRate(16000)

	SourceDefault = "default"

	DefaultOutputName       = "sample.pcm"
	DefaultBufferMultiplier = 2
)

// Config is the recording configuration. The controller keeps a read-only
// snapshot of it for the duration of a session.
type Config struct {
	Source           string           `yaml:"source"`
	SampleRate       types.SampleRate `yaml:"sample_rate"`
	Format           types.PCMFormat  `yaml:"format"`
	Channels         types.Channel    `yaml:"channels"`
	OutputDir        string           `yaml:"output_dir"`
	OutputName       string           `yaml:"output_name"`
	BufferMultiplier int              `yaml:"buffer_multiplier"`
	Append           bool             `yaml:"append"`
	SyncEveryBlock   bool             `yaml:"sync_every_block"`
}

func DefaultConfig() Config {
	return Config{
		Source:           SourceDefault,
		SampleRate:       SampleRate8K,
		Format:           types.PCMFormatS16NE(),
		Channels:         1,
		OutputDir:        filepath.Join(os.Getenv("HOME"), "PcmRecorder"),
		OutputName:       DefaultOutputName,
		BufferMultiplier: DefaultBufferMultiplier,
	}
}

func (cfg Config) Validate() error {
	if cfg.SampleRate == 0 {
		return fmt.Errorf("sample rate is not set")
	}
	if cfg.Channels != 1 && cfg.Channels != 2 {
		return fmt.Errorf("only mono and stereo layouts are supported, got %d channels", cfg.Channels)
	}
	if !cfg.Format.IsS16() {
		return fmt.Errorf("PCM format %s is not supported, only s16le and s16be are", cfg.Format)
	}
	if cfg.OutputDir == "" {
		return fmt.Errorf("output directory is not set")
	}
	if cfg.OutputName == "" {
		return fmt.Errorf("output file name is not set")
	}
	if strings.ContainsRune(cfg.OutputName, os.PathSeparator) {
		return fmt.Errorf("output file name '%s' must not contain path separators", cfg.OutputName)
	}
	if cfg.BufferMultiplier < 2 {
		return fmt.Errorf("buffer multiplier must be at least 2, got %d", cfg.BufferMultiplier)
	}
	return nil
}

func (cfg Config) OutputPath() string {
	return filepath.Join(cfg.OutputDir, cfg.OutputName)
}

type ConfigOption interface {
	apply(*Config)
}

type configOptionFunc func(*Config)

func (f configOptionFunc) apply(cfg *Config) { f(cfg) }

func OptionConfig(v Config) ConfigOption {
	return configOptionFunc(func(cfg *Config) { *cfg = v })
}

func OptionSource(source string) ConfigOption {
	return configOptionFunc(func(cfg *Config) { cfg.Source = source })
}

func OptionSampleRate(sampleRate types.SampleRate) ConfigOption {
	return configOptionFunc(func(cfg *Config) { cfg.SampleRate = sampleRate })
}

func OptionFormat(format types.PCMFormat) ConfigOption {
	return configOptionFunc(func(cfg *Config) { cfg.Format = format })
}

func OptionChannels(channels types.Channel) ConfigOption {
	return configOptionFunc(func(cfg *Config) { cfg.Channels = channels })
}

func OptionOutput(dir, name string) ConfigOption {
	return configOptionFunc(func(cfg *Config) {
		cfg.OutputDir = dir
		cfg.OutputName = name
	})
}

func OptionBufferMultiplier(multiplier int) ConfigOption {
	return configOptionFunc(func(cfg *Config) { cfg.BufferMultiplier = multiplier })
}

func OptionAppend(v bool) ConfigOption {
	return configOptionFunc(func(cfg *Config) { cfg.Append = v })
}

func OptionSyncEveryBlock(v bool) ConfigOption {
	return configOptionFunc(func(cfg *Config) { cfg.SyncEveryBlock = v })
}
