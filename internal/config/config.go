// Package config holds the batchrun CLI configuration.
//
// Values come, highest precedence first, from command-line flags, BATCHRUN_*
// environment variables, the config file ($HOME/.batchrun.yaml or --config)
// and the struct defaults below.
//
//	┌─────────────────┬─────────┬──────────────────────────────────────────┐
//	│ Key             │ Default │ Description                              │
//	├─────────────────┼─────────┼──────────────────────────────────────────┤
//	│ width           │ 0       │ Workers; unset means job file, then CPUs │
//	│ policy          │ abort   │ abort or skip                            │
//	│ output          │ table   │ table, json, yaml or xlsx                │
//	│ max_value_width │ 60      │ Truncate table values, 0 = no limit      │
//	│ out_file        │ ""      │ Write output here instead of stdout      │
//	│ progress        │ false   │ Show a progress bar on stderr            │
//	│ metrics_file    │ ""      │ Prometheus textfile to write after a run │
//	│ pin_workers     │ false   │ Pin each worker to a CPU                 │
//	│ rate            │ 0       │ Max task starts per second, 0 = no limit │
//	│ burst           │ 1       │ Rate limiter bucket size                 │
//	│ no_color        │ false   │ Disable colored output                   │
//	│ verbose         │ false   │ Debug logging                            │
//	│ log_level       │ info    │ Log level when not verbose               │
//	│ log_format      │ console │ console or json                          │
//	└─────────────────┴─────────┴──────────────────────────────────────────┘
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/creasty/defaults"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/utkarsh5026/batchrun/pool"
)

const (
	EnvPrefix      = "BATCHRUN"
	configFileName = ".batchrun"
)

// Keys, as used in the config file and by viper.
const (
	KeyWidth       = "width"
	KeyPolicy      = "policy"
	KeyOutput      = "output"
	KeyOutFile     = "out_file"
	KeyProgress    = "progress"
	KeyMetricsFile = "metrics_file"
	KeyPinWorkers  = "pin_workers"
	KeyRate        = "rate"
	KeyBurst       = "burst"
	KeyNoColor     = "no_color"
	KeyVerbose     = "verbose"
	KeyLogLevel    = "log_level"
	KeyLogFormat   = "log_format"
	KeyFailOnError = "fail_on_error"

	KeyMaxValueWidth = "max_value_width"
)

// Output formats.
var OutputFormats = []string{"table", "json", "yaml", "xlsx"}

type Config struct {
	Width       int     `mapstructure:"width" default:"0"`
	Policy      string  `mapstructure:"policy" default:"abort"`
	Output      string  `mapstructure:"output" default:"table"`
	OutFile     string  `mapstructure:"out_file"`
	Progress    bool    `mapstructure:"progress"`
	MetricsFile string  `mapstructure:"metrics_file"`
	PinWorkers  bool    `mapstructure:"pin_workers"`
	Rate        float64 `mapstructure:"rate" default:"0"`
	Burst       int     `mapstructure:"burst" default:"1"`
	NoColor     bool    `mapstructure:"no_color"`
	Verbose     bool    `mapstructure:"verbose"`
	LogLevel    string  `mapstructure:"log_level" default:"info"`
	LogFormat   string  `mapstructure:"log_format" default:"console"`
	FailOnError bool    `mapstructure:"fail_on_error"`

	MaxValueWidth int `mapstructure:"max_value_width" default:"60"`

	explicit map[string]bool
}

// Default returns a Config holding only the struct defaults.
func Default() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		// the tags are static; a failure here is a programming error
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return cfg
}

// NewViper creates a viper instance reading BATCHRUN_* variables and the
// config file at path, or $HOME/.batchrun.yaml when path is empty. A missing
// default config file is not an error.
func NewViper(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return v, nil
		}
		v.AddConfigPath(home)
		v.SetConfigName(configFileName)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && (errors.As(err, &notFound) || os.IsNotExist(err)) {
			return v, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return v, nil
}

// Load builds a Config from v on top of the struct defaults and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := Default()

	explicit := map[string]bool{
		KeyWidth:  v.IsSet(KeyWidth),
		KeyPolicy: v.IsSet(KeyPolicy),
	}

	// Defaults are registered for every key so environment variables are
	// seen by Unmarshal even when no flag is bound.
	for _, key := range Keys() {
		if !v.IsSet(key) {
			v.SetDefault(key, defaultValue(cfg, key))
		}
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.explicit = explicit

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsSet reports whether key was given explicitly rather than defaulted.
// Only width and policy are tracked, since a job file may also set them.
func (c *Config) IsSet(key string) bool {
	return c.explicit[key]
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if c.Width < 0 {
		return fmt.Errorf("width must be >= 0, got %d", c.Width)
	}
	if _, err := pool.ParseFailurePolicy(c.Policy); err != nil {
		return err
	}
	if !slices.Contains(OutputFormats, c.Output) {
		return fmt.Errorf("unknown output %q (want one of %s)", c.Output, strings.Join(OutputFormats, ", "))
	}
	if c.Output == "xlsx" && c.OutFile == "" {
		return errors.New("xlsx output needs --out-file")
	}
	if c.MaxValueWidth < 0 {
		return fmt.Errorf("max value width must be >= 0, got %d", c.MaxValueWidth)
	}
	if c.Rate < 0 {
		return fmt.Errorf("rate must be >= 0, got %v", c.Rate)
	}
	if c.Rate > 0 && c.Burst < 1 {
		return fmt.Errorf("burst must be >= 1 when rate is set, got %d", c.Burst)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		return fmt.Errorf("unknown log format %q (want console or json)", c.LogFormat)
	}
	return nil
}

// FailurePolicy returns the parsed policy. Call after Validate.
func (c *Config) FailurePolicy() pool.FailurePolicy {
	p, _ := pool.ParseFailurePolicy(c.Policy)
	return p
}

// Keys returns every config key.
func Keys() []string {
	return []string{
		KeyWidth, KeyPolicy, KeyOutput, KeyOutFile, KeyProgress, KeyMetricsFile,
		KeyPinWorkers, KeyRate, KeyBurst, KeyNoColor, KeyVerbose, KeyLogLevel,
		KeyLogFormat, KeyFailOnError, KeyMaxValueWidth,
	}
}

func defaultValue(cfg *Config, key string) any {
	switch key {
	case KeyWidth:
		return cfg.Width
	case KeyPolicy:
		return cfg.Policy
	case KeyOutput:
		return cfg.Output
	case KeyOutFile:
		return cfg.OutFile
	case KeyProgress:
		return cfg.Progress
	case KeyMetricsFile:
		return cfg.MetricsFile
	case KeyPinWorkers:
		return cfg.PinWorkers
	case KeyRate:
		return cfg.Rate
	case KeyBurst:
		return cfg.Burst
	case KeyNoColor:
		return cfg.NoColor
	case KeyVerbose:
		return cfg.Verbose
	case KeyLogLevel:
		return cfg.LogLevel
	case KeyLogFormat:
		return cfg.LogFormat
	case KeyFailOnError:
		return cfg.FailOnError
	case KeyMaxValueWidth:
		return cfg.MaxValueWidth
	}
	return nil
}
