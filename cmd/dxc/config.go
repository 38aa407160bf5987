package main

import (
	"github.com/mstoykov/envconfig"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/dxcompat/errors"
)

// Config is the CLI configuration. Later sources override earlier ones:
// defaults, the YAML file, the environment, then flags.
type Config struct {
	LogLevel       string   `yaml:"log_level" envconfig:"DXC_LOG_LEVEL"`
	LogDevelopment bool     `yaml:"log_development" envconfig:"DXC_LOG_DEVELOPMENT"`
	IncludePath    []string `yaml:"include_path" envconfig:"DXC_INCLUDE_PATH"`
	DefaultArgs    []string `yaml:"default_args" envconfig:"DXC_DEFAULT_ARGS"`
}

func defaultConfig() Config {
	return Config{LogLevel: "warn"}
}

// loadConfig reads path (if set) from fs and then applies the environment.
func loadConfig(fs afero.Fs, path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			return cfg, errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, "cannot read config file "+path)
		}
		var file Config
		if err := yaml.Unmarshal(data, &file); err != nil {
			return cfg, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "invalid config file "+path)
		}
		cfg = cfg.apply(file)
	}

	var env Config
	if err := envconfig.Process("", &env, lookup); err != nil {
		return cfg, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "invalid environment")
	}
	return cfg.apply(env), nil
}

// apply overrides c with the fields set in o.
func (c Config) apply(o Config) Config {
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
	if o.LogDevelopment {
		c.LogDevelopment = true
	}
	if len(o.IncludePath) > 0 {
		c.IncludePath = o.IncludePath
	}
	if len(o.DefaultArgs) > 0 {
		c.DefaultArgs = o.DefaultArgs
	}
	return c
}

// compilerArgs prepends the configured defaults and include path to args.
func (c Config) compilerArgs(args []string) []string {
	out := make([]string, 0, len(c.DefaultArgs)+2*len(c.IncludePath)+len(args))
	out = append(out, c.DefaultArgs...)
	for _, dir := range c.IncludePath {
		out = append(out, "-I", dir)
	}
	return append(out, args...)
}
