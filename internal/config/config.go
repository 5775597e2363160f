// Package config loads and validates the optional aptmcp YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// EnvPath names the environment variable holding an explicit config path.
const EnvPath = "APTMCP_CONFIG"

// DefaultPaths are searched in order when no path is given.
var DefaultPaths = []string{".aptmcp.yaml", "/etc/aptmcp/config.yaml"}

// Default values for runner configuration.
const (
	DefaultMaxOutput = 10 << 20 // 10 MB
)

// DefaultPrivilege is the command prefix for privileged apt invocations.
// -n makes sudo fail instead of prompting for a password.
var DefaultPrivilege = []string{"sudo", "-n"}

// Config holds the parsed configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version      int               `yaml:"version"`
	RawTimeout   string            `yaml:"timeout" validate:"omitempty,duration"` // e.g. "30m"; empty disables
	RawMaxOutput int               `yaml:"max_output" validate:"gte=0"`           // bytes per stream
	Env          map[string]string `yaml:"env" validate:"dive,keys,required,endkeys"`
	Privilege    PrivilegeConfig   `yaml:"privilege"`
	Apt          AptConfig         `yaml:"apt"`
	Retry        RetryConfig       `yaml:"retry"`
	Log          LogConfig         `yaml:"log"`
	Tracing      TracingConfig     `yaml:"tracing"`
	Metrics      MetricsConfig     `yaml:"metrics"`
}

// PrivilegeConfig controls how privileged commands are elevated.
type PrivilegeConfig struct {
	Disabled bool     `yaml:"disabled"` // run apt directly, e.g. when already root
	Command  []string `yaml:"command" validate:"omitempty,dive,required"`
}

// AptConfig overrides the package manager binaries.
type AptConfig struct {
	AptGet    string `yaml:"apt_get"`
	Apt       string `yaml:"apt"`
	AptCache  string `yaml:"apt_cache"`
	DpkgQuery string `yaml:"dpkg_query"`

	// SkipUpdateBeforeInstall disables the index refresh run before install.
	SkipUpdateBeforeInstall bool `yaml:"skip_update_before_install"`
}

// RetryConfig extends the transient failure signatures.
type RetryConfig struct {
	Signatures []string `yaml:"signatures" validate:"dive,required"` // extra stderr fragments treated as transient
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"omitempty,oneof=json console"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter" validate:"omitempty,oneof=stdout otlp"`
	Endpoint     string  `yaml:"endpoint" validate:"omitempty,hostname_port"`
	SamplingRate float64 `yaml:"sampling_rate" validate:"gte=0,lte=1"`
}

// MetricsConfig controls the Prometheus endpoint served in HTTP mode.
type MetricsConfig struct {
	Disabled bool   `yaml:"disabled"`
	Path     string `yaml:"path" validate:"omitempty,startswith=/"`
}

// Timeout returns the configured process timeout, or 0 for none.
func (c *Config) Timeout() time.Duration {
	if c.RawTimeout != "" {
		d, err := time.ParseDuration(c.RawTimeout)
		if err == nil && d > 0 {
			return d
		}
	}
	return 0
}

// MaxOutputBytes returns the configured max output size or the default.
func (c *Config) MaxOutputBytes() int {
	if c.RawMaxOutput > 0 {
		return c.RawMaxOutput
	}
	return DefaultMaxOutput
}

// PrivilegePrefix returns the argv prefix for privileged commands.
func (c *Config) PrivilegePrefix() []string {
	if c.Privilege.Disabled {
		return nil
	}
	if len(c.Privilege.Command) > 0 {
		return c.Privilege.Command
	}
	return DefaultPrivilege
}

// Environment returns the environment applied to every command.
// DEBIAN_FRONTEND defaults to noninteractive.
func (c *Config) Environment() map[string]string {
	env := map[string]string{"DEBIAN_FRONTEND": "noninteractive"}
	for k, v := range c.Env {
		env[k] = v
	}
	return env
}

// AptGetPath returns the apt-get binary.
func (c *Config) AptGetPath() string { return orDefault(c.Apt.AptGet, "apt-get") }

// AptPath returns the apt binary.
func (c *Config) AptPath() string { return orDefault(c.Apt.Apt, "apt") }

// AptCachePath returns the apt-cache binary.
func (c *Config) AptCachePath() string { return orDefault(c.Apt.AptCache, "apt-cache") }

// DpkgQueryPath returns the dpkg-query binary.
func (c *Config) DpkgQueryPath() string { return orDefault(c.Apt.DpkgQuery, "dpkg-query") }

// MetricsPath returns the HTTP path for Prometheus metrics.
func (c *Config) MetricsPath() string { return orDefault(c.Metrics.Path, "/metrics") }

// LogLevel returns the configured log level, defaulting to info.
func (c *Config) LogLevel() string { return orDefault(c.Log.Level, "info") }

// LogFormat returns the configured log format, defaulting to json.
func (c *Config) LogFormat() string { return orDefault(c.Log.Format, "json") }

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

// LoadResult holds the parsed config and the file it came from.
type LoadResult struct {
	Config *Config
	Path   string // empty when no file was found
}

// Load reads the configuration. An explicit path must exist; otherwise
// $APTMCP_CONFIG and then DefaultPaths are tried. If no file exists, a
// default Config is returned.
func Load(path string) (*LoadResult, error) {
	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvPath)
		explicit = path != ""
	}

	candidates := []string{path}
	if !explicit {
		candidates = DefaultPaths
	}

	for _, p := range candidates {
		data, err := os.ReadFile(p)
		if err != nil {
			if os.IsNotExist(err) && !explicit {
				continue
			}
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		cfg, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", p, err)
		}
		return &LoadResult{Config: cfg, Path: p}, nil
	}
	return &LoadResult{Config: &Config{}}, nil
}

// Parse decodes and validates YAML configuration data.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		d, err := time.ParseDuration(fl.Field().String())
		return err == nil && d >= 0
	})
	return v
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
