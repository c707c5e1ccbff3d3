// Package config loads the nodular configuration.
//
// Values are layered, later sources winning: [Default], an optional YAML
// file, a .env file (which never overrides variables already set in the
// environment), then the environment itself. Command-line flags are
// applied on top by the caller, which then calls [Config.Validate].
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables read by ApplyEnv.
const (
	EnvDBDriver = "NODULAR_DB_DRIVER"
	EnvDBDSN    = "NODULAR_DB_DSN"
	EnvAddr     = "NODULAR_ADDR"
	EnvRoot     = "NODULAR_ROOT"
	EnvBasepath = "NODULAR_BASEPATH"
	EnvUrlpath  = "NODULAR_URLPATH"
	EnvLogLevel = "NODULAR_LOG_LEVEL"
	EnvLogPath  = "NODULAR_LOG_PATH"
	EnvReadOnly = "NODULAR_READONLY"
	EnvMetrics  = "NODULAR_METRICS"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Publish  PublishConfig  `yaml:"publish"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	ReadOnly bool           `yaml:"readonly"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver" validate:"oneof=postgres sqlite"`
	DSN    string `yaml:"dsn" validate:"required"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

// PublishConfig selects what the server publishes. Root is a root node
// name, resolved on the first request. An empty Urlpath means Basepath.
type PublishConfig struct {
	Root     string `yaml:"root"`
	Basepath string `yaml:"basepath" validate:"startswith=/"`
	Urlpath  string `yaml:"urlpath" validate:"omitempty,startswith=/"`
}

type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	// Path is a log file. Empty means stdout.
	Path string `yaml:"path"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: DriverPostgres,
			DSN:    "postgres://localhost:5432/nodular?sslmode=disable",
		},
		Server:  ServerConfig{Addr: ":8080"},
		Publish: PublishConfig{Basepath: "/"},
		Log:     LogConfig{Level: "info"},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Load builds a configuration from the defaults, the YAML file at path
// (skipped when path is empty), the .env file at dotenv (skipped when
// empty or missing) and the process environment. The result is not
// validated.
func Load(path, dotenv string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if dotenv != "" {
		if err := LoadDotEnv(dotenv); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile merges the YAML file at path into c. Unknown keys are an error.
func (c *Config) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
	}
	return nil
}

// LoadDotEnv exports the variables of a .env file that are not already
// set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides c with the variables lookup reports as set.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := []struct {
		key string
		dst *string
	}{
		{EnvDBDriver, &c.Database.Driver},
		{EnvDBDSN, &c.Database.DSN},
		{EnvAddr, &c.Server.Addr},
		{EnvRoot, &c.Publish.Root},
		{EnvBasepath, &c.Publish.Basepath},
		{EnvUrlpath, &c.Publish.Urlpath},
		{EnvLogLevel, &c.Log.Level},
		{EnvLogPath, &c.Log.Path},
	}
	for _, s := range strs {
		if v, ok := lookup(s.key); ok {
			*s.dst = v
		}
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{EnvReadOnly, &c.ReadOnly},
		{EnvMetrics, &c.Metrics.Enabled},
	}
	for _, b := range bools {
		v, ok := lookup(b.key)
		if !ok || v == "" {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalid, b.key, v)
		}
		*b.dst = parsed
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the field constraints. Failures match ErrInvalid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return fmt.Errorf("%w: %s failed %q (value %q)", ErrInvalid, f.Namespace(), f.Tag(), fmt.Sprint(f.Value()))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}
