package kv

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultDatabase is the database name used when none is configured.
const DefaultDatabase = "quarry"

// DefaultPoolSize is the pool capacity used when none is configured.
const DefaultPoolSize = 16

// Config holds the connection parameters for a store. It is constructed
// once at process startup and passed to New; the store never mutates it
// and supports no per-call overrides.
type Config struct {
	// Driver selects the backing database (postgres or sqlite).
	Driver string `yaml:"driver" validate:"required,oneof=postgres sqlite"`

	// Host is the database server host. Ignored for sqlite.
	Host string `yaml:"host"`

	// Port is the database server port. Ignored for sqlite.
	Port int `yaml:"port" validate:"omitempty,min=1,max=65535"`

	// User is the database user name.
	User string `yaml:"user"`

	// Password is the database password.
	Password string `yaml:"password"`

	// Database is the database name. Defaults to DefaultDatabase.
	Database string `yaml:"database"`

	// UnixSocketDir, when set, connects over a unix domain socket in
	// that directory instead of TCP. Postgres only.
	UnixSocketDir string `yaml:"unix_domain_socket_dir"`

	// Path is the database file path for sqlite.
	Path string `yaml:"path"`

	// PoolSize bounds the number of concurrently live connections.
	// Defaults to DefaultPoolSize.
	PoolSize int `yaml:"pool_size" validate:"omitempty,min=1"`
}

// DefaultConfig returns a configuration pre-filled with defaults for a
// local sqlite store.
func DefaultConfig() Config {
	return Config{
		Driver:   "sqlite",
		Path:     "quarry.db",
		Database: DefaultDatabase,
		PoolSize: DefaultPoolSize,
	}
}

// LoadConfig reads and validates a YAML configuration file. Unknown
// options and mistyped values (such as a non-integer port) are
// configuration errors reported here, before any pool activity.
func LoadConfig(path string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, configError("load config", err)
	}

	if err := unmarshalStrict(data, &cfg); err != nil {
		return cfg, configError("parse config", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func unmarshalStrict(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	// Unrecognized options are a startup error, not silently dropped.
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			// Empty file: an empty option set.
			return nil
		}
		return err
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Database == "" {
		c.Database = DefaultDatabase
	}
	if c.PoolSize == 0 {
		c.PoolSize = DefaultPoolSize
	}
	if c.Driver == "postgres" && c.Port == 0 {
		c.Port = 5432
	}
}

// Validate checks the configuration. Errors are classified as config
// errors and are fatal at startup.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return configError("validate config", err)
	}
	if c.Driver == "sqlite" && c.Path == "" {
		return configError("validate config", fmt.Errorf("path is required for the sqlite driver"))
	}
	if c.Driver == "postgres" && c.Host == "" && c.UnixSocketDir == "" {
		return configError("validate config", fmt.Errorf("host or unix_domain_socket_dir is required for the postgres driver"))
	}
	return nil
}
