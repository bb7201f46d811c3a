package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"dbdump/internal/database"
)

const (
	// DefaultDirectory is used when neither a profile nor --path names one
	DefaultDirectory = "./var/db_backups"

	CompressionGzip = "gzip"
	CompressionZstd = "zstd"
	CompressionLZ4  = "lz4"
	CompressionNone = "none"

	PasswordTransportDefaultsFile = "defaults-file"
	PasswordTransportArgument     = "argument"
)

// Profile is a named bundle of connection identifiers and a target directory
type Profile struct {
	Name        string   `mapstructure:"name" yaml:"name"`
	Connections []string `mapstructure:"connections" yaml:"connections"`
	Directory   string   `mapstructure:"directory" yaml:"directory,omitempty"`
}

// DumperConfig holds the options of one dump strategy
type DumperConfig struct {
	Gzip              bool     `mapstructure:"gzip" yaml:"gzip"`
	Compression       string   `mapstructure:"compression" yaml:"compression,omitempty"`
	Binary            string   `mapstructure:"binary" yaml:"binary"`
	ExtraArgs         []string `mapstructure:"extra_args" yaml:"extra_args,omitempty"`
	PasswordTransport string   `mapstructure:"password_transport" yaml:"password_transport,omitempty"`
}

// CompressionName returns the effective codec. An explicit compression wins,
// otherwise the gzip switch decides between gzip and none.
func (d DumperConfig) CompressionName() string {
	if c := strings.ToLower(strings.TrimSpace(d.Compression)); c != "" {
		return c
	}
	if d.Gzip {
		return CompressionGzip
	}
	return CompressionNone
}

// Validate checks compression and password transport values
func (d DumperConfig) Validate() error {
	var errs []error

	switch d.CompressionName() {
	case CompressionGzip, CompressionZstd, CompressionLZ4, CompressionNone:
	default:
		errs = append(errs, fmt.Errorf("unsupported compression %q (gzip, zstd, lz4, none)", d.Compression))
	}

	switch d.PasswordTransport {
	case "", PasswordTransportDefaultsFile, PasswordTransportArgument:
	default:
		errs = append(errs, fmt.Errorf("unsupported password_transport %q (defaults-file, argument)", d.PasswordTransport))
	}

	return errors.Join(errs...)
}

// Dumpers groups the per-engine dumper options
type Dumpers struct {
	MySQL      DumperConfig `mapstructure:"mysql" yaml:"mysql"`
	PostgreSQL DumperConfig `mapstructure:"postgresql" yaml:"postgresql"`
}

// Config is the static configuration, loaded once and never mutated
type Config struct {
	Registry     []database.ConnectionConfig `mapstructure:"registry" yaml:"registry"`
	Connections  []string                    `mapstructure:"connections" yaml:"connections"`
	Directory    string                      `mapstructure:"directory" yaml:"directory"`
	Profiles     []Profile                   `mapstructure:"profiles" yaml:"profiles"`
	Dumpers      Dumpers                     `mapstructure:"dumpers" yaml:"dumpers"`
	Timeout      time.Duration               `mapstructure:"timeout" yaml:"timeout"`
	Parallel     int                         `mapstructure:"parallel" yaml:"parallel"`
	ProbeTimeout time.Duration               `mapstructure:"probe_timeout" yaml:"probe_timeout"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		Directory: DefaultDirectory,
		Dumpers: Dumpers{
			MySQL: DumperConfig{
				Gzip:              true,
				Binary:            "mysqldump",
				PasswordTransport: PasswordTransportDefaultsFile,
			},
			PostgreSQL: DumperConfig{
				Gzip:   true,
				Binary: "pg_dump",
			},
		},
		Parallel:     1,
		ProbeTimeout: database.DefaultProbeTimeout,
	}
}

// Validate checks the configuration for inconsistencies
func (c *Config) Validate() error {
	var errs []error

	if c.Timeout < 0 {
		errs = append(errs, errors.New("timeout must not be negative"))
	}
	if c.ProbeTimeout < 0 {
		errs = append(errs, errors.New("probe_timeout must not be negative"))
	}
	if c.Parallel < 0 {
		errs = append(errs, errors.New("parallel must not be negative"))
	}

	seen := make(map[string]bool, len(c.Profiles))
	for i, p := range c.Profiles {
		if strings.TrimSpace(p.Name) == "" {
			errs = append(errs, fmt.Errorf("profiles[%d]: name is required", i))
			continue
		}
		if seen[p.Name] {
			errs = append(errs, fmt.Errorf("profiles[%d]: duplicate profile %q", i, p.Name))
		}
		seen[p.Name] = true
	}

	for i, entry := range c.Registry {
		if err := entry.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("registry[%d]: %w", i, err))
		}
	}

	if err := c.Dumpers.MySQL.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("dumpers.mysql: %w", err))
	}
	if err := c.Dumpers.PostgreSQL.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("dumpers.postgresql: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %w", errors.Join(errs...))
	}
	return nil
}

// FindProfile returns the profile with the exact given name
func (c *Config) FindProfile(name string) (Profile, bool) {
	for _, p := range c.Profiles {
		if p.Name == name {
			return p, true
		}
	}
	return Profile{}, false
}

// ProfileNames lists the configured profiles in file order
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for _, p := range c.Profiles {
		names = append(names, p.Name)
	}
	return names
}

// BuildRegistry turns the registry entries into connections
func (c *Config) BuildRegistry() (*database.Registry, error) {
	return database.RegistryFromConfig(c.Registry)
}

// Workers returns the effective worker count, at least 1
func (c *Config) Workers() int {
	if c.Parallel < 1 {
		return 1
	}
	return c.Parallel
}

func (c *Config) expand() {
	c.Directory = database.ExpandEnv(c.Directory)
	for i := range c.Profiles {
		c.Profiles[i].Directory = database.ExpandEnv(c.Profiles[i].Directory)
	}
}
