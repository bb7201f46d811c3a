package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes environment overrides, e.g. DBDUMP_PARALLEL=4
	EnvPrefix = "DBDUMP"
	// ConfigName is the config file name searched in $HOME and the working directory
	ConfigName = ".dbdump"
)

// SetDefaults registers the default values on v
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("directory", d.Directory)
	v.SetDefault("connections", []string{})
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("parallel", d.Parallel)
	v.SetDefault("probe_timeout", d.ProbeTimeout)

	v.SetDefault("dumpers.mysql.gzip", d.Dumpers.MySQL.Gzip)
	v.SetDefault("dumpers.mysql.compression", d.Dumpers.MySQL.Compression)
	v.SetDefault("dumpers.mysql.binary", d.Dumpers.MySQL.Binary)
	v.SetDefault("dumpers.mysql.password_transport", d.Dumpers.MySQL.PasswordTransport)
	v.SetDefault("dumpers.postgresql.gzip", d.Dumpers.PostgreSQL.Gzip)
	v.SetDefault("dumpers.postgresql.compression", d.Dumpers.PostgreSQL.Compression)
	v.SetDefault("dumpers.postgresql.binary", d.Dumpers.PostgreSQL.Binary)
}

// Configure prepares v with defaults, environment lookup and config file
// discovery, then reads the file. A missing file is only an error when it
// was named explicitly.
func Configure(v *viper.Viper, configFile string) error {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(ConfigName)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// Load decodes and validates the configuration held by v
func Load(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	cfg.expand()
	if strings.TrimSpace(cfg.Directory) == "" {
		cfg.Directory = DefaultDirectory
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads one configuration file with defaults and environment applied
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	if err := Configure(v, path); err != nil {
		return nil, err
	}
	return Load(v)
}
