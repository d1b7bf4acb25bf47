// Package config loads the portal host configuration from an optional YAML
// file with BIZCORE_* environment overrides.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"bizcore/internal/blob"
	"bizcore/internal/dataaccess"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "BIZCORE_"

// Config is the complete host configuration.
type Config struct {
	ListenAddr string             `yaml:"listen_addr"`
	LogLevel   string             `yaml:"log_level"`
	ContextKey string             `yaml:"context_key"`
	Storage    dataaccess.Options `yaml:"storage"`
	Blob       blob.Config        `yaml:"blob"`
	Portal     PortalConfig       `yaml:"portal"`
}

// PortalConfig tunes routing and the remote host.
type PortalConfig struct {
	CreateFallback bool   `yaml:"create_fallback"`
	MaxBodyBytes   int64  `yaml:"max_body_bytes"`
	ArchivePrefix  string `yaml:"archive_prefix"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		ListenAddr: ":8080",
		LogLevel:   "info",
		Storage:    dataaccess.Options{Driver: dataaccess.DriverSQLite, SQLitePath: "bizcore.db"},
		Blob:       blob.Config{Driver: blob.DriverMemory},
		Portal: PortalConfig{
			CreateFallback: true,
			MaxBodyBytes:   8 << 20,
			ArchivePrefix:  "graphs",
		},
	}
}

// Load reads path (when non-empty) over the defaults, then applies the process
// environment and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode config %s: %w", path, err)
		}
	}
	cfg, err := cfg.ApplyEnv(os.LookupEnv)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overlays BIZCORE_* variables found through lookup.
func (c Config) ApplyEnv(lookup func(string) (string, bool)) (Config, error) {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	var errs []error
	boolean := func(name string, dst *bool) {
		if v, ok := lookup(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}

	str("LISTEN_ADDR", &c.ListenAddr)
	str("LOG_LEVEL", &c.LogLevel)
	str("CONTEXT_KEY", &c.ContextKey)

	var storageDriver string
	str("STORAGE_DRIVER", &storageDriver)
	if storageDriver != "" {
		c.Storage.Driver = dataaccess.Driver(storageDriver)
	}
	str("SQLITE_PATH", &c.Storage.SQLitePath)
	str("POSTGRES_DSN", &c.Storage.PostgresDSN)

	var blobDriver string
	str("BLOB_DRIVER", &blobDriver)
	if blobDriver != "" {
		c.Blob.Driver = blob.Driver(blobDriver)
	}
	str("BLOB_S3_BUCKET", &c.Blob.S3.Bucket)
	str("BLOB_S3_REGION", &c.Blob.S3.Region)
	str("BLOB_S3_ENDPOINT", &c.Blob.S3.Endpoint)
	boolean("BLOB_S3_PATH_STYLE", &c.Blob.S3.PathStyle)

	boolean("CREATE_FALLBACK", &c.Portal.CreateFallback)
	if v, ok := lookup(EnvPrefix + "MAX_BODY_BYTES"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sMAX_BODY_BYTES: %w", EnvPrefix, err))
		} else {
			c.Portal.MaxBodyBytes = n
		}
	}
	str("ARCHIVE_PREFIX", &c.Portal.ArchivePrefix)
	return c, errors.Join(errs...)
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ListenAddr) == "" {
		errs = append(errs, errors.New("listen_addr is required"))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch c.Storage.Driver {
	case dataaccess.DriverNone, dataaccess.DriverSQLite, dataaccess.DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	switch c.Blob.Driver {
	case blob.DriverMemory:
	case blob.DriverS3:
		if c.Blob.S3.Bucket == "" {
			errs = append(errs, errors.New("blob.s3.bucket is required for the s3 driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown blob driver %q", c.Blob.Driver))
	}
	if c.Portal.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("portal.max_body_bytes must be positive"))
	}
	if _, err := c.ContextKeyBytes(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SlogLevel parses LogLevel.
func (c Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}

// ContextKeyBytes decodes ContextKey. An empty key disables context sealing.
func (c Config) ContextKeyBytes() ([]byte, error) {
	if c.ContextKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.ContextKey)
	if err != nil {
		return nil, fmt.Errorf("context_key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("context_key: want 32 bytes, got %d", len(key))
	}
	return key, nil
}
