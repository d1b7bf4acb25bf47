package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bizcore/internal/blob"
	"bizcore/internal/dataaccess"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if !cfg.Portal.CreateFallback || cfg.Storage.Driver != dataaccess.DriverSQLite {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadFileThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portald.yaml")
	file := `
listen_addr: ":9090"
log_level: debug
storage:
  driver: postgres
  postgres_dsn: postgres://file/db
blob:
  driver: s3
  s3:
    bucket: graphs
    region: eu-central-1
portal:
  create_fallback: false
`
	if err := os.WriteFile(path, []byte(file), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("BIZCORE_POSTGRES_DSN", "postgres://env/db")
	t.Setenv("BIZCORE_BLOB_S3_PATH_STYLE", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":9090" || cfg.LogLevel != "debug" {
		t.Fatalf("file values lost: %+v", cfg)
	}
	if cfg.Storage.Driver != dataaccess.DriverPostgres || cfg.Storage.PostgresDSN != "postgres://env/db" {
		t.Fatalf("environment must override file: %+v", cfg.Storage)
	}
	if cfg.Blob.Driver != blob.DriverS3 || cfg.Blob.S3.Bucket != "graphs" || !cfg.Blob.S3.PathStyle {
		t.Fatalf("unexpected blob config %+v", cfg.Blob)
	}
	if cfg.Portal.CreateFallback {
		t.Fatalf("create_fallback from file must stick")
	}
	if cfg.Portal.MaxBodyBytes != 8<<20 {
		t.Fatalf("unset values keep defaults, got %d", cfg.Portal.MaxBodyBytes)
	}
}

func TestApplyEnvRejectsMalformedValues(t *testing.T) {
	_, err := Default().ApplyEnv(envMap(map[string]string{
		"BIZCORE_CREATE_FALLBACK": "maybe",
		"BIZCORE_MAX_BODY_BYTES":  "lots",
	}))
	if err == nil || !strings.Contains(err.Error(), "CREATE_FALLBACK") || !strings.Contains(err.Error(), "MAX_BODY_BYTES") {
		t.Fatalf("expected both errors, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"storage", func(c *Config) { c.Storage.Driver = "mysql" }, "storage driver"},
		{"blob", func(c *Config) { c.Blob.Driver = "fs" }, "blob driver"},
		{"bucket", func(c *Config) { c.Blob.Driver = blob.DriverS3 }, "bucket"},
		{"level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"body", func(c *Config) { c.Portal.MaxBodyBytes = 0 }, "max_body_bytes"},
		{"key hex", func(c *Config) { c.ContextKey = "zz" }, "context_key"},
		{"key size", func(c *Config) { c.ContextKey = "abcd" }, "32 bytes"},
		{"listen", func(c *Config) { c.ListenAddr = " " }, "listen_addr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q error, got %v", tt.want, err)
			}
		})
	}
}

func TestContextKeyBytes(t *testing.T) {
	cfg := Default()
	cfg.ContextKey = strings.Repeat("ab", 32)
	key, err := cfg.ContextKeyBytes()
	if err != nil || len(key) != 32 || key[0] != 0xab {
		t.Fatalf("unexpected key %x %v", key, err)
	}
	if key, err := Default().ContextKeyBytes(); err != nil || key != nil {
		t.Fatalf("empty key disables sealing")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected read error")
	}
}
