package blob

import (
	"context"
	"fmt"

	"bizcore/internal/infra/blob/memory"
	"bizcore/internal/infra/blob/s3"
)

// S3Config configures the s3 driver.
type S3Config = s3.Config

// Config selects and configures a backend. An empty driver means memory.
type Config struct {
	Driver Driver   `yaml:"driver"`
	S3     S3Config `yaml:"s3"`
}

// Open constructs the configured blob store.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverMemory:
		return memory.New(), nil
	case DriverS3:
		return s3.New(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}

// NewMockS3ForTests exposes the in-memory S3 fake for cross-package tests.
func NewMockS3ForTests() Store { return s3.NewMockForTests() }
