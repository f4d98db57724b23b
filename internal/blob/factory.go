package blob

import (
	"context"
	"fmt"
)

// Config selects and configures a backend for Open.
type Config struct {
	Driver    Driver
	FSRoot    string
	FSBaseURL string
	S3        S3Config
}

// Open returns the Store described by cfg. An empty driver selects the
// filesystem.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverFilesystem:
		return NewFilesystem(cfg.FSRoot, cfg.FSBaseURL)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}
