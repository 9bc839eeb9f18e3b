package blob

import (
	"context"
	"fmt"
	"strings"
)

// BackendConfig selects and configures a storage backend.
type BackendConfig struct {
	Type       string
	Root       string
	PublicBase string
	S3         S3Config
}

// NewBackend creates the configured storage backend.
func NewBackend(ctx context.Context, cfg BackendConfig) (Backend, error) {
	switch typ := strings.TrimSpace(strings.ToLower(cfg.Type)); typ {
	case "", "filesystem", "fs", "local":
		return NewFileSystem(cfg.Root, cfg.PublicBase)
	case "s3":
		s3cfg := cfg.S3
		if s3cfg.PublicBase == "" {
			s3cfg.PublicBase = cfg.PublicBase
		}
		return NewS3(ctx, s3cfg)
	default:
		return nil, fmt.Errorf("unsupported asset backend %q", typ)
	}
}
