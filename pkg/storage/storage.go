// Package storage persists research artifacts. Every backend refuses to
// overwrite an existing artifact.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mikeboe/market-research/pkg/config"
)

var (
	ErrExists   = errors.New("artifact already exists")
	ErrNotFound = errors.New("artifact not found")
	// ErrInvalidName rejects paths and empty names.
	ErrInvalidName = errors.New("invalid artifact name")
)

// Store is the storage capability plus the lookups the server needs.
type Store interface {
	Save(ctx context.Context, content, filename string) (string, error)
	URLFor(ctx context.Context, filename string) (string, error)
	Exists(ctx context.Context, filename string) (bool, error)
	Read(ctx context.Context, filename string) (string, error)
}

// New builds the backend named by cfg.StorageType. db is only needed for the
// postgres backend.
func New(ctx context.Context, cfg *config.Config, db DBTX) (Store, error) {
	switch strings.ToLower(cfg.StorageType) {
	case "", "local":
		return NewLocal(cfg.ReportsDir)
	case "s3":
		return NewS3(ctx, cfg.S3Bucket, cfg.S3Prefix, cfg.S3Region, cfg.PresignExpiry)
	case "postgres":
		if db == nil {
			return nil, errors.New("postgres storage requires DATABASE_URL")
		}
		return NewPostgres(db, cfg.PublicURL), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.StorageType)
	}
}

// validateName rejects anything that is not a bare file name.
func validateName(filename string) error {
	if filename == "" || filename != filepath.Base(filename) || strings.ContainsAny(filename, `/\`) || filename == "." || filename == ".." {
		return fmt.Errorf("%w %q", ErrInvalidName, filename)
	}
	return nil
}
