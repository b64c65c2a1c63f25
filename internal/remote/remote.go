package remote

import (
	"context"
	"fmt"
	"time"

	"cloudback/internal/config"
)

// Entry describes one file in a remote folder listing.
type Entry struct {
	Name    string
	ModTime time.Time
}

// Store is what the backup pipeline needs from an object store. Folders are
// slash-separated paths relative to the store's configured root.
type Store interface {
	// Reachable checks the store once at startup; an error here is a hard
	// precondition failure for the whole run.
	Reachable(ctx context.Context) error
	// Upload copies one staged artifact into folder under its base name.
	Upload(ctx context.Context, localPath, folder, checksum string) error
	// List returns the files directly inside folder. A folder that does not
	// exist yet lists as empty, not as an error.
	List(ctx context.Context, folder string) ([]Entry, error)
	// Delete removes a single file from folder.
	Delete(ctx context.Context, folder, name string) error
}

// NewStore builds the store backend the configuration selects.
func NewStore(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Backend {
	case config.BackendS3:
		return NewS3(ctx, cfg.S3, cfg.S3RetryAttempts())
	case config.BackendRclone:
		return NewRclone(cfg.Remote)
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Backend)
	}
}
