// Package media stores uploaded images such as slider banners and thumbnails.
package media

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/coachline/coachline/internal/config"
	"github.com/google/uuid"
)

// Store persists an object and returns its public URL.
type Store interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) (string, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// allowedTypes maps accepted upload content types to file extensions.
var allowedTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// ExtensionFor returns the file extension for an accepted content type.
func ExtensionFor(contentType string) (string, bool) {
	ext, ok := allowedTypes[strings.ToLower(strings.TrimSpace(contentType))]
	return ext, ok
}

// NewKey builds a collision-free object key under folder.
func NewKey(folder, ext string) string {
	folder = strings.Trim(path.Clean("/"+folder), "/")
	name := uuid.NewString() + ext
	if folder == "" {
		return name
	}
	return folder + "/" + name
}

// New picks the driver named by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocal(cfg.Dir, cfg.PublicURL), nil
	case "s3":
		return NewS3(ctx, cfg.S3, cfg.PublicURL)
	default:
		return nil, fmt.Errorf("media: unknown driver %q", cfg.Driver)
	}
}
