package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Local writes objects under a directory served at publicURL.
type Local struct {
	root      string
	publicURL string
}

// NewLocal builds a Local store rooted at dir.
func NewLocal(dir, publicURL string) *Local {
	return &Local{root: dir, publicURL: strings.TrimRight(publicURL, "/")}
}

// Root is the directory the server should expose.
func (l *Local) Root() string {
	return l.root
}

func (l *Local) abs(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("media/local: empty key")
	}
	return filepath.Join(l.root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

// Put writes r to key.
func (l *Local) Put(_ context.Context, key, _ string, r io.Reader) (string, error) {
	full, err := l.abs(key)
	if err != nil {
		return "", err
	}
	if errMkdir := os.MkdirAll(filepath.Dir(full), 0o755); errMkdir != nil {
		return "", fmt.Errorf("media/local: mkdir: %w", errMkdir)
	}
	f, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("media/local: create %s: %w", key, err)
	}
	defer func() { _ = f.Close() }()
	if _, errCopy := io.Copy(f, r); errCopy != nil {
		return "", fmt.Errorf("media/local: write %s: %w", key, errCopy)
	}
	return l.URL(key), nil
}

// Delete removes key; a missing file is not an error.
func (l *Local) Delete(_ context.Context, key string) error {
	full, err := l.abs(key)
	if err != nil {
		return err
	}
	if errRemove := os.Remove(full); errRemove != nil && !os.IsNotExist(errRemove) {
		return fmt.Errorf("media/local: delete %s: %w", key, errRemove)
	}
	return nil
}

// URL returns the public URL for key.
func (l *Local) URL(key string) string {
	return l.publicURL + "/" + strings.TrimLeft(key, "/")
}
