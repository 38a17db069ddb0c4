// Package evidence stores proof-of-payment files on the local filesystem.
package evidence

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/odyssey-erp/odyssey-payments/internal/platform/httpx"
)

// DefaultMimeType is returned for files whose extension is unknown.
const DefaultMimeType = "application/octet-stream"

var (
	// ErrUnsupportedType rejects uploads outside the extension allowlist.
	ErrUnsupportedType = fmt.Errorf("invalid file type, allowed: pdf, png, jpg, jpeg: %w", httpx.ErrUnsupportedMedia)
	// ErrFileNotFound indicates the referenced file is missing on storage.
	ErrFileNotFound = fmt.Errorf("file not found on the server: %w", httpx.ErrNotFound)
	// ErrEmptyFile rejects zero byte uploads.
	ErrEmptyFile = fmt.Errorf("file is empty: %w", httpx.ErrValidation)
)

var allowed = map[string]bool{
	".pdf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// Allowed reports whether filename carries an accepted extension.
func Allowed(filename string) bool {
	return allowed[strings.ToLower(filepath.Ext(filename))]
}

// MimeType derives the content type from the file extension.
func MimeType(path string) string {
	if typ := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); typ != "" {
		return typ
	}
	return DefaultMimeType
}

// Store keeps evidence files under a single directory.
type Store struct {
	dir string
}

// NewStore prepares dir and returns a Store rooted at it.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("evidence: create dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Store writes data as <dir>/<ownerID>_<filename> and returns that path.
// Uploading again with the same name replaces the previous file.
func (s *Store) Store(ctx context.Context, ownerID, filename string, data []byte) (string, error) {
	name := filepath.Base(filepath.Clean("/" + filename))
	if name == "/" || name == "." || !Allowed(name) {
		return "", ErrUnsupportedType
	}
	if len(data) == 0 {
		return "", ErrEmptyFile
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, ownerID+"_"+name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("evidence: write %s: %w", name, err)
	}
	return path, nil
}

// Retrieve reads a stored file and its content type.
func (s *Store) Retrieve(ctx context.Context, path string) ([]byte, string, error) {
	if !s.contains(path) {
		return nil, "", ErrFileNotFound
	}
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", ErrFileNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("evidence: read: %w", err)
	}
	return data, MimeType(path), nil
}

// contains guards against references pointing outside the storage dir.
func (s *Store) contains(path string) bool {
	root, err := filepath.Abs(s.dir)
	if err != nil {
		return false
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel != "." && !strings.HasPrefix(rel, "..")
}
