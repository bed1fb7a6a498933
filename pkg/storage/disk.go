// Package storage keeps menu item images. A Disk is either a directory
// served by the app itself on /storage or an S3-compatible bucket (AWS S3,
// MinIO, R2); STORAGE_DISK picks one at boot.
//
//	if err := storage.Connect(ctx); err != nil { ... }
//	err := storage.Default().Put(ctx, "items/1712_ab12cd34.jpg", file, "image/jpeg")
//	src := storage.Default().URL("items/1712_ab12cd34.jpg")
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
)

// ErrInvalidKey rejects keys that are empty, absolute or climb out with "..".
var ErrInvalidKey = errors.New("storage: invalid key")

type Disk interface {
	// Put stores r under key, replacing any previous object. Readers of
	// the key never observe a partial write.
	Put(ctx context.Context, key string, r io.Reader, contentType string) error

	// Delete removes key. A missing key is not an error.
	Delete(ctx context.Context, key string) error

	// URL is where browsers fetch key from.
	URL(key string) string
}

// cleanKey normalises a slash separated object key.
func cleanKey(key string) (string, error) {
	if key == "" || strings.ContainsRune(key, '\\') || strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	clean := path.Clean(key)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return clean, nil
}

// joinURL appends key to base, escaping each segment.
func joinURL(base, key string) string {
	parts := strings.Split(strings.TrimLeft(key, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.TrimRight(base, "/") + "/" + strings.Join(parts, "/")
}
