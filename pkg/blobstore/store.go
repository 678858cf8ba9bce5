// Package blobstore serves static game files (images, asset bundles) from
// local disk or an S3 bucket.
package blobstore

import (
	"context"
	"errors"
	"io"
	"mime"
	"path"
	"strings"
	"time"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("blobstore: not found")

// ErrInvalidKey is returned for keys that escape the store root.
var ErrInvalidKey = errors.New("blobstore: invalid key")

// Object is an opened blob. Callers must close Body.
type Object struct {
	Body        io.ReadCloser
	Size        int64
	ModTime     time.Time
	ContentType string
}

// Store opens blobs by slash-separated key.
// Implementations must be safe for concurrent use.
type Store interface {
	Open(ctx context.Context, key string) (*Object, error)
}

// CleanKey normalizes a request path into a store key. It rejects keys that
// would resolve outside the root.
func CleanKey(key string) (string, error) {
	key = strings.TrimLeft(key, "/")
	if key == "" {
		return "", ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return "", ErrInvalidKey
		}
	}
	cleaned := path.Clean(key)
	if cleaned == "." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}

// ContentTypeFor guesses a content type from the key's extension.
func ContentTypeFor(key string) string {
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
