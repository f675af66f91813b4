// Package storage locates the single object that holds a memory store
// snapshot, either a file on local disk or an object in an S3-compatible
// bucket.
//
// A short-lived process such as edgectl restores the snapshot when it opens
// a memory store and writes it back after every committed batch.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// Blob is one named object. Implementations are safe for concurrent use.
type Blob interface {
	// Open returns the object's content. A missing object yields an error
	// wrapping fs.ErrNotExist.
	Open(ctx context.Context) (io.ReadCloser, error)

	// Create returns a writer whose content replaces the object when it is
	// closed without error. Until then readers see the previous content.
	Create(ctx context.Context) (io.WriteCloser, error)

	Exists(ctx context.Context) (bool, error)

	// Remove deletes the object. Removing a missing object is not an error.
	Remove(ctx context.Context) error

	// String returns the location the blob was created from.
	String() string
}

// ErrNoS3Client is returned by Locate for an s3:// location when no client
// was supplied.
var ErrNoS3Client = errors.New("storage: s3 location requires an S3 client")

// Locate turns a location into a Blob. s3://bucket/key names an S3 object;
// anything else is a local file path. s3Client may be nil when no s3://
// location is expected.
func Locate(location string, s3Client S3Client) (Blob, error) {
	if location == "" {
		return nil, errors.New("storage: empty location")
	}
	if !strings.HasPrefix(location, "s3://") {
		return NewFile(location)
	}
	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("storage: parse %q: %w", location, err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" || strings.HasSuffix(key, "/") {
		return nil, fmt.Errorf("storage: %q needs a bucket and an object key", location)
	}
	if s3Client == nil {
		return nil, ErrNoS3Client
	}
	return NewObject(s3Client, u.Host, key), nil
}
