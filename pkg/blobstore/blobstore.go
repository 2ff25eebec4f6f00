// Package blobstore abstracts the object storage collaborator holding
// uploaded videos and transient derived media.
package blobstore

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrBlobNotFound indicates no object exists under the given key.
var ErrBlobNotFound = errors.New("blob not found")

// UploadSession is a pre-negotiated destination the client uploads bytes to
// directly. The resulting Key is what gets registered as a workflow's video
// reference.
type UploadSession struct {
	ID          string    `json:"id"`
	Key         string    `json:"key"`
	Destination string    `json:"destination"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Store is the blob store boundary: path-addressable put/get/delete plus
// resumable upload session creation. Implementations must be safe for
// concurrent use.
type Store interface {
	CreateUploadSession(ctx context.Context, filename string) (*UploadSession, error)
	Put(ctx context.Context, key string, r io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

const blobScheme = "blob://"

// Ref builds a blob reference from a key.
func Ref(key string) string {
	return blobScheme + key
}

// ParseRef splits a blob reference into its key. ok is false for local paths
// and anything else that is not a blob reference.
func ParseRef(ref string) (key string, ok bool) {
	if len(ref) <= len(blobScheme) || ref[:len(blobScheme)] != blobScheme {
		return "", false
	}

	return ref[len(blobScheme):], true
}
