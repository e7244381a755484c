// Package blobstore abstracts where corpus snapshots live.
//
// The embedding pipeline hands matrices over as immutable snapshot blobs;
// a run reads each blob exactly once, so the interface trades in whole
// blobs rather than random-access readers. Implementations exist for the
// local filesystem, in-memory maps (tests), Amazon S3 and MinIO.
package blobstore

import (
	"context"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// errors.Is(err, ErrNotFound). The default maps to os.ErrNotExist.
var ErrNotFound = os.ErrNotExist

// Bucket is an abstraction for storing and retrieving immutable blobs.
type Bucket interface {
	// Get reads the full contents of the named blob.
	Get(ctx context.Context, name string) ([]byte, error)

	// Put writes a blob atomically, replacing any existing blob of that name.
	Put(ctx context.Context, name string, data []byte) error

	// List returns the names of blobs with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}
