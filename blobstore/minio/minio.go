// Package minio provides a blobstore.Bucket for MinIO and other
// S3-compatible object stores.
package minio

import (
	"bytes"
	"context"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"

	"github.com/grckit/simidx/blobstore"
)

// Bucket implements blobstore.Bucket for MinIO.
type Bucket struct {
	client *minio.Client
	bucket string
	prefix string
}

// New creates a new MinIO bucket store.
// rootPrefix is prepended to all keys (e.g. "snapshots/").
func New(client *minio.Client, bucket, rootPrefix string) *Bucket {
	return &Bucket{
		client: client,
		bucket: bucket,
		prefix: rootPrefix,
	}
}

func (b *Bucket) key(name string) string {
	return path.Join(b.prefix, name)
}

// Get reads the full contents of the named blob.
func (b *Bucket) Get(ctx context.Context, name string) ([]byte, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, b.key(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NotFound" {
			return nil, blobstore.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Put writes a blob.
func (b *Bucket) Put(ctx context.Context, name string, data []byte) error {
	_, err := b.client.PutObject(ctx, b.bucket, b.key(name),
		bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
	return err
}

// List returns the names of blobs with the given prefix, sorted.
func (b *Bucket) List(ctx context.Context, prefix string) ([]string, error) {
	fullPrefix := b.key(prefix)

	var keys []string
	for obj := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{
		Prefix:    fullPrefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(obj.Key, b.prefix), "/")
		keys = append(keys, rel)
	}
	sort.Strings(keys)
	return keys, nil
}
