package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
)

// ErrBlobNotFound is returned when no object holds the requested sum.
var ErrBlobNotFound = errors.New("blob not found")

// Sum returns the content address of content.
func Sum(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}

// Blobs is a content-addressed store of file contents in one bucket.
// Keys are <prefix>/<first two hex digits>/<sum>.
type Blobs struct {
	client Client
	bucket string
	prefix string
}

// NewBlobs creates a blob store over client.
func NewBlobs(client Client, bucket, prefix string) *Blobs {
	return &Blobs{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Bucket returns the bucket name.
func (b *Blobs) Bucket() string {
	return b.bucket
}

// Key returns the object key for sum.
func (b *Blobs) Key(sum string) string {
	shard := sum
	if len(shard) > 2 {
		shard = shard[:2]
	}
	return path.Join(b.prefix, shard, sum)
}

// EnsureBucket creates the bucket when it does not exist.
func (b *Blobs) EnsureBucket(ctx context.Context) error {
	exists, err := b.client.BucketExists(ctx, b.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", b.bucket, err)
	}
	if exists {
		return nil
	}
	if err := b.client.MakeBucket(ctx, b.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", b.bucket, err)
	}
	return nil
}

// Put stores content and returns its sum.
func (b *Blobs) Put(ctx context.Context, content []byte) (string, error) {
	sum := Sum(content)
	_, err := b.client.PutObject(ctx, b.bucket, b.Key(sum), bytes.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return "", fmt.Errorf("put blob %s: %w", sum, err)
	}
	return sum, nil
}

// Get returns the content stored under sum and checks it against the sum.
func (b *Blobs) Get(ctx context.Context, sum string) ([]byte, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, b.Key(sum), minio.GetObjectOptions{})
	if err != nil {
		return nil, b.translate(sum, err)
	}
	defer obj.Close()

	content, err := io.ReadAll(obj)
	if err != nil {
		return nil, b.translate(sum, err)
	}
	if got := Sum(content); got != sum {
		return nil, fmt.Errorf("blob %s: content hashes to %s", sum, got)
	}
	return content, nil
}

// List returns the sums of every stored blob.
func (b *Blobs) List(ctx context.Context) ([]string, error) {
	var sums []string
	prefix := b.prefix
	if prefix != "" {
		prefix += "/"
	}
	for obj := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list blobs: %w", obj.Err)
		}
		sums = append(sums, path.Base(obj.Key))
	}
	return sums, nil
}

// Remove deletes the blob stored under sum.
func (b *Blobs) Remove(ctx context.Context, sum string) error {
	if err := b.client.RemoveObject(ctx, b.bucket, b.Key(sum), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove blob %s: %w", sum, err)
	}
	return nil
}

func (b *Blobs) translate(sum string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%s: %w", sum, ErrBlobNotFound)
	}
	return fmt.Errorf("get blob %s: %w", sum, err)
}
