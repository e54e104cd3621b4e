// Package storage keeps file contents in object storage.
//
// It wraps the MinIO Go client behind the Client interface, which supports
// both AWS S3 and self-hosted MinIO and is mocked in core/storage/mocks.
//
// # Blobs
//
// Blobs is a content-addressed store on top of a Client: every content is
// stored once under its SHA-256 sum, sharded by the first two hex digits and
// placed under the configured prefix. Get verifies the sum of what it reads.
//
// # Usage
//
//	client, err := storage.NewClient(cfg.Storage)
//	blobs := storage.NewBlobs(client, cfg.Storage.Bucket, cfg.Storage.Prefix)
//	sum, err := blobs.Put(ctx, content)
package storage
