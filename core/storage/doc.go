// Package storage provides an abstraction layer for object storage services.
//
// It wraps the MinIO Go client behind the few operations the object sink uses to upload
// record batches. Both AWS S3 and self-hosted MinIO instances are supported.
//
// # Usage
//
//	client, err := storage.NewClient(config)
//	err = storage.EnsureBucket(ctx, client, config.Bucket, config.Region)
package storage
