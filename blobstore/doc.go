// Package blobstore abstracts where persisted location indexes live.
//
// A BlobStore holds named, immutable byte blobs. The storage package writes
// one blob per DataAccess on Flush and reads it back on load.
//
// Built-in implementations:
//
//   - MemoryStore: in-process, for tests and RAM-only directories
//   - LocalStore: a directory on disk, read through mmap
//   - s3.Store and s3.CommitStore: Amazon S3, optionally with DynamoDB commits
//   - minio.Store: MinIO and other S3-compatible services
//
// Implementations must be safe for concurrent use.
package blobstore
