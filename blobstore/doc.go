// Package blobstore provides the storage abstraction for codegraph's
// persisted partitions and manifests.
//
// Store is the interface the partition manager writes evicted partitions
// through and reads them back from. Implementations must be safe for
// concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: in-memory, for tests
//   - LocalStore: local filesystem with atomic temp-file writes
//   - minio.Store: MinIO / S3-compatible object storage
//   - s3.Store: Amazon S3 with uploader-backed writes
//   - s3.DDBCommitStore: S3 plus DynamoDB conditional writes for atomic
//     manifest commits
//
// # Custom Implementations
//
// Implement the Store interface to plug in any key/value blob backend:
//
//	type Store interface {
//	    Put(ctx context.Context, name string, data []byte) error
//	    Get(ctx context.Context, name string) ([]byte, error)
//	    Delete(ctx context.Context, name string) error
//	    List(ctx context.Context, prefix string) ([]string, error)
//	}
package blobstore
