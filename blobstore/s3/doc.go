// Package s3 provides blobstore.Store implementations backed by Amazon S3.
//
// Store is a plain S3 store; partition blobs are uploaded through the
// aws-sdk-go-v2 parallel uploader. DDBCommitStore layers DynamoDB
// conditional writes on top for atomic CURRENT-manifest commits when
// multiple writers share a prefix.
//
// Example:
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	store := s3store.NewStore(s3.NewFromConfig(cfg), "my-bucket", "codegraph/")
package s3
