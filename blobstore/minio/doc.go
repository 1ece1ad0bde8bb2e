// Package minio provides a blobstore.Store implementation backed by MinIO
// or any S3-compatible object store.
//
// Example:
//
//	client, err := minio.New("play.min.io", &minio.Options{
//	    Creds: credentials.NewStaticV4(accessKey, secretKey, ""),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	store := miniostore.NewStore(client, "my-bucket", "codegraph/")
package minio
