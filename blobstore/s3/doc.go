// Package s3 stores persisted location indexes in Amazon S3.
//
// Store maps blob names to object keys below an optional prefix:
//
//	store, err := s3.New(ctx, "road-indexes", s3.WithPrefix("berlin/"), s3.WithRegion("eu-central-1"))
//
// CommitStore adds DynamoDB conditional writes on top of any blob store so
// that concurrent writers cannot silently overwrite each other's index.
package s3
