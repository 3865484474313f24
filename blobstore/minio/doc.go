// Package minio stores persisted location indexes in MinIO or any other
// S3-compatible service through the MinIO client.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	store := miniostore.NewStore(client, "road-indexes", "berlin/")
//	loc, err := roadkit.New(g, roadkit.WithStore(store))
//
// It needs no AWS SDK and suits air-gapped deployments.
package minio
