package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/roadkit/blobstore"
	minioblob "github.com/hupe1980/roadkit/blobstore/minio"
	"github.com/hupe1980/roadkit/blobstore/s3"
)

// storeTarget is a parsed store URI.
type storeTarget struct {
	scheme string
	host   string // minio endpoint
	bucket string
	prefix string
	path   string // file stores
}

func parseStoreURI(raw string) (storeTarget, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return storeTarget{}, fmt.Errorf("store %q: %w", raw, err)
	}
	t := storeTarget{scheme: u.Scheme}
	p := strings.Trim(u.Path, "/")
	switch u.Scheme {
	case "mem", "":
		t.scheme = "mem"
	case "file":
		t.path = u.Host + u.Path
		if t.path == "" {
			return t, fmt.Errorf("store %q: missing path", raw)
		}
	case "s3":
		t.bucket, t.prefix = u.Host, p
		if t.bucket == "" {
			return t, fmt.Errorf("store %q: missing bucket", raw)
		}
	case "minio":
		t.host = u.Host
		t.bucket, t.prefix, _ = strings.Cut(p, "/")
		if t.host == "" || t.bucket == "" {
			return t, fmt.Errorf("store %q: want minio://host/bucket[/prefix]", raw)
		}
	default:
		return t, fmt.Errorf("store %q: unsupported scheme %q", raw, u.Scheme)
	}
	return t, nil
}

// openStore resolves a store URI. A non-empty commitTable wraps S3 stores in
// a DynamoDB commit store.
func openStore(ctx context.Context, raw, commitTable string) (blobstore.BlobStore, error) {
	t, err := parseStoreURI(raw)
	if err != nil {
		return nil, err
	}
	switch t.scheme {
	case "file":
		return blobstore.NewLocalStore(t.path), nil
	case "s3":
		st, err := s3.New(ctx, t.bucket, s3.WithPrefix(t.prefix))
		if err != nil {
			return nil, err
		}
		if commitTable == "" {
			return st, nil
		}
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return s3.NewCommitStore(st, dynamodb.NewFromConfig(cfg), commitTable, raw), nil
	case "minio":
		client, err := minio.New(t.host, &minio.Options{
			Creds:  credentials.NewStaticV4(os.Getenv("MINIO_ACCESS_KEY"), os.Getenv("MINIO_SECRET_KEY"), ""),
			Secure: os.Getenv("MINIO_INSECURE") == "",
		})
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		return minioblob.NewStore(client, t.bucket, t.prefix), nil
	default:
		return blobstore.NewMemoryStore(), nil
	}
}
