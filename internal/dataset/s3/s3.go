// Package s3 reads datasets from S3-compatible object storage
// (s3://bucket/key).
package s3

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/crimson-sun/machwatch/internal/dataset"
)

func init() {
	dataset.Register("s3", func() dataset.Source { return &Source{} })
}

// Source fetches objects with a minio client built from the SourceConfig.
type Source struct{}

func (s *Source) Open(ctx context.Context, cfg dataset.SourceConfig, location string) (io.ReadCloser, error) {
	bucket, key, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("s3 source: no endpoint configured")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       cfg.Secure,
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 source: failed to create client: %w", err)
	}

	obj, err := client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("s3 source: get %s: %w", location, err)
	}
	return obj, nil
}

// ParseLocation splits s3://bucket/key into its parts. The scheme is
// matched case-insensitively, as dataset.SchemeOf routes it.
func ParseLocation(location string) (bucket, key string, err error) {
	scheme, rest, ok := strings.Cut(location, "://")
	if !ok || !strings.EqualFold(scheme, "s3") {
		return "", "", fmt.Errorf("s3 source: %q is not an s3:// location", location)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 source: %q needs both bucket and key", location)
	}
	return bucket, key, nil
}
