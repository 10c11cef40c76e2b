package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/dev-tams/mydumpkit/internal/config"
	"github.com/dev-tams/mydumpkit/internal/storage/local"
	s3store "github.com/dev-tams/mydumpkit/internal/storage/s3"
)

const s3Scheme = "s3://"

// FromTarget builds the backend for a directory-mode target: a local path or
// an s3://bucket/prefix URL.
func FromTarget(ctx context.Context, target string, s3cfg config.S3Config) (Storage, error) {
	if !strings.HasPrefix(target, s3Scheme) {
		return local.New(target, target), nil
	}

	bucket, prefix, err := ParseS3URL(target)
	if err != nil {
		return nil, err
	}
	s, err := s3store.New(ctx, s3store.Options{
		Name:      target,
		Bucket:    bucket,
		Prefix:    prefix,
		Region:    s3cfg.Region,
		Endpoint:  s3cfg.Endpoint,
		AccessKey: s3cfg.AccessKey,
		SecretKey: s3cfg.SecretKey,
		PathStyle: s3cfg.PathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("storage %s: %w", target, err)
	}
	return s, nil
}

// ParseS3URL splits s3://bucket/some/prefix into its bucket and prefix.
func ParseS3URL(raw string) (bucket, prefix string, err error) {
	rest, ok := strings.CutPrefix(raw, s3Scheme)
	if !ok {
		return "", "", fmt.Errorf("not an s3 url: %q", raw)
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("s3 url %q has no bucket", raw)
	}
	return bucket, strings.Trim(prefix, "/"), nil
}
