package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/dev-tams/mydumpkit/internal/storage/prunable"
)

type Storage struct {
	name     string
	bucket   string
	prefix   string
	client   *s3.Client
	uploader *manager.Uploader
}

type Options struct {
	Name      string
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	PathStyle bool
}

func New(ctx context.Context, opt Options) (*Storage, error) {
	if opt.Bucket == "" {
		return nil, fmt.Errorf("s3: bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if opt.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opt.Region))
	}
	// without static keys the default chain (env, shared config, IMDS) applies
	if opt.AccessKey != "" || opt.SecretKey != "" {
		if opt.AccessKey == "" || opt.SecretKey == "" {
			return nil, fmt.Errorf("s3: access_key and secret_key must be set together")
		}
		creds := credentials.NewStaticCredentialsProvider(opt.AccessKey, opt.SecretKey, "")
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(creds))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3: region is required (s3.region or AWS_REGION)")
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opt.Endpoint != "" {
			o.BaseEndpoint = aws.String(opt.Endpoint)
		}
		o.UsePathStyle = opt.PathStyle
	})

	return &Storage{
		name:     opt.Name,
		bucket:   opt.Bucket,
		prefix:   strings.Trim(opt.Prefix, "/"),
		client:   client,
		uploader: manager.NewUploader(client),
	}, nil
}

func (s *Storage) Name() string {
	return s.name
}

func (s *Storage) Prepare(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return fmt.Errorf("s3 bucket %s: %w", s.bucket, describe(err))
	}
	return nil
}

func (s *Storage) fullKey(key string) string {
	if s.prefix == "" {
		return key
	}
	// S3 keys always use forward slashes
	return path.Join(s.prefix, key)
}

func (s *Storage) relativeKey(full string) string {
	if s.prefix == "" {
		return full
	}
	return strings.TrimPrefix(full, s.prefix+"/")
}

func (s *Storage) OpenWriter(ctx context.Context, key string) (io.WriteCloser, string, error) {
	// turns the streaming pipeline into an upload body
	pr, pw := io.Pipe()

	fullKey := s.fullKey(key)
	loc := fmt.Sprintf("s3://%s/%s", s.bucket, fullKey)

	w := &uploadWriter{
		pw:   pw,
		done: make(chan error, 1),
	}

	// the uploader reads from pr while the sink writes to pw
	go func() {
		_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(fullKey),
			Body:   pr,
		})

		// unblocks pending writes when the upload fails
		_ = pr.CloseWithError(err)

		if err != nil {
			w.done <- fmt.Errorf("s3 upload %s failed: %w", loc, describe(err))
			return
		}
		w.done <- nil
	}()

	return w, loc, nil
}

type uploadWriter struct {
	pw     *io.PipeWriter
	done   chan error
	closed bool
}

func (w *uploadWriter) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

// Close signals EOF to the upload and waits for it to finish.
func (w *uploadWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	_ = w.pw.Close()
	return <-w.done
}

// List returns the objects directly under the prefix.
func (s *Storage) List(ctx context.Context) ([]prunable.ObjectInfo, error) {
	in := &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Delimiter: aws.String("/"),
	}
	if s.prefix != "" {
		in.Prefix = aws.String(s.prefix + "/")
	}

	var out []prunable.ObjectInfo
	p := s3.NewListObjectsV2Paginator(s.client, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list: %w", describe(err))
		}
		for _, obj := range page.Contents {
			out = append(out, prunable.ObjectInfo{
				Key:     s.relativeKey(aws.ToString(obj.Key)),
				Size:    aws.ToInt64(obj.Size),
				ModTime: aws.ToTime(obj.LastModified),
			})
		}
	}
	return out, nil
}

func (s *Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, describe(err))
	}
	return nil
}

func describe(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %s: %w", apiErr.ErrorCode(), apiErr.ErrorMessage(), err)
	}
	return err
}
