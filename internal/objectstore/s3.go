package objectstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

const (
	DefaultPartSizeMB  = 5
	DefaultConcurrency = 2
	contentType        = "application/gzip"
)

// Config selects the bucket and multipart settings.
type Config struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string
	// PartSizeMB is the multipart chunk size; S3 requires at least 5.
	PartSizeMB  int
	Concurrency int
}

// uploadAPI is the subset of s3manager.Uploader used here.
type uploadAPI interface {
	UploadWithContext(ctx aws.Context, input *s3manager.UploadInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error)
}

// presignAPI is the subset of s3.S3 used to sign download links.
type presignAPI interface {
	GetObjectRequest(input *s3.GetObjectInput) (*request.Request, *s3.GetObjectOutput)
}

// S3Store streams objects to S3 with multipart uploads and hands out
// pre-signed GET links.
type S3Store struct {
	bucket   string
	prefix   string
	uploader uploadAPI
	signer   presignAPI
}

// NewS3Store creates a store from the default AWS credential chain.
func NewS3Store(cfg Config) (*S3Store, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	awsCfg := aws.NewConfig().WithRegion(cfg.Region)
	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint).WithS3ForcePathStyle(true)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws session: %w", err)
	}
	return NewS3StoreWithClient(s3.New(sess), cfg), nil
}

// NewS3StoreWithClient builds a store around an existing client.
func NewS3StoreWithClient(client *s3.S3, cfg Config) *S3Store {
	partSize := cfg.PartSizeMB
	if partSize < DefaultPartSizeMB {
		partSize = DefaultPartSizeMB
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	uploader := s3manager.NewUploaderWithClient(client, func(u *s3manager.Uploader) {
		u.PartSize = int64(partSize) * 1024 * 1024
		u.Concurrency = concurrency
		// Failed uploads must not leave orphaned parts behind.
		u.LeavePartsOnError = false
	})
	return &S3Store{
		bucket:   cfg.Bucket,
		prefix:   strings.Trim(cfg.Prefix, "/"),
		uploader: uploader,
		signer:   client,
	}
}

func (s *S3Store) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

// Upload streams body to key. The multipart upload is aborted when body
// returns an error.
func (s *S3Store) Upload(ctx context.Context, key string, body io.Reader) error {
	objectKey := s.objectKey(key)
	out, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		slog.Error("[ObjectStore] Upload failed", "bucket", s.bucket, "key", objectKey, "error", err)
		return fmt.Errorf("failed to upload s3 object: %w", err)
	}
	slog.Info("[ObjectStore] Upload complete", "location", out.Location, "upload_id", out.UploadID)
	return nil
}

// SignedURL returns a pre-signed GET link to key valid for ttl.
func (s *S3Store) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("link ttl must be > 0")
	}
	req, _ := s.signer.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	url, err := req.Presign(ttl)
	if err != nil {
		return "", fmt.Errorf("failed to presign s3 object: %w", err)
	}
	return url, nil
}
