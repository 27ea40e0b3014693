package objectstore

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	input *s3manager.UploadInput
	body  []byte
	err   error
}

func (f *fakeUploader) UploadWithContext(_ aws.Context, input *s3manager.UploadInput, _ ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	f.input = input
	data, readErr := io.ReadAll(input.Body)
	if readErr != nil {
		return nil, readErr
	}
	f.body = data
	if f.err != nil {
		return nil, f.err
	}
	return &s3manager.UploadOutput{Location: "s3://" + *input.Bucket + "/" + *input.Key}, nil
}

func newTestClient(t *testing.T) *s3.S3 {
	t.Helper()
	sess, err := session.NewSession(aws.NewConfig().
		WithRegion("eu-west-1").
		WithCredentials(credentials.NewStaticCredentials("AKID", "SECRET", "")).
		WithEndpoint("http://localhost:9000").
		WithS3ForcePathStyle(true))
	require.NoError(t, err)
	return s3.New(sess)
}

func TestS3Store_UploadUsesPrefix(t *testing.T) {
	store := NewS3StoreWithClient(newTestClient(t), Config{Bucket: "exports", Prefix: "/metrics/"})
	fake := &fakeUploader{}
	store.uploader = fake

	require.NoError(t, store.Upload(context.Background(), "org-1/job.csv.gz", strings.NewReader("payload")))
	require.Equal(t, "exports", *fake.input.Bucket)
	require.Equal(t, "metrics/org-1/job.csv.gz", *fake.input.Key)
	require.Equal(t, []byte("payload"), fake.body)
}

func TestS3Store_UploadBodyErrorFails(t *testing.T) {
	store := NewS3StoreWithClient(newTestClient(t), Config{Bucket: "exports"})
	store.uploader = &fakeUploader{}

	pr, pw := io.Pipe()
	go func() {
		_, _ = pw.Write([]byte("partial"))
		pw.CloseWithError(errors.New("producer failed"))
	}()

	err := store.Upload(context.Background(), "job.csv.gz", pr)
	require.ErrorContains(t, err, "producer failed")
}

func TestS3Store_SignedURL(t *testing.T) {
	store := NewS3StoreWithClient(newTestClient(t), Config{Bucket: "exports", Prefix: "metrics"})

	link, err := store.SignedURL(context.Background(), "job.csv.gz", 15*time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(link)
	require.NoError(t, err)
	require.Equal(t, "/exports/metrics/job.csv.gz", u.Path)
	require.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
	require.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}

func TestS3Store_SignedURLRejectsZeroTTL(t *testing.T) {
	store := NewS3StoreWithClient(newTestClient(t), Config{Bucket: "exports"})
	_, err := store.SignedURL(context.Background(), "job.csv.gz", 0)
	require.Error(t, err)
}

func TestNewS3Store_RequiresBucket(t *testing.T) {
	_, err := NewS3Store(Config{Region: "eu-west-1"})
	require.Error(t, err)
}
