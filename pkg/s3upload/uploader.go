// Package s3upload ships finished chunk files to S3 as the writer seals them.
package s3upload

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/locvowork/sheetstream/pkg/excelstream"
	"github.com/locvowork/sheetstream/pkg/pipeline"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// PutObjectAPI is the part of *s3.Client the uploader needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader puts chunk files under bucket/prefix.
type Uploader struct {
	client PutObjectAPI
	bucket string
	prefix string
	retry  pipeline.RetryPolicy
	logger zerolog.Logger

	mu   sync.Mutex
	keys []string
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithRetry overrides the retry policy of each upload.
func WithRetry(p pipeline.RetryPolicy) Option {
	return func(u *Uploader) { u.retry = p }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(u *Uploader) { u.logger = l }
}

// New returns an Uploader over client.
func New(client PutObjectAPI, bucket, prefix string, opts ...Option) *Uploader {
	u := &Uploader{
		client: client,
		bucket: bucket,
		prefix: prefix,
		retry:  pipeline.DefaultRetryPolicy(),
		logger: zerolog.Nop(),
	}
	for _, o := range opts {
		o(u)
	}
	return u
}

// NewFromDefaultConfig builds the S3 client from the default AWS credential chain.
func NewFromDefaultConfig(ctx context.Context, region, bucket, prefix string, opts ...Option) (*Uploader, error) {
	var loadOpts []func(*config.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return New(s3.NewFromConfig(cfg), bucket, prefix, opts...), nil
}

// Key returns the object key a local file is stored under.
func (u *Uploader) Key(local string) string {
	return path.Join(u.prefix, filepath.Base(local))
}

// Upload puts one file, retrying transient failures.
func (u *Uploader) Upload(ctx context.Context, local string) error {
	key := u.Key(local)
	err := pipeline.Retry(ctx, u.retry, func(ctx context.Context) error {
		f, err := os.Open(local)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(u.bucket),
			Key:         aws.String(key),
			Body:        f,
			ContentType: aws.String(contentType(local)),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("uploading %s to s3://%s/%s: %w", local, u.bucket, key, err)
	}

	u.mu.Lock()
	u.keys = append(u.keys, key)
	u.mu.Unlock()
	u.logger.Info().Str("bucket", u.bucket).Str("key", key).Msg("chunk uploaded")
	return nil
}

// ChunkCallback adapts Upload for excelstream.WithChunkCallback.
func (u *Uploader) ChunkCallback() excelstream.ChunkCallback {
	return u.Upload
}

// Keys returns the uploaded keys in sorted order.
func (u *Uploader) Keys() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := append([]string(nil), u.keys...)
	sort.Strings(out)
	return out
}

func contentType(local string) string {
	switch filepath.Ext(local) {
	case ".xls":
		return "application/vnd.ms-excel"
	case ".zip":
		return "application/zip"
	default:
		return xlsxContentType
	}
}
