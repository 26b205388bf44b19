package s3upload_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locvowork/sheetstream/pkg/excelstream"
	"github.com/locvowork/sheetstream/pkg/pipeline"
	"github.com/locvowork/sheetstream/pkg/s3upload"
)

type mockS3Client struct {
	mu           sync.Mutex
	putObjectFn  func(ctx context.Context, params *s3.PutObjectInput) error
	bodies       map[string]string
	contentTypes map[string]string
	calls        int
}

func (m *mockS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.putObjectFn != nil {
		if err := m.putObjectFn(ctx, params); err != nil {
			return nil, err
		}
	}
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	if m.bodies == nil {
		m.bodies = map[string]string{}
		m.contentTypes = map[string]string{}
	}
	m.bodies[aws.ToString(params.Key)] = string(body)
	m.contentTypes[aws.ToString(params.Key)] = aws.ToString(params.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func fastRetry() s3upload.Option {
	return s3upload.WithRetry(pipeline.RetryPolicy{MaxRetries: 2, Backoff: time.Millisecond})
}

func TestUploadPutsFileUnderPrefix(t *testing.T) {
	local := filepath.Join(t.TempDir(), "chunk-1.xlsx")
	require.NoError(t, os.WriteFile(local, []byte("data"), 0o600))

	client := &mockS3Client{}
	u := s3upload.New(client, "reports", "exports/2024")
	require.NoError(t, u.Upload(context.Background(), local))

	assert.Equal(t, "data", client.bodies["exports/2024/chunk-1.xlsx"])
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		client.contentTypes["exports/2024/chunk-1.xlsx"])
	assert.Equal(t, []string{"exports/2024/chunk-1.xlsx"}, u.Keys())
}

func TestUploadRetriesTransientFailures(t *testing.T) {
	local := filepath.Join(t.TempDir(), "c.xlsx")
	require.NoError(t, os.WriteFile(local, []byte("x"), 0o600))

	failures := 2
	client := &mockS3Client{putObjectFn: func(context.Context, *s3.PutObjectInput) error {
		if failures > 0 {
			failures--
			return errors.New("slow down")
		}
		return nil
	}}
	u := s3upload.New(client, "b", "", fastRetry())
	require.NoError(t, u.Upload(context.Background(), local))
	assert.Equal(t, 3, client.calls)
	assert.Equal(t, "x", client.bodies["c.xlsx"])
}

func TestUploadGivesUp(t *testing.T) {
	local := filepath.Join(t.TempDir(), "c.xlsx")
	require.NoError(t, os.WriteFile(local, []byte("x"), 0o600))

	denied := errors.New("access denied")
	client := &mockS3Client{putObjectFn: func(context.Context, *s3.PutObjectInput) error { return denied }}
	u := s3upload.New(client, "b", "p", fastRetry())

	err := u.Upload(context.Background(), local)
	assert.ErrorIs(t, err, denied)
	assert.Equal(t, 3, client.calls)
	assert.Empty(t, u.Keys())
}

func TestChunkCallbackUploadsEveryChunk(t *testing.T) {
	client := &mockS3Client{}
	u := s3upload.New(client, "b", "job")

	w := excelstream.NewWriter(
		excelstream.WithTempDir(t.TempDir()),
		excelstream.WithCapacity(2),
		excelstream.WithChunkCallback(u.ChunkCallback()),
	)
	require.NoError(t, w.Start(context.Background()))
	for i := 0; i < 5; i++ {
		require.NoError(t, w.Append(excelstream.NewRow(i)))
	}
	paths, err := w.BuildAsPaths()
	require.NoError(t, err)
	defer w.Cancel()

	require.Len(t, paths, 3)
	keys := u.Keys()
	require.Len(t, keys, 3)
	for _, p := range paths {
		assert.Contains(t, keys, u.Key(p))
	}
}

func TestChunkCallbackFailureFailsBuild(t *testing.T) {
	client := &mockS3Client{putObjectFn: func(context.Context, *s3.PutObjectInput) error {
		return errors.New("no bucket")
	}}
	u := s3upload.New(client, "missing", "", s3upload.WithRetry(pipeline.RetryPolicy{}))

	w := excelstream.NewWriter(
		excelstream.WithTempDir(t.TempDir()),
		excelstream.WithCapacity(1),
		excelstream.WithChunkCallback(u.ChunkCallback()),
	)
	require.NoError(t, w.Start(context.Background()))
	_ = w.Append(excelstream.NewRow("a"))
	_ = w.Append(excelstream.NewRow("b"))

	_, err := w.BuildAsPaths()
	assert.ErrorIs(t, err, excelstream.ErrBuildFault)
	w.Cancel()
}
