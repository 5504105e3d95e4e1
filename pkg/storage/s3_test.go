package storage_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sqlbridge/pkg/storage"
)

// MockS3Client is a mock implementation of the S3Client interface
type MockS3Client struct {
	mock.Mock
}

func (m *MockS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, params, optFns)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.GetObjectOutput), args.Error(1)
}

func (m *MockS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params, optFns)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.PutObjectOutput), args.Error(1)
}

func (m *MockS3Client) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	args := m.Called(ctx, params, optFns)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.HeadObjectOutput), args.Error(1)
}

func (m *MockS3Client) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, params, optFns)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.DeleteObjectOutput), args.Error(1)
}

func objectMatcher(bucket, key string) any {
	return mock.MatchedBy(func(in any) bool {
		switch v := in.(type) {
		case *s3.GetObjectInput:
			return aws.ToString(v.Bucket) == bucket && aws.ToString(v.Key) == key
		case *s3.PutObjectInput:
			return aws.ToString(v.Bucket) == bucket && aws.ToString(v.Key) == key
		case *s3.HeadObjectInput:
			return aws.ToString(v.Bucket) == bucket && aws.ToString(v.Key) == key
		case *s3.DeleteObjectInput:
			return aws.ToString(v.Bucket) == bucket && aws.ToString(v.Key) == key
		}
		return false
	})
}

func newS3Backend(t *testing.T, client *MockS3Client) *storage.S3Backend {
	t.Helper()
	b, err := storage.NewS3Backend(context.Background(), storage.S3Config{
		Bucket: "warehouse",
		Key:    "sessions/analytics.db",
		Region: "us-east-1",
	}, nil, storage.WithS3Client(client))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Cleanup(context.Background()) })
	return b
}

func TestNewS3Backend(t *testing.T) {
	t.Parallel()

	t.Run("valid config", func(t *testing.T) {
		t.Parallel()
		b, err := storage.NewS3Backend(context.Background(), storage.S3Config{
			Bucket:      "warehouse",
			Key:         "db/analytics.db",
			Region:      "us-east-1",
			AccessKeyID: "test-key",
			SecretKey:   "test-secret",
		}, nil)
		require.NoError(t, err)
		require.NotNil(t, b)
	})

	t.Run("with custom endpoint", func(t *testing.T) {
		t.Parallel()
		b, err := storage.NewS3Backend(context.Background(), storage.S3Config{
			Bucket:         "warehouse",
			Key:            "db/analytics.db",
			Region:         "us-east-1",
			Endpoint:       "http://localhost:9000",
			ForcePathStyle: true,
		}, nil)
		require.NoError(t, err)
		require.NotNil(t, b)
	})

	t.Run("missing bucket", func(t *testing.T) {
		t.Parallel()
		_, err := storage.NewS3Backend(context.Background(), storage.S3Config{Key: "db"}, nil)
		require.ErrorIs(t, err, storage.ErrInvalidConfig)
	})

	t.Run("path traversal in key", func(t *testing.T) {
		t.Parallel()
		_, err := storage.NewS3Backend(context.Background(), storage.S3Config{Bucket: "b", Key: "../etc/db"}, nil)
		require.ErrorIs(t, err, storage.ErrInvalidConfig)
	})
}

func TestS3ConfigFrom(t *testing.T) {
	t.Parallel()
	cfg := storage.S3ConfigFrom(storage.Config{
		Type: "s3",
		Path: "/sessions/a.db",
		Options: map[string]string{
			"bucket":           "warehouse",
			"endpoint":         "http://minio:9000",
			"force_path_style": "true",
		},
		Credentials: map[string]string{
			"access_key_id":     "AK",
			"secret_access_key": "SK",
		},
	})
	assert.Equal(t, "warehouse", cfg.Bucket)
	assert.Equal(t, "sessions/a.db", cfg.Key)
	assert.Equal(t, "us-east-1", cfg.Region)
	assert.Equal(t, "http://minio:9000", cfg.Endpoint)
	assert.True(t, cfg.ForcePathStyle)
	assert.Equal(t, "AK", cfg.AccessKeyID)
	assert.Equal(t, "SK", cfg.SecretKey)
}

func TestS3Backend_DatabasePath(t *testing.T) {
	t.Parallel()

	t.Run("downloads existing object once", func(t *testing.T) {
		t.Parallel()
		client := new(MockS3Client)
		client.On("GetObject", mock.Anything, objectMatcher("warehouse", "sessions/analytics.db"), mock.Anything).
			Return(&s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("remote-bytes"))}, nil).Once()
		b := newS3Backend(t, client)

		path, err := b.DatabasePath(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "analytics.db", filepath.Base(path))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "remote-bytes", string(data))

		again, err := b.DatabasePath(context.Background())
		require.NoError(t, err)
		assert.Equal(t, path, again)
		client.AssertExpectations(t)
	})

	t.Run("missing object starts empty", func(t *testing.T) {
		t.Parallel()
		client := new(MockS3Client)
		client.On("GetObject", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, &types.NoSuchKey{}).Once()
		b := newS3Backend(t, client)

		path, err := b.DatabasePath(context.Background())
		require.NoError(t, err)
		assert.NoFileExists(t, path)
		client.AssertExpectations(t)
	})

	t.Run("access denied", func(t *testing.T) {
		t.Parallel()
		client := new(MockS3Client)
		client.On("GetObject", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, &smithy.GenericAPIError{Code: "AccessDenied"}).Once()
		b := newS3Backend(t, client)

		_, err := b.DatabasePath(context.Background())
		require.ErrorIs(t, err, storage.ErrAccessDenied)
	})
}

func TestS3Backend_Sync(t *testing.T) {
	t.Parallel()

	t.Run("uploads local file", func(t *testing.T) {
		t.Parallel()
		client := new(MockS3Client)
		client.On("GetObject", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, &types.NoSuchKey{}).Once()
		var uploaded []byte
		client.On("PutObject", mock.Anything, objectMatcher("warehouse", "sessions/analytics.db"), mock.Anything).
			Run(func(args mock.Arguments) {
				in := args.Get(1).(*s3.PutObjectInput)
				uploaded, _ = io.ReadAll(in.Body)
			}).
			Return(&s3.PutObjectOutput{}, nil).Once()
		b := newS3Backend(t, client)

		path, err := b.DatabasePath(context.Background())
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, []byte("local-changes"), 0o644))

		require.NoError(t, b.Sync(context.Background()))
		assert.Equal(t, "local-changes", string(uploaded))
		client.AssertExpectations(t)
	})

	t.Run("nothing to upload before first use", func(t *testing.T) {
		t.Parallel()
		client := new(MockS3Client)
		b := newS3Backend(t, client)

		require.NoError(t, b.Sync(context.Background()))
		client.AssertNotCalled(t, "PutObject", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("upload failure", func(t *testing.T) {
		t.Parallel()
		client := new(MockS3Client)
		client.On("GetObject", mock.Anything, mock.Anything, mock.Anything).
			Return(&s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("x"))}, nil).Once()
		client.On("PutObject", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, &smithy.GenericAPIError{Code: "SlowDown"}).Once()
		b := newS3Backend(t, client)

		_, err := b.DatabasePath(context.Background())
		require.NoError(t, err)
		require.ErrorIs(t, b.Sync(context.Background()), storage.ErrServiceUnavailable)
	})
}

func TestS3Backend_InfoDuringUpload(t *testing.T) {
	t.Parallel()
	client := new(MockS3Client)
	client.On("GetObject", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &types.NoSuchKey{}).Once()
	started := make(chan struct{})
	release := make(chan struct{})
	client.On("PutObject", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(&s3.PutObjectOutput{}, nil).Once()
	b := newS3Backend(t, client)
	ctx := context.Background()

	path, err := b.DatabasePath(ctx)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	syncErr := make(chan error, 1)
	go func() { syncErr <- b.Sync(ctx) }()
	<-started

	infoDone := make(chan storage.Info, 1)
	go func() { infoDone <- b.Info() }()
	select {
	case info := <-infoDone:
		assert.Equal(t, path, info.Path)
	case <-time.After(2 * time.Second):
		t.Fatal("Info blocked behind upload")
	}

	close(release)
	require.NoError(t, <-syncErr)
}

func TestS3Backend_ExistsAndDelete(t *testing.T) {
	t.Parallel()
	client := new(MockS3Client)
	client.On("HeadObject", mock.Anything, mock.Anything, mock.Anything).
		Return(&s3.HeadObjectOutput{}, nil).Once()
	client.On("HeadObject", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &types.NotFound{}).Once()
	client.On("DeleteObject", mock.Anything, objectMatcher("warehouse", "sessions/analytics.db"), mock.Anything).
		Return(&s3.DeleteObjectOutput{}, nil).Once()
	b := newS3Backend(t, client)
	ctx := context.Background()

	exists, err := b.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, b.Delete(ctx))

	exists, err = b.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)
	client.AssertExpectations(t)
}

func TestS3Backend_CleanupAndInfo(t *testing.T) {
	t.Parallel()
	client := new(MockS3Client)
	client.On("GetObject", mock.Anything, mock.Anything, mock.Anything).
		Return(&s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("abc"))}, nil).Once()
	b := newS3Backend(t, client)
	ctx := context.Background()

	path, err := b.DatabasePath(ctx)
	require.NoError(t, err)

	info := b.Info()
	assert.Equal(t, storage.TypeS3, info.Type)
	assert.Equal(t, "warehouse", info.Bucket)
	assert.Equal(t, "sessions/analytics.db", info.Key)
	assert.Equal(t, path, info.Path)
	assert.True(t, info.Exists)
	assert.Equal(t, int64(3), info.SizeBytes)

	require.NoError(t, b.Cleanup(ctx))
	assert.NoDirExists(t, filepath.Dir(path))
	assert.Empty(t, b.Info().TempDir)
}

func TestS3Backend_ContextCanceled(t *testing.T) {
	t.Parallel()
	client := new(MockS3Client)
	client.On("HeadObject", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, context.Canceled).Once()
	b := newS3Backend(t, client)

	_, err := b.Exists(context.Background())
	require.ErrorIs(t, err, storage.ErrOperationCanceled)
	assert.False(t, errors.Is(err, storage.ErrObjectNotFound))
}

func TestS3Credentials_Map(t *testing.T) {
	t.Parallel()

	assert.Nil(t, storage.S3Credentials{}.Map())

	creds := storage.S3Credentials{AccessKeyID: "AKID", SecretAccessKey: "secret"}
	cfg := storage.S3ConfigFrom(storage.Config{Type: storage.TypeS3, Path: "db.db", Credentials: creds.Map()})
	assert.Equal(t, "AKID", cfg.AccessKeyID)
	assert.Equal(t, "secret", cfg.SecretKey)
}
