package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Client is the subset of the S3 API used by S3Backend.
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config locates the database object.
type S3Config struct {
	Bucket         string
	Key            string
	Region         string
	Endpoint       string // Optional: for S3-compatible services
	AccessKeyID    string
	SecretKey      string
	ForcePathStyle bool // For S3-compatible services like MinIO
}

// S3ConfigFrom maps a generic Config onto S3Config.
// Options: bucket, region, endpoint, force_path_style.
// Credentials: access_key_id, secret_access_key.
func S3ConfigFrom(cfg Config) S3Config {
	forcePathStyle, _ := strconv.ParseBool(cfg.Option("force_path_style", "false"))
	return S3Config{
		Bucket:         cfg.Option("bucket", ""),
		Key:            strings.TrimPrefix(cfg.Path, "/"),
		Region:         cfg.Option("region", "us-east-1"),
		Endpoint:       cfg.Option("endpoint", ""),
		AccessKeyID:    cfg.Credential("access_key_id"),
		SecretKey:      cfg.Credential("secret_access_key"),
		ForcePathStyle: forcePathStyle,
	}
}

// S3Credentials are static credentials read from the environment. When
// both are empty the default AWS credential chain applies.
type S3Credentials struct {
	AccessKeyID     string `env:"SQLBRIDGE_S3_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"SQLBRIDGE_S3_SECRET_ACCESS_KEY"`
}

// Map returns the credentials keyed the way S3ConfigFrom reads them.
func (c S3Credentials) Map() map[string]string {
	if c.AccessKeyID == "" && c.SecretAccessKey == "" {
		return nil
	}
	return map[string]string{
		"access_key_id":     c.AccessKeyID,
		"secret_access_key": c.SecretAccessKey,
	}
}

// S3Backend materializes an S3 object into a local cache file on first use
// and uploads it back on Sync.
type S3Backend struct {
	client S3Client
	bucket string
	key    string
	logger *slog.Logger

	// mu serializes transfers. pathMu guards cacheDir and cachePath for
	// readers that must not wait on the network; writers hold both.
	mu         sync.Mutex
	pathMu     sync.Mutex
	cacheDir   string
	cachePath  string
	downloaded bool
}

// S3Option configures NewS3Backend.
type S3Option func(*s3Options)

type s3Options struct {
	client        S3Client
	configOptions []func(*config.LoadOptions) error
}

// WithS3Client sets a pre-configured client. Useful for testing with mocks.
func WithS3Client(client S3Client) S3Option {
	return func(o *s3Options) {
		o.client = client
	}
}

// WithS3ConfigOption adds a custom AWS config option.
func WithS3ConfigOption(option func(*config.LoadOptions) error) S3Option {
	return func(o *s3Options) {
		o.configOptions = append(o.configOptions, option)
	}
}

// NewS3Factory returns the Factory registered under "s3".
func NewS3Factory(opts ...S3Option) Factory {
	return func(ctx context.Context, cfg Config, log *slog.Logger) (Backend, error) {
		return NewS3Backend(ctx, S3ConfigFrom(cfg), log, opts...)
	}
}

// NewS3Backend creates the backend. No request is made until DatabasePath.
func NewS3Backend(ctx context.Context, cfg S3Config, log *slog.Logger, opts ...S3Option) (*S3Backend, error) {
	if cfg.Bucket == "" || cfg.Key == "" {
		return nil, fmt.Errorf("%w: s3 backend requires bucket and key", ErrInvalidConfig)
	}
	if strings.Contains(cfg.Key, "..") {
		return nil, fmt.Errorf("%w: invalid key %q", ErrInvalidConfig, cfg.Key)
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	options := &s3Options{}
	for _, opt := range opts {
		opt(options)
	}

	client := options.client
	if client == nil {
		awsOptions := []func(*config.LoadOptions) error{
			config.WithRegion(cfg.Region),
		}
		if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
			awsOptions = append(awsOptions,
				config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
					cfg.AccessKeyID,
					cfg.SecretKey,
					"",
				)),
			)
		}
		awsOptions = append(awsOptions, options.configOptions...)

		awsConfig, err := config.LoadDefaultConfig(ctx, awsOptions...)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFailedToLoadConfig, err)
		}
		client = s3.NewFromConfig(awsConfig, func(o *s3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
			o.UsePathStyle = cfg.ForcePathStyle
		})
	}

	return &S3Backend{
		client: client,
		bucket: cfg.Bucket,
		key:    cfg.Key,
		logger: log,
	}, nil
}

// Initialize allocates the local cache directory.
func (b *S3Backend) Initialize(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.initLocked(ctx)
}

func (b *S3Backend) initLocked(ctx context.Context) error {
	if b.cacheDir != "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	dir, err := os.MkdirTemp("", tempDirPrefix+"s3_")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToCreateDirectory, err)
	}
	b.pathMu.Lock()
	b.cacheDir = dir
	b.cachePath = filepath.Join(dir, cacheFileName(b.key))
	b.pathMu.Unlock()
	return nil
}

// DatabasePath downloads the object on first call. A missing object yields
// an empty local database.
func (b *S3Backend) DatabasePath(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.initLocked(ctx); err != nil {
		return "", err
	}
	if b.downloaded {
		return b.cachePath, nil
	}

	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key),
	})
	if err != nil {
		classified := classifyS3Error(err, "download database")
		if !errors.Is(classified, ErrObjectNotFound) {
			return "", classified
		}
		b.logger.InfoContext(ctx, "no remote database yet, starting empty",
			slog.String("bucket", b.bucket), slog.String("key", b.key))
		b.downloaded = true
		return b.cachePath, nil
	}
	defer func() { _ = out.Body.Close() }()

	f, err := os.OpenFile(b.cachePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFailedToDownload, err)
	}
	n, copyErr := io.Copy(f, out.Body)
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(b.cachePath)
		return "", fmt.Errorf("%w: %v", ErrFailedToDownload, err)
	}

	b.downloaded = true
	b.logger.InfoContext(ctx, "downloaded remote database",
		slog.String("bucket", b.bucket), slog.String("key", b.key), slog.Int64("bytes", n))
	return b.cachePath, nil
}

// Sync uploads the local cache file. Nothing is uploaded before the
// database has been materialized.
func (b *S3Backend) Sync(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.downloaded {
		return nil
	}

	f, err := os.Open(b.cachePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrFailedToUpload, err)
	}
	defer func() { _ = f.Close() }()

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(b.key),
		Body:        f,
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return classifyS3Error(err, "upload database")
	}
	return nil
}

// Exists checks whether the object exists.
func (b *S3Backend) Exists(ctx context.Context) (bool, error) {
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key),
	})
	if err == nil {
		return true, nil
	}
	classified := classifyS3Error(err, "check database")
	if errors.Is(classified, ErrObjectNotFound) {
		return false, nil
	}
	return false, classified
}

// Delete removes the object.
func (b *S3Backend) Delete(ctx context.Context) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key),
	})
	if err != nil {
		return classifyS3Error(err, "delete database")
	}
	return nil
}

// Cleanup removes the local cache directory.
func (b *S3Backend) Cleanup(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cacheDir == "" {
		return nil
	}
	dir := b.cacheDir
	b.pathMu.Lock()
	b.cacheDir, b.cachePath = "", ""
	b.pathMu.Unlock()
	b.downloaded = false
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToDeleteDirectory, err)
	}
	return nil
}

// Info reports the object location and local cache state. It does not wait
// for an in-flight download or upload.
func (b *S3Backend) Info() Info {
	b.pathMu.Lock()
	info := Info{Type: TypeS3, Bucket: b.bucket, Key: b.key, TempDir: b.cacheDir, Path: b.cachePath}
	b.pathMu.Unlock()
	statInto(&info, info.Path)
	return info
}

func cacheFileName(key string) string {
	name := filepath.Base(key)
	if filepath.Ext(name) != DatabaseExt {
		name += DatabaseExt
	}
	return name
}

// classifyS3Error converts S3 errors to storage sentinels.
func classifyS3Error(err error, operation string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s operation", ErrOperationTimeout, operation)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s operation", ErrOperationCanceled, operation)
	}

	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return fmt.Errorf("%w: %v", ErrObjectNotFound, err)
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return fmt.Errorf("%w: %v", ErrObjectNotFound, err)
	}
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return ErrBucketNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		switch code {
		case "NoSuchKey", "NotFound":
			return fmt.Errorf("%w: %v", ErrObjectNotFound, err)
		case "NoSuchBucket":
			return ErrBucketNotFound
		case "AccessDenied":
			return fmt.Errorf("%w: %s operation", ErrAccessDenied, operation)
		case "RequestTimeout":
			return fmt.Errorf("%w: %s operation", ErrRequestTimeout, operation)
		case "SlowDown", "ServiceUnavailable":
			return fmt.Errorf("%w: %s operation", ErrServiceUnavailable, operation)
		default:
			return fmt.Errorf("%s operation failed (code: %s): %w", operation, code, err)
		}
	}

	return fmt.Errorf("%s operation failed: %w", operation, err)
}
