package session_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dmitrymomot/sqlbridge/pkg/executor"
	"github.com/dmitrymomot/sqlbridge/pkg/logger"
	"github.com/dmitrymomot/sqlbridge/pkg/session"
	"github.com/dmitrymomot/sqlbridge/pkg/storage"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeExecutor records connections and concurrent use.
type fakeExecutor struct {
	delay     time.Duration
	onExecute func(sql string)

	connects    atomic.Int32
	disconnects atomic.Int32
	executes    atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	path        atomic.Value
}

func (f *fakeExecutor) Connect(_ context.Context, path string) error {
	f.connects.Add(1)
	f.path.Store(path)
	return nil
}

func (f *fakeExecutor) Disconnect() error {
	f.disconnects.Add(1)
	return nil
}

func (f *fakeExecutor) Execute(_ context.Context, sql string) executor.Result {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	f.executes.Add(1)

	if f.onExecute != nil {
		f.onExecute(sql)
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	switch {
	case sql == "PANIC":
		panic("executor exploded")
	case strings.HasPrefix(sql, "BAD"):
		return executor.Failure(errors.New("syntax error near BAD"))
	}
	return executor.Result{Success: true, Data: []map[string]any{}, TranslatedSQL: sql}
}

// fakeFactory hands out fakeExecutors and remembers them.
type fakeFactory struct {
	delay     time.Duration
	onExecute func(sql string)

	mu      sync.Mutex
	created []*fakeExecutor
}

func (ff *fakeFactory) Factory() executor.Factory {
	return func(*slog.Logger) executor.Executor {
		ex := &fakeExecutor{delay: ff.delay, onExecute: ff.onExecute}
		ff.mu.Lock()
		ff.created = append(ff.created, ex)
		ff.mu.Unlock()
		return ex
	}
}

func (ff *fakeFactory) Count() int {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	return len(ff.created)
}

func (ff *fakeFactory) Last() *fakeExecutor {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	if len(ff.created) == 0 {
		return nil
	}
	return ff.created[len(ff.created)-1]
}

// countingBackend wraps a real backend and counts lifecycle calls.
type countingBackend struct {
	storage.Backend

	initErr error
	syncErr error

	inits    atomic.Int32
	syncs    atomic.Int32
	cleanups atomic.Int32
}

func (b *countingBackend) Initialize(ctx context.Context) error {
	b.inits.Add(1)
	if b.initErr != nil {
		return b.initErr
	}
	return b.Backend.Initialize(ctx)
}

func (b *countingBackend) Sync(ctx context.Context) error {
	b.syncs.Add(1)
	if b.syncErr != nil {
		return b.syncErr
	}
	return b.Backend.Sync(ctx)
}

func (b *countingBackend) Cleanup(ctx context.Context) error {
	b.cleanups.Add(1)
	return b.Backend.Cleanup(ctx)
}

// countingRegistry registers "counting" backends wrapping local files and
// keeps the last one built.
type countingRegistry struct {
	*storage.Registry

	initErr error
	syncErr error

	mu   sync.Mutex
	last *countingBackend
}

func newCountingRegistry() *countingRegistry {
	cr := &countingRegistry{Registry: storage.DefaultRegistry()}
	cr.Register("counting", func(_ context.Context, cfg storage.Config, log *slog.Logger) (storage.Backend, error) {
		inner, err := storage.NewLocalFileBackend(cfg.Path, log)
		if err != nil {
			return nil, err
		}
		cr.mu.Lock()
		defer cr.mu.Unlock()
		cr.last = &countingBackend{Backend: inner, initErr: cr.initErr, syncErr: cr.syncErr}
		return cr.last, nil
	})
	return cr
}

func (cr *countingRegistry) Last() *countingBackend {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	return cr.last
}

// stallingS3Client starts every bucket empty and holds uploads until
// Release is called.
type stallingS3Client struct {
	uploading chan struct{}
	release   chan struct{}
	once      sync.Once
	startOnce sync.Once
}

func newStallingS3Client() *stallingS3Client {
	return &stallingS3Client{uploading: make(chan struct{}), release: make(chan struct{})}
}

func (c *stallingS3Client) Release() { c.once.Do(func() { close(c.release) }) }

func (c *stallingS3Client) GetObject(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return nil, &types.NoSuchKey{}
}

func (c *stallingS3Client) PutObject(ctx context.Context, _ *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	c.startOnce.Do(func() { close(c.uploading) })
	select {
	case <-c.release:
		return &s3.PutObjectOutput{}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *stallingS3Client) HeadObject(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	return &s3.HeadObjectOutput{}, nil
}

func (c *stallingS3Client) DeleteObject(context.Context, *s3.DeleteObjectInput, ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	return &s3.DeleteObjectOutput{}, nil
}

func newTestManager(t *testing.T, opts ...session.Option) *session.Manager {
	t.Helper()
	base := []session.Option{session.WithLogger(logger.Discard())}
	m := session.New(append(base, opts...)...)
	t.Cleanup(func() { m.Shutdown(context.Background()) })
	return m
}
