package ml

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"load-forecast/pkg/errors"
)

type fakeBlobStore struct {
	mu    sync.Mutex
	data  []byte
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (f *fakeBlobStore) Download(ctx context.Context, path string) ([]byte, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

func (f *fakeBlobStore) set(data []byte, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data, f.err = data, err
}

func newTestCache(fs afero.Fs, blobs BlobStore) *Cache {
	return NewCache(CacheConfig{
		Fs:        fs,
		Blobs:     blobs,
		BlobPath:  "models/load_model.json",
		LocalPath: "cache/cached_model.json",
	})
}

func TestCache_DownloadsWhenMirrorAbsent(t *testing.T) {
	fs := afero.NewMemMapFs()
	blobs := &fakeBlobStore{data: sampleJSON(t)}
	cache := newTestCache(fs, blobs)

	m, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 11, m.InputSize())
	assert.Equal(t, "blob", m.Info().Source)
	assert.Equal(t, int32(1), blobs.calls.Load())

	exists, err := afero.Exists(fs, "cache/cached_model.json")
	require.NoError(t, err)
	assert.True(t, exists, "artifact should be mirrored locally")

	partial, _ := afero.Exists(fs, "cache/cached_model.json.partial")
	assert.False(t, partial)
}

func TestCache_UsesMirrorWithoutDownloading(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, CreateSampleModel(fs, "cache/cached_model.json"))
	blobs := &fakeBlobStore{err: fmt.Errorf("should not be called")}
	cache := newTestCache(fs, blobs)

	m, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "mirror", m.Info().Source)
	assert.Equal(t, int32(0), blobs.calls.Load())
}

func TestCache_MemoizesHandle(t *testing.T) {
	cache := newTestCache(afero.NewMemMapFs(), &fakeBlobStore{data: sampleJSON(t)})

	first, err := cache.Get(context.Background())
	require.NoError(t, err)
	second, err := cache.Get(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int64(1), cache.Loads())
}

func TestCache_ConcurrentFirstCallsLoadOnce(t *testing.T) {
	blobs := &fakeBlobStore{data: sampleJSON(t), delay: 20 * time.Millisecond}
	cache := newTestCache(afero.NewMemMapFs(), blobs)

	const callers = 32
	var wg sync.WaitGroup
	results := make([]*Model, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cache.Get(context.Background())
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}
	assert.Equal(t, int32(1), blobs.calls.Load())
	assert.Equal(t, int64(1), cache.Loads())
}

func TestCache_FetchFailureIsNotCached(t *testing.T) {
	fs := afero.NewMemMapFs()
	blobs := &fakeBlobStore{err: fmt.Errorf("storage: bucket doesn't exist")}
	cache := newTestCache(fs, blobs)

	_, err := cache.Get(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrModelFetch))

	_, loaded := cache.Loaded()
	assert.False(t, loaded, "failed load must not leave a usable handle")

	exists, _ := afero.Exists(fs, "cache/cached_model.json")
	assert.False(t, exists)

	// the next call retries and succeeds once the blob is reachable
	blobs.set(sampleJSON(t), nil)
	m, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, m)
	assert.Equal(t, int32(2), blobs.calls.Load())
}

func TestCache_InvalidDownloadedArtifactIsRemoved(t *testing.T) {
	fs := afero.NewMemMapFs()
	blobs := &fakeBlobStore{data: []byte(`{"input_size": 11}`)}
	cache := newTestCache(fs, blobs)

	_, err := cache.Get(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrModelFormat))

	exists, _ := afero.Exists(fs, "cache/cached_model.json")
	assert.False(t, exists, "broken artifact should not stay mirrored")

	_, loaded := cache.Loaded()
	assert.False(t, loaded)
}

func TestCache_NoBlobStoreAndNoMirror(t *testing.T) {
	cache := newTestCache(afero.NewMemMapFs(), nil)

	err := cache.Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.KindModelFetch, errors.KindOf(err))
}

func TestCache_ReadOnlyFsFailsAsFetchError(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	cache := newTestCache(fs, &fakeBlobStore{data: sampleJSON(t)})

	_, err := cache.Get(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrModelFetch))
}
