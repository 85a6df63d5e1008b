package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cachekit/pkg/cache"
)

// fakeLoader 可编程的内存数据源，记录调用次数
type fakeLoader struct {
	mu    sync.Mutex
	data  map[string]string
	calls int
	err   error
}

func newFakeLoader(data map[string]string) *fakeLoader {
	return &fakeLoader{data: data}
}

func (f *fakeLoader) Load(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	value, ok := f.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (f *fakeLoader) Close() error { return nil }

func (f *fakeLoader) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestClient(t *testing.T, l Loader[string]) *CachedClient[string] {
	t.Helper()
	c, err := cache.New[string, string](cache.LRUConfig(100))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return NewCachedClient[string](c, l)
}

func TestCachedClient_ReadThrough(t *testing.T) {
	backend := newFakeLoader(map[string]string{"k1": "v1"})
	client := newTestClient(t, backend)
	ctx := context.Background()

	// 首次请求触达数据源
	value, err := client.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "v1", value)
	assert.Equal(t, 1, backend.callCount())

	// 第二次请求命中缓存
	value, err = client.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "v1", value)
	assert.Equal(t, 1, backend.callCount())

	stats := client.Stats()
	assert.Equal(t, int64(2), stats.TotalRequests)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(1), stats.CacheMisses)
	assert.Equal(t, int64(1), stats.LoaderCalls)
}

func TestCachedClient_Invalidate(t *testing.T) {
	backend := newFakeLoader(map[string]string{"k1": "old"})
	client := newTestClient(t, backend)
	ctx := context.Background()

	_, err := client.Get(ctx, "k1")
	require.NoError(t, err)

	// 数据源更新后手动失效，下一次Get重新加载
	backend.mu.Lock()
	backend.data["k1"] = "new"
	backend.mu.Unlock()

	assert.True(t, client.Invalidate("k1"))

	value, err := client.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "new", value)
	assert.Equal(t, 2, backend.callCount())
}

func TestCachedClient_NotFound(t *testing.T) {
	backend := newFakeLoader(map[string]string{})
	client := newTestClient(t, backend)

	_, err := client.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)

	// 未找到不会被缓存，每次请求都触达数据源
	_, err = client.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, 2, backend.callCount())

	stats := client.Stats()
	assert.Equal(t, int64(2), stats.FailedLoads)
}

func TestCachedClient_LoaderFunc(t *testing.T) {
	client := newTestClient(t, LoaderFunc[string](func(ctx context.Context, key string) (string, error) {
		return "computed:" + key, nil
	}))

	value, err := client.Get(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "computed:abc", value)
}

func TestBreakerLoader_OpensOnConsecutiveFailures(t *testing.T) {
	backend := newFakeLoader(nil)
	backend.err = errors.New("backend down")

	config := DefaultBreakerConfig()
	config.ReadyToTrip = 3
	breaker := NewBreakerLoader[string](backend, config)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := breaker.Load(ctx, "k")
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, breaker.State())

	// 熔断打开后快速失败，不再触达数据源
	before := backend.callCount()
	_, err := breaker.Load(ctx, "k")
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, before, backend.callCount())
}

func TestBreakerLoader_NotFoundIsNotFailure(t *testing.T) {
	backend := newFakeLoader(map[string]string{})
	config := DefaultBreakerConfig()
	config.ReadyToTrip = 3
	breaker := NewBreakerLoader[string](backend, config)

	// 键不存在是正常业务结果，不应触发熔断
	for i := 0; i < 10; i++ {
		_, err := breaker.Load(context.Background(), fmt.Sprintf("k%d", i))
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, gobreaker.StateClosed, breaker.State())
}

func TestBreakerLoader_PassThrough(t *testing.T) {
	backend := newFakeLoader(map[string]string{"k": "v"})
	breaker := NewBreakerLoader[string](backend, DefaultBreakerConfig())

	value, err := breaker.Load(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "v", value)
}

// nil值穿过熔断器后仍然是nil，不会被误报为错误或替换为其他值
func TestBreakerLoader_NilValue(t *testing.T) {
	// 指针类型：nil指针装入interface{}后非nil，走正常断言路径
	ptrBackend := LoaderFunc[*string](func(ctx context.Context, key string) (*string, error) {
		return nil, nil
	})
	ptrBreaker := NewBreakerLoader[*string](ptrBackend, DefaultBreakerConfig())

	ptr, err := ptrBreaker.Load(context.Background(), "k")
	require.NoError(t, err)
	assert.Nil(t, ptr)

	// 接口类型：nil值擦除为nil interface{}，类型断言不可用
	anyBackend := LoaderFunc[any](func(ctx context.Context, key string) (any, error) {
		return nil, nil
	})
	anyBreaker := NewBreakerLoader[any](anyBackend, DefaultBreakerConfig())

	value, err := anyBreaker.Load(context.Background(), "k")
	require.NoError(t, err)
	assert.Nil(t, value)
}
