package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_Valid(t *testing.T) {
	cfg, err := NewBuilder().
		MaxSize(100).
		TTL(time.Minute).
		EvictionPolicy(PolicyLFU).
		TrackMetrics(true).
		CleanupInterval(30 * time.Second).
		Build()
	require.NoError(t, err)

	assert.Equal(t, int64(100), cfg.MaxSize)
	assert.Equal(t, time.Minute, cfg.TTL)
	assert.Equal(t, PolicyLFU, cfg.Policy)
	assert.True(t, cfg.TrackMetrics)
	assert.Equal(t, 30*time.Second, cfg.CleanupInterval)
}

func TestBuilder_ZeroMaxSizeRejected(t *testing.T) {
	_, err := NewBuilder().MaxSize(0).Build()
	require.Error(t, err)
	var cacheErr *CacheError
	require.ErrorAs(t, err, &cacheErr)
	assert.Equal(t, ErrConfigInvalid, cacheErr.Code)
}

func TestBuilder_PolicyRequiresMaxSize(t *testing.T) {
	for _, policy := range []PolicyType{PolicyLRU, PolicyLFU, PolicyFIFO, PolicyRandom} {
		_, err := NewBuilder().EvictionPolicy(policy).Build()
		require.Error(t, err, string(policy))
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
	}
}

func TestBuilder_NegativeDurationsRejected(t *testing.T) {
	_, err := NewBuilder().TTL(-time.Second).Build()
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = NewBuilder().CleanupInterval(-time.Second).Build()
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestBuilder_UnknownPolicyRejected(t *testing.T) {
	_, err := NewBuilder().MaxSize(10).EvictionPolicy("arc").Build()
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

// 无策略且无TTL的配置合法，退化为不受限的并发映射
func TestBuilder_UnboundedMapAllowed(t *testing.T) {
	cfg, err := NewBuilder().Build()
	require.NoError(t, err)
	assert.Equal(t, PolicyNone, cfg.Policy)
	assert.Equal(t, int64(0), cfg.MaxSize)

	c, err := New[string, int](cfg)
	require.NoError(t, err)
	defer c.Close()

	for i := 0; i < 1000; i++ {
		require.NoError(t, c.Set(string(rune('a'+i%26))+string(rune('0'+i%10)), i))
	}
}

func TestNew_ValidatesConfig(t *testing.T) {
	_, err := New[string, int](Config{MaxSize: -1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = New[string, int](Config{Policy: PolicyLRU})
	require.Error(t, err)
}

func TestConvenienceConstructors(t *testing.T) {
	cfg := LRUConfig(5)
	assert.Equal(t, PolicyLRU, cfg.Policy)
	assert.Equal(t, int64(5), cfg.MaxSize)
	require.NoError(t, cfg.Validate())

	cfg = TTLConfig(time.Second)
	assert.Equal(t, PolicyNone, cfg.Policy)
	assert.Equal(t, time.Second, cfg.TTL)
	require.NoError(t, cfg.Validate())

	cfg = TTLLRUConfig(time.Second, 5)
	assert.Equal(t, PolicyLRU, cfg.Policy)
	assert.Equal(t, time.Second, cfg.TTL)
	assert.Equal(t, int64(5), cfg.MaxSize)
	require.NoError(t, cfg.Validate())
}
