package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cachekit/pkg/cache"
)

func newReportedCache(t *testing.T) *cache.Cache[string, int] {
	t.Helper()
	c, err := cache.New[string, int](cache.LRUConfig(10))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNewReporter_Validation(t *testing.T) {
	c := newReportedCache(t)
	source := CacheSource("test", c)

	_, err := NewReporter(ReporterConfig{Bucket: "b"}, source)
	require.Error(t, err)

	_, err = NewReporter(ReporterConfig{URL: "http://localhost:8086"}, source)
	require.Error(t, err)

	_, err = NewReporter(DefaultReporterConfig())
	require.Error(t, err) // 没有上报来源

	r, err := NewReporter(DefaultReporterConfig(), source)
	require.NoError(t, err)
	defer r.client.Close()
	assert.NotEmpty(t, r.instanceID)
}

func TestCacheSource_Snapshot(t *testing.T) {
	c := newReportedCache(t)
	source := CacheSource("orders", c)

	require.NoError(t, c.Set("a", 1))
	c.Get("a")
	c.Get("missing")

	assert.Equal(t, "orders", source.Name())
	snap := source.Snapshot()
	assert.Equal(t, uint64(1), snap.Hits)
	assert.Equal(t, uint64(1), snap.Misses)
	assert.Equal(t, int64(1), snap.Size)
}

func TestReporter_BuildPoint(t *testing.T) {
	c := newReportedCache(t)
	require.NoError(t, c.Set("a", 1))
	c.Get("a")

	r, err := NewReporter(DefaultReporterConfig(), CacheSource("orders", c))
	require.NoError(t, err)
	defer r.client.Close()

	now := time.Now()
	point := r.buildPoint(CacheSource("orders", c), now)

	assert.Equal(t, "cache_stats", point.Name())
	assert.Equal(t, now, point.Time())

	tags := make(map[string]string)
	for _, tag := range point.TagList() {
		tags[tag.Key] = tag.Value
	}
	assert.Equal(t, "orders", tags["cache"])
	assert.Equal(t, r.instanceID, tags["instance"])

	fields := make(map[string]interface{})
	for _, field := range point.FieldList() {
		fields[field.Key] = field.Value
	}
	assert.Equal(t, int64(1), fields["hits"])
	assert.Equal(t, int64(0), fields["misses"])
	assert.Equal(t, int64(1), fields["insertions"])
	assert.Equal(t, int64(1), fields["size"])
	assert.Equal(t, int64(10), fields["max_size"])
	assert.Equal(t, 1.0, fields["hit_rate"])
}

func TestReporter_InvalidSchedule(t *testing.T) {
	c := newReportedCache(t)

	cfg := DefaultReporterConfig()
	cfg.Schedule = "not a cron spec"
	r, err := NewReporter(cfg, CacheSource("test", c))
	require.NoError(t, err)
	defer r.client.Close()

	assert.Error(t, r.Start())
}
