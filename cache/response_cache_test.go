package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"
)

func newTestCache(t *testing.T, cfg Config) *ResponseCache {
	t.Helper()
	c, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{TTL: 0, MaxSize: 10}, nil)
	assert.Error(t, err, "TTL 为零应拒绝")

	_, err = New(Config{TTL: time.Minute, MaxSize: 0}, nil)
	assert.Error(t, err, "容量为零应拒绝")
}

func TestLookup_RoundTrip(t *testing.T) {
	c := newTestCache(t, Config{TTL: time.Hour, MaxSize: 10})

	entry := &Entry{
		Answer:     "Ubiquitous means present everywhere.",
		Sources:    []SourceRef{{ID: "kb-1", Score: 0.92, Excerpt: "ubiquitous: existing everywhere"}},
		Confidence: 0.92,
	}
	c.Store("fp-1", entry)

	got, ok := c.Lookup("fp-1")
	require.True(t, ok)
	assert.Equal(t, entry.Answer, got.Answer)
	assert.Equal(t, entry.Sources, got.Sources)
	assert.Equal(t, entry.Confidence, got.Confidence)
	assert.Equal(t, "fp-1", got.Fingerprint)
	assert.True(t, got.ExpiresAt.After(got.CreatedAt), "ExpiresAt 必须晚于 CreatedAt")
}

func TestLookup_CountsHitsAndMisses(t *testing.T) {
	c := newTestCache(t, Config{TTL: time.Hour, MaxSize: 10})

	_, ok := c.Lookup("absent")
	assert.False(t, ok)

	c.Store("fp", &Entry{Answer: "a"})
	_, ok = c.Lookup("fp")
	assert.True(t, ok)
	_, ok = c.Lookup("fp")
	assert.True(t, ok)

	stats := c.Stats()
	assert.Equal(t, uint64(2), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 1e-9)
}

func TestLookup_ExpiredEntryIsMissAndRemoved(t *testing.T) {
	c := newTestCache(t, Config{TTL: time.Minute, MaxSize: 10})

	base := time.Now()
	c.now = func() time.Time { return base }
	c.Store("fp", &Entry{Answer: "a"})

	// TTL 内可读
	c.now = func() time.Time { return base.Add(59 * time.Second) }
	_, ok := c.Lookup("fp")
	assert.True(t, ok)

	// 恰好到期即视为过期
	c.now = func() time.Time { return base.Add(time.Minute) }
	_, ok = c.Lookup("fp")
	assert.False(t, ok, "now >= expiresAt 必须按 miss 处理")

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 0, stats.Size, "过期条目应已被删除")
}

func TestCleanup_RemovesOnlyExpired(t *testing.T) {
	c := newTestCache(t, Config{TTL: time.Minute, MaxSize: 10})

	base := time.Now()
	c.now = func() time.Time { return base }
	c.Store("old-1", &Entry{Answer: "a"})
	c.Store("old-2", &Entry{Answer: "b"})

	c.now = func() time.Time { return base.Add(30 * time.Second) }
	c.Store("fresh", &Entry{Answer: "c"})

	c.now = func() time.Time { return base.Add(61 * time.Second) }
	removed := c.Cleanup()

	assert.Equal(t, 2, removed)
	stats := c.Stats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, uint64(0), stats.Hits, "Cleanup 不应影响计数器")
	assert.Equal(t, uint64(0), stats.Misses)

	_, ok := c.Lookup("fresh")
	assert.True(t, ok, "未过期条目不受影响")
}

func TestClear_KeepsCounters(t *testing.T) {
	c := newTestCache(t, Config{TTL: time.Hour, MaxSize: 10})

	c.Store("fp", &Entry{Answer: "a"})
	c.Lookup("fp")
	c.Lookup("absent")

	c.Clear()

	stats := c.Stats()
	assert.Equal(t, 0, stats.Size)
	assert.Equal(t, uint64(1), stats.Hits, "Clear 不重置 hits")
	assert.Equal(t, uint64(1), stats.Misses, "Clear 不重置 misses")
}

func TestStore_LRUEviction(t *testing.T) {
	c := newTestCache(t, Config{TTL: time.Hour, MaxSize: 3})

	c.Store("a", &Entry{Answer: "1"})
	c.Store("b", &Entry{Answer: "2"})
	c.Store("c", &Entry{Answer: "3"})

	// 触碰 a，使 b 成为最久未使用
	_, ok := c.Lookup("a")
	require.True(t, ok)

	c.Store("d", &Entry{Answer: "4"})

	_, ok = c.Lookup("b")
	assert.False(t, ok, "最久未使用的 b 应被淘汰")
	_, ok = c.Lookup("a")
	assert.True(t, ok)
	_, ok = c.Lookup("d")
	assert.True(t, ok)
	assert.Equal(t, 3, c.Stats().Size)
}

func TestStore_OverwriteSameKey(t *testing.T) {
	c := newTestCache(t, Config{TTL: time.Hour, MaxSize: 10})

	c.Store("fp", &Entry{Answer: "old"})
	c.Store("fp", &Entry{Answer: "new"})

	got, ok := c.Lookup("fp")
	require.True(t, ok)
	assert.Equal(t, "new", got.Answer)
	assert.Equal(t, 1, c.Stats().Size)
}

func TestStats_ZeroTraffic(t *testing.T) {
	c := newTestCache(t, Config{TTL: time.Hour, MaxSize: 10})
	stats := c.Stats()
	assert.Zero(t, stats.HitRate, "无流量时命中率为 0")
}

func TestConcurrentAccess(t *testing.T) {
	c := newTestCache(t, Config{TTL: time.Hour, MaxSize: 64})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("fp-%d", j%32)
				switch j % 5 {
				case 0:
					c.Store(key, &Entry{Answer: "a"})
				case 1, 2, 3:
					if e, ok := c.Lookup(key); ok && e.Answer == "" {
						t.Error("observed partially written entry")
					}
				case 4:
					c.Cleanup()
				}
			}
		}(i)
	}
	wg.Wait()

	stats := c.Stats()
	assert.LessOrEqual(t, stats.Size, 64)
}

// 属性测试：任意操作序列下 size 不超过容量，且命中率等于 h/(h+m)。
func TestCache_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		maxSize := rapid.IntRange(1, 16).Draw(t, "maxSize")
		c, err := New(Config{TTL: time.Hour, MaxSize: maxSize}, zap.NewNop())
		if err != nil {
			t.Fatal(err)
		}

		var wantHits, wantMisses uint64
		keys := rapid.SliceOfN(rapid.StringMatching(`fp-[0-9a-f]{2}`), 1, 64).Draw(t, "keys")
		for _, key := range keys {
			if rapid.Bool().Draw(t, "isStore") {
				c.Store(key, &Entry{Answer: "a"})
			} else {
				if _, ok := c.Lookup(key); ok {
					wantHits++
				} else {
					wantMisses++
				}
			}

			stats := c.Stats()
			if stats.Size > maxSize {
				t.Fatalf("size %d exceeds maxSize %d", stats.Size, maxSize)
			}
		}

		stats := c.Stats()
		if stats.Hits != wantHits || stats.Misses != wantMisses {
			t.Fatalf("counters hits=%d misses=%d, want hits=%d misses=%d",
				stats.Hits, stats.Misses, wantHits, wantMisses)
		}
		total := wantHits + wantMisses
		if total == 0 {
			if stats.HitRate != 0 {
				t.Fatalf("hit rate should be 0 with no traffic, got %f", stats.HitRate)
			}
		} else if stats.HitRate != float64(wantHits)/float64(total) {
			t.Fatalf("hit rate %f != %d/%d", stats.HitRate, wantHits, total)
		}
	})
}

func TestSweeper_StartStop(t *testing.T) {
	c := newTestCache(t, Config{TTL: time.Hour, MaxSize: 10})
	s := NewSweeper(c, 5*time.Millisecond, zap.NewNop())

	s.Start()
	s.Start() // 幂等
	time.Sleep(20 * time.Millisecond)
	s.Stop()
	s.Stop() // 幂等
}
