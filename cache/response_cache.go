package cache

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SourceRef 记录答案引用的知识库片段。
type SourceRef struct {
	ID      string  `json:"id"`
	Score   float64 `json:"score"`
	Excerpt string  `json:"excerpt,omitempty"`
}

// Entry 缓存条目。
type Entry struct {
	Fingerprint string      `json:"fingerprint"`
	Answer      string      `json:"answer"`
	Sources     []SourceRef `json:"sources"`
	Confidence  float64     `json:"confidence"`
	CreatedAt   time.Time   `json:"created_at"`
	ExpiresAt   time.Time   `json:"expires_at"`
}

// Stats 缓存统计快照。hits/misses 为进程生命周期累计值。
type Stats struct {
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
	Size    int     `json:"size"`
	MaxSize int     `json:"max_size"`
}

// Config 缓存配置，构造后不可变。
type Config struct {
	// TTL 条目有效期。教学内容对时效不敏感，默认 1 小时。
	TTL time.Duration `yaml:"ttl" json:"ttl"`

	// MaxSize 最大条目数，超出时按 LRU 淘汰。
	MaxSize int `yaml:"max_size" json:"max_size"`
}

// DefaultConfig 返回默认缓存配置。
func DefaultConfig() Config {
	return Config{
		TTL:     1 * time.Hour,
		MaxSize: 1000,
	}
}

// ResponseCache 进程内答案缓存（LRU + TTL，双向链表实现 O(1) 操作）。
//
// 单把互斥锁覆盖 map、链表与计数器：同一指纹上 Lookup 与 Store 的
// 竞争不会观察到半写状态，过期删除与 miss 计数在同一临界区内完成。
// 锁只保护内存操作，调用方绝不能在持锁期间发起网络调用。
type ResponseCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*lruNode
	head     *lruNode // 最近使用
	tail     *lruNode // 最久未使用
	hits     uint64
	misses   uint64
	logger   *zap.Logger

	now func() time.Time // 测试可注入
}

type lruNode struct {
	key   string
	entry *Entry
	prev  *lruNode
	next  *lruNode
}

// New 创建响应缓存。TTL 与 MaxSize 必须为正。
func New(cfg Config, logger *zap.Logger) (*ResponseCache, error) {
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("cache ttl must be > 0, got %v", cfg.TTL)
	}
	if cfg.MaxSize <= 0 {
		return nil, fmt.Errorf("cache max_size must be > 0, got %d", cfg.MaxSize)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ResponseCache{
		capacity: cfg.MaxSize,
		ttl:      cfg.TTL,
		items:    make(map[string]*lruNode),
		logger:   logger.With(zap.String("component", "response_cache")),
		now:      time.Now,
	}, nil
}

// Lookup 查找指纹对应的条目。
//
// 命中未过期条目时累加 hits 并返回条目副本；未找到或已过期时累加
// misses，过期条目在同一临界区内删除。
func (c *ResponseCache) Lookup(fingerprint string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.items[fingerprint]
	if !ok {
		c.misses++
		return nil, false
	}

	if !c.now().Before(node.entry.ExpiresAt) {
		// 懒淘汰：过期条目按 miss 计数并立即删除。
		c.removeNode(node)
		delete(c.items, fingerprint)
		c.misses++
		return nil, false
	}

	c.moveToHead(node)
	c.hits++

	cp := *node.entry
	return &cp, true
}

// Store 写入条目，覆盖同键旧值。容量已满时先淘汰最久未使用的条目。
// CreatedAt/ExpiresAt 由缓存统一定稿，保证 ExpiresAt > CreatedAt。
func (c *ResponseCache) Store(fingerprint string, entry *Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	cp := *entry
	cp.Fingerprint = fingerprint
	cp.CreatedAt = now
	cp.ExpiresAt = now.Add(c.ttl)

	if node, ok := c.items[fingerprint]; ok {
		node.entry = &cp
		c.moveToHead(node)
		return
	}

	if len(c.items) >= c.capacity {
		c.evictTail()
	}

	node := &lruNode{key: fingerprint, entry: &cp}
	c.items[fingerprint] = node
	c.addToHead(node)
}

// Clear 清空全部条目。hits/misses 保留：计数反映生命周期流量而非
// 当前内容，运营方据此评估跨清理周期的缓存收益。
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*lruNode)
	c.head = nil
	c.tail = nil
	c.logger.Info("response cache cleared")
}

// Cleanup 扫描并删除所有已过期条目，返回删除数量。不影响计数器。
func (c *ResponseCache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, node := range c.items {
		if !now.Before(node.entry.ExpiresAt) {
			c.removeNode(node)
			delete(c.items, key)
			removed++
		}
	}

	if removed > 0 {
		c.logger.Debug("expired entries swept",
			zap.Int("removed", removed),
			zap.Int("remaining", len(c.items)))
	}
	return removed
}

// Stats 返回统计快照。流量为零时 HitRate 为 0。
func (c *ResponseCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	rate := 0.0
	if total > 0 {
		rate = float64(c.hits) / float64(total)
	}

	return Stats{
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: rate,
		Size:    len(c.items),
		MaxSize: c.capacity,
	}
}

// addToHead 添加节点到头部 O(1)
func (c *ResponseCache) addToHead(node *lruNode) {
	node.prev = nil
	node.next = c.head
	if c.head != nil {
		c.head.prev = node
	}
	c.head = node
	if c.tail == nil {
		c.tail = node
	}
}

// removeNode 从链表中移除节点 O(1)
func (c *ResponseCache) removeNode(node *lruNode) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		c.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		c.tail = node.prev
	}
}

// moveToHead 移动节点到头部 O(1)
func (c *ResponseCache) moveToHead(node *lruNode) {
	if node == c.head {
		return
	}
	c.removeNode(node)
	c.addToHead(node)
}

// evictTail 淘汰尾部节点 O(1)
func (c *ResponseCache) evictTail() {
	if c.tail == nil {
		return
	}
	evicted := c.tail.key
	delete(c.items, evicted)
	c.removeNode(c.tail)
	c.logger.Debug("entry evicted", zap.String("fingerprint", evicted))
}
