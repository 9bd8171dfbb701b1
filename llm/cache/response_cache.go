package cache

import (
	"sync"
	"time"
)

// Entry 缓存条目
type Entry struct {
	Response  any       `json:"response"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	HitCount  int       `json:"hit_count"`
}

// Config 缓存配置
type Config struct {
	MaxSize int           // 最大条目数
	TTL     time.Duration // 条目存活时间
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		MaxSize: 1024,
		TTL:     5 * time.Minute,
	}
}

// Stats 缓存统计
type Stats struct {
	Size     int   `json:"size"`
	Capacity int   `json:"capacity"`
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
}

// HitRate 命中率，无访问时为 0。
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// ResponseCache 响应缓存：精确匹配 + TTL + LRU 淘汰。
// 过期检查是懒惰的：只有在 Get 触碰到过期条目时才删除。
// 使用双向链表实现 O(1) 操作。
type ResponseCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*lruNode
	head     *lruNode // 最近使用
	tail     *lruNode // 最久未使用

	hits   int64
	misses int64
}

type lruNode struct {
	key   string
	entry *Entry
	prev  *lruNode
	next  *lruNode
}

// NewResponseCache 创建响应缓存。非法配置回退到默认值。
func NewResponseCache(cfg Config) *ResponseCache {
	def := DefaultConfig()
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = def.MaxSize
	}
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}

	return &ResponseCache{
		capacity: cfg.MaxSize,
		ttl:      cfg.TTL,
		items:    make(map[string]*lruNode),
	}
}

// Get 获取缓存条目。过期条目视为未命中并当场删除。
func (c *ResponseCache) Get(key string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}

	if time.Now().After(node.entry.ExpiresAt) {
		c.removeNode(node)
		delete(c.items, key)
		c.misses++
		return nil, false
	}

	c.moveToHead(node)
	node.entry.HitCount++
	c.hits++

	return node.entry, true
}

// Set 写入缓存。容量已满时淘汰最久未使用的条目。
func (c *ResponseCache) Set(key string, response any) {
	now := time.Now()
	entry := &Entry{
		Response:  response,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if node, ok := c.items[key]; ok {
		node.entry = entry
		c.moveToHead(node)
		return
	}

	if len(c.items) >= c.capacity {
		c.evictTail()
	}

	node := &lruNode{key: key, entry: entry}
	c.items[key] = node
	c.addToHead(node)
}

// Delete 删除指定键。
func (c *ResponseCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, ok := c.items[key]; ok {
		c.removeNode(node)
		delete(c.items, key)
	}
}

// Clear 清空全部条目，统计计数保留。
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*lruNode)
	c.head = nil
	c.tail = nil
}

// Stats 返回当前统计。
func (c *ResponseCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Size:     len(c.items),
		Capacity: c.capacity,
		Hits:     c.hits,
		Misses:   c.misses,
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
	delete(c.items, c.tail.key)
	c.removeNode(c.tail)
}
