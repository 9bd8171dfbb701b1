package cache

import (
	"golang.org/x/sync/singleflight"
)

// Coalescer 并发请求合并器。
// 相同键的并发调用只执行一次 fn，其余调用等待并共享结果，
// 用于抑制缓存未命中时的并发击穿。
type Coalescer struct {
	group singleflight.Group
}

// NewCoalescer 创建合并器。
func NewCoalescer() *Coalescer {
	return &Coalescer{}
}

// Do 执行 fn。若相同 key 的调用正在进行，则等待其结果。
// shared 表示结果是否被多个调用方共享。
func (c *Coalescer) Do(key string, fn func() (any, error)) (v any, err error, shared bool) {
	return c.group.Do(key, fn)
}

// Forget 丢弃 key 对应的进行中记录，后续调用重新执行。
func (c *Coalescer) Forget(key string) {
	c.group.Forget(key)
}
