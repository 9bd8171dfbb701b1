// 版权所有 2024 AgentGate Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 提供 LLM 响应的进程内缓存，通过精确匹配复用近期响应，
减少重复调用，降低延迟与成本。

# 概述

相同的补全请求在实际业务中频繁出现。本包提供带 TTL 的本地 LRU
缓存（O(1) 操作、懒惰过期），以及基于 singleflight 的并发请求
合并，避免缓存未命中时相同请求同时打到后端。

# 核心类型

  - ResponseCache：本地 LRU 缓存，容量上限 + TTL，命中/未命中统计。
  - Coalescer：并发合并器，相同键的并发调用只执行一次。

# 主要能力

  - 精确匹配缓存：键完全一致才命中，TTL 到期后懒惰淘汰。
  - LRU 淘汰：容量满时丢弃最久未使用的条目。
  - 请求合并：缓存未命中的并发风暴收敛为单次后端调用。

# 使用方式

	rc := cache.NewResponseCache(cache.DefaultConfig())
	if entry, ok := rc.Get(key); ok {
		return entry.Response
	}
*/
package cache
