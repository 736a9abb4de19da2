package ai

import (
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// QueryCache 按归一化问题缓存模型生成的查询
// 降级结果不入缓存，模型恢复后同一问题可以重新得到精确查询
type QueryCache struct {
	cache *gocache.Cache
}

// NewQueryCache 创建查询缓存，ttl <= 0 时返回 nil 表示禁用
func NewQueryCache(ttl time.Duration) *QueryCache {
	if ttl <= 0 {
		return nil
	}
	return &QueryCache{cache: gocache.New(ttl, 2*ttl)}
}

// Get 读取缓存，返回副本
func (c *QueryCache) Get(question string) (GeneratedQuery, bool) {
	v, ok := c.cache.Get(cacheKey(question))
	if !ok {
		return GeneratedQuery{}, false
	}
	return cloneQuery(v.(GeneratedQuery)), true
}

// Set 写入缓存
func (c *QueryCache) Set(question string, query GeneratedQuery) {
	c.cache.SetDefault(cacheKey(question), cloneQuery(query))
}

// Len 当前缓存条目数（含尚未清理的过期条目）
func (c *QueryCache) Len() int {
	return c.cache.ItemCount()
}

// Flush 清空缓存
func (c *QueryCache) Flush() {
	c.cache.Flush()
}

func cacheKey(question string) string {
	return strings.Join(strings.Fields(strings.ToLower(question)), " ")
}

func cloneQuery(q GeneratedQuery) GeneratedQuery {
	q.Parameters = append([]any{}, q.Parameters...)
	q.EntityTypes = append([]string{}, q.EntityTypes...)
	return q
}
