/*
 * @module service/datasource/cache
 * @description 基于 Redis 的查询结果缓存，缓存表结构、统计量与去重值
 * @architecture 数据访问层 - 缓存
 * @stateFlow 查询前读缓存 -> 未命中执行查询 -> 回写缓存
 * @rules 缓存只做加速，Redis 不可用时直接透传查询，不影响主流程
 * @dependencies github.com/go-redis/redis/v8
 * @refs dal.go
 */

package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cast"
)

const defaultCacheTTL = 300 * time.Second

// Cache 查询结果缓存
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCacheFromEnv 按环境变量创建缓存，REDIS_ADDR 为空时返回 nil 表示禁用
func NewCacheFromEnv() *Cache {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       cast.ToInt(os.Getenv("REDIS_DB")),
	})
	ttl := defaultCacheTTL
	if v := os.Getenv("CACHE_TTL_SECONDS"); v != "" {
		ttl = time.Duration(cast.ToInt(v)) * time.Second
	}
	return &Cache{client: client, ttl: ttl}
}

// key 缓存键，按数据源隔离
func (c *Cache) key(sourceID, kind string, parts ...string) string {
	k := fmt.Sprintf("dal:%s:%s", sourceID, kind)
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

// Get 读取缓存并反序列化到 dest，未命中返回 false
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) bool {
	if c == nil {
		return false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("读取缓存失败", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		slog.Warn("缓存内容反序列化失败", "key", key, "error", err)
		return false
	}
	return true
}

// Set 序列化并写入缓存，失败只记录日志
func (c *Cache) Set(ctx context.Context, key string, value interface{}) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		slog.Warn("缓存内容序列化失败", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		slog.Warn("写入缓存失败", "key", key, "error", err)
	}
}

// Invalidate 按数据源清理缓存
func (c *Cache) Invalidate(ctx context.Context, sourceID string) {
	if c == nil {
		return
	}
	pattern := fmt.Sprintf("dal:%s:*", sourceID)
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			slog.Warn("清理缓存失败", "key", iter.Val(), "error", err)
		}
	}
}
