package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ufdr-insight-api/internal/application/hybridquery"
)

// QueryCache 查询结果缓存，命中即短路整个检索扇出
type QueryCache struct {
	client *Client
}

// NewQueryCache 创建查询结果缓存
func NewQueryCache(client *Client) *QueryCache {
	return &QueryCache{client: client}
}

// Get 读取缓存应答，未命中返回 ok=false 不报错
func (c *QueryCache) Get(ctx context.Context, key string) (*hybridquery.CachedAnswer, bool, error) {
	ctx, span := tracer.Start(ctx, "cache.Get",
		trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	raw, err := c.client.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			span.SetAttributes(attribute.Bool("cache.hit", false))
			return nil, false, nil
		}
		span.RecordError(err)
		return nil, false, fmt.Errorf("failed to read query cache: %w", err)
	}

	var answer hybridquery.CachedAnswer
	if err := json.Unmarshal(raw, &answer); err != nil {
		// 坏条目当未命中处理，下一次写入会覆盖
		span.RecordError(err)
		return nil, false, nil
	}

	span.SetAttributes(attribute.Bool("cache.hit", true))
	return &answer, true, nil
}

// Set 写入缓存应答
func (c *QueryCache) Set(ctx context.Context, key string, answer *hybridquery.CachedAnswer, ttl time.Duration) error {
	ctx, span := tracer.Start(ctx, "cache.Set",
		trace.WithAttributes(
			attribute.String("cache.key", key),
			attribute.Int64("cache.ttl_ms", ttl.Milliseconds()),
		))
	defer span.End()

	raw, err := json.Marshal(answer)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to marshal cached answer: %w", err)
	}
	if err := c.client.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to write query cache: %w", err)
	}
	return nil
}

// InvalidateCase 案件销毁时清掉它名下的全部缓存应答
func (c *QueryCache) InvalidateCase(ctx context.Context, caseID string) error {
	ctx, span := tracer.Start(ctx, "cache.InvalidateCase",
		trace.WithAttributes(attribute.String("case_id", caseID)))
	defer span.End()

	pattern := fmt.Sprintf("query:%s:*", caseID)
	iter := c.client.rdb.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to scan query cache: %w", err)
	}
	if len(keys) > 0 {
		span.SetAttributes(attribute.Int("cache.invalidated_count", len(keys)))
		return c.client.rdb.Del(ctx, keys...).Err()
	}
	return nil
}
