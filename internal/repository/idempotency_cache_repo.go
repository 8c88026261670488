package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	// IN_PROGRESS 占位的缓存时长，与陈旧阈值一致
	CacheTTLInProgress = 30 * time.Second
	// 成功响应与幂等记录同寿命
	CacheTTLSuccess = 24 * time.Hour
	// 失败响应只短暂缓存，给客户端重试留出空间
	CacheTTLFailed = 5 * time.Minute
)

// CachedResponse Redis 中镜像的响应快照
type CachedResponse struct {
	ResponseBody string `json:"response_body"`
	StatusCode   int    `json:"status_code"`
	InProgress   bool   `json:"in_progress"`
}

// IdempotencyCacheRepository 幂等响应的 Redis 旁路缓存
//
// 【关键点】缓存永远只是加速器，不是并发原语也不是事实来源：
// 读不到、读出错一律回源 MySQL；写失败只记日志，绝不影响请求结果。
type IdempotencyCacheRepository struct {
	redisClient *redis.Client
}

func NewIdempotencyCacheRepository(redisClient *redis.Client) *IdempotencyCacheRepository {
	return &IdempotencyCacheRepository{redisClient: redisClient}
}

// FindCachedResponse 查询缓存，未命中或 Redis 故障时返回 nil（降级到 MySQL）
func (r *IdempotencyCacheRepository) FindCachedResponse(ctx context.Context, userID int64, token string) *CachedResponse {
	data, err := r.redisClient.Get(ctx, buildCacheKey(userID, token)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("[IdempotencyCache] 读取缓存失败，降级到 MySQL: %v", err)
		}
		return nil
	}

	var cached CachedResponse
	if err := json.Unmarshal([]byte(data), &cached); err != nil {
		log.Printf("[IdempotencyCache] 缓存内容解析失败，降级到 MySQL: %v", err)
		return nil
	}
	return &cached
}

// CacheInProgress 写入处理中占位（短 TTL）
func (r *IdempotencyCacheRepository) CacheInProgress(ctx context.Context, userID int64, token string) {
	r.set(ctx, userID, token, &CachedResponse{InProgress: true}, CacheTTLInProgress)
}

// CacheResponse 写入终态响应
func (r *IdempotencyCacheRepository) CacheResponse(ctx context.Context, userID int64, token, responseBody string, statusCode int, ttl time.Duration) {
	r.set(ctx, userID, token, &CachedResponse{
		ResponseBody: responseBody,
		StatusCode:   statusCode,
	}, ttl)
}

func (r *IdempotencyCacheRepository) set(ctx context.Context, userID int64, token string, cached *CachedResponse, ttl time.Duration) {
	data, err := json.Marshal(cached)
	if err != nil {
		log.Printf("[IdempotencyCache] 缓存内容序列化失败: %v", err)
		return
	}

	if err := r.redisClient.Set(ctx, buildCacheKey(userID, token), data, ttl).Err(); err != nil {
		// 写失败只损失后续请求的快路径，不影响正确性
		log.Printf("[IdempotencyCache] 写入缓存失败: %v", err)
	}
}

func buildCacheKey(userID int64, token string) string {
	return fmt.Sprintf("idempotency:%d:%s", userID, token)
}
