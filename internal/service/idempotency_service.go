package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"demolog/internal/model"
	"demolog/internal/repository"
	"demolog/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

var (
	ErrProcessing         = errors.New("相同请求正在处理中")
	ErrRequestMismatch    = errors.New("同一幂等键被用于不同的请求内容")
	ErrIdempotencyExpired = errors.New("幂等键已过期")
)

// idempotencyStore 幂等记录的持久化存储（MySQL，事实来源）
type idempotencyStore interface {
	Create(ctx context.Context, record *model.IdempotencyRecord) error
	GetByUserAndToken(ctx context.Context, userID int64, token string) (*model.IdempotencyRecord, error)
	UpdateResponse(ctx context.Context, userID int64, token, toStatus string, statusCode int, responseBody string) error
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int64, error)
}

// idempotencyCache 幂等响应的旁路缓存（Redis，尽力而为）
type idempotencyCache interface {
	FindCachedResponse(ctx context.Context, userID int64, token string) *repository.CachedResponse
	CacheInProgress(ctx context.Context, userID int64, token string)
	CacheResponse(ctx context.Context, userID int64, token, responseBody string, statusCode int, ttl time.Duration)
}

// BeginResult Begin 的裁决结果
//
// Claimed 为 true 表示本请求抢到执行权，调用方应执行业务操作后
// 调用 Complete / Fail；否则携带可直接回放的历史响应。
type BeginResult struct {
	Claimed      bool
	ReplayStatus int
	ReplayBody   string
}

// IdempotencyService 幂等协调器
//
// 【关键点】claim -> execute -> complete/fail 的裁决流程：
//  1. 先查 Redis 快路径，命中终态响应直接回放；
//  2. 未命中则乐观插入 IN_PROGRESS 记录，(user_id, token) 唯一索引
//     保证并发下只有一个请求插入成功（获得执行权）；
//  3. 插入冲突的落败方回读获胜方的记录，按其状态裁决：
//     回放 / 冲突等待 / 请求不匹配 / 已过期。
//
// 幂等表的写入全部独立于业务事务：业务失败也要能记下 FAILED 结果。
type IdempotencyService struct {
	store idempotencyStore
	cache idempotencyCache
	now   func() time.Time
}

func NewIdempotencyService(db *gorm.DB, redisClient *redis.Client) *IdempotencyService {
	return &IdempotencyService{
		store: repository.NewIdempotencyRepository(db),
		cache: repository.NewIdempotencyCacheRepository(redisClient),
		now:   time.Now,
	}
}

// RequestHash 计算请求体的 SHA-256 指纹（十六进制），空请求体按空串计算
func RequestHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Begin 请求进入时的幂等裁决
//
// 返回值约定：
//   - (result.Claimed == true, nil)：抢占成功，执行业务操作
//   - (result 携带回放响应, nil)：历史请求已完成，原样回放
//   - (nil, ErrProcessing)：另一请求处理中，客户端稍后重试
//   - (nil, ErrRequestMismatch)：同一 token 被复用在不同请求上
//   - (nil, ErrIdempotencyExpired)：记录已过期，或 IN_PROGRESS 已陈旧
//     （原处理方疑似崩溃；不自动回收，等清理任务删除后方可重试）
func (s *IdempotencyService) Begin(ctx context.Context, userID int64, token, requestMethod, requestURI, requestHash string) (*BeginResult, error) {
	// 快路径：Redis 缓存命中则不触 MySQL
	if cached := s.cache.FindCachedResponse(ctx, userID, token); cached != nil {
		if cached.InProgress {
			return nil, ErrProcessing
		}
		return &BeginResult{
			ReplayStatus: cached.StatusCode,
			ReplayBody:   cached.ResponseBody,
		}, nil
	}

	// 慢路径：乐观插入，让唯一索引做并发仲裁
	now := s.now()
	record := &model.IdempotencyRecord{
		ID:            idgen.NextID(),
		UserID:        userID,
		Token:         token,
		RequestMethod: requestMethod,
		RequestURI:    requestURI,
		RequestHash:   requestHash,
		Status:        model.IdempotencyStatusInProgress,
		CreatedAt:     now,
		ExpiresAt:     now.Add(model.IdempotencyTTL),
	}

	err := s.store.Create(ctx, record)
	if err == nil {
		// 抢占成功，写入处理中占位（失败不影响裁决）
		s.cache.CacheInProgress(ctx, userID, token)
		return &BeginResult{Claimed: true}, nil
	}

	if !errors.Is(err, repository.ErrDuplicateKey) {
		return nil, fmt.Errorf("写入幂等记录失败: %w", err)
	}

	// 唯一约束冲突：另一请求已持有该 token，回读获胜方记录裁决
	return s.arbitrateExisting(ctx, userID, token, requestHash)
}

func (s *IdempotencyService) arbitrateExisting(ctx context.Context, userID int64, token, requestHash string) (*BeginResult, error) {
	existing, err := s.store.GetByUserAndToken(ctx, userID, token)
	if err != nil {
		// 插入冲突但回读不到：记录恰好被清理任务删除，让客户端重试
		return nil, fmt.Errorf("回读幂等记录失败: %w", err)
	}

	now := s.now()

	// 过期判定放在指纹比对之前：token 已过有效期时，客户端需要的信号
	// 是"换新键重试"，与本次请求体是否一致无关（行随后会被清理任务删除）
	if existing.IsExpired(now) {
		return nil, ErrIdempotencyExpired
	}

	if !existing.IsSameRequest(requestHash) {
		return nil, ErrRequestMismatch
	}

	if existing.IsTerminal() {
		return &BeginResult{
			ReplayStatus: existing.ResponseStatus,
			ReplayBody:   existing.ResponseBody,
		}, nil
	}

	// IN_PROGRESS 超过陈旧阈值：原处理方疑似崩溃。
	// 不原地回收记录（见清理任务），返回独立错误便于运维区分
	// "还在处理" 和 "大概率已崩溃" 两种情况
	if existing.IsStale(now) {
		return nil, ErrIdempotencyExpired
	}

	return nil, ErrProcessing
}

// Complete 业务成功后落盘响应并推进到 SUCCESS
//
// 相同参数重复调用是幂等的：条件更新只命中 IN_PROGRESS 行，
// 第二次调用影响 0 行，不报错。
func (s *IdempotencyService) Complete(ctx context.Context, userID int64, token string, statusCode int, responseBody string) error {
	err := s.store.UpdateResponse(ctx, userID, token, model.IdempotencyStatusSuccess, statusCode, responseBody)
	if err != nil {
		return fmt.Errorf("保存幂等成功响应失败: %w", err)
	}

	s.cache.CacheResponse(ctx, userID, token, responseBody, statusCode, repository.CacheTTLSuccess)
	return nil
}

// Fail 业务失败后落盘响应并推进到 FAILED（失败响应只短暂缓存）
func (s *IdempotencyService) Fail(ctx context.Context, userID int64, token string, statusCode int, responseBody string) error {
	err := s.store.UpdateResponse(ctx, userID, token, model.IdempotencyStatusFailed, statusCode, responseBody)
	if err != nil {
		return fmt.Errorf("保存幂等失败响应失败: %w", err)
	}

	s.cache.CacheResponse(ctx, userID, token, responseBody, statusCode, repository.CacheTTLFailed)
	return nil
}

// DeleteExpired 删除已过期的幂等记录（清理任务调用）
func (s *IdempotencyService) DeleteExpired(ctx context.Context, batchSize int) (int64, error) {
	return s.store.DeleteExpired(ctx, s.now(), batchSize)
}
