package job

import (
	"context"
	"log"
	"time"

	"demolog/internal/config"
	"demolog/internal/repository"

	"gorm.io/gorm"
)

// IdempotencyCleaner 幂等记录清理任务
//
// 过期的幂等记录（expires_at 已过）对裁决没有价值：
// 同 token 再来会按 EXPIRED 拒绝，不依赖行本身存在。
// 定期物理删除，防止幂等表无限增长。
type IdempotencyCleaner struct {
	idemRepo  *repository.IdempotencyRepository
	stopCh    chan struct{}
	interval  time.Duration
	batchSize int
}

func NewIdempotencyCleaner(db *gorm.DB, cfg *config.Config) *IdempotencyCleaner {
	return &IdempotencyCleaner{
		idemRepo:  repository.NewIdempotencyRepository(db),
		stopCh:    make(chan struct{}),
		interval:  time.Duration(cfg.Idempotency.CleanupIntervalHours) * time.Hour,
		batchSize: 1000,
	}
}

func (j *IdempotencyCleaner) Start(ctx context.Context) {
	log.Println("[IdempotencyCleaner] 幂等记录清理任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[IdempotencyCleaner] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[IdempotencyCleaner] 任务停止")
			return
		case <-ticker.C:
			j.cleanExpiredRecords(ctx)
		}
	}
}

func (j *IdempotencyCleaner) Stop() {
	close(j.stopCh)
}

// cleanExpiredRecords 分批删除过期记录，直到删不出整批为止
// 分批是为了避免长事务锁表
func (j *IdempotencyCleaner) cleanExpiredRecords(ctx context.Context) {
	var total int64

	for {
		deleted, err := j.idemRepo.DeleteExpired(ctx, time.Now(), j.batchSize)
		if err != nil {
			log.Printf("[IdempotencyCleaner] 删除过期记录失败: %v", err)
			return
		}

		total += deleted
		if deleted < int64(j.batchSize) {
			break
		}
	}

	if total > 0 {
		log.Printf("[IdempotencyCleaner] 本次清理 %d 条过期幂等记录", total)
	}
}
