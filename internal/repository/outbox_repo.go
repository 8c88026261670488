package repository

import (
	"context"
	"time"

	"demolog/internal/model"

	"gorm.io/gorm"
)

type OutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Create 写入发件箱消息
//
// 【关键点】tx 必须传入产生该事件的业务事务：业务回滚则消息一并消失，
// 业务提交则消息对发布器可见。tx 为 nil 时退化为独立写入（仅测试用）。
func (r *OutboxRepository) Create(ctx context.Context, tx *gorm.DB, msg *model.OutboxMessage) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(msg).Error
}

// GetPendingMessages 按创建时间升序取待发布消息（最旧优先，限制单条消息的滞留时间）
func (r *OutboxRepository) GetPendingMessages(ctx context.Context, limit int) ([]*model.OutboxMessage, error) {
	var messages []*model.OutboxMessage
	err := r.db.WithContext(ctx).
		Where("status = ?", model.OutboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

// MarkPublished 标记发布成功并记录发布时间
//
// WHERE status = 'PENDING' 保证 PUBLISHED / FAILED 终态不被覆盖
func (r *OutboxRepository) MarkPublished(ctx context.Context, id int64) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ? AND status = ?", id, model.OutboxStatusPending).
		Updates(map[string]interface{}{
			"status":       model.OutboxStatusPublished,
			"processed_at": &now,
		}).Error
}

// IncrementRetryCount 发送失败后累加重试次数（状态保持 PENDING，等待下轮扫描重试）
func (r *OutboxRepository) IncrementRetryCount(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ?", id).
		UpdateColumn("retry_count", gorm.Expr("retry_count + 1")).Error
}

// MarkFailed 超过最大重试次数后标记为 FAILED（终态，不再自动重投）
func (r *OutboxRepository) MarkFailed(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ? AND status = ?", id, model.OutboxStatusPending).
		Update("status", model.OutboxStatusFailed).Error
}

// GetFailedMessages 查询已放弃的消息（运维排查用）
func (r *OutboxRepository) GetFailedMessages(ctx context.Context, limit int) ([]*model.OutboxMessage, error) {
	var messages []*model.OutboxMessage
	err := r.db.WithContext(ctx).
		Where("status = ?", model.OutboxStatusFailed).
		Order("created_at ASC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}
