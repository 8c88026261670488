package repository

import (
	"context"
	"errors"
	"time"

	"demolog/internal/model"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

var (
	ErrIdempotencyNotFound = errors.New("幂等记录不存在")
	ErrDuplicateKey        = errors.New("唯一约束冲突")
)

// isDuplicateKeyError 判断是否唯一约束冲突（MySQL 1062）
func isDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysqldriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

type IdempotencyRepository struct {
	db *gorm.DB
}

func NewIdempotencyRepository(db *gorm.DB) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

// Create 乐观插入 IN_PROGRESS 记录
//
// 【关键点】不加任何应用层锁：并发抢占同一 (user_id, token) 时，
// 数据库唯一索引保证只有一个 INSERT 成功，落败方收到 ErrDuplicateKey
// 后转为读取获胜方的记录。
// 幂等表的写入独立于业务事务，直接走根连接。
func (r *IdempotencyRepository) Create(ctx context.Context, record *model.IdempotencyRecord) error {
	err := r.db.WithContext(ctx).Create(record).Error
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return err
	}
	return nil
}

func (r *IdempotencyRepository) GetByUserAndToken(ctx context.Context, userID int64, token string) (*model.IdempotencyRecord, error) {
	var record model.IdempotencyRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND token = ?", userID, token).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIdempotencyNotFound
		}
		return nil, err
	}
	return &record, nil
}

// UpdateResponse 将记录从 IN_PROGRESS 推进到终态并落盘响应
//
// WHERE status = 'IN_PROGRESS' 保证终态不可再被改写；
// 受影响行数为 0 说明另一个相同的调用已经先落盘，不视为错误。
func (r *IdempotencyRepository) UpdateResponse(ctx context.Context, userID int64, token, toStatus string, statusCode int, responseBody string) error {
	if !model.CanIdempotencyTransitionTo(model.IdempotencyStatusInProgress, toStatus) {
		return errors.New("非法的幂等状态流转: " + toStatus)
	}

	return r.db.WithContext(ctx).
		Model(&model.IdempotencyRecord{}).
		Where("user_id = ? AND token = ? AND status = ?", userID, token, model.IdempotencyStatusInProgress).
		Updates(map[string]interface{}{
			"status":          toStatus,
			"response_status": statusCode,
			"response_body":   responseBody,
		}).Error
}

// DeleteExpired 批量删除已过期记录（清理任务用），返回删除条数
func (r *IdempotencyRepository) DeleteExpired(ctx context.Context, before time.Time, limit int) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at < ?", before).
		Limit(limit).
		Delete(&model.IdempotencyRecord{})
	return result.RowsAffected, result.Error
}
