package model

import (
	"time"
)

const (
	IdempotencyStatusInProgress = "IN_PROGRESS"
	IdempotencyStatusSuccess    = "SUCCESS"
	IdempotencyStatusFailed     = "FAILED"
)

const (
	// 幂等记录有效期：创建后 24 小时过期，由清理任务删除
	IdempotencyTTL = 24 * time.Hour
	// IN_PROGRESS 超过 30 秒视为处理方已崩溃（陈旧记录）
	IdempotencyStaleAfter = 30 * time.Second
)

// 幂等状态只允许 IN_PROGRESS -> SUCCESS / IN_PROGRESS -> FAILED，
// 两个终态都不可再变更
var ValidIdempotencyTransitions = map[string][]string{
	IdempotencyStatusInProgress: {IdempotencyStatusSuccess, IdempotencyStatusFailed},
}

func CanIdempotencyTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidIdempotencyTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// IdempotencyRecord 幂等记录
//
// 【关键点】(user_id, token) 上的唯一索引是整个幂等机制的并发仲裁者：
// 同一个 token 的并发请求中，只有第一个 INSERT 成功的请求获得执行权，
// 其余请求命中唯一约束冲突后改为读取已有记录。
// 应用层不加任何锁。
type IdempotencyRecord struct {
	ID             int64     `gorm:"primaryKey" json:"id"` // 雪花ID，趋势递增便于索引局部性
	UserID         int64     `gorm:"uniqueIndex:uk_idempotency_user_token;not null" json:"user_id"`
	Token          string    `gorm:"type:char(36);uniqueIndex:uk_idempotency_user_token;not null" json:"token"`
	RequestMethod  string    `gorm:"type:varchar(20);not null" json:"request_method"`
	RequestURI     string    `gorm:"type:varchar(200);not null" json:"request_uri"`
	RequestHash    string    `gorm:"type:char(64);not null" json:"request_hash"` // 请求体 SHA-256 十六进制
	ResponseStatus int       `json:"response_status"`
	ResponseBody   string    `gorm:"type:text" json:"response_body"`
	Status         string    `gorm:"type:varchar(20);not null" json:"status"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	ExpiresAt      time.Time `gorm:"index;not null" json:"expires_at"` // 清理任务按此索引批量删除
}

func (IdempotencyRecord) TableName() string {
	return "idempotency_record"
}

// IsProcessing 是否处理中
func (r *IdempotencyRecord) IsProcessing() bool {
	return r.Status == IdempotencyStatusInProgress
}

// IsTerminal 是否已到达终态（SUCCESS 或 FAILED）
func (r *IdempotencyRecord) IsTerminal() bool {
	return r.Status == IdempotencyStatusSuccess || r.Status == IdempotencyStatusFailed
}

// IsStale IN_PROGRESS 是否已超过陈旧阈值（原处理方可能已崩溃）
func (r *IdempotencyRecord) IsStale(now time.Time) bool {
	return now.After(r.CreatedAt.Add(IdempotencyStaleAfter))
}

// IsExpired 记录是否已过有效期
func (r *IdempotencyRecord) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// IsSameRequest 请求指纹是否一致（防止同一 token 复用在不同请求上）
func (r *IdempotencyRecord) IsSameRequest(requestHash string) bool {
	return r.RequestHash == requestHash
}
