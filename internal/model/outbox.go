package model

import (
	"time"
)

const (
	OutboxStatusPending   = "PENDING"
	OutboxStatusPublished = "PUBLISHED"
	OutboxStatusFailed    = "FAILED"
)

// OutboxMessage 事务性发件箱消息
//
// 【关键点】消息必须与产生它的业务变更在同一个数据库事务内写入：
// 业务事务回滚则消息不存在，业务事务提交则消息必达（至少一次投递）。
type OutboxMessage struct {
	ID            int64      `gorm:"primaryKey" json:"id"` // 雪花ID
	Topic         string     `gorm:"type:varchar(100);not null" json:"topic"`
	AggregateType string     `gorm:"type:varchar(50);not null" json:"aggregate_type"` // 如 PostLike、PostComment
	AggregateID   string     `gorm:"type:varchar(64);not null" json:"aggregate_id"`   // Kafka 分区键，保证单聚合内有序
	EventType     string     `gorm:"type:varchar(50);not null" json:"event_type"`     // 如 POST_LIKED
	Payload       string     `gorm:"type:text;not null" json:"payload"`               // JSON 序列化的事件体
	Status        string     `gorm:"type:varchar(20);index:idx_outbox_status_created_at;not null;default:PENDING" json:"status"`
	RetryCount    int        `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt     time.Time  `gorm:"autoCreateTime;index:idx_outbox_status_created_at" json:"created_at"`
	ProcessedAt   *time.Time `json:"processed_at"` // 发布成功时间
}

func (OutboxMessage) TableName() string {
	return "outbox_message"
}
