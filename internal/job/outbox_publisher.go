package job

import (
	"context"
	"log"
	"time"

	"demolog/internal/config"
	"demolog/internal/infrastructure/mq"
	"demolog/internal/model"
	"demolog/internal/repository"

	"gorm.io/gorm"
)

// outboxStore 发件箱存储操作，发布器只用到这个子集
type outboxStore interface {
	GetPendingMessages(ctx context.Context, limit int) ([]*model.OutboxMessage, error)
	MarkPublished(ctx context.Context, id int64) error
	IncrementRetryCount(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64) error
}

// sendFunc 投递一条消息到 broker，key 用于分区路由
type sendFunc func(topic, key, value string) error

// OutboxPublisher 发件箱发布器
//
// 【关键点】至少一次投递：先 broker ack 再改库状态。
// 如果 ack 后进程崩溃、状态没改成 PUBLISHED，消息下一轮会被重发——
// 重复投递由下游按事件内容去重，丢消息则是这里绝不允许的。
type OutboxPublisher struct {
	store         outboxStore
	send          sendFunc
	stopCh        chan struct{}
	interval      time.Duration
	batchSize     int
	maxRetryCount int
}

func NewOutboxPublisher(db *gorm.DB, cfg *config.Config) *OutboxPublisher {
	return &OutboxPublisher{
		store:         repository.NewOutboxRepository(db),
		send:          mq.SendMessage,
		stopCh:        make(chan struct{}),
		interval:      time.Duration(cfg.Outbox.SweepIntervalMs) * time.Millisecond,
		batchSize:     cfg.Outbox.BatchSize,
		maxRetryCount: cfg.Outbox.MaxRetryCount,
	}
}

func (p *OutboxPublisher) Start(ctx context.Context) {
	log.Println("[OutboxPublisher] 发件箱发布任务启动")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[OutboxPublisher] 收到停止信号，任务退出")
			return
		case <-p.stopCh:
			log.Println("[OutboxPublisher] 任务停止")
			return
		case <-ticker.C:
			p.sweep(ctx)
		}
	}
}

func (p *OutboxPublisher) Stop() {
	close(p.stopCh)
}

// sweep 扫描一批 PENDING 消息并按创建时间顺序逐条投递
//
// 单条失败不中断本轮扫描：同一聚合的后续消息会乱序吗？不会——
// 失败消息留在 PENDING，下一轮仍按 created_at 排在最前面优先重发。
func (p *OutboxPublisher) sweep(ctx context.Context) {
	messages, err := p.store.GetPendingMessages(ctx, p.batchSize)
	if err != nil {
		log.Printf("[OutboxPublisher] 查询待发送消息失败: %v", err)
		return
	}

	if len(messages) == 0 {
		return
	}

	for _, msg := range messages {
		p.publish(ctx, msg)
	}
}

func (p *OutboxPublisher) publish(ctx context.Context, msg *model.OutboxMessage) {
	err := p.send(msg.Topic, msg.AggregateID, msg.Payload)

	if err == nil {
		if updateErr := p.store.MarkPublished(ctx, msg.ID); updateErr != nil {
			// 状态没改成功，消息会被重发，由至少一次语义兜底
			log.Printf("[OutboxPublisher] 更新消息状态失败: id=%d, err=%v", msg.ID, updateErr)
		} else {
			log.Printf("[OutboxPublisher] 消息发送成功: id=%d, topic=%s, key=%s", msg.ID, msg.Topic, msg.AggregateID)
		}
		return
	}

	log.Printf("[OutboxPublisher] 消息发送失败: id=%d, topic=%s, err=%v", msg.ID, msg.Topic, err)

	if err := p.store.IncrementRetryCount(ctx, msg.ID); err != nil {
		log.Printf("[OutboxPublisher] 增加重试次数失败: id=%d, err=%v", msg.ID, err)
		return
	}

	if msg.RetryCount+1 >= p.maxRetryCount {
		if err := p.store.MarkFailed(ctx, msg.ID); err != nil {
			log.Printf("[OutboxPublisher] 标记消息失败状态失败: id=%d, err=%v", msg.ID, err)
		} else {
			log.Printf("[OutboxPublisher] 消息超过最大重试次数，标记为失败: id=%d", msg.ID)
		}
	}
}
