package job

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"demolog/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOutboxStore 内存版发件箱存储
type fakeOutboxStore struct {
	mu       sync.Mutex
	messages map[int64]*model.OutboxMessage

	markPublishedErr error
}

func newFakeOutboxStore(messages ...*model.OutboxMessage) *fakeOutboxStore {
	store := &fakeOutboxStore{messages: map[int64]*model.OutboxMessage{}}
	for _, msg := range messages {
		clone := *msg
		store.messages[msg.ID] = &clone
	}
	return store
}

func (f *fakeOutboxStore) GetPendingMessages(ctx context.Context, limit int) ([]*model.OutboxMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var pending []*model.OutboxMessage
	for _, msg := range f.messages {
		if msg.Status == model.OutboxStatusPending {
			clone := *msg
			pending = append(pending, &clone)
		}
	}
	// 按创建时间排序（map 遍历无序）
	for i := 0; i < len(pending); i++ {
		for j := i + 1; j < len(pending); j++ {
			if pending[j].CreatedAt.Before(pending[i].CreatedAt) {
				pending[i], pending[j] = pending[j], pending[i]
			}
		}
	}
	if len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (f *fakeOutboxStore) MarkPublished(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.markPublishedErr != nil {
		return f.markPublishedErr
	}
	msg, exists := f.messages[id]
	if exists && msg.Status == model.OutboxStatusPending {
		msg.Status = model.OutboxStatusPublished
		now := time.Now()
		msg.ProcessedAt = &now
	}
	return nil
}

func (f *fakeOutboxStore) IncrementRetryCount(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if msg, exists := f.messages[id]; exists {
		msg.RetryCount++
	}
	return nil
}

func (f *fakeOutboxStore) MarkFailed(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	msg, exists := f.messages[id]
	if exists && msg.Status == model.OutboxStatusPending {
		msg.Status = model.OutboxStatusFailed
	}
	return nil
}

func (f *fakeOutboxStore) get(id int64) *model.OutboxMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *f.messages[id]
	return &clone
}

type sentMessage struct {
	topic string
	key   string
	value string
}

// recordingSender 记录投递调用，按 topic 决定是否失败
type recordingSender struct {
	mu         sync.Mutex
	sent       []sentMessage
	failTopics map[string]bool
}

func (s *recordingSender) send(topic, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failTopics[topic] {
		return errors.New("kafka: broker 不可达")
	}
	s.sent = append(s.sent, sentMessage{topic: topic, key: key, value: value})
	return nil
}

func newTestPublisher(store outboxStore, send sendFunc) *OutboxPublisher {
	return &OutboxPublisher{
		store:         store,
		send:          send,
		stopCh:        make(chan struct{}),
		interval:      time.Second,
		batchSize:     100,
		maxRetryCount: 3,
	}
}

func pendingMessage(id int64, topic, aggregateID string, createdAt time.Time) *model.OutboxMessage {
	return &model.OutboxMessage{
		ID:            id,
		Topic:         topic,
		AggregateType: "POST_LIKE",
		AggregateID:   aggregateID,
		EventType:     "POST_LIKED",
		Payload:       `{"post_id":42}`,
		Status:        model.OutboxStatusPending,
		CreatedAt:     createdAt,
	}
}

func TestSweep_PublishesPendingInOrder(t *testing.T) {
	base := time.Now()
	store := newFakeOutboxStore(
		pendingMessage(2, "post-like-events", "42", base.Add(time.Second)),
		pendingMessage(1, "post-like-events", "42", base),
	)
	sender := &recordingSender{}
	publisher := newTestPublisher(store, sender.send)

	publisher.sweep(context.Background())

	// 按创建时间先后投递，key 取聚合ID保证同一文章的事件落在同一分区
	require.Len(t, sender.sent, 2)
	assert.Equal(t, "42", sender.sent[0].key)
	assert.Equal(t, `{"post_id":42}`, sender.sent[0].value)

	assert.Equal(t, model.OutboxStatusPublished, store.get(1).Status)
	assert.Equal(t, model.OutboxStatusPublished, store.get(2).Status)
	assert.NotNil(t, store.get(1).ProcessedAt)
}

// 单条投递失败不阻塞同批其余消息
func TestSweep_FailureDoesNotBlockBatch(t *testing.T) {
	base := time.Now()
	store := newFakeOutboxStore(
		pendingMessage(1, "broken-topic", "42", base),
		pendingMessage(2, "post-like-events", "43", base.Add(time.Second)),
	)
	sender := &recordingSender{failTopics: map[string]bool{"broken-topic": true}}
	publisher := newTestPublisher(store, sender.send)

	publisher.sweep(context.Background())

	// 失败的留在 PENDING 并累加重试次数，成功的正常推进
	failed := store.get(1)
	assert.Equal(t, model.OutboxStatusPending, failed.Status)
	assert.Equal(t, 1, failed.RetryCount)

	assert.Equal(t, model.OutboxStatusPublished, store.get(2).Status)
}

func TestSweep_MarksFailedAtMaxRetry(t *testing.T) {
	msg := pendingMessage(1, "broken-topic", "42", time.Now())
	msg.RetryCount = 2 // 已重试 2 次，本次失败达到上限 3
	store := newFakeOutboxStore(msg)
	sender := &recordingSender{failTopics: map[string]bool{"broken-topic": true}}
	publisher := newTestPublisher(store, sender.send)

	publisher.sweep(context.Background())

	result := store.get(1)
	assert.Equal(t, model.OutboxStatusFailed, result.Status)
	assert.Equal(t, 3, result.RetryCount)
}

// broker ack 后状态更新失败：消息留在 PENDING，下一轮重发（至少一次语义）
func TestSweep_MarkPublishedFailureLeavesPendingForRedelivery(t *testing.T) {
	store := newFakeOutboxStore(pendingMessage(1, "post-like-events", "42", time.Now()))
	store.markPublishedErr = errors.New("mysql: 连接断开")
	sender := &recordingSender{}
	publisher := newTestPublisher(store, sender.send)

	publisher.sweep(context.Background())
	assert.Equal(t, model.OutboxStatusPending, store.get(1).Status)
	require.Len(t, sender.sent, 1)

	// 存储恢复后下一轮重发同一条消息
	store.markPublishedErr = nil
	publisher.sweep(context.Background())
	assert.Equal(t, model.OutboxStatusPublished, store.get(1).Status)
	assert.Len(t, sender.sent, 2)
}

func TestStartStop(t *testing.T) {
	store := newFakeOutboxStore()
	sender := &recordingSender{}
	publisher := newTestPublisher(store, sender.send)
	publisher.interval = 10 * time.Millisecond

	done := make(chan struct{})
	go func() {
		publisher.Start(context.Background())
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	publisher.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop 后任务未退出")
	}
}
