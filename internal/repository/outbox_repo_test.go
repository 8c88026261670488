package repository

import (
	"context"
	"testing"
	"time"

	"demolog/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxRepository_GetPendingMessages(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOutboxRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "topic", "aggregate_type", "aggregate_id", "event_type", "payload", "status", "retry_count", "created_at"}).
		AddRow(1, "post-like-events", "PostLike", "42", "POST_LIKED", `{"post_id":42}`, model.OutboxStatusPending, 0, now).
		AddRow(2, "post-like-events", "PostLike", "42", "POST_UNLIKED", `{"post_id":42}`, model.OutboxStatusPending, 1, now.Add(time.Second))

	mock.ExpectQuery("SELECT \\* FROM `outbox_message` WHERE status = \\? ORDER BY created_at ASC LIMIT").
		WithArgs(model.OutboxStatusPending).
		WillReturnRows(rows)

	messages, err := repo.GetPendingMessages(context.Background(), 100)

	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, int64(1), messages[0].ID)
	assert.Equal(t, "42", messages[0].AggregateID)
	assert.Equal(t, 1, messages[1].RetryCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepository_MarkPublished_ConditionalOnPending(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOutboxRepository(db)

	// 只有 PENDING 行会被推进到 PUBLISHED
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `outbox_message` SET .* WHERE id = \\? AND status = \\?").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), int64(1), model.OutboxStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.MarkPublished(context.Background(), 1)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepository_IncrementRetryCount(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOutboxRepository(db)

	// retry_count 在数据库侧自增，避免读改写竞态
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `outbox_message` SET `retry_count`=retry_count \\+ 1 WHERE id = \\?").
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.IncrementRetryCount(context.Background(), 1)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepository_MarkFailed_ConditionalOnPending(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOutboxRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `outbox_message` SET `status`=\\? WHERE id = \\? AND status = \\?").
		WithArgs(model.OutboxStatusFailed, int64(1), model.OutboxStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.MarkFailed(context.Background(), 1)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
