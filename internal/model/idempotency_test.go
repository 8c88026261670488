package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanIdempotencyTransitionTo(t *testing.T) {
	// 处理中可以推进到两个终态
	assert.True(t, CanIdempotencyTransitionTo(IdempotencyStatusInProgress, IdempotencyStatusSuccess))
	assert.True(t, CanIdempotencyTransitionTo(IdempotencyStatusInProgress, IdempotencyStatusFailed))

	// 终态不可再变更
	assert.False(t, CanIdempotencyTransitionTo(IdempotencyStatusSuccess, IdempotencyStatusFailed))
	assert.False(t, CanIdempotencyTransitionTo(IdempotencyStatusSuccess, IdempotencyStatusInProgress))
	assert.False(t, CanIdempotencyTransitionTo(IdempotencyStatusFailed, IdempotencyStatusSuccess))
	assert.False(t, CanIdempotencyTransitionTo(IdempotencyStatusFailed, IdempotencyStatusInProgress))

	// 不存在的状态
	assert.False(t, CanIdempotencyTransitionTo("UNKNOWN", IdempotencyStatusSuccess))
	assert.False(t, CanIdempotencyTransitionTo(IdempotencyStatusInProgress, "UNKNOWN"))
}

func TestIdempotencyRecord_StatusPredicates(t *testing.T) {
	record := &IdempotencyRecord{Status: IdempotencyStatusInProgress}
	assert.True(t, record.IsProcessing())
	assert.False(t, record.IsTerminal())

	record.Status = IdempotencyStatusSuccess
	assert.False(t, record.IsProcessing())
	assert.True(t, record.IsTerminal())

	record.Status = IdempotencyStatusFailed
	assert.True(t, record.IsTerminal())
}

func TestIdempotencyRecord_IsStale(t *testing.T) {
	now := time.Now()
	record := &IdempotencyRecord{
		Status:    IdempotencyStatusInProgress,
		CreatedAt: now,
	}

	// 刚好到阈值不算陈旧，超过才算
	assert.False(t, record.IsStale(now.Add(IdempotencyStaleAfter)))
	assert.True(t, record.IsStale(now.Add(IdempotencyStaleAfter+time.Second)))
	assert.False(t, record.IsStale(now.Add(5*time.Second)))
}

func TestIdempotencyRecord_IsExpired(t *testing.T) {
	now := time.Now()
	record := &IdempotencyRecord{
		CreatedAt: now,
		ExpiresAt: now.Add(IdempotencyTTL),
	}

	assert.False(t, record.IsExpired(now))
	assert.False(t, record.IsExpired(now.Add(IdempotencyTTL)))
	assert.True(t, record.IsExpired(now.Add(IdempotencyTTL+time.Minute)))
}

func TestIdempotencyRecord_IsSameRequest(t *testing.T) {
	record := &IdempotencyRecord{RequestHash: "abc123"}
	assert.True(t, record.IsSameRequest("abc123"))
	assert.False(t, record.IsSameRequest("def456"))
}
