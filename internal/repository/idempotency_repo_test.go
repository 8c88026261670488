package repository

import (
	"context"
	"testing"
	"time"

	"demolog/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(gormmysql.New(gormmysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestIdempotencyRepository_Create_DuplicateKey(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewIdempotencyRepository(db)

	// 唯一索引冲突：MySQL 1062 映射为 ErrDuplicateKey
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `idempotency_record`").
		WillReturnError(&mysqldriver.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &model.IdempotencyRecord{
		ID:     1,
		UserID: 1001,
		Token:  "550e8400-e29b-41d4-a716-446655440000",
		Status: model.IdempotencyStatusInProgress,
	})

	assert.ErrorIs(t, err, ErrDuplicateKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyRepository_Create_Success(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewIdempotencyRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `idempotency_record`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.Create(context.Background(), &model.IdempotencyRecord{
		ID:     1,
		UserID: 1001,
		Token:  "550e8400-e29b-41d4-a716-446655440000",
		Status: model.IdempotencyStatusInProgress,
	})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyRepository_GetByUserAndToken_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewIdempotencyRepository(db)

	mock.ExpectQuery("SELECT \\* FROM `idempotency_record`").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	record, err := repo.GetByUserAndToken(context.Background(), 1001, "550e8400-e29b-41d4-a716-446655440000")

	assert.Nil(t, record)
	assert.ErrorIs(t, err, ErrIdempotencyNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyRepository_UpdateResponse_RejectsInvalidTransition(t *testing.T) {
	db, _ := newMockDB(t)
	repo := NewIdempotencyRepository(db)

	// 目标状态不是终态：直接拒绝，不触库
	err := repo.UpdateResponse(context.Background(), 1001, "token", model.IdempotencyStatusInProgress, 200, "{}")
	assert.Error(t, err)
}

func TestIdempotencyRepository_UpdateResponse_ConditionalOnInProgress(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewIdempotencyRepository(db)

	// 条件更新只命中 IN_PROGRESS 行
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `idempotency_record` SET .* WHERE user_id = \\? AND token = \\? AND status = \\?").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			int64(1001), "550e8400-e29b-41d4-a716-446655440000", model.IdempotencyStatusInProgress).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpdateResponse(context.Background(), 1001, "550e8400-e29b-41d4-a716-446655440000",
		model.IdempotencyStatusSuccess, 201, `{"code":0}`)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyRepository_UpdateResponse_ZeroRowsIsNotError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewIdempotencyRepository(db)

	// 另一个相同调用已先落盘：影响 0 行，不视为错误
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `idempotency_record`").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.UpdateResponse(context.Background(), 1001, "550e8400-e29b-41d4-a716-446655440000",
		model.IdempotencyStatusFailed, 500, `{"code":500}`)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyRepository_DeleteExpired(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewIdempotencyRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `idempotency_record` WHERE expires_at < \\?").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	deleted, err := repo.DeleteExpired(context.Background(), time.Now(), 1000)

	assert.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsDuplicateKeyError(t *testing.T) {
	assert.True(t, isDuplicateKeyError(&mysqldriver.MySQLError{Number: 1062}))
	assert.True(t, isDuplicateKeyError(gorm.ErrDuplicatedKey))
	assert.False(t, isDuplicateKeyError(&mysqldriver.MySQLError{Number: 1213}))
	assert.False(t, isDuplicateKeyError(gorm.ErrRecordNotFound))
}
