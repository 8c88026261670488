package repository

import (
	"context"
	"errors"

	"demolog/internal/model"

	"gorm.io/gorm"
)

type PostLikeRepository struct {
	db *gorm.DB
}

func NewPostLikeRepository(db *gorm.DB) *PostLikeRepository {
	return &PostLikeRepository{db: db}
}

// Create 写入点赞行，并发重复点赞时返回 ErrDuplicateKey 由调用方读取已有行
func (r *PostLikeRepository) Create(ctx context.Context, tx *gorm.DB, like *model.PostLike) error {
	if tx == nil {
		tx = r.db
	}
	err := tx.WithContext(ctx).Create(like).Error
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return err
	}
	return nil
}

func (r *PostLikeRepository) GetByPostAndUser(ctx context.Context, postID, userID int64) (*model.PostLike, error) {
	var like model.PostLike
	err := r.db.WithContext(ctx).
		Where("post_id = ? AND user_id = ?", postID, userID).
		First(&like).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &like, nil
}

// Delete 删除点赞行，返回删除条数（0 表示本就没有点赞，取消操作天然幂等）
func (r *PostLikeRepository) Delete(ctx context.Context, tx *gorm.DB, postID, userID int64) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Delete(&model.PostLike{})
	return result.RowsAffected, result.Error
}

func (r *PostLikeRepository) CountByPostID(ctx context.Context, postID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.PostLike{}).
		Where("post_id = ?", postID).
		Count(&count).Error
	return count, err
}
