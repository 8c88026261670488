package repository

import (
	"context"

	"demolog/internal/model"

	"gorm.io/gorm"
)

type PostCommentRepository struct {
	db *gorm.DB
}

func NewPostCommentRepository(db *gorm.DB) *PostCommentRepository {
	return &PostCommentRepository{db: db}
}

func (r *PostCommentRepository) Create(ctx context.Context, tx *gorm.DB, comment *model.PostComment) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(comment).Error
}

func (r *PostCommentRepository) ListByPostID(ctx context.Context, postID int64, page, pageSize int) ([]*model.PostComment, int64, error) {
	var comments []*model.PostComment
	var total int64

	query := r.db.WithContext(ctx).Model(&model.PostComment{}).Where("post_id = ?", postID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&comments).Error

	return comments, total, err
}
