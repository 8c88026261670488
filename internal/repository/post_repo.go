package repository

import (
	"context"
	"errors"

	"demolog/internal/model"

	"gorm.io/gorm"
)

var (
	ErrPostNotFound = errors.New("文章不存在")
)

type PostRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) *PostRepository {
	return &PostRepository{db: db}
}

func (r *PostRepository) Create(ctx context.Context, tx *gorm.DB, post *model.Post) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(post).Error
}

func (r *PostRepository) GetByID(ctx context.Context, id int64) (*model.Post, error) {
	var post model.Post
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return &post, nil
}

func (r *PostRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Post{}).
		Where("id = ?", id).
		Count(&count).Error
	return count > 0, err
}

// AdjustLikeCount 增减点赞计数（delta 可为负），与点赞行的增删同事务执行
func (r *PostRepository) AdjustLikeCount(ctx context.Context, tx *gorm.DB, postID int64, delta int64) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Model(&model.Post{}).
		Where("id = ?", postID).
		UpdateColumn("like_count", gorm.Expr("like_count + ?", delta)).Error
}

// AdjustCommentCount 增减评论计数
func (r *PostRepository) AdjustCommentCount(ctx context.Context, tx *gorm.DB, postID int64, delta int64) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Model(&model.Post{}).
		Where("id = ?", postID).
		UpdateColumn("comment_count", gorm.Expr("comment_count + ?", delta)).Error
}
