package model

import (
	"time"
)

// PostLike 文章点赞记录
//
// (post_id, user_id) 唯一索引保证同一用户对同一文章最多一条点赞，
// 并发重复点赞由唯一约束仲裁
type PostLike struct {
	ID        int64     `gorm:"primaryKey" json:"id"` // 雪花ID
	PostID    int64     `gorm:"uniqueIndex:uk_post_like_post_user;not null" json:"post_id"`
	UserID    int64     `gorm:"uniqueIndex:uk_post_like_post_user;not null" json:"user_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (PostLike) TableName() string {
	return "post_like"
}
