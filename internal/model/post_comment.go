package model

import (
	"time"
)

// PostComment 文章评论
type PostComment struct {
	ID        int64     `gorm:"primaryKey" json:"id"` // 雪花ID
	PostID    int64     `gorm:"index;not null" json:"post_id"`
	AuthorID  int64     `gorm:"index;not null" json:"author_id"`
	Content   string    `gorm:"type:varchar(1000);not null" json:"content"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PostComment) TableName() string {
	return "post_comment"
}
