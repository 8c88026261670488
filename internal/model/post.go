package model

import (
	"time"
)

// Post 博客文章
type Post struct {
	ID           int64     `gorm:"primaryKey" json:"id"` // 雪花ID
	AuthorID     int64     `gorm:"index;not null" json:"author_id"`
	Title        string    `gorm:"type:varchar(200);not null" json:"title"`
	Content      string    `gorm:"type:text;not null" json:"content"`
	LikeCount    int64     `gorm:"not null;default:0" json:"like_count"`
	CommentCount int64     `gorm:"not null;default:0" json:"comment_count"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Post) TableName() string {
	return "post"
}
