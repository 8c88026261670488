package service

import (
	"time"
)

// 事件类型
const (
	EventTypePostLiked      = "POST_LIKED"
	EventTypePostUnliked    = "POST_UNLIKED"
	EventTypeCommentCreated = "COMMENT_CREATED"
)

// 聚合类型（发件箱消息的 aggregate_type 字段）
const (
	AggregateTypePostLike    = "PostLike"
	AggregateTypePostComment = "PostComment"
)

// PostLikeEvent 点赞/取消点赞事件体，经发件箱投递给通知服务
type PostLikeEvent struct {
	EventType    string    `json:"event_type"`
	PostID       int64     `json:"post_id"`
	PostAuthorID int64     `json:"post_author_id"`
	ActorID      int64     `json:"actor_id"` // 点赞人
	OccurredAt   time.Time `json:"occurred_at"`
}

// PostCommentEvent 评论创建事件体
type PostCommentEvent struct {
	EventType    string    `json:"event_type"`
	PostID       int64     `json:"post_id"`
	PostAuthorID int64     `json:"post_author_id"`
	CommentID    int64     `json:"comment_id"`
	ActorID      int64     `json:"actor_id"` // 评论人
	OccurredAt   time.Time `json:"occurred_at"`
}
