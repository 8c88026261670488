package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"demolog/internal/config"
	"demolog/internal/model"
	"demolog/internal/repository"
	"demolog/pkg/idgen"

	"gorm.io/gorm"
)

type PostCommentService struct {
	db          *gorm.DB
	cfg         *config.Config
	postRepo    *repository.PostRepository
	commentRepo *repository.PostCommentRepository
	outboxRepo  *repository.OutboxRepository
}

func NewPostCommentService(db *gorm.DB, cfg *config.Config) *PostCommentService {
	return &PostCommentService{
		db:          db,
		cfg:         cfg,
		postRepo:    repository.NewPostRepository(db),
		commentRepo: repository.NewPostCommentRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
	}
}

type PostCommentResponse struct {
	CommentID int64     `json:"comment_id"`
	PostID    int64     `json:"post_id"`
	AuthorID  int64     `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateComment 创建评论
//
// 评论行、计数更新、COMMENT_CREATED 发件箱消息同事务提交
func (s *PostCommentService) CreateComment(ctx context.Context, postID, authorID int64, content string) (*PostCommentResponse, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}

	comment := &model.PostComment{
		ID:       idgen.NextID(),
		PostID:   postID,
		AuthorID: authorID,
		Content:  content,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.commentRepo.Create(ctx, tx, comment); err != nil {
			return fmt.Errorf("创建评论失败: %w", err)
		}

		if err := s.postRepo.AdjustCommentCount(ctx, tx, postID, 1); err != nil {
			return fmt.Errorf("更新评论计数失败: %w", err)
		}

		event := PostCommentEvent{
			EventType:    EventTypeCommentCreated,
			PostID:       post.ID,
			PostAuthorID: post.AuthorID,
			CommentID:    comment.ID,
			ActorID:      authorID,
			OccurredAt:   time.Now(),
		}
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("序列化事件失败: %w", err)
		}

		msg := &model.OutboxMessage{
			ID:            idgen.NextID(),
			Topic:         s.cfg.Kafka.Topic.PostComment,
			AggregateType: AggregateTypePostComment,
			AggregateID:   strconv.FormatInt(post.ID, 10),
			EventType:     EventTypeCommentCreated,
			Payload:       string(payload),
			Status:        model.OutboxStatusPending,
		}
		if err := s.outboxRepo.Create(ctx, tx, msg); err != nil {
			return fmt.Errorf("写入发件箱消息失败: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &PostCommentResponse{
		CommentID: comment.ID,
		PostID:    comment.PostID,
		AuthorID:  comment.AuthorID,
		Content:   comment.Content,
		CreatedAt: comment.CreatedAt,
	}, nil
}

// ListComments 分页查询文章评论
func (s *PostCommentService) ListComments(ctx context.Context, postID int64, page, pageSize int) ([]*PostCommentResponse, int64, error) {
	exists, err := s.postRepo.Exists(ctx, postID)
	if err != nil {
		return nil, 0, err
	}
	if !exists {
		return nil, 0, repository.ErrPostNotFound
	}

	comments, total, err := s.commentRepo.ListByPostID(ctx, postID, page, pageSize)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]*PostCommentResponse, 0, len(comments))
	for _, c := range comments {
		responses = append(responses, &PostCommentResponse{
			CommentID: c.ID,
			PostID:    c.PostID,
			AuthorID:  c.AuthorID,
			Content:   c.Content,
			CreatedAt: c.CreatedAt,
		})
	}
	return responses, total, nil
}
