package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"demolog/internal/config"
	"demolog/internal/model"
	"demolog/internal/repository"
	"demolog/pkg/idgen"

	"gorm.io/gorm"
)

type PostLikeService struct {
	db         *gorm.DB
	cfg        *config.Config
	postRepo   *repository.PostRepository
	likeRepo   *repository.PostLikeRepository
	outboxRepo *repository.OutboxRepository
}

func NewPostLikeService(db *gorm.DB, cfg *config.Config) *PostLikeService {
	return &PostLikeService{
		db:         db,
		cfg:        cfg,
		postRepo:   repository.NewPostRepository(db),
		likeRepo:   repository.NewPostLikeRepository(db),
		outboxRepo: repository.NewOutboxRepository(db),
	}
}

type PostLikeResponse struct {
	LikeID    int64     `json:"like_id"`
	PostID    int64     `json:"post_id"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// LikePost 点赞（业务层天然幂等：重复点赞返回已有记录）
//
// 【关键点】点赞行、计数更新、POST_LIKED 发件箱消息在同一事务内提交：
// 任何一步失败整体回滚，发件箱消息不会先于业务数据存在。
func (s *PostLikeService) LikePost(ctx context.Context, postID, userID int64) (*PostLikeResponse, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}

	// 已点赞则直接返回已有记录
	existing, err := s.likeRepo.GetByPostAndUser(ctx, postID, userID)
	if err != nil {
		return nil, fmt.Errorf("查询点赞记录失败: %w", err)
	}
	if existing != nil {
		return likeResponse(existing), nil
	}

	like := &model.PostLike{
		ID:     idgen.NextID(),
		PostID: postID,
		UserID: userID,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.likeRepo.Create(ctx, tx, like); err != nil {
			return err
		}

		if err := s.postRepo.AdjustLikeCount(ctx, tx, postID, 1); err != nil {
			return fmt.Errorf("更新点赞计数失败: %w", err)
		}

		return s.writeLikeOutbox(ctx, tx, EventTypePostLiked, post, userID)
	})

	if err != nil {
		// 并发重复点赞：唯一约束裁决后读取获胜方记录返回
		if errors.Is(err, repository.ErrDuplicateKey) {
			winner, readErr := s.likeRepo.GetByPostAndUser(ctx, postID, userID)
			if readErr != nil || winner == nil {
				return nil, fmt.Errorf("查询点赞记录失败: %v", readErr)
			}
			return likeResponse(winner), nil
		}
		return nil, err
	}

	return likeResponse(like), nil
}

// UnlikePost 取消点赞（不存在点赞时为空操作，幂等）
func (s *PostLikeService) UnlikePost(ctx context.Context, postID, userID int64) error {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		deleted, err := s.likeRepo.Delete(ctx, tx, postID, userID)
		if err != nil {
			return fmt.Errorf("删除点赞记录失败: %w", err)
		}

		// 本就没有点赞：不动计数也不发事件
		if deleted == 0 {
			return nil
		}

		if err := s.postRepo.AdjustLikeCount(ctx, tx, postID, -1); err != nil {
			return fmt.Errorf("更新点赞计数失败: %w", err)
		}

		return s.writeLikeOutbox(ctx, tx, EventTypePostUnliked, post, userID)
	})
}

// GetLikeCount 查询文章点赞数
func (s *PostLikeService) GetLikeCount(ctx context.Context, postID int64) (int64, error) {
	exists, err := s.postRepo.Exists(ctx, postID)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, repository.ErrPostNotFound
	}
	return s.likeRepo.CountByPostID(ctx, postID)
}

func (s *PostLikeService) writeLikeOutbox(ctx context.Context, tx *gorm.DB, eventType string, post *model.Post, actorID int64) error {
	event := PostLikeEvent{
		EventType:    eventType,
		PostID:       post.ID,
		PostAuthorID: post.AuthorID,
		ActorID:      actorID,
		OccurredAt:   time.Now(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}

	msg := &model.OutboxMessage{
		ID:            idgen.NextID(),
		Topic:         s.cfg.Kafka.Topic.PostLike,
		AggregateType: AggregateTypePostLike,
		AggregateID:   strconv.FormatInt(post.ID, 10),
		EventType:     eventType,
		Payload:       string(payload),
		Status:        model.OutboxStatusPending,
	}
	if err := s.outboxRepo.Create(ctx, tx, msg); err != nil {
		return fmt.Errorf("写入发件箱消息失败: %w", err)
	}
	return nil
}

func likeResponse(like *model.PostLike) *PostLikeResponse {
	return &PostLikeResponse{
		LikeID:    like.ID,
		PostID:    like.PostID,
		UserID:    like.UserID,
		CreatedAt: like.CreatedAt,
	}
}
