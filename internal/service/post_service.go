package service

import (
	"context"
	"fmt"
	"time"

	"demolog/internal/config"
	"demolog/internal/model"
	"demolog/internal/repository"
	"demolog/pkg/idgen"

	"gorm.io/gorm"
)

type PostService struct {
	db       *gorm.DB
	cfg      *config.Config
	postRepo *repository.PostRepository
}

func NewPostService(db *gorm.DB, cfg *config.Config) *PostService {
	return &PostService{
		db:       db,
		cfg:      cfg,
		postRepo: repository.NewPostRepository(db),
	}
}

type PostResponse struct {
	PostID       int64     `json:"post_id"`
	AuthorID     int64     `json:"author_id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	LikeCount    int64     `json:"like_count"`
	CommentCount int64     `json:"comment_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreatePost 创建文章
func (s *PostService) CreatePost(ctx context.Context, authorID int64, title, content string) (*PostResponse, error) {
	post := &model.Post{
		ID:       idgen.NextID(),
		AuthorID: authorID,
		Title:    title,
		Content:  content,
	}

	if err := s.postRepo.Create(ctx, nil, post); err != nil {
		return nil, fmt.Errorf("创建文章失败: %w", err)
	}

	return postResponse(post), nil
}

// GetPost 查询文章详情
func (s *PostService) GetPost(ctx context.Context, postID int64) (*PostResponse, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	return postResponse(post), nil
}

func postResponse(post *model.Post) *PostResponse {
	return &PostResponse{
		PostID:       post.ID,
		AuthorID:     post.AuthorID,
		Title:        post.Title,
		Content:      post.Content,
		LikeCount:    post.LikeCount,
		CommentCount: post.CommentCount,
		CreatedAt:    post.CreatedAt,
	}
}
