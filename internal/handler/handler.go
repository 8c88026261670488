package handler

import (
	"errors"
	"strconv"

	"demolog/internal/config"
	"demolog/internal/repository"
	"demolog/internal/service"
	"demolog/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	postService    *service.PostService
	likeService    *service.PostLikeService
	commentService *service.PostCommentService
	outboxRepo     *repository.OutboxRepository
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, cfg *config.Config) *Handler {
	return &Handler{
		postService:    service.NewPostService(db, cfg),
		likeService:    service.NewPostLikeService(db, cfg),
		commentService: service.NewPostCommentService(db, cfg),
		outboxRepo:     repository.NewOutboxRepository(db),
	}
}

// ============================================================
// 文章相关接口
// ============================================================

// CreatePostRequest 创建文章请求
type CreatePostRequest struct {
	Title   string `json:"title" binding:"required,max=200"`
	Content string `json:"content" binding:"required"`
}

// CreatePost 创建文章
// POST /api/v1/post/create
//
// 【关键点】幂等中间件包在外层：重复提交同一 Idempotency-Key
// 不会落第二篇文章，直接回放首次响应。
func (h *Handler) CreatePost(c *gin.Context) {
	userID, ok := CurrentUserID(c)
	if !ok {
		response.Error(c, response.CodeUnauthorized, "缺少用户标识")
		return
	}

	var req CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	post, err := h.postService.CreatePost(c.Request.Context(), userID, req.Title, req.Content)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Created(c, post)
}

// GetPost 查询文章详情
// GET /api/v1/post/:id
func (h *Handler) GetPost(c *gin.Context) {
	postID, ok := parsePathID(c)
	if !ok {
		return
	}

	post, err := h.postService.GetPost(c.Request.Context(), postID)
	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			response.NotFound(c, "文章不存在")
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, post)
}

// ============================================================
// 点赞相关接口
// ============================================================

// LikePost 点赞文章
// POST /api/v1/post/:id/like
func (h *Handler) LikePost(c *gin.Context) {
	userID, ok := CurrentUserID(c)
	if !ok {
		response.Error(c, response.CodeUnauthorized, "缺少用户标识")
		return
	}

	postID, ok := parsePathID(c)
	if !ok {
		return
	}

	like, err := h.likeService.LikePost(c.Request.Context(), postID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			response.NotFound(c, "文章不存在")
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, like)
}

// UnlikePost 取消点赞
// POST /api/v1/post/:id/unlike
func (h *Handler) UnlikePost(c *gin.Context) {
	userID, ok := CurrentUserID(c)
	if !ok {
		response.Error(c, response.CodeUnauthorized, "缺少用户标识")
		return
	}

	postID, ok := parsePathID(c)
	if !ok {
		return
	}

	if err := h.likeService.UnlikePost(c.Request.Context(), postID, userID); err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			response.NotFound(c, "文章不存在")
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"message": "已取消点赞",
	})
}

// GetLikeCount 查询文章点赞数
// GET /api/v1/post/:id/like/count
func (h *Handler) GetLikeCount(c *gin.Context) {
	postID, ok := parsePathID(c)
	if !ok {
		return
	}

	count, err := h.likeService.GetLikeCount(c.Request.Context(), postID)
	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			response.NotFound(c, "文章不存在")
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"post_id":    postID,
		"like_count": count,
	})
}

// ============================================================
// 评论相关接口
// ============================================================

// CreateCommentRequest 创建评论请求
type CreateCommentRequest struct {
	Content string `json:"content" binding:"required,max=1000"`
}

// CreateComment 创建评论
// POST /api/v1/post/:id/comment
func (h *Handler) CreateComment(c *gin.Context) {
	userID, ok := CurrentUserID(c)
	if !ok {
		response.Error(c, response.CodeUnauthorized, "缺少用户标识")
		return
	}

	postID, ok := parsePathID(c)
	if !ok {
		return
	}

	var req CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	comment, err := h.commentService.CreateComment(c.Request.Context(), postID, userID, req.Content)
	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			response.NotFound(c, "文章不存在")
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Created(c, comment)
}

// ListComments 分页查询文章评论
// GET /api/v1/post/:id/comments?page=1&page_size=10
func (h *Handler) ListComments(c *gin.Context) {
	postID, ok := parsePathID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	comments, total, err := h.commentService.ListComments(c.Request.Context(), postID, page, pageSize)
	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			response.NotFound(c, "文章不存在")
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"list":      comments,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ============================================================
// 运维接口
// ============================================================

// ListFailedOutboxMessages 查询投递失败（达到重试上限）的发件箱消息
// GET /api/v1/admin/outbox/failed?limit=50
//
// 终态 FAILED 的消息需要人工介入，这个接口给运维排查用
func (h *Handler) ListFailedOutboxMessages(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	messages, err := h.outboxRepo.GetFailedMessages(c.Request.Context(), limit)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"list":  messages,
		"count": len(messages),
	})
}

// parsePathID 解析路径中的文章ID，失败时已写出错误响应
func parsePathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, "文章ID不合法")
		return 0, false
	}
	return id, true
}
