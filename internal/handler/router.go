package handler

import (
	"demolog/internal/config"
	"demolog/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	// 创建处理器
	h := NewHandler(db, cfg)

	// 幂等中间件按路由挂载，只保护会产生副作用的写接口
	idemService := service.NewIdempotencyService(db, rdb)
	idem := IdempotencyMiddleware(idemService, cfg)

	// API 路由组
	api := r.Group("/api/v1")
	api.Use(AuthMiddleware())
	{
		// 文章相关
		post := api.Group("/post")
		{
			post.POST("/create", idem, h.CreatePost)
			post.GET("/:id", h.GetPost)

			// 点赞相关
			post.POST("/:id/like", idem, h.LikePost)
			post.POST("/:id/unlike", idem, h.UnlikePost)
			post.GET("/:id/like/count", h.GetLikeCount)

			// 评论相关
			post.POST("/:id/comment", idem, h.CreateComment)
			post.GET("/:id/comments", h.ListComments)
		}

		// 运维相关
		admin := api.Group("/admin")
		{
			admin.GET("/outbox/failed", h.ListFailedOutboxMessages)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
