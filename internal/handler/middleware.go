package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"demolog/internal/config"
	"demolog/internal/service"
	"demolog/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// 客户端生成的幂等键请求头（128位随机值的 UUID 规范字符串）
	HeaderIdempotencyKey = "Idempotency-Key"
	// 回放响应时附带的标记头
	HeaderIdempotencyReplay = "X-Idempotency-Replay"
	// 会话层写入的用户标识头（鉴权由网关完成，这里只取结果）
	HeaderUserID = "X-User-ID"

	contextKeyUserID = "current_user_id"
)

// LoggerMiddleware 日志中间件
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		// 处理请求
		c.Next()

		// 记录日志
		latency := time.Since(start)
		status := c.Writer.Status()

		if query != "" {
			path = path + "?" + query
		}

		log.Printf("[HTTP] %d | %13v | %15s | %-7s %s",
			status,
			latency,
			c.ClientIP(),
			c.Request.Method,
			path,
		)
	}
}

// RecoveryMiddleware 恢复中间件，防止 panic 导致服务崩溃
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("[PANIC] %v", err)
				c.AbortWithStatusJSON(500, gin.H{
					"code":    500,
					"message": "服务器内部错误",
				})
			}
		}()
		c.Next()
	}
}

// AuthMiddleware 取出网关注入的用户标识
//
// 鉴权本身是外部协作方的职责；幂等键按 (用户, token) 做租户隔离，
// 所以这里只要求用户标识存在。
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := parseUserID(c.GetHeader(HeaderUserID))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    response.CodeUnauthorized,
				"message": "缺少用户标识",
			})
			return
		}
		c.Set(contextKeyUserID, userID)
		c.Next()
	}
}

// parseUserID 解析网关注入的用户标识头
func parseUserID(raw string) (int64, error) {
	if raw == "" {
		return 0, errors.New("缺少用户标识")
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		return 0, errors.New("用户标识不合法")
	}
	return userID, nil
}

// CurrentUserID 读取鉴权中间件写入的用户标识
func CurrentUserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(contextKeyUserID)
	if !ok {
		return 0, false
	}
	userID, ok := v.(int64)
	return userID, ok
}

// bodyCaptureWriter 包装 gin 的响应写入器，旁路截取响应体
// 供幂等协调器落盘（回放时必须逐字节一致）
type bodyCaptureWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *bodyCaptureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyCaptureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// idempotencyCoordinator 幂等协调器的裁决操作子集
type idempotencyCoordinator interface {
	Begin(ctx context.Context, userID int64, token, requestMethod, requestURI, requestHash string) (*service.BeginResult, error)
	Complete(ctx context.Context, userID int64, token string, statusCode int, responseBody string) error
	Fail(ctx context.Context, userID int64, token string, statusCode int, responseBody string) error
}

// IdempotencyMiddleware 幂等中间件
//
// 显式包装业务处理器的装饰器：claim -> 执行业务 -> complete/fail。
// 按路由挂载在需要幂等保护的写接口上。
//
// 动作流程：
//  1. 校验 Idempotency-Key 头（缺失 400 / 非 UUID 400）
//  2. Begin 裁决：回放 / 409 处理中 / 422 请求不匹配 / 410 过期
//  3. 抢占成功则截取响应执行业务，按最终状态码 Complete 或 Fail
func IdempotencyMiddleware(idemService idempotencyCoordinator, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := CurrentUserID(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    response.CodeUnauthorized,
				"message": "缺少用户标识",
			})
			return
		}

		token, ok := extractToken(c)
		if !ok {
			return
		}

		// 读取并复位请求体，供后续 ShouldBindJSON 正常工作
		body, err := c.GetRawData()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"code":    response.CodeParamError,
				"message": "读取请求体失败",
			})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(body))

		requestHash := service.RequestHash(body)
		ctx := c.Request.Context()

		result, err := idemService.Begin(ctx, userID, token, c.Request.Method, c.Request.URL.Path, requestHash)
		if err != nil {
			writeBeginError(c, cfg, err)
			return
		}

		// 历史请求已完成：原状态码、原响应体逐字节回放
		if !result.Claimed {
			c.Header(HeaderIdempotencyReplay, "true")
			c.Data(result.ReplayStatus, "application/json; charset=utf-8", []byte(result.ReplayBody))
			c.Abort()
			return
		}

		// 抢占成功：截取响应执行业务操作
		writer := &bodyCaptureWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = writer

		defer func() {
			if r := recover(); r != nil {
				// 业务 panic：先把失败结果落盘（与恢复中间件写出的 500 响应一致），
				// 再继续向外抛由恢复中间件兜底
				persistCtx, cancel := persistContext(ctx)
				if failErr := idemService.Fail(persistCtx, userID, token, 500, `{"code":500,"message":"服务器内部错误"}`); failErr != nil {
					log.Printf("[Idempotency] 保存失败结果出错: %v", failErr)
				}
				cancel()
				panic(r)
			}
		}()

		c.Next()

		statusCode := writer.Status()
		responseBody := writer.body.String()

		// 终态落盘不能跟着请求上下文走：响应写出后客户端随时可能断连，
		// 请求上下文一取消记录就困在 IN_PROGRESS，重试只能等 24 小时过期
		persistCtx, cancel := persistContext(ctx)
		defer cancel()

		// 落盘失败只影响后续回放，不改写已发出的响应
		if isBusinessSuccess(statusCode, responseBody) {
			if err := idemService.Complete(persistCtx, userID, token, statusCode, responseBody); err != nil {
				log.Printf("[Idempotency] 保存成功结果出错: %v", err)
			}
		} else {
			if err := idemService.Fail(persistCtx, userID, token, statusCode, responseBody); err != nil {
				log.Printf("[Idempotency] 保存失败结果出错: %v", err)
			}
		}
	}
}

// persistContext 终态落盘用的上下文：脱离请求上下文的取消传播，
// 只保留链路值，并限定自身超时
func persistContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
}

// isBusinessSuccess 判定业务操作是否成功
//
// 业务接口统一返回 HTTP 200，错误码放在信封的 code 字段里，
// 所以不能只看 HTTP 状态码：2xx 还要求信封 code 为成功码，
// 否则数据库故障等业务失败会被当成 SUCCESS 落盘并缓存 24 小时。
// 非信封格式的响应体按 HTTP 状态码判定。
func isBusinessSuccess(statusCode int, responseBody string) bool {
	if statusCode < 200 || statusCode >= 300 {
		return false
	}

	var envelope struct {
		Code int `json:"code"`
	}
	if err := json.Unmarshal([]byte(responseBody), &envelope); err != nil {
		return true
	}
	return envelope.Code == response.CodeSuccess
}

// extractToken 提取并校验幂等键，失败时已写出错误响应
func extractToken(c *gin.Context) (string, bool) {
	raw := c.GetHeader(HeaderIdempotencyKey)
	if raw == "" {
		response.IdempotencyReject(c, http.StatusBadRequest,
			response.CodeMissingIdempotencyToken, "缺少 Idempotency-Key 请求头")
		return "", false
	}

	parsed, err := uuid.Parse(raw)
	if err != nil {
		response.IdempotencyReject(c, http.StatusBadRequest,
			response.CodeInvalidIdempotencyToken, "Idempotency-Key 格式不正确")
		return "", false
	}

	// 规范化为小写标准形式，同一 token 的不同写法视为同一个键
	return parsed.String(), true
}

func writeBeginError(c *gin.Context, cfg *config.Config, err error) {
	switch {
	case errors.Is(err, service.ErrProcessing):
		response.IdempotencyProcessing(c, cfg.Idempotency.RetryAfterSeconds)
	case errors.Is(err, service.ErrRequestMismatch):
		response.IdempotencyReject(c, http.StatusUnprocessableEntity,
			response.CodeRequestMismatch, "同一幂等键不能复用于不同的请求内容")
	case errors.Is(err, service.ErrIdempotencyExpired):
		response.IdempotencyReject(c, http.StatusGone,
			response.CodeIdempotencyExpired, "幂等键已过期，请更换新的幂等键重试")
	default:
		log.Printf("[Idempotency] 幂等裁决失败: %v", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"code":    response.CodeServerError,
			"message": "服务器内部错误",
		})
	}
}

// CORSMiddleware 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-User-ID, Idempotency-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
