package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess       = 0
	CodeParamError    = 400
	CodeUnauthorized  = 401
	CodeForbidden     = 403
	CodeNotFound      = 404
	CodeServerError   = 500
	CodeBusinessError = 1000
)

// 幂等协议错误码（对外稳定，客户端按 code 分支处理）
const (
	CodeMissingIdempotencyToken = "MISSING_IDEMPOTENCY_TOKEN"
	CodeInvalidIdempotencyToken = "INVALID_IDEMPOTENCY_TOKEN"
	CodeRequestMismatch         = "REQUEST_MISMATCH"
	CodeProcessing              = "PROCESSING"
	CodeIdempotencyExpired      = "EXPIRED"
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// IdempotencyError 幂等协议错误响应体
type IdempotencyError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// 仅 PROCESSING 时返回：建议客户端的重试间隔（秒）
	RetryAfter int `json:"retry_after,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// Created 资源创建成功：HTTP 201，包装结构与 Success 一致
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, CodeNotFound, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

// IdempotencyReject 按幂等协议要求写出真实的 HTTP 状态码
// （区别于业务接口统一 200 的包装）
func IdempotencyReject(c *gin.Context, httpStatus int, code, message string) {
	c.AbortWithStatusJSON(httpStatus, IdempotencyError{
		Code:    code,
		Message: message,
	})
}

// IdempotencyProcessing 处理中响应：409 + 建议重试间隔
func IdempotencyProcessing(c *gin.Context, retryAfterSeconds int) {
	c.AbortWithStatusJSON(http.StatusConflict, IdempotencyError{
		Code:       CodeProcessing,
		Message:    "请求处理进行中，请稍后重试",
		RetryAfter: retryAfterSeconds,
	})
}
