package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorBody 统一错误响应结构
type ErrorBody struct {
	Error string `json:"error"`
}

// Success 成功响应，直接输出数据
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// RawJSON 原样输出JSON字节
func RawJSON(c *gin.Context, body []byte) {
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	c.JSON(code, ErrorBody{Error: message})
}

// BadRequest 400错误响应
func BadRequest(c *gin.Context, message string) {
	if message == "" {
		message = "请求参数无效"
	}
	Error(c, http.StatusBadRequest, message)
}

// Unauthorized 401错误响应
func Unauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "未授权访问"
	}
	Error(c, http.StatusUnauthorized, message)
}

// NotFound 404错误响应
func NotFound(c *gin.Context, message string) {
	if message == "" {
		message = "资源不存在"
	}
	Error(c, http.StatusNotFound, message)
}

// InternalError 500错误响应
func InternalError(c *gin.Context, message string) {
	if message == "" {
		message = "服务器内部错误"
	}
	Error(c, http.StatusInternalServerError, message)
}

// ServiceUnavailable 503错误响应
func ServiceUnavailable(c *gin.Context, message string) {
	if message == "" {
		message = "服务暂不可用"
	}
	Error(c, http.StatusServiceUnavailable, message)
}
