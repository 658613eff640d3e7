package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/blues/trustfunds/internal/apperror"
	"github.com/blues/trustfunds/internal/logger"
	"github.com/gin-gonic/gin"
)

// SuccessResponse 成功响应
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Message: message,
		Data:    data,
	})
}

// ErrorResponse 错误响应
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, ErrorBody{Message: message})
}

// handleError 将业务错误转换为响应，未分类的错误只记录日志不暴露细节
func handleError(c *gin.Context, err error) {
	appErr, ok := apperror.As(err)
	if !ok {
		logger.Error("Unhandled error on %s %s: %v", c.Request.Method, c.FullPath(), err)
		ErrorResponse(c, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	status := appErr.Status()
	if status >= http.StatusInternalServerError {
		logger.Error("Request %s %s failed: %v", c.Request.Method, c.FullPath(), appErr)
	}

	message := appErr.Message
	if appErr.Kind == apperror.KindInternal {
		message = "Internal Server Error"
	}
	c.JSON(status, ErrorBody{Message: message, Data: appErr.Data})
}

// bindError 请求体解析失败
func bindError(c *gin.Context, err error) {
	if errors.Is(err, io.EOF) {
		ErrorResponse(c, http.StatusBadRequest, "Request body is required")
		return
	}
	ErrorResponse(c, http.StatusBadRequest, err.Error())
}
