// Package apperror 定义对外暴露的错误分类及其 HTTP 状态码
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind 错误类别
type Kind string

const (
	KindValidation       Kind = "ValidationError"
	KindUnauthorized     Kind = "Unauthorized"
	KindForbidden        Kind = "Forbidden"
	KindNotFound         Kind = "NotFound"
	KindConflict         Kind = "Conflict"
	KindRateLimited      Kind = "RateLimited"
	KindChainFailed      Kind = "ChainFailed"
	KindChainTimeout     Kind = "ChainTimeout"
	KindStoreUnavailable Kind = "StoreUnavailable"
	KindInternal         Kind = "Internal"
)

// Error 带类别的业务错误
type Error struct {
	Kind    Kind
	Message string
	Err     error
	Data    map[string]interface{} // 需要返回给客户端的附加信息，如 campaignId
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status 返回对应的 HTTP 状态码
func (e *Error) Status() int {
	return StatusOf(e.Kind)
}

// WithData 附加返回数据
func (e *Error) WithData(key string, value interface{}) *Error {
	if e.Data == nil {
		e.Data = make(map[string]interface{})
	}
	e.Data[key] = value
	return e
}

// StatusOf 错误类别到 HTTP 状态码的映射
func StatusOf(kind Kind) int {
	switch kind {
	case KindValidation, KindChainFailed:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindChainTimeout:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *Error {
	return New(KindValidation, message)
}

func Unauthorized(message string) *Error {
	return New(KindUnauthorized, message)
}

func Forbidden(message string) *Error {
	return New(KindForbidden, message)
}

func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

func Conflict(message string) *Error {
	return New(KindConflict, message)
}

func StoreUnavailable(err error) *Error {
	return Wrap(KindStoreUnavailable, "Store unavailable", err)
}

// As 提取 *Error
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind 判断错误类别
func IsKind(err error, kind Kind) bool {
	appErr, ok := As(err)
	return ok && appErr.Kind == kind
}
