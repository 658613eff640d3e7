package repository

import (
	"errors"
	"strings"

	"github.com/blues/trustfunds/internal/apperror"
	"gorm.io/gorm"
)

// isDuplicateKey 判断唯一键冲突；未开启 TranslateError 的驱动按错误信息兜底
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

// storeError 将 gorm 错误转换为业务错误
func storeError(err error, notFoundMsg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound(notFoundMsg)
	}
	return apperror.StoreUnavailable(err)
}
