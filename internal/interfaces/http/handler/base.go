// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"z-novel-copilot/internal/interfaces/http/dto"
	apperrors "z-novel-copilot/pkg/errors"
	"z-novel-copilot/pkg/logger"
)

// respondError 按错误类型返回；非应用错误记录日志并返回 500
func respondError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.HTTPStatus >= 500 {
			logger.Error(c.Request.Context(), "request failed", err, "path", c.FullPath())
		}
		dto.AppError(c, appErr)
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	logger.Error(c.Request.Context(), "request failed", err, "path", c.FullPath())
	dto.InternalError(c, "internal server error")
}
