package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/blues/trustfunds/internal/chain"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db     *gorm.DB
	bridge chain.Bridge
}

func NewHealthHandler(db *gorm.DB, bridge chain.Bridge) *HealthHandler {
	return &HealthHandler{db: db, bridge: bridge}
}

// Health 检查数据库与链节点连通性；节点不可达不影响存活状态
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	result := gin.H{
		"status":  "ok",
		"service": "trustfunds",
	}

	if sqlDB, err := h.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		status = http.StatusServiceUnavailable
		result["status"] = "degraded"
		result["database"] = "unavailable"
	} else {
		result["database"] = "ok"
	}

	if block, err := h.bridge.BlockNumber(ctx); err != nil {
		result["chain"] = gin.H{"status": "unavailable", "error": err.Error()}
	} else {
		result["chain"] = gin.H{"status": "ok", "block": block}
	}

	c.JSON(status, result)
}
