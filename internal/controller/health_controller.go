package controller

import (
	"aptis_exam_backend/internal/service"
	"aptis_exam_backend/internal/util"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type HealthController struct {
	DB           *gorm.DB
	QueueService *service.TranscriptionQueueService
}

func NewHealthController(db *gorm.DB, queueService *service.TranscriptionQueueService) *HealthController {
	return &HealthController{DB: db, QueueService: queueService}
}

// @Summary 健康检查
// @Description 检查服务状态
// @Tags 系统
// @Produce json
// @Success 200 {object} util.Response
// @Router /health [get]
func (c *HealthController) HealthCheck(ctx *gin.Context) {
	// 检查数据库连接
	sqlDB, err := c.DB.DB()
	if err != nil {
		util.InternalServerError(ctx)
		return
	}

	if err := sqlDB.Ping(); err != nil {
		util.Error(ctx, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	status := c.QueueService.GetQueueStatus()

	// 转写依赖本机 ffmpeg，状态一并上报
	ffmpegStatus := "up"
	if _, err := util.GetFFmpegVersion(); err != nil {
		ffmpegStatus = "unavailable"
	}

	util.Success(ctx, gin.H{
		"status": "ok",
		"components": gin.H{
			"database": "up",
			"ffmpeg":   ffmpegStatus,
			"transcriptionQueue": gin.H{
				"length":     status.Length,
				"processing": status.IsProcessing,
			},
		},
	})
}
