package controller

import (
	"aptis_exam_backend/internal/service"
	"aptis_exam_backend/internal/util"
	"errors"

	"github.com/gin-gonic/gin"
)

type QueueController struct {
	QueueService  *service.TranscriptionQueueService
	AnswerService *service.AnswerService
}

func NewQueueController(queueService *service.TranscriptionQueueService, answerService *service.AnswerService) *QueueController {
	return &QueueController{
		QueueService:  queueService,
		AnswerService: answerService,
	}
}

// Status godoc
// @Summary 查看转写队列状态
// @Description 返回队列长度、是否正在处理以及待处理任务快照
// @Tags 转写队列
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=service.QueueStatus} "成功"
// @Router /api/queue/status [get]
func (c *QueueController) Status(ctx *gin.Context) {
	util.Success(ctx, c.QueueService.GetQueueStatus())
}

// Clear godoc
// @Summary 清空转写队列
// @Description 丢弃所有待处理任务，正在执行的任务结果也会被丢弃
// @Tags 转写队列
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=object} "成功，返回丢弃的任务数"
// @Router /api/queue/clear [post]
func (c *QueueController) Clear(ctx *gin.Context) {
	dropped := c.QueueService.ClearQueue()
	util.Success(ctx, gin.H{"dropped": dropped})
}

// EnqueueRequest 手动入队请求
// swagger:model EnqueueRequest
type EnqueueRequest struct {
	AnswerID string `json:"answerId" binding:"required"`
	Language string `json:"language"`
}

// Enqueue godoc
// @Summary 手动把音频答案重新送入转写队列
// @Tags 转写队列
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body EnqueueRequest true "答案信息"
// @Success 200 {object} util.Response{data=object} "成功，返回任务ID"
// @Failure 400 {object} util.Response "答案不是音频或缺少音频文件"
// @Failure 404 {object} util.Response "答案不存在"
// @Router /api/queue/enqueue [post]
func (c *QueueController) Enqueue(ctx *gin.Context) {
	var req EnqueueRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if req.Language == "" {
		req.Language = "en"
	}

	jobID, err := c.AnswerService.EnqueueTranscription(ctx.Request.Context(), req.AnswerID, req.Language)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrAnswerNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrMissingTranscription):
			util.BadRequest(ctx, "该答案不是音频答案或缺少音频文件")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, gin.H{"jobId": jobID})
}
