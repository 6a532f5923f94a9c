package controller

import (
	"aptis_exam_backend/internal/service"
	"aptis_exam_backend/internal/util"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
)

type GradingController struct {
	GradingService *service.GradingService
	AnswerService  *service.AnswerService
}

func NewGradingController(gradingService *service.GradingService, answerService *service.AnswerService) *GradingController {
	return &GradingController{
		GradingService: gradingService,
		AnswerService:  answerService,
	}
}

// ScoreWriting godoc
// @Summary 对写作答案执行 AI 评分
// @Description 按题型配置的评分细则逐条调用 AI，全部成功才落库
// @Tags AI评分
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "答案ID"
// @Success 200 {object} util.Response{data=service.ScoringResult} "评分完成"
// @Failure 400 {object} util.Response "答案缺少文本"
// @Failure 404 {object} util.Response "答案不存在"
// @Failure 422 {object} util.Response "题型未配置评分细则"
// @Failure 500 {object} util.Response "评分失败，答案已转人工复核"
// @Router /api/grading/writing/{id} [post]
func (c *GradingController) ScoreWriting(ctx *gin.Context) {
	result, err := c.GradingService.ScoreWriting(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		c.gradingError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// ScoreSpeaking godoc
// @Summary 对口语答案执行 AI 评分
// @Description 没有转写文本时会先同步转写一次，再按评分细则逐条评分
// @Tags AI评分
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "答案ID"
// @Success 200 {object} util.Response{data=service.ScoringResult} "评分完成"
// @Failure 400 {object} util.Response "答案缺少转写文本和音频"
// @Failure 404 {object} util.Response "答案不存在"
// @Failure 422 {object} util.Response "题型未配置评分细则"
// @Failure 500 {object} util.Response "评分失败，答案已转人工复核"
// @Router /api/grading/speaking/{id} [post]
func (c *GradingController) ScoreSpeaking(ctx *gin.Context) {
	result, err := c.GradingService.ScoreSpeaking(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		c.gradingError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// Regrade godoc
// @Summary 批量补评未评分答案
// @Description 遍历 score 为空且从未被 AI 评过的答案逐条评分，返回 scored/failed/skipped 计数
// @Tags AI评分
// @Produce  json
// @Security BearerAuth
// @Param   limit query int false "单次处理上限，默认 100"
// @Success 200 {object} util.Response{data=service.RegradeSummary} "成功"
// @Router /api/grading/regrade [post]
func (c *GradingController) Regrade(ctx *gin.Context) {
	limit, err := strconv.Atoi(ctx.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		util.BadRequest(ctx, "limit 必须是正整数")
		return
	}

	summary, err := c.AnswerService.RegradeUngraded(ctx.Request.Context(), limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, summary)
}

func (c *GradingController) gradingError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrAnswerNotFound), errors.Is(err, util.ErrQuestionNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrMissingAnswerText), errors.Is(err, util.ErrMissingTranscription):
		util.BadRequest(ctx, err.Error())
	case errors.Is(err, util.ErrMissingCriteria):
		util.Error(ctx, 422, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}
