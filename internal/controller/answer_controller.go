package controller

import (
	"aptis_exam_backend/internal/service"
	"aptis_exam_backend/internal/util"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AnswerController struct {
	AnswerService *service.AnswerService
}

func NewAnswerController(answerService *service.AnswerService) *AnswerController {
	return &AnswerController{
		AnswerService: answerService,
	}
}

// SubmitTextRequest 文本答案提交
// swagger:model SubmitTextRequest
type SubmitTextRequest struct {
	AttemptID  string `json:"attemptId" binding:"required"`
	QuestionID string `json:"questionId" binding:"required"`
	Text       string `json:"text" binding:"required"`
}

// SubmitText godoc
// @Summary 提交文本答案
// @Description 提交写作答案，提交成功后自动触发一次 AI 评分
// @Tags 答案
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body SubmitTextRequest true "答案内容"
// @Success 201 {object} util.Response{data=model.Answer} "提交成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 500 {object} util.Response "服务器内部错误"
// @Router /api/answers/text [post]
func (c *AnswerController) SubmitText(ctx *gin.Context) {
	var req SubmitTextRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	answer, err := c.AnswerService.SubmitTextAnswer(req.AttemptID, req.QuestionID, req.Text)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Created(ctx, answer)
}

// SubmitAudio godoc
// @Summary 提交音频答案
// @Description 上传口语录音并进入转写队列，转写完成后自动评分
// @Tags 答案
// @Accept  multipart/form-data
// @Produce  json
// @Security BearerAuth
// @Param   attemptId formData string true "考试记录ID"
// @Param   questionId formData string true "题目ID"
// @Param   language formData string false "音频语言，默认 en"
// @Param   file formData file true "音频文件"
// @Success 201 {object} util.Response{data=object} "提交成功，返回答案与转写任务ID"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 500 {object} util.Response "服务器内部错误"
// @Router /api/answers/audio [post]
func (c *AnswerController) SubmitAudio(ctx *gin.Context) {
	attemptID := ctx.PostForm("attemptId")
	questionID := ctx.PostForm("questionId")
	if attemptID == "" || questionID == "" {
		util.BadRequest(ctx, "attemptId 和 questionId 不能为空")
		return
	}

	language := ctx.DefaultPostForm("language", "en")

	file, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "音频文件不能为空")
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	allowed := false
	for _, e := range util.AllowedAudioExtensions {
		if e == ext {
			allowed = true
			break
		}
	}
	if !allowed {
		util.BadRequest(ctx, "不支持的音频格式: "+ext)
		return
	}

	tmpPath := filepath.Join(os.TempDir(), "answer-"+uuid.New().String()+ext)
	if err := ctx.SaveUploadedFile(file, tmpPath); err != nil {
		util.Error(ctx, 500, "保存文件失败: "+err.Error())
		return
	}

	// 入队前先探测元数据，拦掉解码不了的上传
	info, err := util.GetAudioInfo(tmpPath)
	if err != nil || info.Duration <= 0 {
		os.Remove(tmpPath)
		util.BadRequest(ctx, "无法解析的音频文件")
		return
	}

	answer, jobID, err := c.AnswerService.SubmitAudioAnswer(ctx.Request.Context(), attemptID, questionID, tmpPath, file.Filename, language)
	if err != nil {
		os.Remove(tmpPath)
		util.LogInternalError(ctx, err)
		return
	}

	util.Created(ctx, gin.H{"answer": answer, "jobId": jobID})
}

// GetAnswer godoc
// @Summary 获取答案详情
// @Description 返回答案及其逐项评分反馈
// @Tags 答案
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "答案ID"
// @Success 200 {object} util.Response{data=service.AnswerDetail} "成功"
// @Failure 404 {object} util.Response "答案不存在"
// @Router /api/answers/{id} [get]
func (c *AnswerController) GetAnswer(ctx *gin.Context) {
	detail, err := c.AnswerService.GetAnswerDetail(ctx.Param("id"))
	if err != nil {
		if errors.Is(err, util.ErrAnswerNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, detail)
}

// ListByAttempt godoc
// @Summary 获取考试记录下的全部答案
// @Tags 答案
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "考试记录ID"
// @Success 200 {object} util.Response{data=[]model.Answer} "成功"
// @Router /api/attempts/{id}/answers [get]
func (c *AnswerController) ListByAttempt(ctx *gin.Context) {
	answers, err := c.AnswerService.ListByAttempt(ctx.Param("id"))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, answers)
}

// ManualGradeRequest 人工评分请求
// swagger:model ManualGradeRequest
type ManualGradeRequest struct {
	Score float64 `json:"score" binding:"min=0"`
}

// ManualGrade godoc
// @Summary 人工复核写分
// @Description 教师给待复核答案写入最终分数
// @Tags 答案
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "答案ID"
// @Param   body body ManualGradeRequest true "分数"
// @Success 200 {object} util.Response "成功"
// @Failure 404 {object} util.Response "答案不存在"
// @Router /api/answers/{id}/grade [put]
func (c *AnswerController) ManualGrade(ctx *gin.Context) {
	var req ManualGradeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.AnswerService.ManualGrade(ctx.Param("id"), req.Score); err != nil {
		if errors.Is(err, util.ErrAnswerNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, gin.H{"message": "已保存"})
}
