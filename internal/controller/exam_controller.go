package controller

import (
	"aptis_exam_backend/internal/model"
	"aptis_exam_backend/internal/service"
	"aptis_exam_backend/internal/util"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ExamController struct {
	ExamService *service.ExamService
	AuthService *service.AuthService
}

func NewExamController(examService *service.ExamService, authService *service.AuthService) *ExamController {
	return &ExamController{
		ExamService: examService,
		AuthService: authService,
	}
}

// QuestionRequest 题目创建/更新请求
// swagger:model QuestionRequest
type QuestionRequest struct {
	AptisTypeID    uint    `json:"aptisTypeId" binding:"required"`
	QuestionTypeID uint    `json:"questionTypeId" binding:"required"`
	Title          string  `json:"title" binding:"required"`
	Content        string  `json:"content"`
	SampleAnswer   string  `json:"sampleAnswer"`
	KeyPoints      string  `json:"keyPoints"`
	MaxScore       float64 `json:"maxScore" binding:"required,gt=0"`
	MediaURL       string  `json:"mediaUrl"`
	IsPublished    bool    `json:"isPublished"`
}

// CreateQuestion godoc
// @Summary 创建题目
// @Tags 题库
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body QuestionRequest true "题目内容"
// @Success 201 {object} util.Response{data=model.Question} "创建成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Router /api/questions [post]
func (c *ExamController) CreateQuestion(ctx *gin.Context) {
	var req QuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	question := &model.Question{
		AptisTypeID:    req.AptisTypeID,
		QuestionTypeID: req.QuestionTypeID,
		Title:          req.Title,
		Content:        req.Content,
		SampleAnswer:   req.SampleAnswer,
		KeyPoints:      req.KeyPoints,
		MaxScore:       req.MaxScore,
		MediaURL:       req.MediaURL,
		IsPublished:    req.IsPublished,
	}
	if user := c.AuthService.GetCurrentUser(ctx); user != nil {
		question.CreatorID = user.ID
	}

	if err := c.ExamService.CreateQuestion(question); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	util.Created(ctx, question)
}

// UpdateQuestion godoc
// @Summary 更新题目
// @Tags 题库
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "题目ID"
// @Param   body body QuestionRequest true "题目内容"
// @Success 200 {object} util.Response{data=model.Question} "成功"
// @Failure 404 {object} util.Response "题目不存在"
// @Router /api/questions/{id} [put]
func (c *ExamController) UpdateQuestion(ctx *gin.Context) {
	var req QuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	question, err := c.ExamService.UpdateQuestion(ctx.Param("id"), &model.Question{
		Title:        req.Title,
		Content:      req.Content,
		SampleAnswer: req.SampleAnswer,
		KeyPoints:    req.KeyPoints,
		MaxScore:     req.MaxScore,
		MediaURL:     req.MediaURL,
		IsPublished:  req.IsPublished,
	})
	if err != nil {
		if errors.Is(err, util.ErrQuestionNotFound) {
			util.NotFound(ctx)
		} else {
			util.BadRequest(ctx, err.Error())
		}
		return
	}
	util.Success(ctx, question)
}

// GetQuestion godoc
// @Summary 获取题目详情
// @Tags 题库
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "题目ID"
// @Success 200 {object} util.Response{data=model.Question} "成功"
// @Failure 404 {object} util.Response "题目不存在"
// @Router /api/questions/{id} [get]
func (c *ExamController) GetQuestion(ctx *gin.Context) {
	question, err := c.ExamService.GetQuestion(ctx.Param("id"))
	if err != nil {
		if errors.Is(err, util.ErrQuestionNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, question)
}

// ListQuestions godoc
// @Summary 分页列出题目
// @Tags 题库
// @Produce  json
// @Security BearerAuth
// @Param   aptisTypeId query int false "技能类别ID"
// @Param   questionTypeId query int false "题型ID"
// @Param   page query int false "页码，默认 1"
// @Param   limit query int false "每页数量，默认 20"
// @Success 200 {object} util.Response{data=object} "成功"
// @Router /api/questions [get]
func (c *ExamController) ListQuestions(ctx *gin.Context) {
	aptisTypeID, _ := strconv.ParseUint(ctx.DefaultQuery("aptisTypeId", "0"), 10, 64)
	questionTypeID, _ := strconv.ParseUint(ctx.DefaultQuery("questionTypeId", "0"), 10, 64)
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	questions, total, err := c.ExamService.ListQuestions(uint(aptisTypeID), uint(questionTypeID), page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"items": questions, "total": total})
}

// StartAttemptRequest 开始考试请求
// swagger:model StartAttemptRequest
type StartAttemptRequest struct {
	ExamTitle string `json:"examTitle" binding:"required"`
}

// StartAttempt godoc
// @Summary 开始一次考试
// @Tags 考试记录
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body StartAttemptRequest true "考试信息"
// @Success 201 {object} util.Response{data=model.ExamAttempt} "创建成功"
// @Router /api/attempts [post]
func (c *ExamController) StartAttempt(ctx *gin.Context) {
	var req StartAttemptRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	user := c.AuthService.GetCurrentUser(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	attempt, err := c.ExamService.StartAttempt(user.ID, req.ExamTitle)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Created(ctx, attempt)
}

// SubmitAttempt godoc
// @Summary 交卷
// @Tags 考试记录
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "考试记录ID"
// @Success 200 {object} util.Response{data=model.ExamAttempt} "成功"
// @Failure 403 {object} util.Response "无权操作他人的考试记录"
// @Failure 404 {object} util.Response "考试记录不存在"
// @Router /api/attempts/{id}/submit [post]
func (c *ExamController) SubmitAttempt(ctx *gin.Context) {
	user := c.AuthService.GetCurrentUser(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	attempt, err := c.ExamService.SubmitAttempt(ctx.Param("id"), user.ID)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrPermissionDenied):
			util.Forbidden(ctx)
		case errors.Is(err, gorm.ErrRecordNotFound):
			util.NotFound(ctx)
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, attempt)
}

// ListAttempts godoc
// @Summary 列出当前用户的考试记录
// @Tags 考试记录
// @Produce  json
// @Security BearerAuth
// @Param   page query int false "页码，默认 1"
// @Param   limit query int false "每页数量，默认 20"
// @Success 200 {object} util.Response{data=object} "成功"
// @Router /api/attempts [get]
func (c *ExamController) ListAttempts(ctx *gin.Context) {
	user := c.AuthService.GetCurrentUser(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	attempts, total, err := c.ExamService.ListAttempts(user.ID, page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"items": attempts, "total": total})
}
