package controller

import (
	"aptis_exam_backend/internal/model"
	"aptis_exam_backend/internal/service"
	"aptis_exam_backend/internal/util"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
)

type CriterionController struct {
	CriterionService *service.CriterionService
}

func NewCriterionController(criterionService *service.CriterionService) *CriterionController {
	return &CriterionController{
		CriterionService: criterionService,
	}
}

// CriterionRequest 评分细则创建/更新请求
// swagger:model CriterionRequest
type CriterionRequest struct {
	AptisTypeID    uint    `json:"aptisTypeId" binding:"required"`
	QuestionTypeID uint    `json:"questionTypeId" binding:"required"`
	Name           string  `json:"name" binding:"required"`
	Weight         float64 `json:"weight" binding:"required,gt=0,lte=1"`
	MaxScore       float64 `json:"maxScore" binding:"required,gt=0"`
	RubricPrompt   string  `json:"rubricPrompt" binding:"required"`
	Enabled        *bool   `json:"enabled"`
}

func (r *CriterionRequest) toModel() *model.ScoringCriterion {
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	return &model.ScoringCriterion{
		AptisTypeID:    r.AptisTypeID,
		QuestionTypeID: r.QuestionTypeID,
		Name:           r.Name,
		Weight:         r.Weight,
		MaxScore:       r.MaxScore,
		RubricPrompt:   r.RubricPrompt,
		Enabled:        enabled,
	}
}

// Create godoc
// @Summary 创建评分细则
// @Tags 评分细则
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body CriterionRequest true "评分细则"
// @Success 201 {object} util.Response{data=model.ScoringCriterion} "创建成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Router /api/criteria [post]
func (c *CriterionController) Create(ctx *gin.Context) {
	var req CriterionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	criterion := req.toModel()
	if err := c.CriterionService.Create(criterion); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	util.Created(ctx, criterion)
}

// Update godoc
// @Summary 更新评分细则
// @Tags 评分细则
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "细则ID"
// @Param   body body CriterionRequest true "评分细则"
// @Success 200 {object} util.Response{data=model.ScoringCriterion} "成功"
// @Failure 404 {object} util.Response "细则不存在"
// @Router /api/criteria/{id} [put]
func (c *CriterionController) Update(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		util.BadRequest(ctx, "无效的ID")
		return
	}

	var req CriterionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	criterion, err := c.CriterionService.Update(uint(id), req.toModel())
	if err != nil {
		if errors.Is(err, util.ErrCriterionNotFound) {
			util.NotFound(ctx)
		} else {
			util.BadRequest(ctx, err.Error())
		}
		return
	}
	util.Success(ctx, criterion)
}

// Delete godoc
// @Summary 删除评分细则
// @Tags 评分细则
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "细则ID"
// @Success 200 {object} util.Response "成功"
// @Failure 404 {object} util.Response "细则不存在"
// @Router /api/criteria/{id} [delete]
func (c *CriterionController) Delete(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		util.BadRequest(ctx, "无效的ID")
		return
	}

	if err := c.CriterionService.Delete(uint(id)); err != nil {
		if errors.Is(err, util.ErrCriterionNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, gin.H{"message": "已删除"})
}

// Get godoc
// @Summary 获取评分细则
// @Tags 评分细则
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "细则ID"
// @Success 200 {object} util.Response{data=model.ScoringCriterion} "成功"
// @Failure 404 {object} util.Response "细则不存在"
// @Router /api/criteria/{id} [get]
func (c *CriterionController) Get(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		util.BadRequest(ctx, "无效的ID")
		return
	}

	criterion, err := c.CriterionService.Get(uint(id))
	if err != nil {
		if errors.Is(err, util.ErrCriterionNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, criterion)
}

// List godoc
// @Summary 分页列出评分细则
// @Tags 评分细则
// @Produce  json
// @Security BearerAuth
// @Param   page query int false "页码，默认 1"
// @Param   limit query int false "每页数量，默认 20"
// @Success 200 {object} util.Response{data=object} "成功"
// @Router /api/criteria [get]
func (c *CriterionController) List(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	criteria, total, err := c.CriterionService.List(page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"items": criteria, "total": total})
}
