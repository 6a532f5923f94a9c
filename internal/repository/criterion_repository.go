package repository

import (
	"aptis_exam_backend/internal/model"
	"aptis_exam_backend/pkg/logger"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CriterionRepository struct {
	DB       *gorm.DB
	Redis    *redis.Client
	CacheTTL time.Duration
}

func NewCriterionRepository(db *gorm.DB, rdb *redis.Client, cacheTTL time.Duration) *CriterionRepository {
	return &CriterionRepository{DB: db, Redis: rdb, CacheTTL: cacheTTL}
}

func criteriaCacheKey(aptisTypeID, questionTypeID uint) string {
	return fmt.Sprintf("scoring_criteria:%d:%d", aptisTypeID, questionTypeID)
}

// ListForQuestionType 返回某题型启用的评分细则，评分前的热路径，走 Redis 缓存
func (r *CriterionRepository) ListForQuestionType(aptisTypeID, questionTypeID uint) ([]model.ScoringCriterion, error) {
	ctx := context.Background()
	key := criteriaCacheKey(aptisTypeID, questionTypeID)

	if r.Redis != nil {
		if cached, err := r.Redis.Get(ctx, key).Result(); err == nil {
			var criteria []model.ScoringCriterion
			if err := json.Unmarshal([]byte(cached), &criteria); err == nil {
				return criteria, nil
			}
		}
	}

	var criteria []model.ScoringCriterion
	err := r.DB.Where("aptis_type_id = ? AND question_type_id = ? AND enabled = ?", aptisTypeID, questionTypeID, true).
		Order("id asc").Find(&criteria).Error
	if err != nil {
		return nil, err
	}

	if r.Redis != nil && len(criteria) > 0 {
		if data, err := json.Marshal(criteria); err == nil {
			if err := r.Redis.Set(ctx, key, data, r.CacheTTL).Err(); err != nil {
				logger.Log.Warn("criteria cache set failed", zap.Error(err))
			}
		}
	}

	return criteria, nil
}

func (r *CriterionRepository) Create(c *model.ScoringCriterion) error {
	if err := r.DB.Create(c).Error; err != nil {
		return err
	}
	r.invalidate(c.AptisTypeID, c.QuestionTypeID)
	return nil
}

func (r *CriterionRepository) Update(c *model.ScoringCriterion) error {
	if err := r.DB.Save(c).Error; err != nil {
		return err
	}
	r.invalidate(c.AptisTypeID, c.QuestionTypeID)
	return nil
}

func (r *CriterionRepository) Delete(id uint) error {
	var c model.ScoringCriterion
	if err := r.DB.First(&c, id).Error; err != nil {
		return err
	}
	if err := r.DB.Delete(&model.ScoringCriterion{}, id).Error; err != nil {
		return err
	}
	r.invalidate(c.AptisTypeID, c.QuestionTypeID)
	return nil
}

func (r *CriterionRepository) FindByID(id uint) (*model.ScoringCriterion, error) {
	var c model.ScoringCriterion
	err := r.DB.First(&c, id).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CriterionRepository) List(page, limit int) ([]model.ScoringCriterion, int64, error) {
	var total int64
	if err := r.DB.Model(&model.ScoringCriterion{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var criteria []model.ScoringCriterion
	offset := (page - 1) * limit
	err := r.DB.Order("aptis_type_id asc, question_type_id asc, id asc").
		Offset(offset).Limit(limit).Find(&criteria).Error
	return criteria, total, err
}

func (r *CriterionRepository) invalidate(aptisTypeID, questionTypeID uint) {
	if r.Redis == nil {
		return
	}
	if err := r.Redis.Del(context.Background(), criteriaCacheKey(aptisTypeID, questionTypeID)).Err(); err != nil {
		logger.Log.Warn("criteria cache invalidate failed", zap.Error(err))
	}
}
