package service

import (
	"aptis_exam_backend/internal/model"
	"aptis_exam_backend/internal/util"
	"errors"

	"gorm.io/gorm"
)

// CriterionWriterStore 评分细则的持久化操作，由 CriterionRepository 实现
type CriterionWriterStore interface {
	Create(c *model.ScoringCriterion) error
	Update(c *model.ScoringCriterion) error
	Delete(id uint) error
	FindByID(id uint) (*model.ScoringCriterion, error)
	List(page, limit int) ([]model.ScoringCriterion, int64, error)
}

// CriterionService 评分细则管理，写操作会同步失效 Redis 缓存
type CriterionService struct {
	CriterionRepo CriterionWriterStore
}

func NewCriterionService(criterionRepo CriterionWriterStore) *CriterionService {
	return &CriterionService{CriterionRepo: criterionRepo}
}

func (s *CriterionService) Create(c *model.ScoringCriterion) error {
	if c.MaxScore <= 0 {
		return errors.New("maxScore 必须大于 0")
	}
	if c.Weight <= 0 || c.Weight > 1 {
		return errors.New("weight 必须在 (0, 1] 区间内")
	}
	return s.CriterionRepo.Create(c)
}

func (s *CriterionService) Update(id uint, update *model.ScoringCriterion) (*model.ScoringCriterion, error) {
	existing, err := s.CriterionRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCriterionNotFound
		}
		return nil, err
	}

	existing.Name = update.Name
	existing.Weight = update.Weight
	existing.MaxScore = update.MaxScore
	existing.RubricPrompt = update.RubricPrompt
	existing.Enabled = update.Enabled

	if existing.MaxScore <= 0 {
		return nil, errors.New("maxScore 必须大于 0")
	}
	if existing.Weight <= 0 || existing.Weight > 1 {
		return nil, errors.New("weight 必须在 (0, 1] 区间内")
	}

	if err := s.CriterionRepo.Update(existing); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *CriterionService) Delete(id uint) error {
	if err := s.CriterionRepo.Delete(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrCriterionNotFound
		}
		return err
	}
	return nil
}

func (s *CriterionService) Get(id uint) (*model.ScoringCriterion, error) {
	c, err := s.CriterionRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCriterionNotFound
		}
		return nil, err
	}
	return c, nil
}

func (s *CriterionService) List(page, limit int) ([]model.ScoringCriterion, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.CriterionRepo.List(page, limit)
}
