package repository

import (
	"aptis_exam_backend/internal/model"

	"gorm.io/gorm"
)

type FeedbackRepository struct {
	DB *gorm.DB
}

func NewFeedbackRepository(db *gorm.DB) *FeedbackRepository {
	return &FeedbackRepository{DB: db}
}

func (r *FeedbackRepository) ListByAnswer(answerID string) ([]model.AnswerFeedback, error) {
	var feedbacks []model.AnswerFeedback
	err := r.DB.Where("answer_id = ?", answerID).Order("criterion_id asc").Find(&feedbacks).Error
	return feedbacks, err
}
