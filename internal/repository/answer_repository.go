package repository

import (
	"aptis_exam_backend/internal/model"

	"gorm.io/gorm"
)

type AnswerRepository struct {
	DB *gorm.DB
}

func NewAnswerRepository(db *gorm.DB) *AnswerRepository {
	return &AnswerRepository{DB: db}
}

func (r *AnswerRepository) Create(answer *model.Answer) error {
	return r.DB.Create(answer).Error
}

func (r *AnswerRepository) FindByID(id string) (*model.Answer, error) {
	var answer model.Answer
	err := r.DB.First(&answer, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &answer, nil
}

func (r *AnswerRepository) Update(answer *model.Answer) error {
	return r.DB.Save(answer).Error
}

// UpdateTranscription 转写成功后写入转写文本并推进状态
func (r *AnswerRepository) UpdateTranscription(answerID, text string) error {
	return r.DB.Model(&model.Answer{}).Where("id = ?", answerID).
		Updates(map[string]interface{}{
			"transcribed_text": text,
			"status":           model.AnswerStatusTranscribed,
		}).Error
}

// MarkNeedsReview 管道失败后转人工复核；transcribedText 为空时不覆盖原值
func (r *AnswerRepository) MarkNeedsReview(answerID, transcribedText string) error {
	updates := map[string]interface{}{
		"needs_review": true,
		"status":       model.AnswerStatusNeedsReview,
	}
	if transcribedText != "" {
		updates["transcribed_text"] = transcribedText
	}
	return r.DB.Model(&model.Answer{}).Where("id = ?", answerID).Updates(updates).Error
}

func (r *AnswerRepository) UpdateStatus(answerID, status string) error {
	return r.DB.Model(&model.Answer{}).Where("id = ?", answerID).
		UpdateColumn("status", status).Error
}

// CommitScoringResult 在单个事务里清掉上一轮反馈、写入总分和全部细则反馈，
// 保证全有或全无：事务失败时旧反馈原样保留
func (r *AnswerRepository) CommitScoringResult(answer *model.Answer, feedbacks []model.AnswerFeedback) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("answer_id = ?", answer.ID).Delete(&model.AnswerFeedback{}).Error; err != nil {
			return err
		}
		if err := tx.Save(answer).Error; err != nil {
			return err
		}
		if len(feedbacks) > 0 {
			if err := tx.Create(&feedbacks).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ListPendingAIGrading 返回还没有 AI 评分结果的答案，供批量补评使用
func (r *AnswerRepository) ListPendingAIGrading(limit int) ([]model.Answer, error) {
	var answers []model.Answer
	query := r.DB.Where("score IS NULL AND ai_graded_at IS NULL").
		Where("answer_type IN ?", []model.AnswerType{model.AnswerTypeText, model.AnswerTypeAudio}).
		Order("created_at asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&answers).Error
	return answers, err
}

func (r *AnswerRepository) ListByAttempt(attemptID string) ([]model.Answer, error) {
	var answers []model.Answer
	err := r.DB.Where("attempt_id = ?", attemptID).Order("created_at asc").Find(&answers).Error
	return answers, err
}

// SetManualGrade 人工复核写分，解除 needs_review 标记
func (r *AnswerRepository) SetManualGrade(answerID string, score float64) error {
	return r.DB.Model(&model.Answer{}).Where("id = ?", answerID).
		Updates(map[string]interface{}{
			"score":        score,
			"graded_by":    model.GradedByManual,
			"needs_review": false,
			"status":       model.AnswerStatusScored,
		}).Error
}
