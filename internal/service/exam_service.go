package service

import (
	"aptis_exam_backend/internal/model"
	"aptis_exam_backend/internal/repository"
	"aptis_exam_backend/internal/util"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ExamService 题库与考试记录管理
type ExamService struct {
	QuestionRepo *repository.QuestionRepository
	AttemptRepo  *repository.AttemptRepository
}

func NewExamService(questionRepo *repository.QuestionRepository, attemptRepo *repository.AttemptRepository) *ExamService {
	return &ExamService{
		QuestionRepo: questionRepo,
		AttemptRepo:  attemptRepo,
	}
}

func (s *ExamService) CreateQuestion(q *model.Question) error {
	if q.MaxScore <= 0 {
		return errors.New("maxScore 必须大于 0")
	}
	return s.QuestionRepo.Create(q)
}

func (s *ExamService) UpdateQuestion(id string, update *model.Question) (*model.Question, error) {
	existing, err := s.QuestionRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuestionNotFound
		}
		return nil, err
	}

	existing.Title = update.Title
	existing.Content = update.Content
	existing.SampleAnswer = update.SampleAnswer
	existing.KeyPoints = update.KeyPoints
	existing.MaxScore = update.MaxScore
	existing.MediaURL = update.MediaURL
	existing.IsPublished = update.IsPublished

	if existing.MaxScore <= 0 {
		return nil, errors.New("maxScore 必须大于 0")
	}

	if err := s.QuestionRepo.Update(existing); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *ExamService) GetQuestion(id string) (*model.Question, error) {
	q, err := s.QuestionRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuestionNotFound
		}
		return nil, err
	}
	return q, nil
}

func (s *ExamService) ListQuestions(aptisTypeID, questionTypeID uint, page, limit int) ([]model.Question, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.QuestionRepo.List(aptisTypeID, questionTypeID, page, limit)
}

func (s *ExamService) StartAttempt(userID uint, examTitle string) (*model.ExamAttempt, error) {
	attempt := &model.ExamAttempt{
		UserID:    userID,
		ExamTitle: examTitle,
		Status:    "in_progress",
		StartedAt: time.Now(),
	}
	if err := s.AttemptRepo.Create(attempt); err != nil {
		return nil, err
	}
	return attempt, nil
}

func (s *ExamService) SubmitAttempt(id string, userID uint) (*model.ExamAttempt, error) {
	attempt, err := s.AttemptRepo.FindByID(id)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, util.ErrPermissionDenied
	}
	if attempt.Status == "submitted" {
		return attempt, nil
	}

	now := time.Now()
	attempt.Status = "submitted"
	attempt.SubmittedAt = &now
	if err := s.AttemptRepo.Update(attempt); err != nil {
		return nil, err
	}
	return attempt, nil
}

func (s *ExamService) GetAttempt(id string) (*model.ExamAttempt, error) {
	return s.AttemptRepo.FindByID(id)
}

func (s *ExamService) ListAttempts(userID uint, page, limit int) ([]model.ExamAttempt, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.AttemptRepo.ListByUser(userID, page, limit)
}
